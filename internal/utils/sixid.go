package utils

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"
)

// SixID is a 6-byte random ID, rendered as 10 characters of Crockford Base32 in
// JSON/URLs and stored as BSON BinData with custom subtype 0x80.
type SixID [6]byte

// sixIDBinarySubtype is the custom BSON binary subtype used for SixIDs.
const sixIDBinarySubtype = 0x80

// SixIDHookFunc is the signature of the NewSixID test hook. When it returns
// override=true, the returned ID is used instead of a random one.
type SixIDHookFunc func() (id SixID, override bool)

// NewSixIDHook lets tests make ID generation deterministic (or force collisions).
var NewSixIDHook SixIDHookFunc

// NewSixID returns a new random SixID.
func NewSixID() SixID {
	if NewSixIDHook != nil {
		if id, override := NewSixIDHook(); override {
			return id
		}
	}
	var id SixID
	if _, err := rand.Read(id[:]); err != nil {
		return SixID{}
	}
	return id
}

const crockfordAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

var crockfordDecodeMap = func() map[byte]byte {
	m := make(map[byte]byte, 64)
	for i := 0; i < len(crockfordAlphabet); i++ {
		m[crockfordAlphabet[i]] = byte(i)
	}
	lower := strings.ToLower(crockfordAlphabet)
	for i := 10; i < len(lower); i++ {
		m[lower[i]] = byte(i)
	}
	// Commonly confused characters per the Crockford spec.
	m['o'] = m['0']
	m['O'] = m['0']
	m['i'] = m['1']
	m['l'] = m['1']
	return m
}()

// String renders the ID as 10 uppercase Crockford Base32 characters.
func (u SixID) String() string {
	// 48 bits -> ceil(48/5) = 10 base32 characters.
	out := make([]byte, 0, 10)
	var bits uint
	var offset uint
	for i := 0; i < len(u); i++ {
		bits |= uint(u[i]) << offset
		offset += 8
		for offset >= 5 {
			out = append(out, crockfordAlphabet[bits&0x1F])
			bits >>= 5
			offset -= 5
		}
	}
	if offset > 0 {
		out = append(out, crockfordAlphabet[bits&0x1F])
	}
	return string(out)
}

// ParseSixID decodes a Crockford Base32 string into a SixID. Hyphens and spaces
// are tolerated; an empty string parses to the zero ID.
func ParseSixID(s string) (SixID, error) {
	if s == "" {
		return SixID{}, nil
	}
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, " ", "")
	if len(s) != 10 {
		return SixID{}, errors.New("SixID must be 10 base32 characters")
	}

	var id SixID
	var bits uint64
	var offset uint
	byteIndex := 0
	for i := 0; i < len(s); i++ {
		val, ok := crockfordDecodeMap[s[i]]
		if !ok {
			return SixID{}, errors.New("invalid character in SixID")
		}
		bits |= uint64(val) << offset
		offset += 5
		for offset >= 8 && byteIndex < len(id) {
			id[byteIndex] = byte(bits & 0xFF)
			byteIndex++
			bits >>= 8
			offset -= 8
		}
	}
	if byteIndex != len(id) {
		return SixID{}, errors.New("SixID decoding produced wrong length")
	}
	return id, nil
}

// MarshalJSON renders the ID as its Crockford Base32 string.
func (u SixID) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.String())
}

// UnmarshalJSON parses the ID from its Crockford Base32 string.
func (u *SixID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseSixID(s)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// MarshalBSONValue stores the ID as BinData with subtype 0x80.
func (u SixID) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bsontype.Binary, bsoncore.AppendBinary(nil, sixIDBinarySubtype, u[:]), nil
}

// UnmarshalBSONValue reads the ID back from BinData, accepting null as the zero ID.
func (u *SixID) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	if t == bsontype.Null {
		*u = SixID{}
		return nil
	}
	if t != bsontype.Binary {
		return errors.New("SixID: expected BSON binary")
	}
	subtype, b, _, ok := bsoncore.ReadBinary(data)
	if !ok || subtype != sixIDBinarySubtype || len(b) != 6 {
		return errors.New("SixID: invalid binary subtype or length")
	}
	copy((*u)[:], b)
	return nil
}
