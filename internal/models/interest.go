package models

import (
	"time"

	"github.com/muzammelhussain/krishi-link-server/internal/utils"
)

// InterestStatus is the lifecycle state of an interest.
type InterestStatus string

const (
	InterestStatusPending  InterestStatus = "pending"
	InterestStatusAccepted InterestStatus = "accepted"
	InterestStatusRejected InterestStatus = "rejected"
)

// IsTerminal reports whether s ends the interest lifecycle.
func (s InterestStatus) IsTerminal() bool {
	return s == InterestStatusAccepted || s == InterestStatusRejected
}

// Interest is a buyer's request against a crop listing.
// Interests live in their own collection and reference the crop by ID; the pair
// (crop_id, user_email) is covered by a unique index.
type Interest struct {
	Base      `bson:",inline"`
	CropID    utils.SixID    `bson:"crop_id" json:"cropId"`
	UserEmail string         `bson:"user_email" json:"userEmail"`
	UserName  string         `bson:"user_name" json:"userName"`
	Quantity  float64        `bson:"quantity" json:"quantity"`
	Message   string         `bson:"message" json:"message"`
	Status    InterestStatus `bson:"status" json:"status"`
	CreatedAt time.Time      `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time      `bson:"updated_at" json:"updatedAt"`
}

// MyInterest is the crop-joined view returned by the my-interests query.
type MyInterest struct {
	ID         utils.SixID    `json:"id"`
	CropID     utils.SixID    `json:"cropId"`
	CropName   string         `json:"cropName"`
	OwnerName  string         `json:"ownerName"`
	OwnerEmail string         `json:"ownerEmail"`
	Quantity   float64        `json:"quantity"`
	Message    string         `json:"message"`
	Status     InterestStatus `json:"status"`
}
