package models

import (
	"time"
)

// CropOwner identifies the user a crop listing belongs to. Immutable after creation.
type CropOwner struct {
	OwnerName  string `bson:"owner_name" json:"ownerName"`
	OwnerEmail string `bson:"owner_email" json:"ownerEmail"`
}

// Crop represents a marketplace crop listing.
// Quantity is the amount still available; within the interest workflow it is only
// mutated by the accepted-interest transition and must never go negative.
type Crop struct {
	Base      `bson:",inline"`
	Owner     CropOwner `bson:"owner" json:"owner"`
	Name      string    `bson:"name" json:"name"`
	Type      string    `bson:"type" json:"type"`
	Location  string    `bson:"location" json:"location"`
	Quantity  float64   `bson:"quantity" json:"quantity"`
	Unit      string    `bson:"unit,omitempty" json:"unit,omitempty"`
	Price     float64   `bson:"price,omitempty" json:"price,omitempty"`
	Details   string    `bson:"details,omitempty" json:"details,omitempty"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}
