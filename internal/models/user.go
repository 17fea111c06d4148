package models

import (
	"time"
)

// User is a marketplace profile. Authentication is external; this service only
// stores profile data and trusts the verified email supplied by the token layer.
type User struct {
	Base      `bson:",inline"`
	Name      string    `bson:"name" json:"name"`
	Email     string    `bson:"email" json:"email"`
	Phone     string    `bson:"phone,omitempty" json:"phone,omitempty"`
	Address   string    `bson:"address,omitempty" json:"address,omitempty"`
	PhotoURL  string    `bson:"photo_url,omitempty" json:"photoURL,omitempty"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}
