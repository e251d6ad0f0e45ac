package models

import "time"

// Client is a customer record. Tasks refer to clients by name only.
type Client struct {
	Base      `bson:",inline"`
	Name      string    `bson:"name" json:"name"`
	Phone     string    `bson:"phone" json:"phone"`
	AltPhone  string    `bson:"altPhone,omitempty" json:"altPhone,omitempty"`
	Notes     string    `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}
