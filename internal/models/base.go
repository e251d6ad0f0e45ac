package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Base carries the document id shared by every stored model.
type Base struct {
	ID primitive.ObjectID `bson:"_id,omitempty" json:"_id,omitempty"`
}

func (m *Base) GenID() {
	m.ID = primitive.NewObjectID()
}

func NewBase() Base {
	return Base{ID: primitive.NewObjectID()}
}
