package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Device is the push token a user's app registered last. One per user.
type Device struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID  string             `bson:"tenant_id" json:"tenant_id"`
	UserID    string             `bson:"user_id" json:"user_id"`
	Token     string             `bson:"token" json:"-"`
	Platform  string             `bson:"platform,omitempty" json:"platform,omitempty"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}
