package models

import (
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"opsuite/pkg/notify"
)

// Notification is addressed either to one user or, with an empty UserID,
// to every user of a role in the tenant. A direct notification has neither
// and goes only to its external Recipient; it never shows in an inbox.
type Notification struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID     string             `bson:"tenant_id" json:"tenant_id"`
	UserID       string             `bson:"user_id" json:"user_id,omitempty"`
	Role         string             `bson:"role,omitempty" json:"role,omitempty"`
	Title        string             `bson:"title" json:"title"`
	Message      string             `bson:"message" json:"message"`
	Type         string             `bson:"type" json:"type"`
	DeliveryType string             `bson:"delivery_type" json:"delivery_type"`
	Recipient    string             `bson:"recipient,omitempty" json:"-"`
	Metadata     map[string]string  `bson:"metadata,omitempty" json:"metadata,omitempty"`
	Read         bool               `bson:"read" json:"read"`
	ReadBy       []string           `bson:"read_by,omitempty" json:"-"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
}

func (n *Notification) IsBroadcast() bool {
	return n.UserID == ""
}

// IsDirect reports an external delivery with no inbox owner.
func (n *Notification) IsDirect() bool {
	return n.UserID == "" && n.Role == "" && n.DeliveryType != notify.DeliveryInApp && n.Recipient != ""
}

// ReadFor resolves the read flag for userID. Broadcasts track readers
// individually.
func (n *Notification) ReadFor(userID string) bool {
	if n.IsBroadcast() {
		return slices.Contains(n.ReadBy, userID)
	}
	return n.Read
}
