package delivery

import (
	"context"
	"errors"
	"fmt"

	"firebase.google.com/go/v4/messaging"
	fcm "github.com/appleboy/go-fcm"

	"opsuite/notification-service/internal/models"
)

type pushSender interface {
	Send(ctx context.Context, message ...*messaging.Message) (*messaging.BatchResponse, error)
}

type Push struct {
	client pushSender
}

// NewPush reads the Firebase service account from credentialsFile.
func NewPush(ctx context.Context, credentialsFile string) (*Push, error) {
	client, err := fcm.NewClient(ctx, fcm.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, err
	}
	return &Push{client: client}, nil
}

// Deliver pushes to the device token held in Recipient.
func (p *Push) Deliver(ctx context.Context, n *models.Notification) error {
	if n.Recipient == "" {
		return ErrNoRecipient
	}
	data := map[string]string{"type": n.Type, "notification_id": n.ID.Hex()}
	for k, v := range n.Metadata {
		data[k] = v
	}
	resp, err := p.client.Send(ctx, &messaging.Message{
		Token:        n.Recipient,
		Notification: &messaging.Notification{Title: n.Title, Body: n.Message},
		Data:         data,
	})
	if err != nil {
		return fmt.Errorf("fcm: %w", err)
	}
	if resp.FailureCount > 0 {
		for _, r := range resp.Responses {
			if r.Error != nil {
				return fmt.Errorf("fcm: %w", r.Error)
			}
		}
		return errors.New("fcm: message rejected")
	}
	return nil
}
