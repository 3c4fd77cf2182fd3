package delivery

import (
	"context"
	"fmt"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"opsuite/notification-service/internal/models"
)

type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

type SMS struct {
	api  messageCreator
	from string
}

func NewSMS(accountSID, authToken, from string) *SMS {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &SMS{api: client.Api, from: from}
}

// Deliver texts the title and message to the recipient's phone number.
func (s *SMS) Deliver(_ context.Context, n *models.Notification) error {
	if n.Recipient == "" {
		return ErrNoRecipient
	}
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(n.Recipient)
	params.SetFrom(s.from)
	params.SetBody(fmt.Sprintf("%s: %s", n.Title, n.Message))
	if _, err := s.api.CreateMessage(params); err != nil {
		return fmt.Errorf("twilio: %w", err)
	}
	return nil
}
