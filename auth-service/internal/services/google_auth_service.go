package services

import (
	"context"
	"errors"

	"google.golang.org/api/idtoken"
)

type GoogleVerifier interface {
	Verify(ctx context.Context, idToken string) (email, givenName, familyName string, err error)
}

type GoogleAuthService struct {
	ClientID string
}

func NewGoogleAuthService(clientID string) *GoogleAuthService {
	return &GoogleAuthService{ClientID: clientID}
}

func (g *GoogleAuthService) Verify(ctx context.Context, idToken string) (string, string, string, error) {
	if g.ClientID == "" {
		return "", "", "", errors.New("google login is not configured")
	}
	payload, err := idtoken.Validate(ctx, idToken, g.ClientID)
	if err != nil {
		return "", "", "", err
	}
	email, _ := payload.Claims["email"].(string)
	if verified, _ := payload.Claims["email_verified"].(bool); !verified || email == "" {
		return "", "", "", errors.New("google account email is not verified")
	}
	given, _ := payload.Claims["given_name"].(string)
	family, _ := payload.Claims["family_name"].(string)
	return email, given, family, nil
}
