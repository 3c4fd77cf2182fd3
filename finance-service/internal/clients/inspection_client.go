package clients

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"opsuite/pkg/apperr"
	"opsuite/pkg/authclient"
)

// InspectionSummary is the part of an inspection request finance needs.
type InspectionSummary struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenant_id"`
	ClientID    string `json:"client_id"`
	ReferenceNo string `json:"reference_no"`
	Status      string `json:"status"`
}

// PaymentDecision is posted to inspection-service when an inspection fee
// payment is verified or rejected.
type PaymentDecision struct {
	RequestID string `json:"request_id"`
	TenantID  string `json:"tenant_id"`
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
	Note      string `json:"note,omitempty"`
}

type InspectionClient struct {
	http *resty.Client
}

func NewInspectionClient(baseURL, internalToken string) *InspectionClient {
	return &InspectionClient{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(5*time.Second).
			SetRetryCount(2).
			SetRetryWaitTime(300*time.Millisecond).
			SetHeader("Accept", "application/json").
			SetHeader(authclient.InternalTokenHeader, internalToken),
	}
}

// Get loads a request with the caller's token, so visibility rules apply.
func (c *InspectionClient) Get(ctx context.Context, token, id string) (*InspectionSummary, error) {
	var out InspectionSummary
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetResult(&out).
		Get("/inspection-requests/" + id)
	if err != nil {
		return nil, fmt.Errorf("inspection service unreachable: %w", err)
	}
	if err := statusError(resp, "inspection request"); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *InspectionClient) NotifyPayment(ctx context.Context, d PaymentDecision) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(d).
		Post("/internal/inspection-requests/payment")
	if err != nil {
		return fmt.Errorf("inspection service unreachable: %w", err)
	}
	return statusError(resp, "inspection request")
}

func statusError(resp *resty.Response, what string) error {
	switch resp.StatusCode() {
	case http.StatusOK, http.StatusCreated:
		return nil
	case http.StatusNotFound, http.StatusBadRequest:
		return fmt.Errorf("%w: %s not found", apperr.ErrNotFound, what)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s is not awaiting payment", apperr.ErrConflict, what)
	case http.StatusForbidden, http.StatusUnauthorized:
		return fmt.Errorf("%w: %s is not accessible", apperr.ErrForbidden, what)
	default:
		return fmt.Errorf("inspection service returned status %d", resp.StatusCode())
	}
}
