package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opsuite/finance-service/internal/models"
	"opsuite/pkg/apperr"
	"opsuite/pkg/listing"
)

func feeInput(requestID, amount string) models.PaymentInput {
	return models.PaymentInput{
		Purpose:             models.PurposeInspectionFee,
		InspectionRequestID: requestID,
		Amount:              dec(amount),
		Method:              "bank_transfer",
	}
}

func pdfUpload(body string) *Upload {
	return &Upload{
		FileName:    "receipt.pdf",
		ContentType: "application/pdf",
		Size:        int64(len(body)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader([]byte(body))), nil
		},
	}
}

func TestInspectionFeePaymentVerified(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	reqID := e.addRequest("payment_pending")

	p, err := e.svc.RecordPayment(ctx, client, "token", feeInput(reqID, "150"), pdfUpload("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, "PAY-2026-000001", p.Reference)
	assert.Equal(t, models.PaymentPending, p.Status)
	assert.Equal(t, client.UserID, p.PayerID)
	assert.Equal(t, fixedNow, p.PaidAt)
	require.NotNil(t, p.Receipt)
	assert.True(t, strings.HasPrefix(p.Receipt.Key, "payments/"+tenantA+"/"), p.Receipt.Key)
	assert.Contains(t, e.rec.eventTypes(), "payment_submitted")

	_, err = e.svc.RecordPayment(ctx, client, "token", feeInput(reqID, "150"), nil)
	assert.ErrorIs(t, err, apperr.ErrConflict, "one pending payment per request")

	p, err = e.svc.VerifyPayment(ctx, finance, p.ID.Hex(), "matched bank statement")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentVerified, p.Status)
	require.Len(t, e.inspections.decisions, 1)
	d := e.inspections.decisions[0]
	assert.Equal(t, reqID, d.RequestID)
	assert.Equal(t, "verified", d.Status)
	assert.Equal(t, p.ID.Hex(), d.PaymentID)
	assert.Equal(t, []string{"payment_verified"}, e.rec.sentTo(client.UserID))

	_, err = e.svc.VerifyPayment(ctx, finance, p.ID.Hex(), "")
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
}

func TestInspectionFeeRequiresPaymentPendingRequest(t *testing.T) {
	e := newEnv()
	reqID := e.addRequest("pending")

	_, err := e.svc.RecordPayment(context.Background(), client, "token", feeInput(reqID, "150"), nil)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = e.svc.RecordPayment(context.Background(), client, "token", feeInput("missing", "150"), nil)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestStaffRecordsPaymentOnBehalfOfClient(t *testing.T) {
	e := newEnv()
	reqID := e.addRequest("payment_pending")

	p, err := e.svc.RecordPayment(context.Background(), finance, "token", feeInput(reqID, "80"), nil)
	require.NoError(t, err)
	assert.Equal(t, client.UserID, p.PayerID)
}

func TestVerifyFailsWhenInspectionServiceDoes(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	p, err := e.svc.RecordPayment(ctx, client, "token", feeInput(e.addRequest("payment_pending"), "150"), nil)
	require.NoError(t, err)

	e.inspections.failWith = errors.New("connection refused")
	_, err = e.svc.VerifyPayment(ctx, finance, p.ID.Hex(), "")
	require.Error(t, err)

	stored, err := e.payments.FindByID(ctx, tenantA, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, stored.Status)
}

func TestRejectSucceedsWhenInspectionServiceIsDown(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	p, err := e.svc.RecordPayment(ctx, client, "token", feeInput(e.addRequest("payment_pending"), "150"), nil)
	require.NoError(t, err)

	e.inspections.failWith = errors.New("connection refused")
	p, err = e.svc.RejectPayment(ctx, finance, p.ID.Hex(), "blurry receipt")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentRejected, p.Status)
	assert.Equal(t, []string{"payment_rejected"}, e.rec.sentTo(client.UserID))
}

func TestQuotationPaymentsRespectOutstandingBalance(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	q := sentQuotation(t, e)
	in := models.PaymentInput{Purpose: models.PurposeQuotation, QuotationID: q.ID.Hex(), Amount: dec("100"), Method: "card"}

	_, err := e.svc.RecordPayment(ctx, client, "token", in, nil)
	assert.ErrorIs(t, err, apperr.ErrConflict, "quotation must be accepted first")

	_, err = e.svc.AcceptQuotation(ctx, client, q.ID.Hex())
	require.NoError(t, err)

	first, err := e.svc.RecordPayment(ctx, client, "token", in, nil)
	require.NoError(t, err)
	assert.Equal(t, q.InspectionRequestID, first.InspectionRequestID)

	in.Amount = dec("80")
	_, err = e.svc.RecordPayment(ctx, client, "token", in, nil)
	assert.ErrorIs(t, err, apperr.ErrValidation, "only 71.91 is outstanding")

	_, err = e.svc.RejectPayment(ctx, finance, first.ID.Hex(), "")
	require.NoError(t, err)
	assert.Empty(t, e.inspections.decisions, "quotation payments are not reported to inspection-service")

	in.Amount = dec("171.91")
	_, err = e.svc.RecordPayment(ctx, client, "token", in, nil)
	assert.NoError(t, err)
}

func TestPaymentVisibility(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	p, err := e.svc.RecordPayment(ctx, client, "token", feeInput(e.addRequest("payment_pending"), "150"), pdfUpload("%PDF"))
	require.NoError(t, err)

	url, err := e.svc.PaymentReceiptURL(ctx, client, p.ID.Hex())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "memory://payments/"), url)

	_, err = e.svc.GetPayment(ctx, other, p.ID.Hex())
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	mine, err := e.svc.MyPayments(ctx, other, listing.Query{})
	require.NoError(t, err)
	assert.Zero(t, mine.Total)

	all, err := e.svc.ListPayments(ctx, finance, listing.Query{Status: "pending"})
	require.NoError(t, err)
	assert.Equal(t, 1, all.Total)
}

func TestPaymentValidation(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	reqID := e.addRequest("payment_pending")

	in := feeInput(reqID, "0")
	_, err := e.svc.RecordPayment(ctx, client, "token", in, nil)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	in = feeInput(reqID, "10")
	in.Method = "crypto"
	_, err = e.svc.RecordPayment(ctx, client, "token", in, nil)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	in = feeInput("", "10")
	_, err = e.svc.RecordPayment(ctx, client, "token", in, nil)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	bad := pdfUpload("MZ")
	bad.ContentType = "application/x-msdownload"
	_, err = e.svc.RecordPayment(ctx, client, "token", feeInput(reqID, "10"), bad)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
