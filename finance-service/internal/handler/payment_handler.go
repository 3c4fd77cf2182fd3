package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"opsuite/finance-service/internal/models"
	"opsuite/finance-service/internal/services"
	"opsuite/pkg/authclient"
)

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/form-data")
}

// formDecimal reads a decimal form field. Empty fields are zero.
func formDecimal(c *gin.Context, field string) (decimal.Decimal, bool) {
	raw := strings.TrimSpace(c.PostForm(field))
	if raw == "" {
		return decimal.Zero, true
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": field + " must be a number"})
		return decimal.Zero, false
	}
	return d, true
}

func formTime(c *gin.Context, field string) (*time.Time, bool) {
	raw := strings.TrimSpace(c.PostForm(field))
	if raw == "" {
		return nil, true
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, true
		}
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": field + " must be an RFC 3339 timestamp or a YYYY-MM-DD date"})
	return nil, false
}

func (h *FinanceHandler) bindPayment(c *gin.Context) (models.PaymentInput, *services.Upload, bool) {
	var in models.PaymentInput
	if !isMultipart(c) {
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return in, nil, false
		}
		return in, nil, true
	}

	limitUpload(c)
	in.Purpose = c.PostForm("purpose")
	in.InspectionRequestID = c.PostForm("inspection_request_id")
	in.QuotationID = c.PostForm("quotation_id")
	in.PayerID = c.PostForm("payer_id")
	in.Method = c.PostForm("method")
	in.Note = c.PostForm("note")
	var ok bool
	if in.Amount, ok = formDecimal(c, "amount"); !ok {
		return in, nil, false
	}
	if in.PaidAt, ok = formTime(c, "paid_at"); !ok {
		return in, nil, false
	}
	up, err := receipt(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read receipt"})
		return in, nil, false
	}
	return in, up, true
}

// RecordPayment accepts JSON or a multipart form with an optional receipt.
func (h *FinanceHandler) RecordPayment(c *gin.Context) {
	in, up, ok := h.bindPayment(c)
	if !ok {
		return
	}
	p, err := h.service.RecordPayment(c.Request.Context(), authclient.FromGin(c), c.GetString("token"), in, up)
	reply(c, http.StatusCreated, p, err)
}

func (h *FinanceHandler) GetPayment(c *gin.Context) {
	p, err := h.service.GetPayment(c.Request.Context(), authclient.FromGin(c), c.Param("id"))
	reply(c, http.StatusOK, p, err)
}

func (h *FinanceHandler) PaymentReceiptURL(c *gin.Context) {
	url, err := h.service.PaymentReceiptURL(c.Request.Context(), authclient.FromGin(c), c.Param("id"))
	reply(c, http.StatusOK, gin.H{"url": url}, err)
}

func (h *FinanceHandler) ListPayments(c *gin.Context) {
	page, err := h.service.ListPayments(c.Request.Context(), authclient.FromGin(c), query(c))
	reply(c, http.StatusOK, page, err)
}

func (h *FinanceHandler) MyPayments(c *gin.Context) {
	page, err := h.service.MyPayments(c.Request.Context(), authclient.FromGin(c), query(c))
	reply(c, http.StatusOK, page, err)
}

func (h *FinanceHandler) VerifyPayment(c *gin.Context) {
	n, ok := note(c)
	if !ok {
		return
	}
	p, err := h.service.VerifyPayment(c.Request.Context(), authclient.FromGin(c), c.Param("id"), n)
	reply(c, http.StatusOK, p, err)
}

func (h *FinanceHandler) RejectPayment(c *gin.Context) {
	n, ok := note(c)
	if !ok {
		return
	}
	p, err := h.service.RejectPayment(c.Request.Context(), authclient.FromGin(c), c.Param("id"), n)
	reply(c, http.StatusOK, p, err)
}
