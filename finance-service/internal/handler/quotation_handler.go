package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"opsuite/finance-service/internal/models"
	"opsuite/pkg/authclient"
)

func bindTerms(c *gin.Context) (models.QuotationInput, bool) {
	var in models.QuotationInput
	if err := c.ShouldBindJSON(&in); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return in, false
	}
	return in, true
}

func (h *FinanceHandler) GenerateQuotation(c *gin.Context) {
	in, ok := bindTerms(c)
	if !ok {
		return
	}
	q, err := h.service.GenerateQuotation(c.Request.Context(), authclient.FromGin(c), c.GetString("token"), c.Param("estimationId"), in)
	reply(c, http.StatusCreated, q, err)
}

func (h *FinanceHandler) UpdateQuotation(c *gin.Context) {
	in, ok := bindTerms(c)
	if !ok {
		return
	}
	q, err := h.service.UpdateQuotation(c.Request.Context(), authclient.FromGin(c), c.Param("id"), in)
	reply(c, http.StatusOK, q, err)
}

func (h *FinanceHandler) GetQuotation(c *gin.Context) {
	q, err := h.service.GetQuotation(c.Request.Context(), authclient.FromGin(c), c.Param("id"))
	reply(c, http.StatusOK, q, err)
}

func (h *FinanceHandler) ListQuotations(c *gin.Context) {
	page, err := h.service.ListQuotations(c.Request.Context(), authclient.FromGin(c), query(c))
	reply(c, http.StatusOK, page, err)
}

func (h *FinanceHandler) MyQuotations(c *gin.Context) {
	page, err := h.service.MyQuotations(c.Request.Context(), authclient.FromGin(c), query(c))
	reply(c, http.StatusOK, page, err)
}

func (h *FinanceHandler) SendQuotation(c *gin.Context) {
	q, err := h.service.SendQuotation(c.Request.Context(), authclient.FromGin(c), c.Param("id"))
	reply(c, http.StatusOK, q, err)
}

func (h *FinanceHandler) AcceptQuotation(c *gin.Context) {
	q, err := h.service.AcceptQuotation(c.Request.Context(), authclient.FromGin(c), c.Param("id"))
	reply(c, http.StatusOK, q, err)
}

func (h *FinanceHandler) RejectQuotation(c *gin.Context) {
	q, err := h.service.RejectQuotation(c.Request.Context(), authclient.FromGin(c), c.Param("id"))
	reply(c, http.StatusOK, q, err)
}
