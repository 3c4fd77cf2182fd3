package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"opsuite/finance-service/internal/models"
	"opsuite/pkg/authclient"
)

func (h *FinanceHandler) CreateEstimation(c *gin.Context) {
	var in models.EstimationInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	e, err := h.service.CreateEstimation(c.Request.Context(), authclient.FromGin(c), in)
	reply(c, http.StatusCreated, e, err)
}

func (h *FinanceHandler) UpdateEstimation(c *gin.Context) {
	var in models.EstimationInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	e, err := h.service.UpdateEstimation(c.Request.Context(), authclient.FromGin(c), c.Param("id"), in)
	reply(c, http.StatusOK, e, err)
}

func (h *FinanceHandler) GetEstimation(c *gin.Context) {
	e, err := h.service.GetEstimation(c.Request.Context(), authclient.FromGin(c), c.Param("id"))
	reply(c, http.StatusOK, e, err)
}

func (h *FinanceHandler) ListEstimations(c *gin.Context) {
	page, err := h.service.ListEstimations(c.Request.Context(), authclient.FromGin(c), query(c))
	reply(c, http.StatusOK, page, err)
}

func (h *FinanceHandler) EstimationsForRequest(c *gin.Context) {
	items, err := h.service.EstimationsForRequest(c.Request.Context(), authclient.FromGin(c), c.Param("requestId"))
	reply(c, http.StatusOK, items, err)
}

func (h *FinanceHandler) SubmitEstimation(c *gin.Context) {
	e, err := h.service.SubmitEstimation(c.Request.Context(), authclient.FromGin(c), c.Param("id"))
	reply(c, http.StatusOK, e, err)
}

func (h *FinanceHandler) ApproveEstimation(c *gin.Context) {
	n, ok := note(c)
	if !ok {
		return
	}
	e, err := h.service.ApproveEstimation(c.Request.Context(), authclient.FromGin(c), c.Param("id"), n)
	reply(c, http.StatusOK, e, err)
}

func (h *FinanceHandler) RejectEstimation(c *gin.Context) {
	n, ok := note(c)
	if !ok {
		return
	}
	e, err := h.service.RejectEstimation(c.Request.Context(), authclient.FromGin(c), c.Param("id"), n)
	reply(c, http.StatusOK, e, err)
}

func (h *FinanceHandler) ReviseEstimation(c *gin.Context) {
	e, err := h.service.ReviseEstimation(c.Request.Context(), authclient.FromGin(c), c.Param("id"))
	reply(c, http.StatusOK, e, err)
}
