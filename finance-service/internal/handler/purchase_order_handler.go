package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"opsuite/finance-service/internal/models"
	"opsuite/pkg/authclient"
)

func (h *FinanceHandler) CreatePurchaseOrder(c *gin.Context) {
	var in models.PurchaseOrderInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	po, err := h.service.CreatePurchaseOrder(c.Request.Context(), authclient.FromGin(c), in)
	reply(c, http.StatusCreated, po, err)
}

func (h *FinanceHandler) UpdatePurchaseOrder(c *gin.Context) {
	var in models.PurchaseOrderInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	po, err := h.service.UpdatePurchaseOrder(c.Request.Context(), authclient.FromGin(c), c.Param("id"), in)
	reply(c, http.StatusOK, po, err)
}

func (h *FinanceHandler) GetPurchaseOrder(c *gin.Context) {
	po, err := h.service.GetPurchaseOrder(c.Request.Context(), authclient.FromGin(c), c.Param("id"))
	reply(c, http.StatusOK, po, err)
}

func (h *FinanceHandler) ListPurchaseOrders(c *gin.Context) {
	page, err := h.service.ListPurchaseOrders(c.Request.Context(), authclient.FromGin(c), query(c))
	reply(c, http.StatusOK, page, err)
}

func (h *FinanceHandler) SubmitPurchaseOrder(c *gin.Context) {
	po, err := h.service.SubmitPurchaseOrder(c.Request.Context(), authclient.FromGin(c), c.Param("id"))
	reply(c, http.StatusOK, po, err)
}

func (h *FinanceHandler) ApprovePurchaseOrder(c *gin.Context) {
	n, ok := note(c)
	if !ok {
		return
	}
	po, err := h.service.ApprovePurchaseOrder(c.Request.Context(), authclient.FromGin(c), c.Param("id"), n)
	reply(c, http.StatusOK, po, err)
}

func (h *FinanceHandler) RejectPurchaseOrder(c *gin.Context) {
	n, ok := note(c)
	if !ok {
		return
	}
	po, err := h.service.RejectPurchaseOrder(c.Request.Context(), authclient.FromGin(c), c.Param("id"), n)
	reply(c, http.StatusOK, po, err)
}

func (h *FinanceHandler) MarkOrdered(c *gin.Context) {
	po, err := h.service.MarkOrdered(c.Request.Context(), authclient.FromGin(c), c.Param("id"))
	reply(c, http.StatusOK, po, err)
}

func (h *FinanceHandler) CancelPurchaseOrder(c *gin.Context) {
	n, ok := note(c)
	if !ok {
		return
	}
	po, err := h.service.CancelPurchaseOrder(c.Request.Context(), authclient.FromGin(c), c.Param("id"), n)
	reply(c, http.StatusOK, po, err)
}

type deliveryBody struct {
	Status models.DeliveryStatus `json:"status" binding:"required,oneof=partially_delivered delivered"`
}

func (h *FinanceHandler) UpdateDelivery(c *gin.Context) {
	var body deliveryBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be partially_delivered or delivered"})
		return
	}
	po, err := h.service.UpdateDelivery(c.Request.Context(), authclient.FromGin(c), c.Param("id"), body.Status)
	reply(c, http.StatusOK, po, err)
}

func (h *FinanceHandler) ExportPurchaseOrders(c *gin.Context) {
	data, err := h.service.ExportPurchaseOrders(c.Request.Context(), authclient.FromGin(c), query(c))
	attachment(c, "purchase-orders.xlsx", data, err)
}
