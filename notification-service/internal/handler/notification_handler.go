package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"opsuite/notification-service/internal/services"
	"opsuite/pkg/apperr"
	"opsuite/pkg/authclient"
	"opsuite/pkg/notify"
)

type NotificationHandler struct {
	service *services.NotificationService
}

func NewNotificationHandler(service *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{service: service}
}

func queryInt(c *gin.Context, key string) int64 {
	v, _ := strconv.ParseInt(c.Query(key), 10, 64)
	return v
}

// List serves the polling endpoint.
func (h *NotificationHandler) List(c *gin.Context) {
	limit, offset := services.ClampPage(queryInt(c, "limit"), queryInt(c, "offset"))
	items, err := h.service.List(c.Request.Context(), authclient.FromGin(c), limit, offset)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "limit": limit, "offset": offset})
}

func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	n, err := h.service.UnreadCount(c.Request.Context(), authclient.FromGin(c))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	if err := h.service.MarkRead(c.Request.Context(), authclient.FromGin(c), c.Param("id")); err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "marked as read"})
}

func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	n, err := h.service.MarkAllRead(c.Request.Context(), authclient.FromGin(c))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}

type deviceBody struct {
	Token    string `json:"token" binding:"required"`
	Platform string `json:"platform"`
}

// RegisterDevice stores the FCM token of the caller's app.
func (h *NotificationHandler) RegisterDevice(c *gin.Context) {
	var body deviceBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}
	if err := h.service.RegisterDevice(c.Request.Context(), authclient.FromGin(c), body.Token, body.Platform); err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "device registered"})
}

func (h *NotificationHandler) UnregisterDevice(c *gin.Context) {
	if err := h.service.UnregisterDevice(c.Request.Context(), authclient.FromGin(c)); err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "device removed"})
}

// Send is the internal endpoint other services post to.
func (h *NotificationHandler) Send(c *gin.Context) {
	var req notify.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	n, err := h.service.Send(c.Request.Context(), req)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, n)
}
