package handler

import (
	"github.com/gin-gonic/gin"

	"opsuite/pkg/authclient"
)

func RegisterRoutes(router gin.IRouter, h *NotificationHandler, v authclient.Validator, internalToken string) {
	g := router.Group("/notifications")
	{
		g.POST("/send", authclient.RequireInternalToken(internalToken), h.Send)

		user := g.Group("")
		user.Use(authclient.AuthMiddleware(v))
		user.GET("", h.List)
		user.GET("/unread-count", h.UnreadCount)
		user.PUT("/read-all", h.MarkAllRead)
		user.PUT("/device", h.RegisterDevice)
		user.DELETE("/device", h.UnregisterDevice)
		user.PUT("/:id/read", h.MarkRead)
	}
}
