package handler

import (
	"github.com/gin-gonic/gin"

	"opsuite/pkg/authclient"
)

func RegisterRoutes(router gin.IRouter, h *InspectionHandler, v authclient.Validator, internalToken string) {
	staff := authclient.RequireRoles(authclient.StaffRoles...)
	coordinators := authclient.RequireRoles(authclient.RoleSuperadmin, authclient.RoleAdmin, authclient.RoleStaff)

	g := router.Group("/inspection-requests")
	g.Use(authclient.AuthMiddleware(v))
	{
		g.POST("", authclient.RequireRoles(authclient.RoleClient), h.Create)
		g.GET("", staff, h.List)
		g.GET("/my", h.ListMine)
		g.GET("/stats", staff, h.Stats)
		g.GET("/travel-cost", h.TravelCost)

		g.GET("/:id", h.Get)
		g.PUT("/:id", h.Update)
		g.DELETE("/:id", h.Delete)
		g.POST("/:id/submit", h.Submit)
		g.POST("/:id/cancel", h.Cancel)
		g.POST("/:id/status", staff, h.ChangeStatus)
		g.POST("/:id/assign", coordinators, h.Assign)
		g.POST("/:id/schedule", staff, h.Schedule)
		g.POST("/:id/documents", h.UploadDocument)
		g.GET("/:id/documents/:docId/url", h.DocumentURL)
	}

	internal := router.Group("/internal/inspection-requests")
	internal.Use(authclient.RequireInternalToken(internalToken))
	{
		internal.POST("/payment", h.PaymentCallback)
	}
}
