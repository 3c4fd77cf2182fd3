package handler

import (
	"github.com/gin-gonic/gin"

	"opsuite/pkg/authclient"
)

func RegisterRoutes(router gin.IRouter, h *FinanceHandler, v authclient.Validator) {
	auth := authclient.AuthMiddleware(v)
	staff := authclient.RequireRoles(authclient.StaffRoles...)
	approvers := authclient.RequireRoles(authclient.RoleSuperadmin, authclient.RoleAdmin, authclient.RoleFinance)
	estimators := authclient.RequireRoles(authclient.RoleSuperadmin, authclient.RoleAdmin, authclient.RoleFinance,
		authclient.RoleStaff, authclient.RoleInspector)
	receivers := authclient.RequireRoles(authclient.RoleSuperadmin, authclient.RoleAdmin, authclient.RoleFinance,
		authclient.RoleWarehouse)

	est := router.Group("/inspection-estimation", auth, staff)
	{
		est.GET("", h.ListEstimations)
		est.POST("", estimators, h.CreateEstimation)
		est.GET("/by-request/:requestId", h.EstimationsForRequest)
		est.GET("/:id", h.GetEstimation)
		est.PUT("/:id", estimators, h.UpdateEstimation)
		est.POST("/:id/submit", estimators, h.SubmitEstimation)
		est.POST("/:id/revise", estimators, h.ReviseEstimation)
		est.POST("/:id/approve", approvers, h.ApproveEstimation)
		est.POST("/:id/reject", approvers, h.RejectEstimation)
	}

	quo := router.Group("/quotations", auth)
	{
		quo.GET("", staff, h.ListQuotations)
		quo.GET("/my", h.MyQuotations)
		quo.POST("/from-estimation/:estimationId", approvers, h.GenerateQuotation)
		quo.GET("/:id", h.GetQuotation)
		quo.PUT("/:id", approvers, h.UpdateQuotation)
		quo.POST("/:id/send", approvers, h.SendQuotation)
		quo.POST("/:id/accept", h.AcceptQuotation)
		quo.POST("/:id/reject", h.RejectQuotation)
	}

	pay := router.Group("/payments", auth)
	{
		pay.POST("", h.RecordPayment)
		pay.GET("", approvers, h.ListPayments)
		pay.GET("/my", h.MyPayments)
		pay.GET("/:id", h.GetPayment)
		pay.GET("/:id/receipt", h.PaymentReceiptURL)
		pay.POST("/:id/verify", approvers, h.VerifyPayment)
		pay.POST("/:id/reject", approvers, h.RejectPayment)
	}

	po := router.Group("/purchase-orders", auth, staff)
	{
		po.GET("", h.ListPurchaseOrders)
		po.POST("", h.CreatePurchaseOrder)
		po.GET("/export", h.ExportPurchaseOrders)
		po.GET("/:id", h.GetPurchaseOrder)
		po.PUT("/:id", h.UpdatePurchaseOrder)
		po.POST("/:id/submit", h.SubmitPurchaseOrder)
		po.POST("/:id/approve", approvers, h.ApprovePurchaseOrder)
		po.POST("/:id/reject", approvers, h.RejectPurchaseOrder)
		po.POST("/:id/ordered", approvers, h.MarkOrdered)
		po.POST("/:id/delivery", receivers, h.UpdateDelivery)
		po.POST("/:id/cancel", approvers, h.CancelPurchaseOrder)
	}

	exp := router.Group("/expenses", auth, staff)
	{
		exp.GET("", approvers, h.ListExpenses)
		exp.POST("", h.CreateExpense)
		exp.GET("/export", approvers, h.ExportExpenses)
		exp.GET("/:id", h.GetExpense)
		exp.GET("/:id/receipt", h.ExpenseReceiptURL)
		exp.PUT("/:id", h.UpdateExpense)
		exp.DELETE("/:id", h.DeleteExpense)
		exp.POST("/:id/approve", approvers, h.ApproveExpense)
		exp.POST("/:id/reject", approvers, h.RejectExpense)
	}

	router.GET("/finance/dashboard", auth, approvers, h.Dashboard)
}
