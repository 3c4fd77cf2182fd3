package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"opsuite/finance-service/internal/models"
	"opsuite/finance-service/internal/services"
	"opsuite/pkg/authclient"
)

func (h *FinanceHandler) bindExpense(c *gin.Context) (models.ExpenseInput, *services.Upload, bool) {
	var in models.ExpenseInput
	if !isMultipart(c) {
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return in, nil, false
		}
		return in, nil, true
	}

	limitUpload(c)
	in.Title = strings.TrimSpace(c.PostForm("title"))
	in.Category = c.PostForm("category")
	in.Description = c.PostForm("description")
	var ok bool
	if in.Amount, ok = formDecimal(c, "amount"); !ok {
		return in, nil, false
	}
	incurred, ok := formTime(c, "incurred_on")
	if !ok {
		return in, nil, false
	}
	if incurred != nil {
		in.IncurredOn = *incurred
	}
	up, err := receipt(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read receipt"})
		return in, nil, false
	}
	return in, up, true
}

func (h *FinanceHandler) CreateExpense(c *gin.Context) {
	in, up, ok := h.bindExpense(c)
	if !ok {
		return
	}
	e, err := h.service.CreateExpense(c.Request.Context(), authclient.FromGin(c), in, up)
	reply(c, http.StatusCreated, e, err)
}

func (h *FinanceHandler) UpdateExpense(c *gin.Context) {
	var in models.ExpenseInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	e, err := h.service.UpdateExpense(c.Request.Context(), authclient.FromGin(c), c.Param("id"), in)
	reply(c, http.StatusOK, e, err)
}

func (h *FinanceHandler) DeleteExpense(c *gin.Context) {
	err := h.service.DeleteExpense(c.Request.Context(), authclient.FromGin(c), c.Param("id"))
	reply(c, http.StatusOK, gin.H{"message": "expense deleted"}, err)
}

func (h *FinanceHandler) GetExpense(c *gin.Context) {
	e, err := h.service.GetExpense(c.Request.Context(), authclient.FromGin(c), c.Param("id"))
	reply(c, http.StatusOK, e, err)
}

func (h *FinanceHandler) ExpenseReceiptURL(c *gin.Context) {
	url, err := h.service.ExpenseReceiptURL(c.Request.Context(), authclient.FromGin(c), c.Param("id"))
	reply(c, http.StatusOK, gin.H{"url": url}, err)
}

func (h *FinanceHandler) ListExpenses(c *gin.Context) {
	page, err := h.service.ListExpenses(c.Request.Context(), authclient.FromGin(c), query(c))
	reply(c, http.StatusOK, page, err)
}

func (h *FinanceHandler) ApproveExpense(c *gin.Context) {
	n, ok := note(c)
	if !ok {
		return
	}
	e, err := h.service.ApproveExpense(c.Request.Context(), authclient.FromGin(c), c.Param("id"), n)
	reply(c, http.StatusOK, e, err)
}

func (h *FinanceHandler) RejectExpense(c *gin.Context) {
	n, ok := note(c)
	if !ok {
		return
	}
	e, err := h.service.RejectExpense(c.Request.Context(), authclient.FromGin(c), c.Param("id"), n)
	reply(c, http.StatusOK, e, err)
}

func (h *FinanceHandler) ExportExpenses(c *gin.Context) {
	data, err := h.service.ExportExpenses(c.Request.Context(), authclient.FromGin(c), query(c))
	attachment(c, "expenses.xlsx", data, err)
}

func (h *FinanceHandler) Dashboard(c *gin.Context) {
	d, err := h.service.Dashboard(c.Request.Context(), authclient.FromGin(c).TenantID)
	reply(c, http.StatusOK, d, err)
}
