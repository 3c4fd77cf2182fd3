package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"opsuite/auth-service/internal/services"
	"opsuite/pkg/apperr"
	"opsuite/pkg/authclient"
)

type AdminHandler struct {
	authService *services.AuthService
}

func NewAdminHandler(authService *services.AuthService) *AdminHandler {
	return &AdminHandler{authService: authService}
}

// POST /auth/admin/users
func (h *AdminHandler) CreateStaff(c *gin.Context) {
	var req services.CreateStaffInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	user, err := h.authService.CreateStaff(c.Request.Context(), authclient.FromGin(c), req)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// GET /auth/admin/users?role=
func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.authService.ListUsers(c.Request.Context(), authclient.FromGin(c), c.Query("role"))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// PUT /auth/admin/users/:id/role
func (h *AdminHandler) ChangeRole(c *gin.Context) {
	var req struct {
		Role string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role is required"})
		return
	}
	user, err := h.authService.ChangeRole(c.Request.Context(), authclient.FromGin(c), c.Param("id"), req.Role)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// PUT /auth/admin/users/:id/block
func (h *AdminHandler) BlockUser(c *gin.Context) {
	h.setBlocked(c, true)
}

// PUT /auth/admin/users/:id/unblock
func (h *AdminHandler) UnblockUser(c *gin.Context) {
	h.setBlocked(c, false)
}

func (h *AdminHandler) setBlocked(c *gin.Context, blocked bool) {
	if err := h.authService.SetBlocked(c.Request.Context(), authclient.FromGin(c), c.Param("id"), blocked); err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "banned": blocked})
}

// POST /auth/tenants
func (h *AdminHandler) CreateTenant(c *gin.Context) {
	var req services.CreateTenantInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	tenant, admin, err := h.authService.CreateTenant(c.Request.Context(), req)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"tenant": tenant, "admin": admin})
}

// GET /auth/tenants
func (h *AdminHandler) ListTenants(c *gin.Context) {
	tenants, err := h.authService.ListTenants(c.Request.Context())
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, tenants)
}
