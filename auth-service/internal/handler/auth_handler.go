package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"opsuite/auth-service/internal/services"
	"opsuite/pkg/apperr"
	"opsuite/pkg/authclient"
)

type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func bearerToken(c *gin.Context) string {
	return strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req services.RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	token, err := h.authService.Register(c.Request.Context(), req)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"token": token})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		TenantCode string `json:"tenant_code"`
		Email      string `json:"email"`
		Password   string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	token, err := h.authService.Login(c.Request.Context(), req.TenantCode, req.Email, req.Password)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	var req struct {
		TenantCode string `json:"tenant_code" binding:"required"`
		IDToken    string `json:"id_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenant_code and id_token are required"})
		return
	}
	token, err := h.authService.GoogleLogin(c.Request.Context(), req.TenantCode, req.IDToken)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (h *AuthHandler) Validate(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	id, err := h.authService.Validate(c.Request.Context(), token)
	if err != nil {
		if errors.Is(err, authclient.ErrInvalidToken) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, id)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no token provided"})
		return
	}
	if err := h.authService.Logout(c.Request.Context(), token); err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "successfully logged out"})
}

func (h *AuthHandler) ResendPassword(c *gin.Context) {
	var req struct {
		TenantCode string `json:"tenant_code" binding:"required"`
		Email      string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenant_code and a valid email are required"})
		return
	}
	if err := h.authService.ResendTemporaryPassword(c.Request.Context(), req.TenantCode, req.Email); err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "temporary password sent to email"})
}

func (h *AuthHandler) GetProfile(c *gin.Context) {
	user, err := h.authService.GetProfile(c.Request.Context(), c.GetString("user_id"))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var req services.ProfileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	user, err := h.authService.UpdateProfile(c.Request.Context(), c.GetString("user_id"), req)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.authService.ChangePassword(c.Request.Context(), c.GetString("user_id"), req.OldPassword, req.NewPassword); err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password changed successfully"})
}

func (h *AuthHandler) SetInitialPassword(c *gin.Context) {
	var req struct {
		TemporaryPassword string `json:"temporary_password" binding:"required"`
		NewPassword       string `json:"new_password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "temporary_password and new_password are required"})
		return
	}
	if err := h.authService.SetInitialPassword(c.Request.Context(), c.GetString("user_id"), req.TemporaryPassword, req.NewPassword); err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password set successfully"})
}

// UsersByRole lists the tenant's users holding a role, for assignment pickers.
func (h *AuthHandler) UsersByRole(c *gin.Context) {
	users, err := h.authService.UsersByRole(c.Request.Context(), c.GetString("tenant_id"), c.Query("role"))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}
