package handlers

import (
	"github.com/gin-gonic/gin"

	"opsuite/pkg/authclient"
)

// RegisterRoutes mounts the /auth tree. v validates bearer tokens.
func RegisterRoutes(router gin.IRouter, auth *AuthHandler, admin *AdminHandler, v authclient.Validator) {
	g := router.Group("/auth")
	{
		g.POST("/register", auth.Register)
		g.POST("/login", auth.Login)
		g.POST("/google-login", auth.GoogleLogin)
		g.POST("/resend-password", auth.ResendPassword)
		g.GET("/validate", auth.Validate)
		g.POST("/logout", auth.Logout)

		protected := g.Group("/")
		protected.Use(authclient.AuthMiddleware(v))
		{
			protected.GET("/profile", auth.GetProfile)
			protected.PUT("/profile", auth.UpdateProfile)
			protected.PUT("/change-password", auth.ChangePassword)
			protected.PUT("/set-initial-password", auth.SetInitialPassword)
			protected.GET("/users/by-role", authclient.RequireRoles(authclient.StaffRoles...), auth.UsersByRole)
		}

		adm := g.Group("/admin")
		adm.Use(authclient.AuthMiddleware(v), authclient.RequireRoles(authclient.RoleAdmin, authclient.RoleSuperadmin))
		{
			adm.POST("/users", admin.CreateStaff)
			adm.GET("/users", admin.ListUsers)
			adm.PUT("/users/:id/role", admin.ChangeRole)
			adm.PUT("/users/:id/block", admin.BlockUser)
			adm.PUT("/users/:id/unblock", admin.UnblockUser)
		}

		tenants := g.Group("/tenants")
		tenants.Use(authclient.AuthMiddleware(v), authclient.RequireRoles(authclient.RoleSuperadmin))
		{
			tenants.POST("", admin.CreateTenant)
			tenants.GET("", admin.ListTenants)
		}
	}
}
