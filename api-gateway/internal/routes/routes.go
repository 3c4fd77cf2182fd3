package routes

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"opsuite/api-gateway/internal/config"
	"opsuite/api-gateway/internal/proxy"
	"opsuite/pkg/authclient"
)

const apiPrefix = "/api"

type Route struct {
	Prefix string
	Target string
	Public bool
}

// Table lists every path family the gateway forwards.
func Table(s config.Services) []Route {
	return []Route{
		{Prefix: "/auth", Target: s.Auth, Public: true},
		{Prefix: "/inspection-requests", Target: s.Inspection},
		{Prefix: "/inspection-estimation", Target: s.Finance},
		{Prefix: "/quotations", Target: s.Finance},
		{Prefix: "/payments", Target: s.Finance},
		{Prefix: "/purchase-orders", Target: s.Finance},
		{Prefix: "/expenses", Target: s.Finance},
		{Prefix: "/finance", Target: s.Finance},
		{Prefix: "/warehouse", Target: s.Warehouse},
		{Prefix: "/notifications", Target: s.Notification},
	}
}

// Register mounts the table under /api. Secured families require a token
// that auth-service accepts; the services still check roles themselves.
func Register(r *gin.Engine, table []Route, v authclient.Validator, log *zap.Logger) error {
	api := r.Group(apiPrefix)
	secured := api.Group("")
	secured.Use(authclient.AuthMiddleware(v))

	for _, rt := range table {
		h, err := proxy.New(rt.Target, apiPrefix, log)
		if err != nil {
			return err
		}
		g := secured
		if rt.Public {
			g = api
		}
		g.Any(rt.Prefix, h)
		g.Any(rt.Prefix+"/*proxyPath", h)
	}
	return nil
}
