package proxy

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// New forwards requests to targetHost with stripPrefix removed from the
// path. The client's X-Forwarded-For is dropped so the backend only sees
// the address the gateway observed.
func New(targetHost, stripPrefix string, log *zap.Logger) (gin.HandlerFunc, error) {
	target, err := url.Parse(targetHost)
	if err != nil || target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("invalid upstream %q", targetHost)
	}
	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Error("upstream unavailable",
			zap.String("upstream", target.Host), zap.String("path", r.URL.Path), zap.Error(err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"service unavailable"}`))
	}

	return func(c *gin.Context) {
		path := strings.TrimPrefix(c.Request.URL.Path, stripPrefix)
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		c.Request.URL.Path = path
		c.Request.URL.RawPath = ""

		c.Request.Header.Set("X-Forwarded-Host", c.Request.Host)
		c.Request.Header.Del("X-Forwarded-For")

		proxy.ServeHTTP(c.Writer, c.Request)
	}, nil
}
