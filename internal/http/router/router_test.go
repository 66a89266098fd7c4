package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	apphttp "smartsales_backend/internal/http"
	"smartsales_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

type routerConfig struct {
	secret string
}

func (c routerConfig) GetJWTAccessSecret() string { return c.secret }
func (routerConfig) GetHTTPAddr() string          { return ":0" }
func (routerConfig) GetCORSAllowAll() bool        { return true }
func (routerConfig) GetCORSOrigins() []string     { return nil }
func (routerConfig) GetCORSAllowCreds() bool      { return false }

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type pingModule struct{}

func (pingModule) Name() string { return "ping" }

func (pingModule) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
}

func newEngine(secret string, health apphttp.HealthChecker) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return New(&apphttp.App{
		Config:  routerConfig{secret: secret},
		Logger:  logger.Discard(),
		Health:  health,
		Modules: []apphttp.Module{pingModule{}},
	})
}

func get(engine *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHealth(t *testing.T) {
	healthy := newEngine("", pingFunc(func(context.Context) error { return nil }))
	if w := get(healthy, "/api/health"); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	down := newEngine("", pingFunc(func(context.Context) error { return errors.New("db gone") }))
	if w := get(down, "/api/health"); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestModuleRoutesFollowAuthConfig(t *testing.T) {
	open := newEngine("", nil)
	w := get(open, "/api/v1/ping")
	if w.Code != http.StatusOK || w.Body.String() != "pong" {
		t.Fatalf("expected open route, got %d %q", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected a request id header")
	}

	guarded := newEngine("secret", nil)
	if w := get(guarded, "/api/v1/ping"); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", w.Code)
	}
}
