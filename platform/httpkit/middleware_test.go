package httpkit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"smartsales_backend/platform/apperr"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

type jwtSecret string

func (s jwtSecret) GetJWTAccessSecret() string { return string(s) }

const testSecret = jwtSecret("test-secret")

func newAuthRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/private", AuthRequired(testSecret), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextSubjectKey))
	})
	return r
}

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

func TestAuthRequired(t *testing.T) {
	r := newAuthRouter()
	valid := signToken(t, jwt.MapClaims{"sub": "ops", "type": "access", "exp": time.Now().Add(time.Hour).Unix()})
	refresh := signToken(t, jwt.MapClaims{"sub": "ops", "type": "refresh", "exp": time.Now().Add(time.Hour).Unix()})
	expired := signToken(t, jwt.MapClaims{"sub": "ops", "type": "access", "exp": time.Now().Add(-time.Hour).Unix()})

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"valid", "Bearer " + valid, http.StatusOK},
		{"wrong type", "Bearer " + refresh, http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"garbage", "Bearer nope", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/private", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != tc.status {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.status, rec.Code)
		}
		if tc.status == http.StatusOK && rec.Body.String() != "ops" {
			t.Fatalf("%s: expected subject ops, got %q", tc.name, rec.Body.String())
		}
	}
}

func TestRateLimitRejectsBurst(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewIPRateLimiter(0.0001, 2, nil).RateLimit())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	codes := make([]int, 0, 3)
	for range 3 {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusNoContent || codes[1] != http.StatusNoContent || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status sequence %v", codes)
	}
}

func TestHandleErrorMapsKinds(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := map[error]int{
		apperr.NotFound("lead not found"):          http.StatusNotFound,
		apperr.StoreConflict("status changed"):     http.StatusConflict,
		apperr.InvalidRecord("missing id"):         http.StatusBadRequest,
		apperr.EnrichmentExhausted("gave up", nil): http.StatusBadGateway,
		http.ErrHandlerTimeout:                     http.StatusInternalServerError,
	}
	for err, want := range cases {
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		if !HandleError(c, err) {
			t.Fatalf("expected %v to be handled", err)
		}
		if rec.Code != want {
			t.Fatalf("%v: expected %d, got %d", err, want, rec.Code)
		}
	}
}

func TestRequestIDReusesHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(ContextRequestIDKey)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Body.String() != "abc-123" || rec.Header().Get("X-Request-ID") != "abc-123" {
		t.Fatalf("expected request id to be reused, got body %q", rec.Body.String())
	}
}
