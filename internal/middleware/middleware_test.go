package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tempmail/bot/internal/auth/jwt"
	"tempmail/bot/internal/monitoring"
)

const testSecret = "test-secret-key-for-development-32-chars-long-at-least"

func init() {
	gin.SetMode(gin.TestMode)
}

func newAuthRouter(t *testing.T) (*gin.Engine, *jwt.Manager) {
	t.Helper()
	manager := jwt.NewManager(testSecret, "tempmail-bot", time.Hour)
	auth := NewJWTAuth(manager, zap.NewNop())

	r := gin.New()
	r.GET("/gateway", auth.RequireRole(jwt.RoleGateway, jwt.RoleAdmin), func(c *gin.Context) {
		c.String(http.StatusOK, "%v:%v", c.GetString(ContextSubject), c.MustGet(ContextRole))
	})
	return r, manager
}

func TestJWTAuth_RequireRole(t *testing.T) {
	r, manager := newAuthRouter(t)

	sign := func(role jwt.Role, sub string) string {
		token, err := manager.Generate(role, sub)
		require.NoError(t, err)
		return token
	}

	tests := []struct {
		name       string
		header     string
		query      string
		wantStatus int
		wantBody   string
	}{
		{"缺少令牌", "", "", http.StatusUnauthorized, ""},
		{"令牌无效", "Bearer garbage", "", http.StatusUnauthorized, ""},
		{"角色不足", "Bearer " + sign(jwt.RoleUser, "42"), "", http.StatusForbidden, ""},
		{"网关角色通过", "Bearer " + sign(jwt.RoleGateway, "chat-gw"), "", http.StatusOK, "chat-gw:gateway"},
		{"管理员角色通过", "Bearer " + sign(jwt.RoleAdmin, "ops"), "", http.StatusOK, "ops:admin"},
		{"查询参数中的令牌", "", "?token=" + sign(jwt.RoleGateway, "ws"), http.StatusOK, "ws:gateway"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/gateway"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, w.Body.String())
			}
		})
	}
}

func TestMonitoringMiddleware(t *testing.T) {
	metrics := monitoring.NewMetrics()
	mm := NewMonitoringMiddleware(metrics, zap.NewNop())

	r := gin.New()
	r.Use(mm.PanicRecovery(), mm.HTTPMetrics())
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "/ok", "204")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PanicsTotal))
}

func TestBodySizeLimit(t *testing.T) {
	r := gin.New()
	r.POST("/small", BodySizeLimit(8), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/small", strings.NewReader("0123456789")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/small", strings.NewReader("tiny")))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSecurityHeaders(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeaders(), RequestLogger(zap.NewNop()))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}
