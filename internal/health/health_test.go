package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func ok(context.Context) error { return nil }

func TestHealthChecker_Ready(t *testing.T) {
	tests := []struct {
		name       string
		opts       Options
		wantStatus int
	}{
		{"服务商可用", Options{Provider: ok}, http.StatusOK},
		{
			"服务商不可用",
			Options{Provider: func(context.Context) error { return errors.New("no domains") }},
			http.StatusServiceUnavailable,
		},
		{
			"Redis不可用",
			Options{Provider: ok, Redis: func(context.Context) error { return errors.New("refused") }},
			http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := NewHealthChecker(t.Context(), tt.opts, zap.NewNop())

			w := httptest.NewRecorder()
			hc.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestHealthChecker_LiveIgnoresDependencies(t *testing.T) {
	hc := NewHealthChecker(t.Context(), Options{
		Provider: func(context.Context) error { return errors.New("down") },
	}, zap.NewNop())

	w := httptest.NewRecorder()
	hc.LiveEndpoint(w, httptest.NewRequest(http.MethodGet, "/live", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
