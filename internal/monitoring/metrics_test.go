package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_IndependentRegistries(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()

	a.RecordNotification(true)
	a.RecordNotification(false)
	a.RecordNotification(false)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.Notifications.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(a.Notifications.WithLabelValues("error")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Notifications.WithLabelValues("error")))
}

func TestMetrics_HTTPHandler(t *testing.T) {
	m := NewMetrics()
	m.RecordProviderRequest("list_messages", false, 20*time.Millisecond)
	m.RecordWatcherCycle(time.Second)
	m.UpdateSessions(3, 5)

	rec := httptest.NewRecorder()
	m.HTTPHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `tempmail_bot_provider_requests_total{operation="list_messages",result="error"} 1`)
	assert.Contains(t, body, "tempmail_bot_watcher_cycles_total 1")
	assert.Contains(t, body, "tempmail_bot_sessions_active 3")
	assert.Contains(t, body, "tempmail_bot_users_registered 5")
}
