package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
//
// 每个实例持有独立的 Registry，测试中可以重复创建。
type Metrics struct {
	registry *prometheus.Registry

	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 会话指标
	SessionsActive  prometheus.Gauge
	SessionsCreated *prometheus.CounterVec
	UsersRegistered prometheus.Gauge

	// 轮询指标
	WatcherCycles        prometheus.Counter
	WatcherCycleDuration prometheus.Histogram
	Notifications        *prometheus.CounterVec

	// 服务商指标
	ProviderRequests        *prometheus.CounterVec
	ProviderRequestDuration *prometheus.HistogramVec

	// 广播与错误
	BroadcastMessages *prometheus.CounterVec
	PanicsTotal       prometheus.Counter
}

// NewMetrics 创建监控指标
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempmail_bot_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tempmail_bot_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "tempmail_bot_sessions_active",
				Help: "Number of mailbox sessions held in memory",
			},
		),
		SessionsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempmail_bot_sessions_created_total",
				Help: "Mailbox session creation attempts by result",
			},
			[]string{"result"},
		),
		UsersRegistered: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "tempmail_bot_users_registered",
				Help: "Number of distinct users that interacted with the bot",
			},
		),

		WatcherCycles: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tempmail_bot_watcher_cycles_total",
				Help: "Total number of completed watcher cycles",
			},
		),
		WatcherCycleDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tempmail_bot_watcher_cycle_duration_seconds",
				Help:    "Duration of one pass over all sessions",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
			},
		),
		Notifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempmail_bot_notifications_total",
				Help: "New-mail notifications by delivery result",
			},
			[]string{"result"},
		),

		ProviderRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempmail_bot_provider_requests_total",
				Help: "Mail provider API calls by operation and result",
			},
			[]string{"operation", "result"},
		),
		ProviderRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tempmail_bot_provider_request_duration_seconds",
				Help:    "Mail provider API latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		BroadcastMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempmail_bot_broadcast_messages_total",
				Help: "Broadcast deliveries by result",
			},
			[]string{"result"},
		),
		PanicsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tempmail_bot_panics_total",
				Help: "Total number of recovered panics",
			},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordSessionCreated 记录会话创建结果
func (m *Metrics) RecordSessionCreated(ok bool) {
	m.SessionsCreated.WithLabelValues(resultLabel(ok)).Inc()
}

// UpdateSessions 更新会话与用户数量
func (m *Metrics) UpdateSessions(active, users int) {
	m.SessionsActive.Set(float64(active))
	m.UsersRegistered.Set(float64(users))
}

// RecordWatcherCycle 记录一轮轮询
func (m *Metrics) RecordWatcherCycle(duration time.Duration) {
	m.WatcherCycles.Inc()
	m.WatcherCycleDuration.Observe(duration.Seconds())
}

// RecordNotification 记录一次新邮件推送
func (m *Metrics) RecordNotification(ok bool) {
	m.Notifications.WithLabelValues(resultLabel(ok)).Inc()
}

// RecordProviderRequest 记录一次服务商调用
func (m *Metrics) RecordProviderRequest(operation string, ok bool, duration time.Duration) {
	m.ProviderRequests.WithLabelValues(operation, resultLabel(ok)).Inc()
	m.ProviderRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordBroadcast 记录一次广播投递
func (m *Metrics) RecordBroadcast(ok bool) {
	m.BroadcastMessages.WithLabelValues(resultLabel(ok)).Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// Registry 返回底层 Registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// HTTPHandler 返回 Prometheus 抓取端点
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func resultLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}
