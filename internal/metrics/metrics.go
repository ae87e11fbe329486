// metrics объявляет Prometheus-метрики сервиса. Коллекторы регистрируются
// в реестре по умолчанию и отдаются через /metrics (promhttp.Handler).
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "auth_api"

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route pattern and status.",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method and route pattern.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	authEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_events_total",
		Help:      "Session lifecycle events (login, refresh, register, logout) by result.",
	}, []string{"event", "result"})

	rateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limit_rejections_total",
		Help:      "Requests rejected by a rate limit rule.",
	}, []string{"rule"})
)

// ObserveHTTP учитывает завершённый HTTP-запрос.
func ObserveHTTP(method, route string, status int, d time.Duration) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// AuthEvent учитывает событие жизненного цикла сессии.
func AuthEvent(event, result string) {
	authEvents.WithLabelValues(event, result).Inc()
}

// RateLimited учитывает отказ по правилу rule.
func RateLimited(rule string) {
	rateLimited.WithLabelValues(rule).Inc()
}
