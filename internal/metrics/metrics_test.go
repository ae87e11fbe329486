package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestAuthEvent_Increments(t *testing.T) {
	c := authEvents.WithLabelValues("login", "metrics_test")
	before := testutil.ToFloat64(c)

	AuthEvent("login", "metrics_test")
	AuthEvent("login", "metrics_test")

	require.Equal(t, before+2, testutil.ToFloat64(c))
}

func TestObserveHTTP_CountsByStatus(t *testing.T) {
	c := httpRequests.WithLabelValues("GET", "/metrics-test", "418")
	before := testutil.ToFloat64(c)

	ObserveHTTP("GET", "/metrics-test", 418, 15*time.Millisecond)

	require.Equal(t, before+1, testutil.ToFloat64(c))
}

func TestRateLimited_Increments(t *testing.T) {
	c := rateLimited.WithLabelValues("metrics_test")
	before := testutil.ToFloat64(c)

	RateLimited("metrics_test")

	require.Equal(t, before+1, testutil.ToFloat64(c))
}
