package telemetry

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	toolCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "githubmcp_tool_calls_total",
		Help: "Tool invocations by tool name and outcome.",
	}, []string{"tool", "status"})

	toolDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "githubmcp_tool_duration_seconds",
		Help:    "Tool invocation duration in seconds.",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"tool"})

	upstreamErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "githubmcp_upstream_errors_total",
		Help: "Non-success responses from the GitHub API by operation and HTTP status.",
	}, []string{"operation", "status"})
)

func IncToolCall(tool, status string) {
	toolCalls.WithLabelValues(tool, status).Inc()
}

func ObserveToolDuration(tool string, d time.Duration) {
	toolDuration.WithLabelValues(tool).Observe(d.Seconds())
}

func IncUpstreamError(operation string, statusCode int) {
	upstreamErrors.WithLabelValues(operation, strconv.Itoa(statusCode)).Inc()
}
