// Package observability holds the structured logger and Prometheus
// collectors shared across the service.
package observability

import (
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TasksProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jobtrail_tasks_processed_total",
		Help: "The total number of processed pipeline tasks",
	}, []string{"type", "status"}) // status: completed, retried, failed

	TaskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "jobtrail_task_duration_seconds",
		Help:    "Duration of pipeline task handling.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	}, []string{"type"})

	SchedulerTicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jobtrail_scheduler_ticks_total",
		Help: "The total number of scheduler ticks by outcome",
	}, []string{"outcome"}) // outcome: processed, idle, error

	ParseRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jobtrail_parse_requests_total",
		Help: "The total number of job post parse requests",
	}, []string{"source", "status"})
)

// NewLogger creates the structured logger. Text output for terminals, JSON
// when running as a service.
func NewLogger(json bool, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if json {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
