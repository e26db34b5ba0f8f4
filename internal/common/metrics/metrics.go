// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_requests_total",
			Help: "Total number of support requests by endpoint and status",
		},
		[]string{"endpoint", "status"},
	)

	AnswersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_answers_total",
			Help: "Answer attempts by outcome (answered, gate_failed, no_hits)",
		},
		[]string{"outcome"},
	)

	TicketsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_tickets_created_total",
			Help: "Tickets created by triage category and severity",
		},
		[]string{"category", "severity"},
	)

	GuardRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_guard_rejections_total",
			Help: "Submissions rejected by the guard layer (rate_limit, duplicate)",
		},
		[]string{"kind"},
	)

	AlertsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_alerts_sent_total",
			Help: "Operator alerts sent by channel",
		},
		[]string{"channel"},
	)

	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "support_search_duration_seconds",
			Help: "Duration of knowledge-base searches in seconds",
		},
		[]string{"query_kind"},
	)
)
