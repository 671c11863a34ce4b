package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records login attempts by method (password|google) and result.
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "internai_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"method", "result"},
	)

	// SessionResolutions counts how requests were resolved (access|refreshed|rejected).
	SessionResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "internai_session_resolutions_total",
			Help: "Total number of session resolutions by outcome",
		},
		[]string{"outcome"},
	)

	// TokensIssued counts minted tokens by kind.
	TokensIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "internai_tokens_issued_total",
			Help: "Total number of signed tokens issued",
		},
		[]string{"kind"},
	)

	// Registrations tracks the registration lifecycle (started|resent|confirmed|rejected).
	Registrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "internai_registrations_total",
			Help: "Registration events by stage",
		},
		[]string{"stage"},
	)

	// PasswordResets tracks recovery events (requested|redeemed|rejected).
	PasswordResets = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "internai_password_resets_total",
			Help: "Password reset events by stage",
		},
		[]string{"stage"},
	)

	// MailDeliveries counts outbound mail by template and result.
	MailDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "internai_mail_deliveries_total",
			Help: "Outbound mail deliveries",
		},
		[]string{"template", "result"},
	)

	// RateLimited counts requests rejected by the rate limiter per policy.
	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "internai_rate_limited_total",
			Help: "Requests rejected by rate limiting",
		},
		[]string{"policy"},
	)

	// MaintenancePurged counts rows removed by the maintenance cleaner.
	MaintenancePurged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "internai_maintenance_purged_total",
			Help: "Rows removed by scheduled maintenance",
		},
		[]string{"table"},
	)

	// RecoveredPanics counts handler panics turned into 500 responses, per route.
	RecoveredPanics = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "internai_recovered_panics_total",
			Help: "Handler panics recovered by middleware",
		},
		[]string{"route"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "internai_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
