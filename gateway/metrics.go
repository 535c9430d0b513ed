package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Decision outcomes for the forward-auth metrics label.
const (
	outcomeAllowToken   = "allow_token"
	outcomeAllowSession = "allow_session"
	outcomeDeny         = "deny"
)

var (
	forwardAuthDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatehouse_forward_auth_decisions_total",
			Help: "Forward-auth decisions by outcome",
		},
		[]string{"outcome"},
	)

	loginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatehouse_login_attempts_total",
			Help: "Interactive login attempts by result",
		},
		[]string{"result"},
	)

	sessionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gatehouse_sessions_created_total",
			Help: "Sessions created by successful logins",
		},
	)

	sessionsDestroyed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gatehouse_sessions_destroyed_total",
			Help: "Sessions removed by logout or expiry",
		},
	)
)
