package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the auth client core.
type Metrics struct {
	LoginAttempts     prometheus.Counter
	LoginFailures     prometheus.Counter
	LockoutsTriggered prometheus.Counter
	TokenRefreshes    *prometheus.CounterVec
	Verifications     *prometheus.CounterVec
	RequestLatency    *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the metrics against a specific registerer.
// Tests pass their own registry to avoid duplicate registration panics.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		LoginAttempts: factory.NewCounter(prometheus.CounterOpts{
			Name: "atlas_login_attempts_total",
			Help: "Total number of login attempts made through the client",
		}),
		LoginFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "atlas_login_failures_total",
			Help: "Total number of failed login attempts",
		}),
		LockoutsTriggered: factory.NewCounter(prometheus.CounterOpts{
			Name: "atlas_lockouts_triggered_total",
			Help: "Total number of client-side login lockouts triggered",
		}),
		TokenRefreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "atlas_token_refreshes_total",
			Help: "Total number of access token refreshes by result",
		}, []string{"result"}),
		Verifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "atlas_verifications_total",
			Help: "Total number of magic-link and OTP verifications by flow and result",
		}, []string{"flow", "result"}),
		RequestLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "atlas_api_request_latency_seconds",
			Help:    "Latency of backend API requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
}

// IncrementLoginAttempt records a login attempt.
func (m *Metrics) IncrementLoginAttempt() {
	if m != nil {
		m.LoginAttempts.Inc()
	}
}

// IncrementLoginFailure records a failed login.
func (m *Metrics) IncrementLoginFailure() {
	if m != nil {
		m.LoginFailures.Inc()
	}
}

// IncrementLockout records a triggered lockout.
func (m *Metrics) IncrementLockout() {
	if m != nil {
		m.LockoutsTriggered.Inc()
	}
}

// IncrementTokenRefresh records a refresh outcome ("success" or "failure").
func (m *Metrics) IncrementTokenRefresh(result string) {
	if m != nil {
		m.TokenRefreshes.WithLabelValues(result).Inc()
	}
}

// IncrementVerification records a verification outcome for a flow.
func (m *Metrics) IncrementVerification(flow, result string) {
	if m != nil {
		m.Verifications.WithLabelValues(flow, result).Inc()
	}
}

// ObserveRequestLatency records a backend request duration.
func (m *Metrics) ObserveRequestLatency(endpoint string, seconds float64) {
	if m != nil {
		m.RequestLatency.WithLabelValues(endpoint).Observe(seconds)
	}
}
