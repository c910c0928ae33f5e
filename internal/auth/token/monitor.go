package token

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"atlas/internal/platform/metrics"
)

const (
	defaultWarningLeeway = 5 * time.Minute
	defaultRefreshLeeway = time.Minute
)

// RefreshFunc refreshes the access token and stores the replacement.
// The API client provides this; the monitor only decides when to call it.
type RefreshFunc func(ctx context.Context) error

// Monitor watches the stored token's expiry and schedules a warning
// callback and an automatic refresh ahead of it. Concurrent refresh
// triggers collapse into a single backend call.
type Monitor struct {
	store   *Store
	refresh RefreshFunc
	logger  *slog.Logger
	metrics *metrics.Metrics

	warningLeeway time.Duration
	refreshLeeway time.Duration

	group singleflight.Group

	mu           sync.Mutex
	warningTimer *time.Timer
	refreshTimer *time.Timer
	onWarning    func(remaining time.Duration)
	onExpired    func()
}

// MonitorOption configures the Monitor.
type MonitorOption func(*Monitor)

// WithMonitorLogger sets the structured logger.
func WithMonitorLogger(logger *slog.Logger) MonitorOption {
	return func(m *Monitor) {
		m.logger = logger
	}
}

// WithMonitorMetrics enables refresh metrics.
func WithMonitorMetrics(mm *metrics.Metrics) MonitorOption {
	return func(m *Monitor) {
		m.metrics = mm
	}
}

// WithLeeways overrides how far before expiry the warning and refresh
// fire. Non-positive values keep the defaults.
func WithLeeways(warning, refresh time.Duration) MonitorOption {
	return func(m *Monitor) {
		if warning > 0 {
			m.warningLeeway = warning
		}
		if refresh > 0 {
			m.refreshLeeway = refresh
		}
	}
}

// NewMonitor creates a Monitor over the token store.
func NewMonitor(store *Store, refresh RefreshFunc, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		store:         store,
		refresh:       refresh,
		warningLeeway: defaultWarningLeeway,
		refreshLeeway: defaultRefreshLeeway,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m
}

// Start begins monitoring the current token. onWarning fires once when
// expiry is a warning-leeway away; onExpired fires when the token is
// already expired or a refresh fails. Callbacks may be nil.
func (m *Monitor) Start(onWarning func(remaining time.Duration), onExpired func()) {
	m.mu.Lock()
	m.onWarning = onWarning
	m.onExpired = onExpired
	m.mu.Unlock()
	m.schedule()
}

// Stop cancels any pending timers. Safe to call repeatedly.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.warningTimer != nil {
		m.warningTimer.Stop()
		m.warningTimer = nil
	}
	if m.refreshTimer != nil {
		m.refreshTimer.Stop()
		m.refreshTimer = nil
	}
}

// RefreshNow refreshes the token immediately and reschedules the
// monitor. Concurrent callers share one refresh call and its result.
func (m *Monitor) RefreshNow(ctx context.Context) error {
	_, err, _ := m.group.Do("refresh", func() (any, error) {
		return nil, m.refresh(ctx)
	})
	if err != nil {
		m.metrics.IncrementTokenRefresh("failure")
		m.logger.ErrorContext(ctx, "token refresh failed", "error", err)
		m.notifyExpired()
		return err
	}
	m.metrics.IncrementTokenRefresh("success")
	m.Stop()
	m.schedule()
	return nil
}

func (m *Monitor) schedule() {
	raw := m.store.Token()
	if raw == "" {
		return
	}

	ctx := context.Background()
	expiresIn := ExpiresIn(ctx, raw)
	if expiresIn <= 0 {
		m.notifyExpired()
		return
	}

	warningIn := expiresIn - m.warningLeeway
	if warningIn < 0 {
		warningIn = 0
	}
	refreshIn := expiresIn - m.refreshLeeway
	if refreshIn < 0 {
		refreshIn = 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.warningTimer = time.AfterFunc(warningIn, func() {
		current := m.store.Token()
		if current == "" {
			return
		}
		m.mu.Lock()
		cb := m.onWarning
		m.mu.Unlock()
		if cb != nil {
			cb(ExpiresIn(context.Background(), current))
		}
	})
	m.refreshTimer = time.AfterFunc(refreshIn, func() {
		_ = m.RefreshNow(context.Background())
	})
}

func (m *Monitor) notifyExpired() {
	m.mu.Lock()
	cb := m.onExpired
	m.mu.Unlock()
	if cb != nil {
		cb()
	}
}
