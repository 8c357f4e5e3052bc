package repository

import "time"

// Option configures a TreapStore.
type Option func(*TreapStore)

// WithMetricsUpdateInterval sets how often the stored-runs gauge is refreshed.
// Non-positive values keep the default.
func WithMetricsUpdateInterval(every time.Duration) Option {
	return func(s *TreapStore) {
		if every > 0 {
			s.metricsUpdateInterval = every
		}
	}
}
