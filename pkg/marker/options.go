package marker

import (
	"database/sql"
	"time"

	"go.uber.org/zap"
)

// Opener opens a database handle. It is called once per marker read.
type Opener func(driverName, dsn string) (*sql.DB, error)

// Option configures an SQLSource.
type Option interface {
	ApplySource(*SQLSource)
}

type optionFunc func(*SQLSource)

func (f optionFunc) ApplySource(s *SQLSource) { f(s) }

// Query overrides the dialect's default marker query.
func Query(q string) Option {
	return optionFunc(func(s *SQLSource) {
		if q != "" {
			s.query = q
		}
	})
}

// WithOpener replaces sql.Open, mainly for tests.
func WithOpener(open Opener) Option {
	return optionFunc(func(s *SQLSource) {
		if open != nil {
			s.open = open
		}
	})
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return optionFunc(func(s *SQLSource) {
		if logger != nil {
			s.logger = logger
		}
	})
}

// QueryTimeout bounds a single connect-and-query attempt.
func QueryTimeout(d time.Duration) Option {
	return optionFunc(func(s *SQLSource) {
		if d > 0 {
			s.queryTimeout = d
		}
	})
}

// Retry configures the backoff between failed attempts.
// maxElapsed bounds the total time spent retrying; maxRetries, when
// positive, bounds the number of retries.
func Retry(initial, maxElapsed time.Duration, maxRetries int) Option {
	return optionFunc(func(s *SQLSource) {
		if initial > 0 {
			s.initialInterval = initial
		}
		if maxElapsed > 0 {
			s.maxElapsed = maxElapsed
		}
		s.maxRetries = maxRetries
	})
}
