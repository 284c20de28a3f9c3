package controlplane

import (
	"time"

	"go.uber.org/zap"

	"github.com/jdziat/simple-cdc-handoff/pkg/security"
)

const (
	DefaultRequestTimeout = 30 * time.Second
	DefaultRetryCount     = 2
	DefaultRetryWait      = 500 * time.Millisecond
	DefaultRetryMaxWait   = 5 * time.Second
)

// Option configures a Client.
type Option interface {
	ApplyClient(*clientConfig)
}

type optionFunc func(*clientConfig)

func (f optionFunc) ApplyClient(c *clientConfig) { f(c) }

type clientConfig struct {
	requestTimeout time.Duration
	retryCount     int
	retryWait      time.Duration
	retryMaxWait   time.Duration
	userAgent      string
	logger         *zap.Logger
}

// RequestTimeout bounds each attempt of a request. Retries get their own
// timeout; use the context to bound the call as a whole.
func RequestTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		if d > 0 {
			c.requestTimeout = d
		}
	})
}

// Retries sets how often a request failing with a transport error or a
// retryable status is repeated. Values are clamped to [0, MaxRetries].
func Retries(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.retryCount = security.ClampRetries(n)
	})
}

// RetryWait sets the initial and maximum wait between retries.
func RetryWait(initial, max time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		if initial > 0 {
			c.retryWait = initial
		}
		if max > 0 {
			c.retryMaxWait = max
		}
	})
}

// UserAgent overrides the User-Agent header.
func UserAgent(ua string) Option {
	return optionFunc(func(c *clientConfig) {
		if ua != "" {
			c.userAgent = ua
		}
	})
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		if logger != nil {
			c.logger = logger
		}
	})
}
