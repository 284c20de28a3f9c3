package marker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/jdziat/simple-cdc-handoff/pkg/core"
	"github.com/jdziat/simple-cdc-handoff/pkg/security"
)

var (
	errEmptyMarker = errors.New("marker query returned no value")
	errZeroMarker  = errors.New("marker query returned position zero")
)

// SQLSource implements core.MarkerSource on database/sql.
type SQLSource struct {
	dialect         Dialect
	dsn             string
	query           string
	open            Opener
	logger          *zap.Logger
	queryTimeout    time.Duration
	initialInterval time.Duration
	maxElapsed      time.Duration
	maxRetries      int
}

var _ core.MarkerSource = (*SQLSource)(nil)

// NewSQLSource creates a marker source for the given dialect and DSN.
func NewSQLSource(dialect Dialect, dsn string, opts ...Option) (*SQLSource, error) {
	s := &SQLSource{
		dialect:         dialect,
		dsn:             dsn,
		query:           dialect.DefaultQuery(),
		open:            sql.Open,
		logger:          zap.NewNop(),
		queryTimeout:    15 * time.Second,
		initialInterval: 500 * time.Millisecond,
		maxElapsed:      30 * time.Second,
	}
	for _, opt := range opts {
		opt.ApplySource(s)
	}
	if s.query == "" {
		return nil, fmt.Errorf("marker: dialect %q has no default query, one must be configured", dialect)
	}
	if s.dsn == "" {
		return nil, errors.New("marker: empty DSN")
	}
	return s, nil
}

// Query returns the statement used to read the marker.
func (s *SQLSource) Query() string {
	return s.query
}

// CurrentMarker reads the current marker, retrying transient failures.
func (s *SQLSource) CurrentMarker(ctx context.Context) (core.Marker, error) {
	var m core.Marker
	attempt := 0
	op := func() error {
		attempt++
		v, err := s.read(ctx)
		if err != nil {
			if errors.Is(err, errEmptyMarker) || errors.Is(err, errZeroMarker) {
				return backoff.Permanent(err)
			}
			return err
		}
		m = v
		return nil
	}
	notify := func(err error, next time.Duration) {
		s.logger.Warn("marker read failed, retrying",
			zap.String("dialect", string(s.dialect)),
			zap.String("dsn", security.RedactDSN(s.dsn)),
			zap.Int("attempt", attempt),
			zap.Duration("next", next),
			zap.Error(err))
	}

	if err := backoff.RetryNotify(op, s.backOff(ctx), notify); err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrSourceUnavailable, err)
	}
	s.logger.Info("read consistency marker",
		zap.String("dialect", string(s.dialect)),
		zap.String("marker", m.String()))
	return m, nil
}

func (s *SQLSource) backOff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = s.initialInterval
	eb.MaxInterval = 5 * time.Second
	eb.MaxElapsedTime = s.maxElapsed
	eb.Reset()

	var b backoff.BackOff = eb
	if s.maxRetries > 0 {
		b = backoff.WithMaxRetries(b, uint64(s.maxRetries))
	}
	return backoff.WithContext(b, ctx)
}

// read opens a connection, runs the marker query and closes the connection.
func (s *SQLSource) read(ctx context.Context) (core.Marker, error) {
	db, err := s.open(s.dialect.DriverName(), s.dsn)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", s.dialect, err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	qctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	var raw any
	if err := db.QueryRowContext(qctx, s.query).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", errEmptyMarker
		}
		return "", fmt.Errorf("query marker: %w", err)
	}
	return format(raw)
}

func format(raw any) (core.Marker, error) {
	var s string
	switch v := raw.(type) {
	case nil:
		return "", errEmptyMarker
	case []byte:
		s = string(v)
	case string:
		s = v
	case int64:
		s = strconv.FormatInt(v, 10)
	case uint64:
		s = strconv.FormatUint(v, 10)
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	default:
		s = fmt.Sprint(v)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", errEmptyMarker
	}
	m := core.Marker(s)
	if m.Equal("0") {
		return "", errZeroMarker
	}
	return m, nil
}
