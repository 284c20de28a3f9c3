package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/jdziat/simple-cdc-handoff/pkg/controlplane"
	"github.com/jdziat/simple-cdc-handoff/pkg/coordinator"
	"github.com/jdziat/simple-cdc-handoff/pkg/marker"
	"github.com/jdziat/simple-cdc-handoff/pkg/metrics"
	"github.com/jdziat/simple-cdc-handoff/pkg/poll"
	"github.com/jdziat/simple-cdc-handoff/pkg/security"
	"github.com/jdziat/simple-cdc-handoff/pkg/storage"
)

const metricsShutdownTimeout = 5 * time.Second

func (a *App) controlPlane() *controlplane.Client {
	c := a.cfg.ControlPlane
	return controlplane.NewClient(c.BaseURL(),
		controlplane.RequestTimeout(c.RequestTimeout),
		controlplane.Retries(c.Retries),
		controlplane.WithLogger(a.logger))
}

func (a *App) markerSource() (*marker.SQLSource, error) {
	s := a.cfg.Source
	dialect, err := marker.ParseDialect(s.Dialect)
	if err != nil {
		return nil, err
	}
	dsn, err := s.DataSourceName()
	if err != nil {
		return nil, err
	}
	a.logger.Debug("marker source",
		zap.String("dialect", s.Dialect),
		zap.String("dsn", security.RedactDSN(dsn)))
	return marker.NewSQLSource(dialect, dsn,
		marker.Query(s.Query),
		marker.QueryTimeout(s.QueryTimeout),
		marker.WithLogger(a.logger))
}

// journal opens the configured journal. It returns nil when none is
// configured; close is always safe to call.
func (a *App) journal(ctx context.Context) (j *storage.GormJournal, closeFn func(), err error) {
	closeFn = func() {}
	if a.cfg.Journal.DSN == "" {
		return nil, closeFn, nil
	}
	j, err = storage.OpenJournal(a.cfg.Journal.DSN)
	if err != nil {
		return nil, closeFn, err
	}
	closeFn = func() {
		if sqlDB, err := j.DB().DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if err := j.Migrate(ctx); err != nil {
		closeFn()
		return nil, func() {}, err
	}
	return j, closeFn, nil
}

func (a *App) coordinator(cp *controlplane.Client, markers *marker.SQLSource, j *storage.GormJournal, m *metrics.Metrics) (*coordinator.Coordinator, error) {
	policy, err := coordinator.ParseMarkerPolicy(a.cfg.Job.MarkerPolicy)
	if err != nil {
		return nil, err
	}
	p := a.cfg.Poll
	opts := []coordinator.Option{
		coordinator.WithLogger(a.logger),
		coordinator.WithMetrics(m),
		coordinator.WithMarkerPolicy(policy),
		coordinator.SnapshotPoll(poll.Interval(p.Interval), poll.Timeout(p.SnapshotTimeout)),
		coordinator.ClaimPoll(poll.Interval(p.Interval), poll.Timeout(p.ClaimTimeout)),
	}
	if j != nil {
		opts = append(opts, coordinator.WithJournal(j))
	}
	return coordinator.New(cp, markers, opts...), nil
}

// serveMetrics exposes m until the returned stop function is called.
// Nothing is served when no address is configured.
func (a *App) serveMetrics(m *metrics.Metrics) (stop func()) {
	addr := a.cfg.Metrics.Address
	if addr == "" {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		a.logger.Info("serving metrics", zap.String("address", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			a.logger.Warn("metrics server shutdown", zap.Error(err))
		}
	}
}
