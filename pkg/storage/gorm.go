package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jdziat/simple-cdc-handoff/pkg/core"
	"github.com/jdziat/simple-cdc-handoff/pkg/security"
)

// GormJournal implements core.Journal using GORM.
type GormJournal struct {
	db *gorm.DB
}

// NewGormJournal creates a new GORM-backed journal.
func NewGormJournal(db *gorm.DB) *GormJournal {
	return &GormJournal{db: db}
}

// Open connects to the journal database. DSNs starting with postgres://
// or postgresql:// use PostgreSQL; anything else is a SQLite path, with an
// optional sqlite:// prefix.
func Open(dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}

	var dialector gorm.Dialector
	switch {
	case dsn == "":
		return nil, errors.New("storage: empty journal DSN")
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		dialector = postgres.Open(dsn)
	default:
		dialector = sqlite.Open(strings.TrimPrefix(dsn, "sqlite://"))
	}

	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", security.RedactDSN(dsn), err)
	}
	return db, nil
}

// DB returns the underlying connection.
func (s *GormJournal) DB() *gorm.DB {
	return s.db
}

// Migrate creates the necessary tables.
func (s *GormJournal) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&core.HandoffRun{}, &core.Transition{})
}

// Begin records a new run.
func (s *GormJournal) Begin(ctx context.Context, run *core.HandoffRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.State == "" {
		run.State = core.StateNew
	}
	run.Outcome = core.OutcomeActive
	run.FinishedAt = nil
	return s.db.WithContext(ctx).Create(run).Error
}

// Advance records that the run completed state and appends a history row.
// An empty marker leaves the stored one untouched. Reaching CHECKPOINTED
// also records the marker as commit marker.
func (s *GormJournal) Advance(ctx context.Context, runID string, state core.State, marker core.Marker) error {
	updates := map[string]any{
		"state": state,
	}
	if !marker.IsZero() {
		updates["marker"] = marker
		if state == core.StateCheckpointed {
			updates["commit_marker"] = marker
		}
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&core.HandoffRun{}).
			Where("id = ?", runID).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return core.ErrRunNotFound
		}
		return tx.Create(&core.Transition{
			RunID:  runID,
			State:  state,
			Marker: marker,
		}).Error
	})
}

// Finish closes the run. Error messages are sanitized before storage.
func (s *GormJournal) Finish(ctx context.Context, runID string, outcome core.RunOutcome, owner string, errMsg string) error {
	now := time.Now()
	result := s.db.WithContext(ctx).
		Model(&core.HandoffRun{}).
		Where("id = ?", runID).
		Updates(map[string]any{
			"outcome":     outcome,
			"owner":       owner,
			"last_error":  security.SanitizeErrorMessage(errMsg),
			"finished_at": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return core.ErrRunNotFound
	}
	return nil
}

// Latest returns the most recent run for job, or nil if there is none.
func (s *GormJournal) Latest(ctx context.Context, job core.JobName) (*core.HandoffRun, error) {
	var run core.HandoffRun
	err := s.db.WithContext(ctx).
		Where("job = ?", job).
		Order("started_at DESC").
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// Runs returns up to limit runs for job, newest first.
func (s *GormJournal) Runs(ctx context.Context, job core.JobName, limit int) ([]*core.HandoffRun, error) {
	var runs []*core.HandoffRun
	q := s.db.WithContext(ctx).
		Where("job = ?", job).
		Order("started_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&runs).Error
	return runs, err
}

// Transitions returns the history of a run, oldest first.
func (s *GormJournal) Transitions(ctx context.Context, runID string) ([]core.Transition, error) {
	var transitions []core.Transition
	err := s.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("id ASC").
		Find(&transitions).Error
	return transitions, err
}

var _ core.Journal = (*GormJournal)(nil)
