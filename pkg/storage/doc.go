// Package storage persists handoff runs.
//
// This package includes:
//   - GormJournal: a GORM-based core.Journal for SQLite and PostgreSQL
//   - Open / OpenJournal: DSN-based connection helpers with pool settings
//
// The journal records one handoff_runs row per attempt and one
// handoff_transitions row per completed state, so an interrupted handoff
// can be inspected with the status command and continued with resume.
package storage
