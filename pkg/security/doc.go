// Package security provides validation, sanitization, and limits for the handoff package.
//
// This package includes:
//   - Input validation for job names
//   - Error message sanitization before errors are persisted
//   - Redaction of credentials embedded in connection strings
//   - Clamping functions for retry counts
//
// Most users should import the root package github.com/jdziat/simple-cdc-handoff
// which re-exports these functions.
package security
