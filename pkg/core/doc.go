// Package core provides the fundamental types and interfaces for the handoff package.
//
// This package contains:
//   - Job identity, status, marker and checkpoint models
//   - The handoff state machine states
//   - ControlPlane, MarkerSource and Journal interfaces
//   - Event types for handoff monitoring
//   - Error types for the handoff taxonomy
//
// Most users should import the root package github.com/jdziat/simple-cdc-handoff
// instead of this package directly.
package core
