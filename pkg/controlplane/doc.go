// Package controlplane is the HTTP client for the job-control REST API.
//
// The control plane owns job lifecycle: it accepts job configurations,
// starts jobs in LOAD or STREAM mode, reports the cluster-wide job listing
// with claim owners, and stores per-job checkpoints. All calls are single
// request/response exchanges; completion of a mode transition is only
// observable by listing jobs.
package controlplane
