// Package sync pulls the booking platform's data into the local snapshot.
//
// # Core Interfaces
//
//   - Orchestrator: starts a run in the background and guarantees that at
//     most one run is active per process
//   - FetchAll: sequential pagination over a list endpoint, each page
//     retried through a retry.Executor
//   - ApplyDerivedMetrics: recomputes per-client visit statistics from the
//     fetched bookings
//
// # Run Phases
//
// A run executes staff, services, clients and records in that order. A
// failed phase is recorded in the run's error list and the next phase still
// runs, so one broken endpoint never discards the data of the others. After
// the fetch phases the derived metrics pass updates every client, then the
// accumulated snapshot replaces the published one wholesale.
//
// The final status is success when every phase succeeded, partial when at
// least one failed, and error when the run could not proceed at all (for
// example when the previous snapshot could not be read). The terminal status
// is always recorded, even after a panic, so the single-run guard is never
// left held.
//
// # Scheduling
//
// The sync/coordinator subpackage runs the orchestrator periodically.
package sync
