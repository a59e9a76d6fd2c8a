package status

import "time"

// RunStatus is the lifecycle state of a sync run
type RunStatus string

const (
	// RunStatusRunning means the run is in progress
	RunStatusRunning RunStatus = "running"

	// RunStatusSuccess means every phase completed without error
	RunStatusSuccess RunStatus = "success"

	// RunStatusPartial means at least one phase failed but the run finished
	RunStatusPartial RunStatus = "partial"

	// RunStatusError means the run failed outside of its phases
	RunStatusError RunStatus = "error"
)

// Phase is the step a running sync is currently executing
type Phase string

// Sync phases in execution order
const (
	PhaseStaff      Phase = "staff"
	PhaseServices   Phase = "services"
	PhaseClients    Phase = "clients"
	PhaseRecords    Phase = "records"
	PhaseMetrics    Phase = "metrics"
	PhaseFinished   Phase = "finished"
	PhaseNotStarted Phase = ""
)

// Progress holds per-resource running totals, updated after every page
type Progress struct {
	Staff    int `json:"staff"`
	Services int `json:"services"`
	Clients  int `json:"clients"`
	Records  int `json:"records"`
}

// SyncRun represents one execution of the sync orchestrator. It is terminal
// once FinishedAt is set.
type SyncRun struct {
	// ID identifies the run
	ID string `json:"id"`

	// StartedAt is when the run was accepted
	StartedAt time.Time `json:"startedAt"`

	// FinishedAt is set when the run reaches a terminal status
	FinishedAt *time.Time `json:"finishedAt,omitempty"`

	// Status is the run's lifecycle state
	Status RunStatus `json:"status"`

	// Phase is the step currently executing
	Phase Phase `json:"phase,omitempty"`

	// Created is the number of clients not present in the previous snapshot
	Created int `json:"created"`

	// Updated is the number of clients at or above the minimum visit threshold
	Updated int `json:"updated"`

	// Skipped is the number of clients below the minimum visit threshold
	Skipped int `json:"skipped"`

	// Progress carries live fetch totals
	Progress Progress `json:"progress"`

	// Errors lists one entry per failed phase
	Errors []string `json:"errors,omitempty"`

	// ErrorMessage describes a failure outside of the phases
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// IsRunning reports whether the run has not reached a terminal status
func (r *SyncRun) IsRunning() bool {
	return r != nil && r.Status == RunStatusRunning
}

// Clone returns a deep copy of the run
func (r *SyncRun) Clone() *SyncRun {
	if r == nil {
		return nil
	}
	out := *r
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		out.FinishedAt = &t
	}
	out.Errors = append([]string(nil), r.Errors...)
	return &out
}
