package models

import "time"

type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Run is one invocation of the pipeline.
type Run struct {
	ID         string        `json:"id"`
	Mode       string        `json:"mode"`
	Stages     []string      `json:"stages"`
	DBIDs      []string      `json:"db_ids"`
	Count      int           `json:"count"`
	Status     RunStatus     `json:"status"`
	Error      string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
	Databases  []RunDatabase `json:"databases,omitempty"`
}

// RunDatabase holds the per-database counters of a run.
type RunDatabase struct {
	RunID       string    `json:"run_id"`
	DBID        string    `json:"db_id"`
	State       string    `json:"state"`
	Generated   int       `json:"generated"`
	Executed    int       `json:"executed"`
	Skipped     int       `json:"skipped"`
	Synthesized int       `json:"synthesized"`
	Carried     int       `json:"carried"`
	Error       string    `json:"error,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// VerificationReport summarizes one verify pass over an artifact.
type VerificationReport struct {
	ID        int       `json:"id"`
	DBID      string    `json:"db_id"`
	Artifact  string    `json:"artifact"`
	Checked   int       `json:"checked"`
	Failed    int       `json:"failed"`
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"created_at"`
}
