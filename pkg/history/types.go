// Package history persists deployment runs in a local SQLite database so
// `dbxdeploy history` can show what ran, when, and how it ended. Recorder
// failures never fail a deployment.
package history

import "time"

// DeploymentStatus is the lifecycle status of a recorded run.
type DeploymentStatus string

const (
	StatusRunning   DeploymentStatus = "running"
	StatusSucceeded DeploymentStatus = "succeeded"
	StatusFailed    DeploymentStatus = "failed"
)

// Deployment is one recorded orchestration run.
type Deployment struct {
	ID          string           `json:"id"`
	AppName     string           `json:"app_name"`
	AppFolder   string           `json:"app_folder"`
	Mode        string           `json:"mode"`
	Status      DeploymentStatus `json:"status"`
	Error       *string          `json:"error,omitempty"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

// Stage is one recorded workflow stage of a run.
type Stage struct {
	ID         int64     `json:"id"`
	RunID      string    `json:"run_id"`
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	Error      *string   `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// Stage statuses.
const (
	StageOK     = "ok"
	StageFailed = "failed"
)
