package deploy

import (
	"context"
	"fmt"
	"time"
)

// AppState represents the remote application's lifecycle state as observed
// by the state machine. The state machine never caches remote state across
// steps; each transition is driven by a fresh control-plane call.
type AppState string

const (
	// StateUnknown is the initial state before any control-plane probe.
	StateUnknown AppState = "unknown"

	// StateAbsent indicates no application record exists remotely.
	StateAbsent AppState = "absent"

	// StatePresent indicates the application record exists but the current
	// bundle has not been deployed to it.
	StatePresent AppState = "present"

	// StateDeleting indicates a delete was issued and the poll loop is
	// waiting for the record to disappear from the listing.
	StateDeleting AppState = "deleting"

	// StateDeployed indicates the deploy command succeeded. Terminal for a
	// successful run.
	StateDeployed AppState = "deployed"

	// StateFailed indicates a create, deploy, or delete step failed.
	// Terminal for a failed run.
	StateFailed AppState = "failed"
)

// IsTerminal returns true if the state is final for a run.
func (s AppState) IsTerminal() bool {
	return s == StateDeployed || s == StateFailed
}

// Target identifies the remote application a run operates on. Once a run
// starts, its Target is immutable; no concurrent run shares it.
type Target struct {
	// AppName is the control-plane application name.
	AppName string `json:"app_name"`

	// AppFolder is the workspace path the bundle is imported to and
	// deployed from, /Workspace/Users/<email>/<appName> unless overridden.
	AppFolder string `json:"app_folder"`
}

// Validate checks the target carries both coordinates.
func (t Target) Validate() error {
	if t.AppName == "" {
		return fmt.Errorf("target app name is empty")
	}
	if t.AppFolder == "" {
		return fmt.Errorf("target app folder is empty")
	}
	return nil
}

// AppInfo is the informational projection of `apps get` shown after a
// successful deploy. Parse failures here degrade to a warning.
type AppInfo struct {
	Name       string `json:"name"`
	State      string `json:"state"`
	CreateTime string `json:"create_time"`
	UpdateTime string `json:"update_time"`
	URL        string `json:"url"`
}

// ControlPlane is the slice of the remote platform the state machine
// drives. Implemented by the databricks package on top of the external CLI.
type ControlPlane interface {
	// AppExists probes the application record (apps get exit code).
	AppExists(ctx context.Context, name string) (bool, error)

	// CreateApp creates the application record.
	CreateApp(ctx context.Context, name, description string) error

	// DeployApp triggers deployment from the imported workspace path.
	DeployApp(ctx context.Context, name, sourceCodePath string) error

	// DeleteApp issues an asynchronous delete of the application record.
	DeleteApp(ctx context.Context, name string) error

	// ListAppsText returns the combined stdout of the app listing. The
	// poll loop does a raw substring membership test against it.
	ListAppsText(ctx context.Context) (string, error)

	// GetAppInfo fetches the informational projection of the app record.
	GetAppInfo(ctx context.Context, name string) (*AppInfo, error)
}

// Importer uploads a packaged bundle to a remote workspace path,
// overwriting existing content.
type Importer interface {
	ImportDir(ctx context.Context, localPath, remotePath string) error
}

// Pipeline turns frontend and backend source into a deployable bundle.
type Pipeline interface {
	// Run executes all pipeline steps in order and reports the first
	// failure.
	Run(ctx context.Context) error

	// BundleDir is the local directory Run produced.
	BundleDir() string

	// Clean removes the transient bundle directory and any transient
	// config file. Safe to call whether or not Run succeeded.
	Clean() error
}

// Provisioner discovers or creates the secret scope and pushes the
// required secrets into it.
type Provisioner interface {
	Provision(ctx context.Context, scopeName string) error
}

// GateInput is what the pre-deploy policy gate evaluates.
type GateInput struct {
	Target       Target `json:"target"`
	HardRedeploy bool   `json:"hard_redeploy"`
	WithSecrets  bool   `json:"with_secrets"`
	Scope        string `json:"scope,omitempty"`
}

// Gate authorizes a run before any remote mutation. A denial surfaces as
// a KindPolicyDenied error.
type Gate interface {
	Authorize(ctx context.Context, input GateInput) error
}

// Recorder persists run outcomes for `dbxdeploy history`. Recorder
// failures never fail a run; they are logged and ignored.
type Recorder interface {
	RecordStart(ctx context.Context, target Target, mode string) (runID string, err error)
	RecordStage(ctx context.Context, runID, stage string, stageErr error, took time.Duration) error
	RecordFinish(ctx context.Context, runID string, runErr error) error
}

// Run modes recorded in history.
const (
	ModeDeploy       = "deploy"
	ModeHardRedeploy = "hard-redeploy"
)

// Orchestration stage names, in workflow order.
const (
	StagePolicy   = "policy"
	StageSecrets  = "secrets"
	StageDelete   = "delete"
	StagePollWait = "poll-wait"
	StageBuild    = "build"
	StageImport   = "import"
	StageDeploy   = "deploy"
	StageInfo     = "info"
	StageCleanup  = "cleanup"
)
