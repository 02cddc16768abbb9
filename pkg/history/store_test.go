package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/dbxdeploy/dbxdeploy/pkg/deploy"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("initializing store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testTarget() deploy.Target {
	return deploy.Target{
		AppName:   "capacity-management",
		AppFolder: "/Workspace/Users/alice@example.com/capacity-management",
	}
}

func TestNewStoreRequiresPath(t *testing.T) {
	if _, err := NewStore(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestRecordStartCreatesRunningDeployment(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	runID, err := store.RecordStart(ctx, testTarget(), deploy.ModeDeploy)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if runID == "" {
		t.Fatal("expected a run ID")
	}

	d, err := store.GetDeployment(ctx, runID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Status != StatusRunning {
		t.Errorf("expected running, got %s", d.Status)
	}
	if d.AppName != "capacity-management" || d.Mode != deploy.ModeDeploy {
		t.Errorf("unexpected deployment: %+v", d)
	}
	if d.CompletedAt != nil {
		t.Error("expected no completion time yet")
	}
}

func TestRecordFinishSuccess(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	runID, _ := store.RecordStart(ctx, testTarget(), deploy.ModeDeploy)
	if err := store.RecordFinish(ctx, runID, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	d, err := store.GetDeployment(ctx, runID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Status != StatusSucceeded {
		t.Errorf("expected succeeded, got %s", d.Status)
	}
	if d.CompletedAt == nil {
		t.Error("expected completion time")
	}
	if d.Error != nil {
		t.Errorf("expected no error message, got %q", *d.Error)
	}
}

func TestRecordFinishFailureKeepsError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	runID, _ := store.RecordStart(ctx, testTarget(), deploy.ModeHardRedeploy)
	runErr := deploy.NewError(deploy.KindDeletionTimeout, "timed out waiting for deletion")
	if err := store.RecordFinish(ctx, runID, runErr); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	d, _ := store.GetDeployment(ctx, runID)
	if d.Status != StatusFailed {
		t.Errorf("expected failed, got %s", d.Status)
	}
	if d.Error == nil || *d.Error == "" {
		t.Error("expected error message recorded")
	}
}

func TestRecordFinishUnknownRun(t *testing.T) {
	store := newTestStore(t)

	if err := store.RecordFinish(context.Background(), "no-such-run", nil); err == nil {
		t.Fatal("expected error for unknown run")
	}
}

func TestRecordStagesInOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	runID, _ := store.RecordStart(ctx, testTarget(), deploy.ModeDeploy)
	if err := store.RecordStage(ctx, runID, deploy.StageBuild, nil, 1500*time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.RecordStage(ctx, runID, deploy.StageImport, errors.New("upload failed"), 200*time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stages, err := store.ListStages(ctx, runID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stages) != 2 {
		t.Fatalf("expected 2 stages, got %d", len(stages))
	}
	if stages[0].Name != deploy.StageBuild || stages[0].Status != StageOK {
		t.Errorf("unexpected first stage: %+v", stages[0])
	}
	if stages[0].DurationMS != 1500 {
		t.Errorf("expected 1500ms, got %d", stages[0].DurationMS)
	}
	if stages[1].Status != StageFailed || stages[1].Error == nil {
		t.Errorf("unexpected second stage: %+v", stages[1])
	}
}

func TestListDeploymentsNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, _ := store.RecordStart(ctx, testTarget(), deploy.ModeDeploy)
	_ = store.RecordFinish(ctx, first, nil)

	// started_at has second precision in SQLite; force distinct ordering.
	if _, err := store.db.ExecContext(ctx,
		"UPDATE deployments SET started_at = datetime(started_at, '-1 minute') WHERE id = ?", first); err != nil {
		t.Fatal(err)
	}
	second, _ := store.RecordStart(ctx, testTarget(), deploy.ModeHardRedeploy)

	deployments, err := store.ListDeployments(ctx, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(deployments) != 2 {
		t.Fatalf("expected 2 deployments, got %d", len(deployments))
	}
	if deployments[0].ID != second {
		t.Errorf("expected newest run first, got %s", deployments[0].ID)
	}
}
