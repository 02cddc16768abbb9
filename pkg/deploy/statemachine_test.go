package deploy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeControlPlane scripts the remote side. ListAppsText walks through
// listings one call at a time, holding on the last entry.
type fakeControlPlane struct {
	exists    bool
	existsErr error

	createErr error
	deployErr error
	deleteErr error
	listErr   error

	listings  []string
	listCalls int

	created  []string
	deployed []string
	deleted  []string

	info    *AppInfo
	infoErr error
}

func (f *fakeControlPlane) AppExists(_ context.Context, name string) (bool, error) {
	return f.exists, f.existsErr
}

func (f *fakeControlPlane) CreateApp(_ context.Context, name, description string) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, name)
	return nil
}

func (f *fakeControlPlane) DeployApp(_ context.Context, name, sourceCodePath string) error {
	if f.deployErr != nil {
		return f.deployErr
	}
	f.deployed = append(f.deployed, sourceCodePath)
	return nil
}

func (f *fakeControlPlane) DeleteApp(_ context.Context, name string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, name)
	return nil
}

func (f *fakeControlPlane) ListAppsText(_ context.Context) (string, error) {
	if f.listErr != nil {
		return "", f.listErr
	}
	if len(f.listings) == 0 {
		return "", nil
	}
	i := f.listCalls
	if i >= len(f.listings) {
		i = len(f.listings) - 1
	}
	f.listCalls++
	return f.listings[i], nil
}

func (f *fakeControlPlane) GetAppInfo(_ context.Context, name string) (*AppInfo, error) {
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	if f.info != nil {
		return f.info, nil
	}
	return &AppInfo{Name: name, State: "RUNNING"}, nil
}

// fakeClock makes the poll loop deterministic: sleep advances virtual
// time instead of blocking.
type fakeClock struct {
	t      time.Time
	sleeps int
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) sleep(d time.Duration) {
	c.t = c.t.Add(d)
	c.sleeps++
}

func newTestMachine(cp ControlPlane) (*StateMachine, *fakeClock) {
	m := NewStateMachine(cp, Target{AppName: "demo", AppFolder: "/Workspace/Users/u@corp.com/demo"}, zerolog.Nop())
	clock := &fakeClock{t: time.Unix(1000, 0)}
	m.now = clock.now
	m.sleep = clock.sleep
	m.PollInterval = 5 * time.Second
	m.DeletionTimeout = 30 * time.Second
	return m, clock
}

func TestEnsureAppCreatesWhenAbsent(t *testing.T) {
	cp := &fakeControlPlane{exists: false}
	m, _ := newTestMachine(cp)

	if err := m.EnsureApp(context.Background()); err != nil {
		t.Fatalf("EnsureApp: %v", err)
	}
	if len(cp.created) != 1 || cp.created[0] != "demo" {
		t.Errorf("expected one create of demo, got %v", cp.created)
	}
	if m.State() != StatePresent {
		t.Errorf("state = %s, want %s", m.State(), StatePresent)
	}
}

func TestEnsureAppSkipsCreateWhenPresent(t *testing.T) {
	cp := &fakeControlPlane{exists: true}
	m, _ := newTestMachine(cp)

	if err := m.EnsureApp(context.Background()); err != nil {
		t.Fatalf("EnsureApp: %v", err)
	}
	if len(cp.created) != 0 {
		t.Errorf("expected no create calls, got %v", cp.created)
	}
	if m.State() != StatePresent {
		t.Errorf("state = %s, want %s", m.State(), StatePresent)
	}
}

func TestEnsureAppCreateFailureIsTerminal(t *testing.T) {
	cp := &fakeControlPlane{exists: false, createErr: NewError(KindCommandFailure, "apps create failed")}
	m, _ := newTestMachine(cp)

	if err := m.EnsureApp(context.Background()); !IsCommandFailure(err) {
		t.Fatalf("expected command failure, got %v", err)
	}
	if m.State() != StateFailed {
		t.Errorf("state = %s, want %s", m.State(), StateFailed)
	}
}

func TestDeploySetsDeployedState(t *testing.T) {
	cp := &fakeControlPlane{}
	m, _ := newTestMachine(cp)

	if err := m.Deploy(context.Background()); err != nil {
		t.Fatalf("Deploy: %v", err)
	}
	if len(cp.deployed) != 1 || cp.deployed[0] != "/Workspace/Users/u@corp.com/demo" {
		t.Errorf("deploy source path = %v", cp.deployed)
	}
	if m.State() != StateDeployed {
		t.Errorf("state = %s, want %s", m.State(), StateDeployed)
	}
}

func TestDeleteIfPresentNoopWhenAbsent(t *testing.T) {
	cp := &fakeControlPlane{listings: []string{"other-app  RUNNING"}}
	m, clock := newTestMachine(cp)

	deleted, err := m.DeleteIfPresent(context.Background())
	if err != nil {
		t.Fatalf("DeleteIfPresent: %v", err)
	}
	if deleted {
		t.Error("expected deleted=false for absent app")
	}
	if len(cp.deleted) != 0 {
		t.Errorf("expected no delete calls, got %v", cp.deleted)
	}
	if clock.sleeps != 0 {
		t.Errorf("expected no polling, slept %d times", clock.sleeps)
	}
	if m.State() != StateAbsent {
		t.Errorf("state = %s, want %s", m.State(), StateAbsent)
	}
}

func TestDeleteIfPresentPollsUntilGone(t *testing.T) {
	// Presence check consumes the first listing; the poll loop then sees
	// the app twice more before it disappears.
	cp := &fakeControlPlane{listings: []string{
		"demo  RUNNING",
		"demo  DELETING",
		"demo  DELETING",
		"other-app  RUNNING",
	}}
	m, clock := newTestMachine(cp)

	deleted, err := m.DeleteIfPresent(context.Background())
	if err != nil {
		t.Fatalf("DeleteIfPresent: %v", err)
	}
	if !deleted {
		t.Error("expected deleted=true")
	}
	if len(cp.deleted) != 1 {
		t.Errorf("expected one delete call, got %v", cp.deleted)
	}
	if clock.sleeps != 2 {
		t.Errorf("expected 2 poll sleeps, got %d", clock.sleeps)
	}
	if m.State() != StateAbsent {
		t.Errorf("state = %s, want %s", m.State(), StateAbsent)
	}
}

func TestDeleteIfPresentTimesOut(t *testing.T) {
	cp := &fakeControlPlane{listings: []string{"demo  DELETING"}}
	m, _ := newTestMachine(cp)
	m.DeletionTimeout = 15 * time.Second

	_, err := m.DeleteIfPresent(context.Background())
	if !IsDeletionTimeout(err) {
		t.Fatalf("expected deletion timeout, got %v", err)
	}
	if m.State() != StateFailed {
		t.Errorf("state = %s, want %s", m.State(), StateFailed)
	}
}

func TestDeleteIfPresentListFailureAborts(t *testing.T) {
	cp := &fakeControlPlane{listErr: NewError(KindCommandFailure, "apps list failed")}
	m, _ := newTestMachine(cp)

	_, err := m.DeleteIfPresent(context.Background())
	if !IsCommandFailure(err) {
		t.Fatalf("expected command failure, got %v", err)
	}
	if len(cp.deleted) != 0 {
		t.Errorf("expected no delete calls, got %v", cp.deleted)
	}
}

// The listing check is a raw substring test, so an app whose name is a
// prefix of another app's name reads as present even when it is not.
func TestDeleteIfPresentSubstringCollision(t *testing.T) {
	cp := &fakeControlPlane{listings: []string{"demo-v2  RUNNING"}}
	m, _ := newTestMachine(cp)
	m.DeletionTimeout = 10 * time.Second

	_, err := m.DeleteIfPresent(context.Background())
	if !IsDeletionTimeout(err) {
		t.Fatalf("expected deletion timeout from the collision, got %v", err)
	}
	if len(cp.deleted) != 1 {
		t.Errorf("expected the false-positive delete to be issued, got %v", cp.deleted)
	}
}

func TestDeployFailureSetsFailedState(t *testing.T) {
	cp := &fakeControlPlane{deployErr: errors.New("boom")}
	m, _ := newTestMachine(cp)

	if err := m.Deploy(context.Background()); err == nil {
		t.Fatal("expected deploy error")
	}
	if m.State() != StateFailed {
		t.Errorf("state = %s, want %s", m.State(), StateFailed)
	}
}
