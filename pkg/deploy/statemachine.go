package deploy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Default timing for the deletion poll loop. Both are configuration
// values, not hardcoded constants, so tests can compress them.
const (
	DefaultPollInterval    = 5 * time.Second
	DefaultDeletionTimeout = 300 * time.Second
)

// StateMachine drives the remote application record through its lifecycle:
// Absent -> Present -> Deployed, with the hard-redeploy extension
// Present -> Deleting -> Absent. It owns the record only through
// request/response and never caches remote state across steps.
type StateMachine struct {
	cp     ControlPlane
	target Target
	state  AppState
	log    zerolog.Logger

	// AppDescription is passed to apps create.
	AppDescription string

	// PollInterval is the fixed sleep between deletion-poll checks.
	PollInterval time.Duration

	// DeletionTimeout bounds the deletion poll loop.
	DeletionTimeout time.Duration

	// now and sleep are injectable for tests.
	now   func() time.Time
	sleep func(time.Duration)
}

// NewStateMachine creates a state machine for the given target.
func NewStateMachine(cp ControlPlane, target Target, logger zerolog.Logger) *StateMachine {
	return &StateMachine{
		cp:              cp,
		target:          target,
		state:           StateUnknown,
		log:             logger.With().Str("component", "state-machine").Str("app", target.AppName).Logger(),
		PollInterval:    DefaultPollInterval,
		DeletionTimeout: DefaultDeletionTimeout,
		now:             time.Now,
		sleep:           time.Sleep,
	}
}

// State returns the last observed application state.
func (m *StateMachine) State() AppState {
	return m.state
}

// EnsureApp drives Absent -> Present: when `apps get` reports the record
// missing, it issues `apps create`. A create failure is terminal.
func (m *StateMachine) EnsureApp(ctx context.Context) error {
	exists, err := m.cp.AppExists(ctx, m.target.AppName)
	if err != nil {
		m.state = StateFailed
		return err
	}

	if exists {
		m.state = StatePresent
		return nil
	}

	m.state = StateAbsent
	m.log.Info().Msg("App does not exist, creating")
	if err := m.cp.CreateApp(ctx, m.target.AppName, m.AppDescription); err != nil {
		m.state = StateFailed
		return err
	}

	m.state = StatePresent
	m.log.Info().Msg("App created")
	return nil
}

// Deploy drives Present -> Deployed by triggering deployment from the
// imported workspace path. The deploy command is issued unconditionally.
func (m *StateMachine) Deploy(ctx context.Context) error {
	m.log.Info().Str("source_code_path", m.target.AppFolder).Msg("Deploying app")

	if err := m.cp.DeployApp(ctx, m.target.AppName, m.target.AppFolder); err != nil {
		m.state = StateFailed
		return err
	}

	m.state = StateDeployed
	m.log.Info().Msg("App deployed")
	return nil
}

// DeleteIfPresent checks the listing for the app and, when present,
// drives Present -> Deleting -> Absent: issue the delete, then poll the
// listing at a fixed interval until the name disappears or the timeout
// elapses. Returns (deleted, err); deleted is false when the app was
// never there.
func (m *StateMachine) DeleteIfPresent(ctx context.Context) (bool, error) {
	listing, err := m.cp.ListAppsText(ctx)
	if err != nil {
		m.state = StateFailed
		return false, err
	}

	if !m.appInListing(listing) {
		m.state = StateAbsent
		m.log.Info().Msg("App does not exist, proceeding with fresh deployment")
		return false, nil
	}

	m.state = StatePresent
	m.log.Info().Msg("App exists, deleting")
	if err := m.cp.DeleteApp(ctx, m.target.AppName); err != nil {
		m.state = StateFailed
		return false, err
	}

	m.state = StateDeleting
	if err := m.waitForDeletion(ctx); err != nil {
		m.state = StateFailed
		return false, err
	}

	m.state = StateAbsent
	return true, nil
}

// waitForDeletion polls `apps list` until the app name is no longer a
// substring of the combined listing text, sleeping PollInterval between
// checks and giving up after DeletionTimeout.
func (m *StateMachine) waitForDeletion(ctx context.Context) error {
	m.log.Info().
		Dur("poll_interval", m.PollInterval).
		Dur("timeout", m.DeletionTimeout).
		Msg("Waiting for app deletion to complete")

	start := m.now()
	for m.now().Sub(start) < m.DeletionTimeout {
		listing, err := m.cp.ListAppsText(ctx)
		if err != nil {
			return err
		}

		if !strings.Contains(listing, m.target.AppName) {
			m.log.Info().Msg("App deletion confirmed")
			return nil
		}

		m.log.Info().
			Dur("elapsed", m.now().Sub(start)).
			Msg("App still being deleted")
		m.sleep(m.PollInterval)
	}

	return NewError(KindDeletionTimeout,
		fmt.Sprintf("timed out waiting for deletion of app %q after %s",
			m.target.AppName, m.DeletionTimeout))
}

// appInListing is a raw substring membership test against the listing
// output. An app name that is a substring of another app's name can
// produce a false "still exists" or false "already gone" read; a known
// correctness gap preserved from the observed control-plane contract.
func (m *StateMachine) appInListing(listing string) bool {
	return strings.Contains(listing, m.target.AppName)
}

// FetchInfo retrieves the informational app projection after a deploy.
// A parse failure here is reported but does not change the terminal
// outcome: the deployment already succeeded.
func (m *StateMachine) FetchInfo(ctx context.Context) (*AppInfo, error) {
	return m.cp.GetAppInfo(ctx, m.target.AppName)
}
