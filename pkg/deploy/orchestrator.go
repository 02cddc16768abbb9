package deploy

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Options configures a single orchestration run.
type Options struct {
	// Target is the application being deployed. Immutable for the run.
	Target Target

	// HardRedeploy deletes the existing app, polls for deletion to
	// complete, and only then rebuilds and redeploys.
	HardRedeploy bool

	// WithSecrets runs the secret provisioner before building.
	WithSecrets bool

	// ScopeName is the secret scope to push into. Empty means the
	// provisioner selects or creates one interactively.
	ScopeName string

	// AppDescription is passed to apps create.
	AppDescription string

	// PollInterval and DeletionTimeout tune the deletion poll loop.
	// Zero values fall back to the package defaults.
	PollInterval    time.Duration
	DeletionTimeout time.Duration
}

// Orchestrator composes the provisioner, pipeline, importer, and state
// machine into the two top-level workflows. It is the single point that
// interprets a step failure as "abort the run, clean up, exit non-zero".
type Orchestrator struct {
	cp          ControlPlane
	pipeline    Pipeline
	provisioner Provisioner
	gate        Gate
	recorder    Recorder
	importer    Importer
	observer    Observer
	log         zerolog.Logger
}

// Observer receives stage lifecycle notifications for telemetry. All
// methods must be cheap and must not fail the run.
type Observer interface {
	RunStarted(ctx context.Context, runID, mode string, target Target) context.Context
	StageStarted(ctx context.Context, stage string) context.Context
	StageFinished(ctx context.Context, stage string, err error, took time.Duration)
	RunFinished(ctx context.Context, runID string, state AppState, err error, took time.Duration)
}

// NewOrchestrator wires an orchestrator. provisioner, gate, recorder, and
// observer may be nil; the corresponding phase is skipped.
func NewOrchestrator(
	cp ControlPlane,
	importer Importer,
	pipeline Pipeline,
	provisioner Provisioner,
	gate Gate,
	recorder Recorder,
	observer Observer,
	logger zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		cp:          cp,
		pipeline:    pipeline,
		provisioner: provisioner,
		gate:        gate,
		recorder:    recorder,
		importer:    importer,
		observer:    observer,
		log:         logger.With().Str("component", "orchestrator").Logger(),
	}
}

// Run executes one orchestration run end to end. Cleanup of the transient
// bundle runs unconditionally, on both success and failure paths.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (err error) {
	if verr := opts.Target.Validate(); verr != nil {
		return WrapError(KindEnvironmentFault, "invalid deployment target", verr)
	}

	mode := ModeDeploy
	if opts.HardRedeploy {
		mode = ModeHardRedeploy
	}

	log := o.log.With().
		Str("app", opts.Target.AppName).
		Str("folder", opts.Target.AppFolder).
		Str("mode", mode).
		Logger()
	log.Info().Msg("Starting deployment run")

	runID := o.recordStart(ctx, opts.Target, mode)
	started := time.Now()

	machine := NewStateMachine(o.cp, opts.Target, log)
	machine.AppDescription = opts.AppDescription
	if opts.PollInterval > 0 {
		machine.PollInterval = opts.PollInterval
	}
	if opts.DeletionTimeout > 0 {
		machine.DeletionTimeout = opts.DeletionTimeout
	}

	if o.observer != nil {
		ctx = o.observer.RunStarted(ctx, runID, mode, opts.Target)
	}

	defer func() {
		if cerr := o.cleanup(ctx, runID); cerr != nil {
			log.Warn().Err(cerr).Msg("Cleanup failed")
		}
		o.recordFinish(ctx, runID, err)
		if o.observer != nil {
			o.observer.RunFinished(ctx, runID, machine.State(), err, time.Since(started))
		}
		if err != nil {
			log.Error().Err(err).Msg("Deployment run failed")
		} else {
			log.Info().Msg("Deployment run completed")
		}
	}()

	if err = o.authorize(ctx, runID, opts, mode); err != nil {
		return err
	}

	if opts.HardRedeploy {
		// Hard redeploy skips scope configuration entirely.
		log.Info().Msg("Hard redeploy: skipping scope configuration")
		if err = o.stage(ctx, runID, StageDelete, func(ctx context.Context) error {
			_, derr := machine.DeleteIfPresent(ctx)
			return derr
		}); err != nil {
			return err
		}
	} else if o.provisioner != nil && opts.WithSecrets {
		if err = o.stage(ctx, runID, StageSecrets, func(ctx context.Context) error {
			return o.provisioner.Provision(ctx, opts.ScopeName)
		}); err != nil {
			return err
		}
	}

	if err = o.stage(ctx, runID, StageBuild, o.pipeline.Run); err != nil {
		return err
	}

	if err = o.stage(ctx, runID, StageImport, func(ctx context.Context) error {
		return o.importer.ImportDir(ctx, o.pipeline.BundleDir(), opts.Target.AppFolder)
	}); err != nil {
		return err
	}

	if err = o.stage(ctx, runID, StageDeploy, func(ctx context.Context) error {
		if eerr := machine.EnsureApp(ctx); eerr != nil {
			return eerr
		}
		return machine.Deploy(ctx)
	}); err != nil {
		return err
	}

	// Informational only: a parse failure here is reported but the run
	// outcome stays successful.
	_ = o.stage(ctx, runID, StageInfo, func(ctx context.Context) error {
		info, ierr := machine.FetchInfo(ctx)
		if ierr != nil {
			log.Warn().Err(ierr).Msg("Could not fetch app info")
			return nil
		}
		log.Info().
			Str("name", info.Name).
			Str("state", info.State).
			Str("created", info.CreateTime).
			Str("updated", info.UpdateTime).
			Str("url", info.URL).
			Msg("App information")
		return nil
	})

	return nil
}

// authorize runs the policy gate, when configured, before any remote
// mutation.
func (o *Orchestrator) authorize(ctx context.Context, runID string, opts Options, mode string) error {
	if o.gate == nil {
		return nil
	}
	return o.stage(ctx, runID, StagePolicy, func(ctx context.Context) error {
		return o.gate.Authorize(ctx, GateInput{
			Target:       opts.Target,
			HardRedeploy: opts.HardRedeploy,
			WithSecrets:  opts.WithSecrets,
			Scope:        opts.ScopeName,
		})
	})
}

// stage runs one workflow stage with telemetry and history bookkeeping.
func (o *Orchestrator) stage(ctx context.Context, runID, name string, fn func(context.Context) error) error {
	sctx := ctx
	if o.observer != nil {
		sctx = o.observer.StageStarted(ctx, name)
	}

	start := time.Now()
	err := fn(sctx)
	took := time.Since(start)

	if o.observer != nil {
		o.observer.StageFinished(sctx, name, err, took)
	}
	if o.recorder != nil && runID != "" {
		if rerr := o.recorder.RecordStage(ctx, runID, name, err, took); rerr != nil {
			o.log.Warn().Err(rerr).Str("stage", name).Msg("Could not record stage")
		}
	}
	return err
}

// cleanup removes the transient packaged bundle and transient config.
func (o *Orchestrator) cleanup(ctx context.Context, runID string) error {
	o.log.Info().Msg("Cleaning up")
	err := o.pipeline.Clean()
	if o.recorder != nil && runID != "" {
		if rerr := o.recorder.RecordStage(ctx, runID, StageCleanup, err, 0); rerr != nil {
			o.log.Warn().Err(rerr).Msg("Could not record cleanup")
		}
	}
	return err
}

func (o *Orchestrator) recordStart(ctx context.Context, target Target, mode string) string {
	if o.recorder == nil {
		return ""
	}
	runID, err := o.recorder.RecordStart(ctx, target, mode)
	if err != nil {
		o.log.Warn().Err(err).Msg("Could not record run start")
		return ""
	}
	return runID
}

func (o *Orchestrator) recordFinish(ctx context.Context, runID string, runErr error) {
	if o.recorder == nil || runID == "" {
		return
	}
	if err := o.recorder.RecordFinish(ctx, runID, runErr); err != nil {
		o.log.Warn().Err(err).Msg("Could not record run finish")
	}
}
