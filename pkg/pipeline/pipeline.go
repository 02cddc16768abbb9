// Package pipeline turns frontend and backend source into a deployable
// bundle: npm build, static-asset merge, and backend packaging with an
// exclusion ruleset and a generated app manifest.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dbxdeploy/dbxdeploy/pkg/deploy"
	"github.com/dbxdeploy/dbxdeploy/pkg/executor"
)

// Options configures the build pipeline. Zero values fall back to the
// conventional layout: frontend/, backend/, npm on PATH.
type Options struct {
	FrontendDir string
	BackendDir  string
	NPMBin      string

	// ExcludePatterns overrides the default packaging exclusions.
	ExcludePatterns []string

	// ConfigFile is the transient config file removed by Clean.
	ConfigFile string
}

// Pipeline implements deploy.Pipeline. Steps run strictly in order; the
// first failure aborts the run.
type Pipeline struct {
	runner  executor.Runner
	opts    Options
	exclude *ExclusionRuleset
	log     zerolog.Logger
}

// New creates a pipeline.
func New(runner executor.Runner, opts Options, logger zerolog.Logger) (*Pipeline, error) {
	if opts.FrontendDir == "" {
		opts.FrontendDir = "frontend"
	}
	if opts.BackendDir == "" {
		opts.BackendDir = "backend"
	}
	if opts.NPMBin == "" {
		opts.NPMBin = "npm"
	}
	if opts.ConfigFile == "" {
		opts.ConfigFile = "app_env.json"
	}
	patterns := opts.ExcludePatterns
	if patterns == nil {
		patterns = DefaultExcludePatterns
	}

	exclude, err := NewExclusionRuleset(patterns)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		runner:  runner,
		opts:    opts,
		exclude: exclude,
		log:     logger.With().Str("component", "pipeline").Logger(),
	}, nil
}

// BundleDir is the directory Run packages the backend into.
func (p *Pipeline) BundleDir() string {
	return filepath.Join(p.opts.BackendDir, "build")
}

// Run executes build -> merge -> package and reports the first failure.
func (p *Pipeline) Run(ctx context.Context) error {
	if err := p.buildFrontend(ctx); err != nil {
		return err
	}
	if err := p.mergeStatic(); err != nil {
		return err
	}
	return p.packageBackend()
}

// buildFrontend installs dependencies when node_modules is missing, then
// always runs the production build. Both commands stream their output.
func (p *Pipeline) buildFrontend(ctx context.Context) error {
	if _, err := os.Stat(filepath.Join(p.opts.FrontendDir, "node_modules")); os.IsNotExist(err) {
		p.log.Info().Msg("Installing frontend dependencies")
		if err := p.npm(ctx, "install"); err != nil {
			return err
		}
	}

	p.log.Info().Msg("Building frontend")
	return p.npm(ctx, "run", "build")
}

func (p *Pipeline) npm(ctx context.Context, args ...string) error {
	argv := append([]string{p.opts.NPMBin}, args...)
	argv = append(argv, "--prefix", p.opts.FrontendDir)
	result := p.runner.Run(ctx, argv, true)
	if !result.Success() {
		return deploy.NewCommandFailure(
			fmt.Sprintf("%s %s failed", p.opts.NPMBin, strings.Join(args, " ")),
			executor.Quote(argv),
			strings.TrimSpace(result.Stderr))
	}
	return nil
}

// mergeStatic replaces backend/static with the frontend build output. A
// missing output directory means the build silently produced nothing.
func (p *Pipeline) mergeStatic() error {
	dist := filepath.Join(p.opts.FrontendDir, "dist")
	if _, err := os.Stat(dist); os.IsNotExist(err) {
		return deploy.NewError(deploy.KindBuildOutputMissing,
			fmt.Sprintf("frontend build output %s does not exist", dist))
	}

	static := filepath.Join(p.opts.BackendDir, "static")
	if err := os.RemoveAll(static); err != nil {
		return fmt.Errorf("removing stale static dir: %w", err)
	}

	p.log.Info().Str("from", dist).Str("to", static).Msg("Copying static files")
	if err := copyTree(dist, static); err != nil {
		return fmt.Errorf("copying static files: %w", err)
	}
	return nil
}

// packageBackend rebuilds the bundle directory from scratch: top-level
// backend entries filtered by the exclusion ruleset, plus the generated
// app manifest. Only top-level entries are filtered; nested content of an
// included directory is copied as-is.
func (p *Pipeline) packageBackend() error {
	bundle := p.BundleDir()

	if err := os.RemoveAll(bundle); err != nil {
		return fmt.Errorf("removing stale bundle: %w", err)
	}
	if err := os.MkdirAll(bundle, 0o755); err != nil {
		return fmt.Errorf("creating bundle dir: %w", err)
	}

	entries, err := os.ReadDir(p.opts.BackendDir)
	if err != nil {
		return fmt.Errorf("reading backend dir: %w", err)
	}

	for _, entry := range entries {
		if p.exclude.Excluded(entry.Name()) {
			continue
		}

		src := filepath.Join(p.opts.BackendDir, entry.Name())
		dst := filepath.Join(bundle, entry.Name())
		if entry.IsDir() {
			err = copyTree(src, dst)
		} else {
			err = copyFile(src, dst)
		}
		if err != nil {
			return fmt.Errorf("packaging %s: %w", entry.Name(), err)
		}
	}

	if err := writeManifest(filepath.Join(bundle, "app.yaml")); err != nil {
		return fmt.Errorf("writing app manifest: %w", err)
	}

	p.log.Info().Str("bundle", bundle).Msg("Backend packaged")
	return nil
}

// Clean removes the transient bundle and config file. Runs on every
// orchestration exit path, success or failure.
func (p *Pipeline) Clean() error {
	p.log.Info().Msg("Cleaning up build artifacts")

	if err := os.RemoveAll(p.BundleDir()); err != nil {
		return fmt.Errorf("removing bundle: %w", err)
	}
	if err := os.Remove(p.opts.ConfigFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing config file: %w", err)
	}
	return nil
}
