package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/dbxdeploy/dbxdeploy/pkg/deploy"
	"github.com/dbxdeploy/dbxdeploy/pkg/executor"
)

// recordingRunner accepts every command and records the argv.
type recordingRunner struct {
	calls [][]string
}

func (r *recordingRunner) Run(_ context.Context, argv []string, _ bool) executor.CommandResult {
	r.calls = append(r.calls, argv)
	return executor.CommandResult{}
}

func (r *recordingRunner) saw(sub string) bool {
	for _, call := range r.calls {
		if strings.Contains(strings.Join(call, " "), sub) {
			return true
		}
	}
	return false
}

// newTestTree lays out a frontend with build output and a backend with a
// mix of deployable and excluded entries.
func newTestTree(t *testing.T) (frontend, backend string) {
	t.Helper()
	root := t.TempDir()
	frontend = filepath.Join(root, "frontend")
	backend = filepath.Join(root, "backend")

	mustWrite(t, filepath.Join(frontend, "dist", "index.html"), "<html></html>")
	mustWrite(t, filepath.Join(frontend, "dist", "assets", "app.js"), "js")

	mustWrite(t, filepath.Join(backend, "app.py"), "app = None")
	mustWrite(t, filepath.Join(backend, "requirements.txt"), "fastapi")
	mustWrite(t, filepath.Join(backend, "utils", "helpers.py"), "pass")
	mustWrite(t, filepath.Join(backend, "venv", "bin", "python"), "")
	mustWrite(t, filepath.Join(backend, ".env"), "SECRET=1")
	mustWrite(t, filepath.Join(backend, "test_api.py"), "pass")
	return frontend, backend
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newTestPipeline(t *testing.T, runner executor.Runner, frontend, backend string) *Pipeline {
	t.Helper()
	p, err := New(runner, Options{
		FrontendDir: frontend,
		BackendDir:  backend,
		ConfigFile:  filepath.Join(backend, "..", "app_env.json"),
	}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestRunProducesBundle(t *testing.T) {
	frontend, backend := newTestTree(t)
	runner := &recordingRunner{}
	p := newTestPipeline(t, runner, frontend, backend)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bundle := p.BundleDir()
	for _, want := range []string{
		"app.py",
		"requirements.txt",
		filepath.Join("utils", "helpers.py"),
		filepath.Join("static", "index.html"),
		filepath.Join("static", "assets", "app.js"),
		"app.yaml",
	} {
		if _, err := os.Stat(filepath.Join(bundle, want)); err != nil {
			t.Errorf("expected %s in bundle: %v", want, err)
		}
	}

	for _, absent := range []string{"venv", ".env", "test_api.py"} {
		if _, err := os.Stat(filepath.Join(bundle, absent)); !os.IsNotExist(err) {
			t.Errorf("expected %s to be excluded from bundle", absent)
		}
	}
}

func TestRunWritesManifest(t *testing.T) {
	frontend, backend := newTestTree(t)
	p := newTestPipeline(t, &recordingRunner{}, frontend, backend)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(p.BundleDir(), "app.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	for _, want := range []string{"uvicorn", "app:app", "ENV", "production", "PORT", "8000", "DEBUG"} {
		if !strings.Contains(text, want) {
			t.Errorf("manifest missing %q:\n%s", want, text)
		}
	}
}

func TestRunInstallsOnlyWhenNodeModulesMissing(t *testing.T) {
	frontend, backend := newTestTree(t)
	runner := &recordingRunner{}
	p := newTestPipeline(t, runner, frontend, backend)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !runner.saw("npm install") {
		t.Error("expected npm install without node_modules")
	}

	mustWrite(t, filepath.Join(frontend, "node_modules", ".keep"), "")
	runner.calls = nil

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if runner.saw("npm install") {
		t.Error("expected install to be skipped with node_modules present")
	}
	if !runner.saw("npm run build") {
		t.Error("expected build to always run")
	}
}

func TestRunFailsWithoutBuildOutput(t *testing.T) {
	frontend, backend := newTestTree(t)
	if err := os.RemoveAll(filepath.Join(frontend, "dist")); err != nil {
		t.Fatal(err)
	}
	p := newTestPipeline(t, &recordingRunner{}, frontend, backend)

	err := p.Run(context.Background())
	if !deploy.IsKind(err, deploy.KindBuildOutputMissing) {
		t.Fatalf("expected build output missing, got %v", err)
	}
}

func TestRunRebuildsBundleFromScratch(t *testing.T) {
	frontend, backend := newTestTree(t)
	p := newTestPipeline(t, &recordingRunner{}, frontend, backend)

	mustWrite(t, filepath.Join(p.BundleDir(), "stale.txt"), "old")

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(p.BundleDir(), "stale.txt")); !os.IsNotExist(err) {
		t.Error("expected stale bundle content to be removed")
	}
}

func TestRunTwiceProducesIdenticalBundle(t *testing.T) {
	frontend, backend := newTestTree(t)
	p := newTestPipeline(t, &recordingRunner{}, frontend, backend)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	first := snapshotBundle(t, p.BundleDir())

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	second := snapshotBundle(t, p.BundleDir())

	if len(first) != len(second) {
		t.Fatalf("bundle entry count changed: %d vs %d", len(first), len(second))
	}
	for path, content := range first {
		if second[path] != content {
			t.Errorf("bundle entry %s changed between runs", path)
		}
	}
}

// snapshotBundle maps relative path to file content for the whole bundle.
func snapshotBundle(t *testing.T, dir string) map[string]string {
	t.Helper()
	snapshot := map[string]string{}
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		data, rerr := os.ReadFile(path)
		if rerr != nil {
			return rerr
		}
		rel, rerr := filepath.Rel(dir, path)
		if rerr != nil {
			return rerr
		}
		snapshot[rel] = string(data)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return snapshot
}

func TestCleanRemovesBundleAndConfig(t *testing.T) {
	frontend, backend := newTestTree(t)
	p := newTestPipeline(t, &recordingRunner{}, frontend, backend)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mustWrite(t, p.opts.ConfigFile, "{}")

	if err := p.Clean(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(p.BundleDir()); !os.IsNotExist(err) {
		t.Error("expected bundle to be removed")
	}
	if _, err := os.Stat(p.opts.ConfigFile); !os.IsNotExist(err) {
		t.Error("expected config file to be removed")
	}
}

func TestCleanIsIdempotent(t *testing.T) {
	frontend, backend := newTestTree(t)
	p := newTestPipeline(t, &recordingRunner{}, frontend, backend)

	if err := p.Clean(); err != nil {
		t.Fatalf("clean on a pristine tree must not fail: %v", err)
	}
	if err := p.Clean(); err != nil {
		t.Fatalf("repeated clean must not fail: %v", err)
	}
}

func TestNPMFailureAbortsRun(t *testing.T) {
	frontend, backend := newTestTree(t)
	runner := &failingRunner{failOn: "run build"}
	p := newTestPipeline(t, runner, frontend, backend)

	err := p.Run(context.Background())
	if !deploy.IsCommandFailure(err) {
		t.Fatalf("expected command failure, got %v", err)
	}
	if _, serr := os.Stat(p.BundleDir()); !os.IsNotExist(serr) {
		t.Error("bundle must not be produced after a failed build")
	}
}

// failingRunner fails any command whose argv contains failOn.
type failingRunner struct {
	failOn string
}

func (f *failingRunner) Run(_ context.Context, argv []string, _ bool) executor.CommandResult {
	if strings.Contains(strings.Join(argv, " "), f.failOn) {
		return executor.CommandResult{ExitCode: 1, Stderr: "boom"}
	}
	return executor.CommandResult{}
}
