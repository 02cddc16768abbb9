// Package executor runs external programs and captures their outcome.
// It exists so every control-plane and build-tool invocation in the
// orchestrator goes through one seam that tests can script.
package executor

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
)

// CommandResult is the outcome of exactly one external command call.
// Callers branch on ExitCode; no call produces a Go error for a failing
// command.
type CommandResult struct {
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
}

// Success reports whether the command exited zero.
func (r CommandResult) Success() bool {
	return r.ExitCode == 0
}

// spawnFailureExitCode is the synthetic exit code reported when the
// command could not be started at all (binary not found, cannot fork).
const spawnFailureExitCode = 127

// Runner executes external commands. The production implementation is
// Local; tests substitute a scripted fake.
type Runner interface {
	// Run executes argv and returns its result. When stream is true,
	// stdout/stderr are surfaced live instead of captured, and the
	// result's text fields are empty.
	Run(ctx context.Context, argv []string, stream bool) CommandResult
}

// ObserveFunc is an optional hook invoked once per command with the tool
// name (argv[0]), duration, and exit code. Used to feed metrics.
type ObserveFunc func(tool string, took time.Duration, exitCode int)

// Local runs commands on the local machine.
type Local struct {
	// Dir is the working directory for every command. Empty means the
	// process working directory.
	Dir string

	// Stdout and Stderr receive live output in stream mode. They default
	// to the process streams.
	Stdout io.Writer
	Stderr io.Writer

	// Observe, when set, is called after every command.
	Observe ObserveFunc
}

// NewLocal creates a local runner writing streamed output to the process
// stdout/stderr.
func NewLocal() *Local {
	return &Local{Stdout: os.Stdout, Stderr: os.Stderr}
}

// Run implements Runner.
func (l *Local) Run(ctx context.Context, argv []string, stream bool) CommandResult {
	if len(argv) == 0 {
		return CommandResult{
			ExitCode: spawnFailureExitCode,
			Stderr:   "empty command",
		}
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = l.Dir

	var stdout, stderr bytes.Buffer
	if stream {
		cmd.Stdout = l.stdout()
		cmd.Stderr = l.stderr()
	} else {
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	}

	start := time.Now()
	err := cmd.Run()
	took := time.Since(start)

	result := CommandResult{}
	if !stream {
		result.Stdout = stdout.String()
		result.Stderr = stderr.String()
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			// Execution-environment fault: the command never ran.
			result.ExitCode = spawnFailureExitCode
			if result.Stderr == "" {
				result.Stderr = err.Error()
			} else {
				result.Stderr += "\n" + err.Error()
			}
		}
	}

	if l.Observe != nil {
		l.Observe(argv[0], took, result.ExitCode)
	}
	return result
}

func (l *Local) stdout() io.Writer {
	if l.Stdout != nil {
		return l.Stdout
	}
	return os.Stdout
}

func (l *Local) stderr() io.Writer {
	if l.Stderr != nil {
		return l.Stderr
	}
	return os.Stderr
}

// Quote renders argv for log and error messages.
func Quote(argv []string) string {
	return strings.Join(argv, " ")
}
