// Package deploy provides the core types and workflow for the dbxdeploy
// orchestrator. It defines the staged deployment workflow:
// Provision -> Build -> Import -> Deploy -> Info, plus the destructive
// hard-redeploy variant (Delete -> Poll -> Rebuild -> Deploy).
package deploy

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an orchestration failure for reporting and
// control-flow decisions.
type ErrorKind string

const (
	// KindEnvironmentFault indicates the control-plane CLI is missing or
	// unconfigured. Detected once at startup; aborts immediately.
	KindEnvironmentFault ErrorKind = "environment_fault"

	// KindCommandFailure indicates an external command exited non-zero.
	// Surfaced with the captured stderr; never retried.
	KindCommandFailure ErrorKind = "command_failure"

	// KindBuildOutputMissing indicates the frontend build did not produce
	// its output directory.
	KindBuildOutputMissing ErrorKind = "build_output_missing"

	// KindScopeCreation indicates the secret scope could not be created.
	KindScopeCreation ErrorKind = "scope_creation"

	// KindSecretCollectionIncomplete indicates a required secret value
	// resolved to empty during collection.
	KindSecretCollectionIncomplete ErrorKind = "secret_collection_incomplete"

	// KindDeletionTimeout indicates the hard-redeploy poll loop exhausted
	// its timeout before the app disappeared from the listing.
	KindDeletionTimeout ErrorKind = "deletion_timeout"

	// KindParseFailure indicates malformed JSON or tabular output from the
	// control plane. Fatal where the data gates a decision, a warning
	// where it is informational.
	KindParseFailure ErrorKind = "parse_failure"

	// KindPolicyDenied indicates the pre-deploy policy gate rejected the
	// run before any destructive step was taken.
	KindPolicyDenied ErrorKind = "policy_denied"
)

// Error is a classified orchestration error. Every pipeline and
// state-machine step reports failure through one of these; the
// orchestrator is the single point that interprets it as "abort the run,
// run cleanup, exit non-zero".
type Error struct {
	// Kind is the failure classification.
	Kind ErrorKind `json:"kind"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Stage is the orchestration stage that failed, if applicable.
	Stage string `json:"stage,omitempty"`

	// Command is the external argv that failed, if applicable.
	Command string `json:"command,omitempty"`

	// Stderr carries the captured stderr of a failed external command.
	Stderr string `json:"stderr,omitempty"`

	// Err is the underlying error, if any.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if e.Stage != "" {
		msg = fmt.Sprintf("[%s] %s (stage=%s)", e.Kind, e.Message, e.Stage)
	}
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// WithStage adds stage context to an error.
func (e *Error) WithStage(stage string) *Error {
	e.Stage = stage
	return e
}

// WithCommand adds the failing argv to an error.
func (e *Error) WithCommand(command string) *Error {
	e.Command = command
	return e
}

// NewError creates a classified error.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError creates a classified error wrapping an underlying cause.
func WrapError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// NewCommandFailure creates a command-failure error carrying the captured
// stderr of the failed invocation.
func NewCommandFailure(message, command, stderr string) *Error {
	return &Error{
		Kind:    KindCommandFailure,
		Message: message,
		Command: command,
		Stderr:  stderr,
	}
}

// KindOf returns the classification of err, or the empty string when err
// is not a classified deploy error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err is a classified error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// IsEnvironmentFault reports whether err is an environment fault.
func IsEnvironmentFault(err error) bool { return IsKind(err, KindEnvironmentFault) }

// IsCommandFailure reports whether err is an external command failure.
func IsCommandFailure(err error) bool { return IsKind(err, KindCommandFailure) }

// IsDeletionTimeout reports whether err is a deletion-poll timeout.
func IsDeletionTimeout(err error) bool { return IsKind(err, KindDeletionTimeout) }

// IsPolicyDenied reports whether err is a policy-gate denial.
func IsPolicyDenied(err error) bool { return IsKind(err, KindPolicyDenied) }
