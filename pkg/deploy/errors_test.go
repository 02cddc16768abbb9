package deploy

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorMessageIncludesKindAndStage(t *testing.T) {
	err := NewError(KindCommandFailure, "apps create failed").WithStage(StageDeploy)

	msg := err.Error()
	if !strings.Contains(msg, "command_failure") {
		t.Errorf("message %q missing kind", msg)
	}
	if !strings.Contains(msg, "stage=deploy") {
		t.Errorf("message %q missing stage", msg)
	}
}

func TestCommandFailureCarriesStderr(t *testing.T) {
	err := NewCommandFailure("import failed", "databricks workspace import-dir", "RESOURCE_DOES_NOT_EXIST")

	if !strings.Contains(err.Error(), "RESOURCE_DOES_NOT_EXIST") {
		t.Errorf("message %q missing stderr", err.Error())
	}
	if err.Command != "databricks workspace import-dir" {
		t.Errorf("command = %q", err.Command)
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	inner := NewError(KindDeletionTimeout, "timed out")
	wrapped := fmt.Errorf("hard redeploy: %w", inner)

	if !IsDeletionTimeout(wrapped) {
		t.Error("kind lost through fmt.Errorf wrapping")
	}
	if KindOf(wrapped) != KindDeletionTimeout {
		t.Errorf("KindOf = %q", KindOf(wrapped))
	}
}

func TestKindOfUnclassifiedError(t *testing.T) {
	if got := KindOf(errors.New("plain")); got != "" {
		t.Errorf("KindOf(plain) = %q, want empty", got)
	}
	if IsCommandFailure(nil) {
		t.Error("nil must not classify")
	}
}

func TestErrorsIsMatchesOnKind(t *testing.T) {
	a := NewError(KindPolicyDenied, "name too short")
	b := NewError(KindPolicyDenied, "different message")

	if !errors.Is(a, b) {
		t.Error("same-kind errors must match")
	}
	if errors.Is(a, NewError(KindParseFailure, "x")) {
		t.Error("different kinds must not match")
	}
}

func TestWrapErrorExposesCause(t *testing.T) {
	cause := errors.New("no such file")
	err := WrapError(KindEnvironmentFault, "databricks CLI not found", cause)

	if !errors.Is(err, cause) {
		t.Error("cause not reachable via errors.Is")
	}
	if !strings.Contains(err.Error(), "no such file") {
		t.Errorf("message %q missing cause", err.Error())
	}
}
