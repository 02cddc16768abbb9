// Package secrets provisions the application's secret scope: it discovers
// or creates a named scope, collects the required secret values, and
// pushes them through the control-plane CLI. Secret values never reach
// logs or error messages.
package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// SecretSpec describes one required secret: its scope key, its value once
// collected, and the human description used in prompts.
type SecretSpec struct {
	Key         string
	Value       string
	Description string
}

// sessionSecretBytes is the entropy of the generated session secret.
const sessionSecretBytes = 32

// Well-known secret keys. The deployed application reads exactly this set
// from its scope.
const (
	KeyDatabricksToken = "databricks-token"
	KeyDatabricksURL   = "databricks-api-url"
	KeyOpenAIAPIKey    = "openai-api-key"
	KeyAnthropicAPIKey = "anthropic-api-key"
	KeySessionSecret   = "session-secret"
)

// DefaultSpecs returns the required secret set with empty values. The
// provisioner fills values during collection.
func DefaultSpecs() []SecretSpec {
	return []SecretSpec{
		{Key: KeyDatabricksToken, Description: "Databricks personal access token"},
		{Key: KeyDatabricksURL, Description: "Databricks workspace URL"},
		{Key: KeyOpenAIAPIKey, Description: "OpenAI API key"},
		{Key: KeyAnthropicAPIKey, Description: "Anthropic API key"},
		{Key: KeySessionSecret, Description: "Session secret for the backend"},
	}
}

// generateSessionSecret produces a URL-safe random session secret.
func generateSessionSecret() (string, error) {
	buf := make([]byte, sessionSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating session secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
