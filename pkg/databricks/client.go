// Package databricks wraps the external Databricks CLI behind typed
// operations. Every call shells out through an executor.Runner, so the
// whole package is scriptable in tests without a real workspace.
package databricks

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dbxdeploy/dbxdeploy/pkg/deploy"
	"github.com/dbxdeploy/dbxdeploy/pkg/executor"
)

// DefaultBin is the control-plane CLI binary name.
const DefaultBin = "databricks"

// ScopeInfo describes one secret scope from the scope listing, including
// the secret count fetched by a secondary per-scope query.
type ScopeInfo struct {
	Name        string `json:"name"`
	Owner       string `json:"owner"`
	CreatedAt   string `json:"created_at"`
	SecretCount int    `json:"secret_count"`
}

// Client invokes the Databricks CLI. It implements deploy.ControlPlane
// and deploy.Importer, and backs the secret provisioner.
type Client struct {
	runner executor.Runner
	bin    string
	log    zerolog.Logger
}

// NewClient creates a CLI client using the default binary name.
func NewClient(runner executor.Runner, logger zerolog.Logger) *Client {
	return &Client{
		runner: runner,
		bin:    DefaultBin,
		log:    logger.With().Str("component", "databricks").Logger(),
	}
}

// WithBin overrides the CLI binary name.
func (c *Client) WithBin(bin string) *Client {
	if bin != "" {
		c.bin = bin
	}
	return c
}

// run executes a CLI subcommand with captured output.
func (c *Client) run(ctx context.Context, args ...string) executor.CommandResult {
	argv := append([]string{c.bin}, args...)
	return c.runner.Run(ctx, argv, false)
}

// runStreamed executes a CLI subcommand with live output, for long-running
// commands whose progress the operator should see.
func (c *Client) runStreamed(ctx context.Context, args ...string) executor.CommandResult {
	argv := append([]string{c.bin}, args...)
	return c.runner.Run(ctx, argv, true)
}

func (c *Client) commandFailure(message string, args []string, result executor.CommandResult) error {
	argv := append([]string{c.bin}, args...)
	return deploy.NewCommandFailure(message, executor.Quote(argv), strings.TrimSpace(result.Stderr))
}

// CheckCLI verifies the CLI is installed and configured. Both probes must
// pass before any deployment step runs.
func (c *Client) CheckCLI(ctx context.Context) error {
	c.log.Info().Msg("Checking Databricks CLI")

	if result := c.run(ctx, "--version"); !result.Success() {
		return deploy.NewError(deploy.KindEnvironmentFault,
			"databricks CLI not found, install it with: pip install databricks-cli")
	}

	if result := c.run(ctx, "workspace", "list", "/"); !result.Success() {
		return deploy.NewError(deploy.KindEnvironmentFault,
			"databricks CLI not configured, run: databricks configure --token")
	}

	c.log.Info().Msg("Databricks CLI is ready")
	return nil
}

// WorkspaceHost returns the workspace URL from the CLI configuration.
func (c *Client) WorkspaceHost(ctx context.Context) (string, error) {
	args := []string{"config", "get", "host"}
	result := c.run(ctx, args...)
	if !result.Success() {
		return "", c.commandFailure("could not read workspace host", args, result)
	}
	return strings.TrimSpace(result.Stdout), nil
}

// currentUser mirrors the JSON shape of `current-user me`. Older CLI
// versions emit user_name instead of userName.
type currentUser struct {
	UserName    string `json:"userName"`
	UserNameAlt string `json:"user_name"`
}

// CurrentUser returns the authenticated user's email, used to derive the
// default workspace folder for the app.
func (c *Client) CurrentUser(ctx context.Context) (string, error) {
	args := []string{"current-user", "me", "--output", "json"}
	result := c.run(ctx, args...)
	if !result.Success() {
		return "", c.commandFailure("could not look up current user", args, result)
	}

	var user currentUser
	if err := json.Unmarshal([]byte(result.Stdout), &user); err != nil {
		return "", deploy.WrapError(deploy.KindParseFailure, "malformed current-user response", err)
	}

	email := user.UserName
	if email == "" {
		email = user.UserNameAlt
	}
	if email == "" {
		return "", deploy.NewError(deploy.KindParseFailure, "current-user response carries no user name")
	}
	return email, nil
}

// ListScopes lists secret scopes with per-scope secret counts. The count
// needs one extra listing call per scope; scope counts are small and this
// runs once per interactive session, so the extra round trips are fine.
func (c *Client) ListScopes(ctx context.Context) ([]ScopeInfo, error) {
	c.log.Info().Msg("Fetching available scopes")

	args := []string{"secrets", "list-scopes"}
	result := c.run(ctx, args...)
	if !result.Success() {
		return nil, c.commandFailure("could not list secret scopes", args, result)
	}

	var scopes []ScopeInfo
	for _, fields := range parseTable(result.Stdout) {
		if len(fields) < 3 {
			continue
		}
		scope := ScopeInfo{
			Name:      fields[0],
			Owner:     fields[1],
			CreatedAt: fields[2],
		}
		scope.SecretCount = c.countSecrets(ctx, scope.Name)
		scopes = append(scopes, scope)
	}
	return scopes, nil
}

// countSecrets returns the secret count of a scope, or zero when the
// listing fails. A failed count never fails the scope listing.
func (c *Client) countSecrets(ctx context.Context, scope string) int {
	result := c.run(ctx, "secrets", "list", "--scope", scope)
	if !result.Success() {
		return 0
	}
	return len(parseTable(result.Stdout))
}

// CreateScope creates a new secret scope.
func (c *Client) CreateScope(ctx context.Context, name string) error {
	args := []string{"secrets", "create-scope", "--scope", name}
	result := c.run(ctx, args...)
	if !result.Success() {
		return (&deploy.Error{
			Kind:    deploy.KindScopeCreation,
			Message: fmt.Sprintf("could not create scope %q", name),
			Stderr:  strings.TrimSpace(result.Stderr),
		}).WithCommand(executor.Quote(append([]string{c.bin}, args...)))
	}
	c.log.Info().Str("scope", name).Msg("Created scope")
	return nil
}

// PutSecret writes one secret into a scope. The value never appears in
// logs or error messages.
func (c *Client) PutSecret(ctx context.Context, scope, key, value string) error {
	result := c.run(ctx, "secrets", "put",
		"--scope", scope,
		"--key", key,
		"--string-value", value)
	if !result.Success() {
		return deploy.NewCommandFailure(
			fmt.Sprintf("could not add secret %q to scope %q", key, scope),
			fmt.Sprintf("%s secrets put --scope %s --key %s --string-value ***", c.bin, scope, key),
			strings.TrimSpace(result.Stderr))
	}
	return nil
}

// ImportDir uploads a local directory to a workspace path, overwriting
// existing content. Output is streamed; the upload can take a while.
func (c *Client) ImportDir(ctx context.Context, localPath, remotePath string) error {
	c.log.Info().Str("local", localPath).Str("remote", remotePath).Msg("Importing to workspace")

	args := []string{"workspace", "import-dir", localPath, remotePath, "--overwrite"}
	result := c.runStreamed(ctx, args...)
	if !result.Success() {
		return c.commandFailure("workspace import failed", args, result)
	}
	return nil
}

// AppExists probes the app record via the exit code of `apps get`.
func (c *Client) AppExists(ctx context.Context, name string) (bool, error) {
	result := c.run(ctx, "apps", "get", name)
	return result.Success(), nil
}

// CreateApp creates the application record.
func (c *Client) CreateApp(ctx context.Context, name, description string) error {
	c.log.Info().Str("app", name).Msg("Creating app")

	args := []string{"apps", "create", name, "--description", description}
	result := c.runStreamed(ctx, args...)
	if !result.Success() {
		return c.commandFailure(fmt.Sprintf("could not create app %q", name), args, result)
	}
	return nil
}

// DeployApp triggers a deployment from an imported workspace path.
func (c *Client) DeployApp(ctx context.Context, name, sourceCodePath string) error {
	args := []string{"apps", "deploy", name, "--source-code-path", sourceCodePath}
	result := c.runStreamed(ctx, args...)
	if !result.Success() {
		return c.commandFailure(fmt.Sprintf("could not deploy app %q", name), args, result)
	}
	return nil
}

// DeleteApp issues an asynchronous delete of the app record. Completion
// is observed by polling the listing, not by this call returning.
func (c *Client) DeleteApp(ctx context.Context, name string) error {
	args := []string{"apps", "delete", name}
	result := c.run(ctx, args...)
	if !result.Success() {
		return c.commandFailure(fmt.Sprintf("could not delete app %q", name), args, result)
	}
	c.log.Info().Str("app", name).Msg("Delete issued")
	return nil
}

// ListAppsText returns the raw stdout of `apps list`. The deletion poll
// loop does a substring membership test against this text.
func (c *Client) ListAppsText(ctx context.Context) (string, error) {
	args := []string{"apps", "list"}
	result := c.run(ctx, args...)
	if !result.Success() {
		return "", c.commandFailure("could not list apps", args, result)
	}
	return result.Stdout, nil
}

// appGetResponse mirrors the JSON shape of `apps get`.
type appGetResponse struct {
	Name      string `json:"name"`
	AppStatus struct {
		State string `json:"state"`
	} `json:"app_status"`
	CreateTime string `json:"create_time"`
	UpdateTime string `json:"update_time"`
	URL        string `json:"url"`
}

// GetAppInfo fetches the informational projection of the app record.
func (c *Client) GetAppInfo(ctx context.Context, name string) (*deploy.AppInfo, error) {
	args := []string{"apps", "get", name}
	result := c.run(ctx, args...)
	if !result.Success() {
		return nil, c.commandFailure(fmt.Sprintf("could not get app %q", name), args, result)
	}

	var resp appGetResponse
	if err := json.Unmarshal([]byte(result.Stdout), &resp); err != nil {
		return nil, deploy.WrapError(deploy.KindParseFailure, "malformed apps get response", err)
	}

	return &deploy.AppInfo{
		Name:       resp.Name,
		State:      resp.AppStatus.State,
		CreateTime: resp.CreateTime,
		UpdateTime: resp.UpdateTime,
		URL:        resp.URL,
	}, nil
}

// parseTable splits tabular CLI output into whitespace-separated rows,
// skipping the one-line header and blank lines.
func parseTable(out string) [][]string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) <= 1 {
		return nil
	}

	var rows [][]string
	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		rows = append(rows, strings.Fields(line))
	}
	return rows
}
