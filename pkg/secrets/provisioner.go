package secrets

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/dbxdeploy/dbxdeploy/pkg/databricks"
	"github.com/dbxdeploy/dbxdeploy/pkg/deploy"
)

// maxDisplayedScopes bounds the scope menu. Selection by literal name
// still matches against the full list.
const maxDisplayedScopes = 20

// ScopeClient is the slice of the control plane the provisioner needs.
type ScopeClient interface {
	ListScopes(ctx context.Context) ([]databricks.ScopeInfo, error)
	CreateScope(ctx context.Context, name string) error
	PutSecret(ctx context.Context, scope, key, value string) error
	WorkspaceHost(ctx context.Context) (string, error)
}

// Provisioner discovers or creates a secret scope and pushes the required
// secrets into it. It implements deploy.Provisioner.
type Provisioner struct {
	client   ScopeClient
	interact Interaction
	log      zerolog.Logger
}

// NewProvisioner wires a provisioner.
func NewProvisioner(client ScopeClient, interact Interaction, logger zerolog.Logger) *Provisioner {
	return &Provisioner{
		client:   client,
		interact: interact,
		log:      logger.With().Str("component", "secrets").Logger(),
	}
}

// Provision resolves the target scope, collects all secret values, and
// pushes them. An empty scopeName triggers interactive selection.
func (p *Provisioner) Provision(ctx context.Context, scopeName string) error {
	if scopeName == "" {
		selected, err := p.resolveScope(ctx)
		if err != nil {
			return err
		}
		scopeName = selected
	}

	specs := DefaultSpecs()
	if err := p.CollectValues(ctx, specs); err != nil {
		return err
	}
	return p.Push(ctx, scopeName, specs)
}

// resolveScope lets the operator pick an existing scope or create a new
// one when none exist or none is chosen.
func (p *Provisioner) resolveScope(ctx context.Context) (string, error) {
	scopes, err := p.client.ListScopes(ctx)
	if err != nil {
		return "", err
	}

	if len(scopes) > 0 {
		name, err := p.SelectScope(scopes)
		if err == nil {
			return name, nil
		}
		if !errors.Is(err, ErrInterrupted) {
			return "", err
		}
		// Interrupt during selection falls through to creating a scope.
	}

	return p.CreateScope(ctx)
}

// SelectScope presents at most the first maxDisplayedScopes scopes and
// accepts either a 1-based index into the displayed subset or a literal
// scope name matched against the full list. Returns ErrInterrupted when
// the operator aborts.
func (p *Provisioner) SelectScope(scopes []databricks.ScopeInfo) (string, error) {
	if len(scopes) == 0 {
		return "", ErrInterrupted
	}

	displayed := scopes
	if len(displayed) > maxDisplayedScopes {
		displayed = displayed[:maxDisplayedScopes]
	}

	p.interact.Say("Found %d scopes:", len(scopes))
	p.interact.Say("%-3s %-30s %-20s %-8s %s", "#", "Scope Name", "Owner", "Secrets", "Created")
	for i, scope := range displayed {
		p.interact.Say("%-3d %-30s %-20s %-8d %s", i+1, scope.Name, scope.Owner, scope.SecretCount, scope.CreatedAt)
	}
	if len(scopes) > len(displayed) {
		p.interact.Say("... and %d more scopes", len(scopes)-len(displayed))
	}

	for {
		choice, err := p.interact.Prompt(
			fmt.Sprintf("Select a scope (1-%d) or enter scope name", len(displayed)))
		if err != nil {
			return "", err
		}

		if idx, nerr := strconv.Atoi(choice); nerr == nil {
			if idx >= 1 && idx <= len(displayed) {
				return displayed[idx-1].Name, nil
			}
			p.interact.Say("Invalid number, enter 1-%d", len(displayed))
			continue
		}

		for _, scope := range scopes {
			if scope.Name == choice {
				return choice, nil
			}
		}
		p.interact.Say("Unknown scope name, try again")
	}
}

// CreateScope prompts for a new scope name and creates it. Empty input is
// rejected before any command runs.
func (p *Provisioner) CreateScope(ctx context.Context) (string, error) {
	name, err := p.interact.Prompt("Enter scope name")
	if err != nil {
		return "", err
	}
	if name == "" {
		return "", deploy.NewError(deploy.KindScopeCreation, "scope name cannot be empty")
	}

	if err := p.client.CreateScope(ctx, name); err != nil {
		return "", err
	}
	return name, nil
}

// CollectValues fills every spec's value: the workspace URL comes from the
// CLI configuration when available, the session secret is generated, and
// everything else is prompted with echo disabled. Any empty value aborts
// collection before a single secret is pushed.
func (p *Provisioner) CollectValues(ctx context.Context, specs []SecretSpec) error {
	p.log.Info().Msg("Collecting secret values")

	for i := range specs {
		spec := &specs[i]
		var err error

		switch spec.Key {
		case KeyDatabricksURL:
			spec.Value, err = p.client.WorkspaceHost(ctx)
			if err != nil || spec.Value == "" {
				spec.Value, err = p.interact.Prompt("Enter " + spec.Description)
			}
		case KeySessionSecret:
			spec.Value, err = generateSessionSecret()
			if err == nil {
				p.interact.Say("Generated session secret")
			}
		default:
			spec.Value, err = p.interact.PromptSecret("Enter " + spec.Description)
		}
		if err != nil {
			return err
		}

		if spec.Value == "" {
			return deploy.NewError(deploy.KindSecretCollectionIncomplete,
				fmt.Sprintf("%s cannot be empty", spec.Description))
		}
	}
	return nil
}

// Push writes every spec into the scope, aborting on the first failure.
// No partial rollback; already-pushed secrets stay in place.
func (p *Provisioner) Push(ctx context.Context, scopeName string, specs []SecretSpec) error {
	p.log.Info().Str("scope", scopeName).Msg("Adding secrets to scope")

	for _, spec := range specs {
		p.log.Info().Str("key", spec.Key).Msg("Adding secret")
		if err := p.client.PutSecret(ctx, scopeName, spec.Key, spec.Value); err != nil {
			return err
		}
	}

	p.log.Info().Str("scope", scopeName).Int("count", len(specs)).Msg("All secrets added")
	return nil
}
