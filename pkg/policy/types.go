// Package policy implements the pre-deploy authorization gate. Rules are
// Rego documents evaluated against the run's target before any remote
// mutation; a denial stops the run before anything is deleted or created.
package policy

// Severity indicates how a violation affects the run.
type Severity string

const (
	// SeverityWarning is reported but does not block the run.
	SeverityWarning Severity = "warning"

	// SeverityError blocks the run.
	SeverityError Severity = "error"
)

// Policy is one named Rego rule set. Each policy's package must expose a
// `deny` set of violation objects.
type Policy struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
	Enabled     bool     `json:"enabled"`
	Rego        string   `json:"rego"`
}

// Violation is one denied condition reported by a policy.
type Violation struct {
	Policy   string `json:"policy"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}
