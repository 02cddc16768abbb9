package pipeline

import (
	"fmt"

	"github.com/gobwas/glob"
)

// DefaultExcludePatterns is the packaging exclusion list: virtual
// environments, caches, tests, logs, build artifacts, and dev files that
// must not land in the deployed bundle.
var DefaultExcludePatterns = []string{
	"venv", "venv.*", ".venv", "env", ".env",
	"__pycache__", "*.pyc", "*.pyo", "*.pyd",
	".pytest_cache", "test_*.py", "tests",
	"test_*.log", "test_*.txt", "*.log",
	"data.json", "cookies.txt",
	".env_template", "Makefile",
	"build", "dist", "*.egg-info",
	"mlruns", "databricks_backup",
	"*.backup", "*.dbd_secrets",
	"node_modules", ".git", ".gitignore",
	".DS_Store", "Thumbs.db",
}

// ExclusionRuleset decides which top-level entries stay out of the
// packaged bundle. Matching applies to entry names only, never paths.
type ExclusionRuleset struct {
	patterns []glob.Glob
}

// NewExclusionRuleset compiles the glob patterns.
func NewExclusionRuleset(patterns []string) (*ExclusionRuleset, error) {
	compiled := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad exclude pattern %q: %w", pattern, err)
		}
		compiled = append(compiled, g)
	}
	return &ExclusionRuleset{patterns: compiled}, nil
}

// Excluded reports whether a directory entry is excluded: any pattern
// match, or a name starting with a dot.
func (r *ExclusionRuleset) Excluded(name string) bool {
	if len(name) > 0 && name[0] == '.' {
		return true
	}
	for _, pattern := range r.patterns {
		if pattern.Match(name) {
			return true
		}
	}
	return false
}
