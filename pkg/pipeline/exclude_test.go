package pipeline

import "testing"

func TestExclusionRuleset(t *testing.T) {
	ruleset, err := NewExclusionRuleset(DefaultExcludePatterns)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	excluded := []string{
		"venv", "venv.bak", ".venv", "env",
		"__pycache__", "module.pyc", "module.pyo",
		".pytest_cache", "test_api.py", "tests",
		"test_run.log", "server.log",
		"data.json", "cookies.txt",
		"Makefile", "build", "dist", "pkg.egg-info",
		"mlruns", "databricks_backup",
		"db.backup", "node_modules",
		".git", ".gitignore", ".DS_Store", "Thumbs.db",
		".anything-dotted",
	}
	for _, name := range excluded {
		if !ruleset.Excluded(name) {
			t.Errorf("expected %q to be excluded", name)
		}
	}

	included := []string{
		"app.py", "requirements.txt", "utils",
		"static", "templates", "config.yaml",
		"testdata", "environment.py",
	}
	for _, name := range included {
		if ruleset.Excluded(name) {
			t.Errorf("expected %q to be included", name)
		}
	}
}

func TestExclusionRulesetBadPattern(t *testing.T) {
	if _, err := NewExclusionRuleset([]string{"[unclosed"}); err == nil {
		t.Fatal("expected compile error for malformed pattern")
	}
}
