package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LoadFromPaths reads .rego files into policies. A directory path loads
// every .rego file directly inside it. Loaded policies carry error
// severity and are enabled.
func LoadFromPaths(paths []string) ([]Policy, error) {
	var policies []Policy
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("policy path %s: %w", path, err)
		}

		if !info.IsDir() {
			policy, err := loadFile(path)
			if err != nil {
				return nil, err
			}
			policies = append(policies, policy)
			continue
		}

		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("policy dir %s: %w", path, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".rego") {
				continue
			}
			policy, err := loadFile(filepath.Join(path, entry.Name()))
			if err != nil {
				return nil, err
			}
			policies = append(policies, policy)
		}
	}
	return policies, nil
}

func loadFile(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("reading policy %s: %w", path, err)
	}
	name := strings.TrimSuffix(filepath.Base(path), ".rego")
	return Policy{
		Name:        name,
		Description: "loaded from " + path,
		Severity:    SeverityError,
		Enabled:     true,
		Rego:        string(data),
	}, nil
}
