package pipeline

import (
	"os"

	"gopkg.in/yaml.v3"
)

// manifestEnv is one runtime environment entry in the app manifest.
type manifestEnv struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

// manifest is the app.yaml the Apps runtime reads to start the backend.
type manifest struct {
	Command []string      `yaml:"command"`
	Env     []manifestEnv `yaml:"env"`
}

// defaultManifest describes how the runtime launches the packaged backend.
func defaultManifest() manifest {
	return manifest{
		Command: []string{"uvicorn", "app:app", "--host", "0.0.0.0", "--port", "8000"},
		Env: []manifestEnv{
			{Name: "ENV", Value: "production"},
			{Name: "PORT", Value: "8000"},
			{Name: "DEBUG", Value: "False"},
		},
	}
}

// writeManifest writes the app manifest into the bundle.
func writeManifest(path string) error {
	data, err := yaml.Marshal(defaultManifest())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
