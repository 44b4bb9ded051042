package fakebackend

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadOptions overlays the YAML script at path on DefaultOptions.
func LoadOptions(path string) (Options, error) {
	opts := DefaultOptions()
	if path == "" {
		return opts, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("failed to read script: %w", err)
	}
	if err := yaml.Unmarshal(b, &opts); err != nil {
		return opts, fmt.Errorf("failed to parse script %s: %w", path, err)
	}
	return opts, nil
}
