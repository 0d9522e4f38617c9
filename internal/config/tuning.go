package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/futonlab/miteguard/internal/window"
)

// LoadTuning reads window scoring weights from an optional YAML file.
// An empty path returns the default tuning; a missing or malformed file is
// an error so a typo never silently reverts to defaults.
func LoadTuning(path string) (window.Tuning, error) {
	if path == "" {
		return window.DefaultTuning(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return window.Tuning{}, fmt.Errorf("read tuning file: %w", err)
	}

	tuning := window.DefaultTuning()
	if err := yaml.Unmarshal(data, &tuning); err != nil {
		return window.Tuning{}, fmt.Errorf("parse tuning file: %w", err)
	}
	return tuning, nil
}
