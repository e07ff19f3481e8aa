package mapping

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads and validates a ControlMapping from the YAML file at path.
func Load(path string) (*ControlMapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m ControlMapping
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse control mapping %s: %w", path, err)
	}

	if m.Version != 1 {
		return nil, errors.New("unsupported control mapping version")
	}

	if err := m.Init(); err != nil {
		return nil, fmt.Errorf("invalid control mapping %s: %w", path, err)
	}
	return &m, nil
}
