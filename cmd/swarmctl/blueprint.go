package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"go.yaml.in/yaml/v3"

	"github.com/swarmctl/swarm/pkg/models"
)

// loadBlueprint reads a Blueprint from a YAML or JSON file (YAML is a
// superset, so yaml.v3 handles both). A missing ID is filled in with a
// fresh uuid so a hand-written blueprint file doesn't need one.
func loadBlueprint(path string) (*models.Blueprint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read blueprint: %w", err)
	}

	var bp models.Blueprint
	if err := yaml.Unmarshal(data, &bp); err != nil {
		return nil, fmt.Errorf("parse blueprint: %w", err)
	}
	if bp.ID == "" {
		bp.ID = uuid.NewString()
	}
	if bp.ProjectPath == "" {
		return nil, fmt.Errorf("blueprint %s: projectPath is required", path)
	}
	return &bp, nil
}
