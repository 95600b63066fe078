package build

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Canonical stage names. A build configuration may enable any subset.
const (
	StagePrivacy = "privacy"
	StageGaming  = "gaming"
	StageDevenv  = "devenv"
	StageApps    = "apps"
	StageUI      = "ui"
)

// CanonicalOrder is the fixed execution order for enabled stages. Later
// stages assume the system-level stages before them have already run;
// document order in a configuration does not influence it.
var CanonicalOrder = []string{StagePrivacy, StageGaming, StageDevenv, StageApps, StageUI}

// Stage is one independently toggleable customization step applied to an
// attached filesystem tree. The profile payload is owned by the stage; the
// pipeline passes it through opaquely.
type Stage interface {
	Name() string
	Apply(ctx context.Context, workingDir string, profile *yaml.Node) error
}

// StageError wraps a stage failure with the stage's name.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Registry maps canonical stage names to their handlers.
type Registry struct {
	stages map[string]Stage
}

// NewRegistry builds a registry from the provided stages. Stages outside the
// canonical set or registered twice are rejected.
func NewRegistry(stages ...Stage) (*Registry, error) {
	registry := &Registry{stages: make(map[string]Stage, len(stages))}
	for _, stage := range stages {
		name := stage.Name()
		if !knownStage(name) {
			return nil, fmt.Errorf("unknown stage %q", name)
		}
		if _, exists := registry.stages[name]; exists {
			return nil, fmt.Errorf("stage %q registered twice", name)
		}
		registry.stages[name] = stage
	}
	return registry, nil
}

// Lookup returns the handler for a canonical stage name.
func (r *Registry) Lookup(name string) (Stage, bool) {
	stage, ok := r.stages[name]
	return stage, ok
}

func knownStage(name string) bool {
	for _, known := range CanonicalOrder {
		if name == known {
			return true
		}
	}
	return false
}
