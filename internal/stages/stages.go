// Package stages holds the customization stage collaborators recognized by
// the build pipeline. Each stage owns its profile schema, decodes it from
// the opaque payload handed over by the orchestrator, and renders its
// configuration into the attached image tree under anvil.d/.
package stages

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/draftlab/anvil/internal/build"
)

// confDir is the directory inside the attached tree that receives stage
// configuration, picked up by the image's first-boot tooling.
const confDir = "anvil.d"

// DefaultRegistry wires all five stages.
func DefaultRegistry() *build.Registry {
	registry, err := build.NewRegistry(
		&PrivacyStage{},
		&GamingStage{},
		&DevenvStage{},
		&AppsStage{},
		&UIStage{},
	)
	if err != nil {
		// The built-in stages always satisfy the registry's constraints.
		panic(err)
	}
	return registry
}

// decodeProfile fills out from the stage's opaque payload. A nil or empty
// payload leaves the defaults untouched.
func decodeProfile(profile *yaml.Node, out any) error {
	if profile == nil || profile.Kind == 0 {
		return nil
	}
	if err := profile.Decode(out); err != nil {
		return fmt.Errorf("decode profile: %w", err)
	}
	return nil
}

// writeConf renders one stage's configuration file into the attached tree.
func writeConf(workingDir, stage string, lines []string) error {
	dir := filepath.Join(workingDir, confDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	var b strings.Builder
	b.WriteString("# written by anvil stage " + stage + "\n")
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}

	path := filepath.Join(dir, stage+".conf")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
