package stages

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/draftlab/anvil/internal/build"
)

var _ build.Stage = (*DevenvStage)(nil)

// DevenvProfile provisions developer tooling inside the image.
type DevenvProfile struct {
	Shell      string   `yaml:"shell"`
	Toolchains []string `yaml:"toolchains"`
}

// DevenvStage prepares the image for development workloads.
type DevenvStage struct{}

func (s *DevenvStage) Name() string { return build.StageDevenv }

func (s *DevenvStage) Apply(_ context.Context, workingDir string, profile *yaml.Node) error {
	var cfg DevenvProfile
	if err := decodeProfile(profile, &cfg); err != nil {
		return err
	}

	var lines []string
	if cfg.Shell != "" {
		lines = append(lines, "shell="+cfg.Shell)
	}
	for _, toolchain := range cfg.Toolchains {
		if toolchain == "" {
			return fmt.Errorf("empty toolchain name")
		}
		lines = append(lines, "toolchain="+toolchain)
	}
	return writeConf(workingDir, s.Name(), lines)
}
