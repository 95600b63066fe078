package stages

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/draftlab/anvil/internal/build"
)

var _ build.Stage = (*AppsStage)(nil)

// AppsProfile declares applications to preinstall into or strip from the
// image.
type AppsProfile struct {
	Install []string `yaml:"install"`
	Remove  []string `yaml:"remove"`
}

// AppsStage stages the application manifest consumed by the image's package
// installer on first boot.
type AppsStage struct{}

func (s *AppsStage) Name() string { return build.StageApps }

func (s *AppsStage) Apply(_ context.Context, workingDir string, profile *yaml.Node) error {
	var cfg AppsProfile
	if err := decodeProfile(profile, &cfg); err != nil {
		return err
	}

	var lines []string
	for _, pkg := range cfg.Install {
		if pkg == "" {
			return fmt.Errorf("empty package name in install list")
		}
		lines = append(lines, "install "+pkg)
	}
	for _, pkg := range cfg.Remove {
		if pkg == "" {
			return fmt.Errorf("empty package name in remove list")
		}
		lines = append(lines, "remove "+pkg)
	}
	return writeConf(workingDir, s.Name(), lines)
}
