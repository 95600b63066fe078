package stages

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/draftlab/anvil/internal/build"
)

var _ build.Stage = (*UIStage)(nil)

// UIProfile selects the desktop appearance shipped with the image.
type UIProfile struct {
	Theme     string `yaml:"theme"` // light, dark
	Wallpaper string `yaml:"wallpaper"`
	Taskbar   string `yaml:"taskbar"` // default, compact
}

// UIStage applies desktop appearance defaults. It runs last: earlier stages
// may remove the vendor apps it would otherwise configure.
type UIStage struct{}

func (s *UIStage) Name() string { return build.StageUI }

func (s *UIStage) Apply(_ context.Context, workingDir string, profile *yaml.Node) error {
	cfg := UIProfile{Theme: "light", Taskbar: "default"}
	if err := decodeProfile(profile, &cfg); err != nil {
		return err
	}

	switch cfg.Theme {
	case "light", "dark":
	default:
		return fmt.Errorf("unknown theme %q", cfg.Theme)
	}
	switch cfg.Taskbar {
	case "default", "compact":
	default:
		return fmt.Errorf("unknown taskbar layout %q", cfg.Taskbar)
	}

	lines := []string{"theme=" + cfg.Theme, "taskbar=" + cfg.Taskbar}
	if cfg.Wallpaper != "" {
		lines = append(lines, "wallpaper="+cfg.Wallpaper)
	}
	return writeConf(workingDir, s.Name(), lines)
}
