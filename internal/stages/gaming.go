package stages

import (
	"context"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/draftlab/anvil/internal/build"
)

var _ build.Stage = (*GamingStage)(nil)

// GamingProfile tunes the image for game workloads.
type GamingProfile struct {
	PowerProfile string `yaml:"power_profile"` // balanced, high_performance
	GameMode     bool   `yaml:"game_mode"`
	DisableDVR   bool   `yaml:"disable_dvr"`
}

// GamingStage applies performance tuning for gaming deployments.
type GamingStage struct{}

func (s *GamingStage) Name() string { return build.StageGaming }

func (s *GamingStage) Apply(_ context.Context, workingDir string, profile *yaml.Node) error {
	cfg := GamingProfile{PowerProfile: "balanced"}
	if err := decodeProfile(profile, &cfg); err != nil {
		return err
	}

	switch cfg.PowerProfile {
	case "balanced", "high_performance":
	default:
		return fmt.Errorf("unknown power profile %q", cfg.PowerProfile)
	}

	lines := []string{
		"power_profile=" + cfg.PowerProfile,
		"game_mode=" + strconv.FormatBool(cfg.GameMode),
		"disable_dvr=" + strconv.FormatBool(cfg.DisableDVR),
	}
	return writeConf(workingDir, s.Name(), lines)
}
