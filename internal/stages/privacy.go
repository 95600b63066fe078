package stages

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/draftlab/anvil/internal/build"
)

var _ build.Stage = (*PrivacyStage)(nil)

// PrivacyProfile controls telemetry and background data collection inside
// the image.
type PrivacyProfile struct {
	Telemetry       string   `yaml:"telemetry"` // off, basic, full
	DisableServices []string `yaml:"disable_services"`
	ClearVendorApps bool     `yaml:"clear_vendor_apps"`
}

// PrivacyStage hardens the image's data collection defaults.
type PrivacyStage struct{}

func (s *PrivacyStage) Name() string { return build.StagePrivacy }

func (s *PrivacyStage) Apply(_ context.Context, workingDir string, profile *yaml.Node) error {
	cfg := PrivacyProfile{Telemetry: "off"}
	if err := decodeProfile(profile, &cfg); err != nil {
		return err
	}

	switch cfg.Telemetry {
	case "off", "basic", "full":
	default:
		return fmt.Errorf("unknown telemetry level %q", cfg.Telemetry)
	}

	lines := []string{"telemetry=" + cfg.Telemetry}
	for _, service := range cfg.DisableServices {
		if service == "" {
			return fmt.Errorf("empty service name in disable_services")
		}
		lines = append(lines, "disable_service="+service)
	}
	if cfg.ClearVendorApps {
		lines = append(lines, "clear_vendor_apps=true")
	}

	return writeConf(workingDir, s.Name(), lines)
}
