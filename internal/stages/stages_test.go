package stages

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/draftlab/anvil/internal/build"
)

func profileNode(t *testing.T, doc string) *yaml.Node {
	t.Helper()
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(doc), &node); err != nil {
		t.Fatalf("unmarshal profile: %v", err)
	}
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		return node.Content[0]
	}
	return &node
}

func readConf(t *testing.T, workingDir, stage string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(workingDir, "anvil.d", stage+".conf"))
	if err != nil {
		t.Fatalf("read %s conf: %v", stage, err)
	}
	return string(data)
}

func TestDefaultRegistryCoversCanonicalOrder(t *testing.T) {
	registry := DefaultRegistry()
	for _, name := range build.CanonicalOrder {
		stage, ok := registry.Lookup(name)
		if !ok {
			t.Fatalf("stage %s not registered", name)
		}
		if stage.Name() != name {
			t.Fatalf("stage %s reports name %s", name, stage.Name())
		}
	}
}

func TestPrivacyStageWritesConf(t *testing.T) {
	dir := t.TempDir()
	stage := &PrivacyStage{}

	profile := profileNode(t, `
telemetry: basic
disable_services: [reporting, tips]
clear_vendor_apps: true
`)
	if err := stage.Apply(context.Background(), dir, profile); err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	conf := readConf(t, dir, "privacy")
	for _, want := range []string{"telemetry=basic", "disable_service=reporting", "disable_service=tips", "clear_vendor_apps=true"} {
		if !strings.Contains(conf, want) {
			t.Fatalf("conf missing %q:\n%s", want, conf)
		}
	}
}

func TestPrivacyStageDefaultsToTelemetryOff(t *testing.T) {
	dir := t.TempDir()
	if err := (&PrivacyStage{}).Apply(context.Background(), dir, nil); err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if conf := readConf(t, dir, "privacy"); !strings.Contains(conf, "telemetry=off") {
		t.Fatalf("default telemetry not off:\n%s", conf)
	}
}

func TestPrivacyStageRejectsUnknownTelemetry(t *testing.T) {
	err := (&PrivacyStage{}).Apply(context.Background(), t.TempDir(), profileNode(t, `telemetry: sometimes`))
	if err == nil || !strings.Contains(err.Error(), "sometimes") {
		t.Fatalf("expected telemetry validation error, got %v", err)
	}
}

func TestGamingStageWritesConf(t *testing.T) {
	dir := t.TempDir()
	profile := profileNode(t, `
power_profile: high_performance
game_mode: true
disable_dvr: true
`)
	if err := (&GamingStage{}).Apply(context.Background(), dir, profile); err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	conf := readConf(t, dir, "gaming")
	for _, want := range []string{"power_profile=high_performance", "game_mode=true", "disable_dvr=true"} {
		if !strings.Contains(conf, want) {
			t.Fatalf("conf missing %q:\n%s", want, conf)
		}
	}
}

func TestDevenvStageRejectsEmptyToolchain(t *testing.T) {
	err := (&DevenvStage{}).Apply(context.Background(), t.TempDir(), profileNode(t, `toolchains: ["go", ""]`))
	if err == nil {
		t.Fatal("expected empty toolchain to be rejected")
	}
}

func TestAppsStageWritesManifest(t *testing.T) {
	dir := t.TempDir()
	profile := profileNode(t, `
install: [editor, browser]
remove: [trialware]
`)
	if err := (&AppsStage{}).Apply(context.Background(), dir, profile); err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	conf := readConf(t, dir, "apps")
	for _, want := range []string{"install editor", "install browser", "remove trialware"} {
		if !strings.Contains(conf, want) {
			t.Fatalf("manifest missing %q:\n%s", want, conf)
		}
	}
}

func TestAppsStageRejectsEmptyPackage(t *testing.T) {
	err := (&AppsStage{}).Apply(context.Background(), t.TempDir(), profileNode(t, `install: [""]`))
	if err == nil {
		t.Fatal("expected empty package name to be rejected")
	}
}

func TestUIStageValidatesTheme(t *testing.T) {
	dir := t.TempDir()

	if err := (&UIStage{}).Apply(context.Background(), dir, profileNode(t, `theme: dark`)); err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if conf := readConf(t, dir, "ui"); !strings.Contains(conf, "theme=dark") {
		t.Fatalf("theme not written:\n%s", conf)
	}

	if err := (&UIStage{}).Apply(context.Background(), dir, profileNode(t, `theme: neon`)); err == nil {
		t.Fatal("expected unknown theme to be rejected")
	}
}
