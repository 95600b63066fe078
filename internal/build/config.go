package build

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the immutable input to one build run: which stages are enabled
// and, per enabled stage, its opaque profile payload.
//
// The document format:
//
//	stages:
//	  privacy: { ... }   # presence enables the stage; the body is its profile
//	  gaming: { ... }
//
// Absent sections are skipped silently; unknown section names are a parse
// error so a typo fails before anything is mounted.
type Config struct {
	profiles map[string]*yaml.Node
}

type configDocument struct {
	Stages map[string]yaml.Node `yaml:"stages"`
}

// ParseConfig decodes a build configuration document.
func ParseConfig(data []byte) (*Config, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	var doc configDocument
	if err := decoder.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return &Config{profiles: map[string]*yaml.Node{}}, nil
		}
		return nil, fmt.Errorf("parse build config: %w", err)
	}

	profiles := make(map[string]*yaml.Node, len(doc.Stages))
	for name, node := range doc.Stages {
		if !knownStage(name) {
			return nil, fmt.Errorf("unknown stage %q in build config", name)
		}
		clone := node
		profiles[name] = &clone
	}
	return &Config{profiles: profiles}, nil
}

// LoadConfig reads and parses a build configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read build config: %w", err)
	}
	return ParseConfig(data)
}

// Enabled returns the enabled stage names in canonical execution order.
func (c *Config) Enabled() []string {
	var enabled []string
	for _, name := range CanonicalOrder {
		if _, ok := c.profiles[name]; ok {
			enabled = append(enabled, name)
		}
	}
	return enabled
}

// Profile returns the opaque payload for an enabled stage, or nil.
func (c *Config) Profile(name string) *yaml.Node {
	return c.profiles[name]
}
