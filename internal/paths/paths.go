package paths

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const (
	// Name used for directory and file naming.
	appName = "anvil"

	// Default permission mode for directories.
	DefaultDirMode os.FileMode = 0o755

	// Default permission mode for files.
	DefaultFileMode os.FileMode = 0o644
)

// MountRoot returns the directory under which working directories for attach
// sessions are allocated when the caller does not supply one.
//
//	Linux: ~/.local/state/anvil/mounts
func MountRoot() string {
	return filepath.Join(xdg.StateHome, appName, "mounts")
}

// ConfigDir returns the directory holding build configuration documents.
//
//	Linux: ~/.config/anvil
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, appName)
}

// DefaultBuildConfig returns the path checked for a build configuration when
// none is given on the command line.
func DefaultBuildConfig() string {
	return filepath.Join(ConfigDir(), "build.yaml")
}
