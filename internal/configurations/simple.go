// Package configurations wires the default composition of drivers, mount
// manager, stages, and orchestrator used by the CLI. Callers needing a
// different assembly compose the internal packages directly.
package configurations

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/draftlab/anvil/internal/build"
	"github.com/draftlab/anvil/internal/image"
	"github.com/draftlab/anvil/internal/image/drivers/iso"
	"github.com/draftlab/anvil/internal/image/drivers/wim"
	"github.com/draftlab/anvil/internal/logging"
	"github.com/draftlab/anvil/internal/paths"
	"github.com/draftlab/anvil/internal/stages"
)

// NewManager assembles a mount manager for the named driver. An empty driver
// name selects by the image path's extension (".iso" → iso, otherwise wim).
func NewManager(driverName, imagePath, mountRoot string, logger *slog.Logger) (*image.Manager, error) {
	logger = logging.Ensure(logger)

	driver, err := selectDriver(driverName, imagePath, logger)
	if err != nil {
		return nil, err
	}
	if mountRoot == "" {
		mountRoot = paths.MountRoot()
	}

	return &image.Manager{
		Driver:    driver,
		Store:     image.NewSessionStore(),
		Logger:    logger.With("component", "mount-manager"),
		MountRoot: mountRoot,
	}, nil
}

// Attach mounts an image and returns the session.
func Attach(ctx context.Context, imagePath string, index int, workingDir, driverName string, logger *slog.Logger) (*image.MountSession, error) {
	handle, err := image.NewHandle(imagePath, index)
	if err != nil {
		return nil, err
	}
	manager, err := NewManager(driverName, imagePath, "", logger)
	if err != nil {
		return nil, err
	}
	return manager.Attach(ctx, handle, workingDir)
}

// Detach ends the attach at workingDir, committing when save is true. The
// session handle is reconstructed from the directory, so detach works from a
// different process than the one that attached.
func Detach(ctx context.Context, workingDir string, save bool, driverName string, logger *slog.Logger) error {
	if strings.TrimSpace(workingDir) == "" {
		return fmt.Errorf("working directory is required")
	}
	manager, err := NewManager(driverName, "", "", logger)
	if err != nil {
		return err
	}
	session := &image.MountSession{
		WorkingDir: filepath.Clean(workingDir),
		State:      image.SessionAttached,
	}
	return manager.Detach(ctx, session, save)
}

// Info reads image metadata without attaching.
func Info(ctx context.Context, imagePath, driverName string, logger *slog.Logger) (*image.ImageMetadata, error) {
	handle, err := image.NewHandle(imagePath, 1)
	if err != nil {
		return nil, err
	}
	manager, err := NewManager(driverName, imagePath, "", logger)
	if err != nil {
		return nil, err
	}
	return manager.Info(ctx, handle)
}

// Apply runs a full build of the image under the configuration file,
// streaming build output to out and progress/errors to the logger. It
// returns the terminal run; err is non-nil whenever the run failed.
func Apply(ctx context.Context, imagePath string, index int, configPath, driverName, mountRoot string, logger *slog.Logger, out io.Writer) (*build.Run, error) {
	logger = logging.Ensure(logger)

	handle, err := image.NewHandle(imagePath, index)
	if err != nil {
		return nil, err
	}
	cfg, err := build.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	manager, err := NewManager(driverName, imagePath, mountRoot, logger)
	if err != nil {
		return nil, err
	}

	orchestrator := &build.Orchestrator{
		Manager:  manager,
		Registry: stages.DefaultRegistry(),
		Logger:   logger.With("component", "orchestrator"),
	}

	events := build.NewEvents()
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		for line := range events.Output() {
			fmt.Fprintln(out, line)
		}
	}()
	go func() {
		defer wg.Done()
		for line := range events.Errors() {
			logger.Error("build error", "error", line)
		}
	}()
	go func() {
		defer wg.Done()
		for update := range events.Progress() {
			logger.Info("build progress",
				"stage", update.Stage,
				"percent", update.Percent,
				"completed", update.Completed,
				"total", update.Total,
			)
		}
	}()

	run, err := orchestrator.Run(ctx, handle, cfg, events)
	<-events.Done()
	wg.Wait()
	return run, err
}

// ListMounts returns working directories under the mount root that still
// exist on disk. The in-memory session store does not survive the process
// that attached, so surviving directories are the observable trace of
// attaches that were never detached.
func ListMounts(mountRoot string) ([]string, error) {
	if mountRoot == "" {
		mountRoot = paths.MountRoot()
	}
	entries, err := os.ReadDir(mountRoot)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read mount root: %w", err)
	}

	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() && strings.HasPrefix(entry.Name(), "anvil-") {
			dirs = append(dirs, filepath.Join(mountRoot, entry.Name()))
		}
	}
	return dirs, nil
}

func selectDriver(name, imagePath string, logger *slog.Logger) (image.Driver, error) {
	if name == "" {
		if strings.EqualFold(filepath.Ext(imagePath), ".iso") {
			name = "iso"
		} else {
			name = "wim"
		}
	}

	switch name {
	case "wim":
		return &wim.Driver{Logger: logger.With("driver", "wim")}, nil
	case "iso":
		return &iso.Driver{Logger: logger.With("driver", "iso")}, nil
	default:
		return nil, fmt.Errorf("unknown image driver %q (supported: wim, iso)", name)
	}
}
