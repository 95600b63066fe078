// Package iso attaches ISO 9660 containers by extracting the volume into the
// working directory. The container itself is read-only, so a detach that
// requests commit fails; customization of an ISO-based image therefore only
// makes sense for inspection or for pipelines that consume the working tree
// directly.
package iso

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kdomanski/iso9660"

	"github.com/draftlab/anvil/internal/image"
)

// Ensure Driver satisfies the image driver interface.
var _ image.Driver = (*Driver)(nil)

// Driver extracts ISO 9660 volumes. ISO containers hold a single edition, so
// the handle index must be 1.
type Driver struct {
	Logger *slog.Logger
}

// Attach extracts the volume's tree into workingDir.
func (d *Driver) Attach(ctx context.Context, handle image.ImageHandle, workingDir string) error {
	if handle.Index > 1 {
		return fmt.Errorf("iso containers hold a single edition, index %d requested", handle.Index)
	}

	file, err := os.Open(handle.Path)
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	defer file.Close()

	volume, err := iso9660.OpenImage(file)
	if err != nil {
		return fmt.Errorf("open iso volume: %w", err)
	}
	root, err := volume.RootDir()
	if err != nil {
		return fmt.Errorf("read iso root directory: %w", err)
	}

	d.logger().Debug("extracting iso volume", "image", handle.Path, "working_dir", workingDir)
	return extract(ctx, root, workingDir)
}

// Detach discards the extracted tree (removal itself is the mount manager's
// job). Commit is not possible against a read-only container.
func (d *Driver) Detach(_ context.Context, _ string, commit bool) error {
	if commit {
		return image.ErrCommitUnsupported
	}
	return nil
}

// Info reports the volume as a single edition together with its total size.
func (d *Driver) Info(_ context.Context, path string) (*image.ImageMetadata, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer file.Close()

	if _, err := iso9660.OpenImage(file); err != nil {
		return nil, fmt.Errorf("open iso volume: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat image: %w", err)
	}

	name := filepath.Base(path)
	return &image.ImageMetadata{
		Path:       path,
		TotalBytes: stat.Size(),
		Editions: []image.EditionInfo{
			{Index: 1, Name: name, Description: "ISO 9660 volume (read-only)"},
		},
	}, nil
}

func (d *Driver) logger() *slog.Logger {
	if d != nil && d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

func extract(ctx context.Context, entry *iso9660.File, target string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if entry.IsDir() {
		if err := os.MkdirAll(target, 0o755); err != nil {
			return err
		}
		children, err := entry.GetChildren()
		if err != nil {
			return fmt.Errorf("read directory %s: %w", target, err)
		}
		for _, child := range children {
			if err := extract(ctx, child, filepath.Join(target, child.Name())); err != nil {
				return err
			}
		}
		return nil
	}

	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, entry.Reader()); err != nil {
		out.Close()
		return fmt.Errorf("extract %s: %w", target, err)
	}
	return out.Close()
}
