// Package wim attaches WIM image containers by shelling out to
// wimlib-imagex. The tool mounts an edition read-write at a directory and
// folds accumulated changes back into the container on unmount --commit.
package wim

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"github.com/draftlab/anvil/internal/image"
)

const defaultBinary = "wimlib-imagex"

// Ensure Driver satisfies the image driver interface.
var _ image.Driver = (*Driver)(nil)

// Driver drives wimlib-imagex. The zero value uses the binary from PATH.
type Driver struct {
	// Binary overrides the wimlib-imagex executable, mainly for tests.
	Binary string
	Logger *slog.Logger
}

// Attach mounts the selected edition read-write at workingDir.
func (d *Driver) Attach(ctx context.Context, handle image.ImageHandle, workingDir string) error {
	_, err := d.run(ctx, "mountrw", handle.Path, strconv.Itoa(handle.Index), workingDir)
	return err
}

// Detach unmounts workingDir, committing modifications into the container
// when commit is true and discarding them otherwise.
func (d *Driver) Detach(ctx context.Context, workingDir string, commit bool) error {
	args := []string{"unmount", workingDir}
	if commit {
		args = append(args, "--commit")
	}
	_, err := d.run(ctx, args...)
	return err
}

// Info queries the container and parses the edition table.
func (d *Driver) Info(ctx context.Context, path string) (*image.ImageMetadata, error) {
	out, err := d.run(ctx, "info", path)
	if err != nil {
		return nil, err
	}
	metadata, err := parseInfo(out)
	if err != nil {
		return nil, err
	}
	metadata.Path = path
	return metadata, nil
}

func (d *Driver) run(ctx context.Context, args ...string) (string, error) {
	binary := d.Binary
	if binary == "" {
		binary = defaultBinary
	}

	d.logger().Debug("running wimlib-imagex", "args", strings.Join(args, " "))

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			return "", fmt.Errorf("%s %s: %w", binary, args[0], err)
		}
		return "", fmt.Errorf("%s %s: %w: %s", binary, args[0], err, detail)
	}
	return stdout.String(), nil
}

func (d *Driver) logger() *slog.Logger {
	if d != nil && d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// parseInfo extracts the edition table and total size from wimlib-imagex
// info output. The format is a sequence of "Key: Value" lines; each edition
// block begins with an Index line.
func parseInfo(out string) (*image.ImageMetadata, error) {
	metadata := &image.ImageMetadata{}
	var current *image.EditionInfo

	flush := func() {
		if current != nil {
			metadata.Editions = append(metadata.Editions, *current)
			current = nil
		}
	}

	for _, line := range strings.Split(out, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "Index":
			flush()
			index, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("parse edition index %q: %w", value, err)
			}
			current = &image.EditionInfo{Index: index}
		case "Name":
			if current != nil {
				current.Name = value
			}
		case "Description":
			if current != nil {
				current.Description = value
			}
		case "Total Bytes":
			// "123456 bytes" or a bare number depending on version.
			fields := strings.Fields(value)
			if len(fields) > 0 {
				if size, err := strconv.ParseInt(fields[0], 10, 64); err == nil {
					metadata.TotalBytes = size
				}
			}
		}
	}
	flush()

	if len(metadata.Editions) == 0 {
		return nil, fmt.Errorf("no editions found in image info output")
	}
	return metadata, nil
}
