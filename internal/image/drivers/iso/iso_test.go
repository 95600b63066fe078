package iso

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kdomanski/iso9660"

	"github.com/draftlab/anvil/internal/image"
)

// writeFixtureISO builds a small volume with one nested file.
func writeFixtureISO(t *testing.T) string {
	t.Helper()

	source := t.TempDir()
	if err := os.MkdirAll(filepath.Join(source, "nested"), 0o755); err != nil {
		t.Fatalf("create source tree: %v", err)
	}
	if err := os.WriteFile(filepath.Join(source, "hello.txt"), []byte("hello\n"), 0o644); err != nil {
		t.Fatalf("write source file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(source, "nested", "inner.txt"), []byte("inner\n"), 0o644); err != nil {
		t.Fatalf("write nested file: %v", err)
	}

	writer, err := iso9660.NewWriter()
	if err != nil {
		t.Fatalf("create iso writer: %v", err)
	}
	defer writer.Cleanup()

	if err := writer.AddLocalDirectory(source, "/"); err != nil {
		t.Fatalf("stage directory: %v", err)
	}

	isoPath := filepath.Join(t.TempDir(), "fixture.iso")
	out, err := os.Create(isoPath)
	if err != nil {
		t.Fatalf("create iso file: %v", err)
	}
	if err := writer.WriteTo(out, "FIXTURE"); err != nil {
		t.Fatalf("write iso: %v", err)
	}
	if err := out.Close(); err != nil {
		t.Fatalf("close iso: %v", err)
	}
	return isoPath
}

func TestAttachExtractsVolume(t *testing.T) {
	isoPath := writeFixtureISO(t)
	driver := &Driver{}
	workingDir := t.TempDir()

	handle := image.ImageHandle{Path: isoPath, Index: 1}
	if err := driver.Attach(context.Background(), handle, workingDir); err != nil {
		t.Fatalf("attach failed: %v", err)
	}

	// ISO 9660 may fold identifier case, so locate files case-insensitively.
	hello := findExtracted(t, workingDir, "hello.txt")
	data, err := os.ReadFile(hello)
	if err != nil {
		t.Fatalf("read extracted file: %v", err)
	}
	if string(data) != "hello\n" {
		t.Fatalf("extracted content = %q", data)
	}
	findExtracted(t, workingDir, "inner.txt")
}

func findExtracted(t *testing.T, root, name string) string {
	t.Helper()
	var found string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(d.Name(), name) {
			found = path
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk extracted tree: %v", err)
	}
	if found == "" {
		t.Fatalf("extracted file %s not found under %s", name, root)
	}
	return found
}

func TestAttachRejectsEditionIndex(t *testing.T) {
	driver := &Driver{}
	handle := image.ImageHandle{Path: "whatever.iso", Index: 2}
	if err := driver.Attach(context.Background(), handle, t.TempDir()); err == nil {
		t.Fatal("expected index > 1 to be rejected")
	}
}

func TestDetachCommitUnsupported(t *testing.T) {
	driver := &Driver{}
	if err := driver.Detach(context.Background(), "/mnt/work", true); !errors.Is(err, image.ErrCommitUnsupported) {
		t.Fatalf("expected ErrCommitUnsupported, got %v", err)
	}
	if err := driver.Detach(context.Background(), "/mnt/work", false); err != nil {
		t.Fatalf("discard detach failed: %v", err)
	}
}

func TestInfoReportsSingleEdition(t *testing.T) {
	isoPath := writeFixtureISO(t)
	driver := &Driver{}

	metadata, err := driver.Info(context.Background(), isoPath)
	if err != nil {
		t.Fatalf("info failed: %v", err)
	}
	if len(metadata.Editions) != 1 || metadata.Editions[0].Index != 1 {
		t.Fatalf("unexpected editions: %#v", metadata.Editions)
	}
	if metadata.TotalBytes == 0 {
		t.Fatal("total bytes not populated")
	}
}

func TestInfoRejectsNonISO(t *testing.T) {
	bogus := filepath.Join(t.TempDir(), "bogus.iso")
	if err := os.WriteFile(bogus, []byte("not an iso"), 0o644); err != nil {
		t.Fatalf("write bogus file: %v", err)
	}
	if _, err := (&Driver{}).Info(context.Background(), bogus); err == nil {
		t.Fatal("expected failure for non-iso file")
	}
}
