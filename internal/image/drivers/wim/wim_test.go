package wim

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleInfoOutput = `WIM Information:
----------------
Path:           /images/base.wim
GUID:           0xdeadbeef
Version:        68864
Image Count:    2
Compression:    LZX
Part Number:    1/1
Boot Index:     0
Size:           5136218317 bytes
Total Bytes:    5136218317

Available Images:
-----------------
Index:          1
Name:           Pro
Description:    Professional edition
Display Name:   Pro

Index:          2
Name:           Home
Description:    Home edition
`

func TestParseInfo(t *testing.T) {
	metadata, err := parseInfo(sampleInfoOutput)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if metadata.TotalBytes != 5136218317 {
		t.Fatalf("total bytes = %d", metadata.TotalBytes)
	}
	if len(metadata.Editions) != 2 {
		t.Fatalf("expected 2 editions, got %d", len(metadata.Editions))
	}

	first := metadata.Editions[0]
	if first.Index != 1 || first.Name != "Pro" || first.Description != "Professional edition" {
		t.Fatalf("unexpected first edition: %#v", first)
	}
	second := metadata.Editions[1]
	if second.Index != 2 || second.Name != "Home" {
		t.Fatalf("unexpected second edition: %#v", second)
	}
}

func TestParseInfoRejectsEditionlessOutput(t *testing.T) {
	if _, err := parseInfo("WIM Information:\nPath: x.wim\n"); err == nil {
		t.Fatal("expected error for output without editions")
	}
}

func TestRunCapturesStderr(t *testing.T) {
	// Stand-in binary that fails loudly, as wimlib-imagex does.
	script := filepath.Join(t.TempDir(), "fake-imagex")
	body := "#!/bin/sh\necho 'ERROR: not a WIM file' >&2\nexit 74\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}

	driver := &Driver{Binary: script}
	_, err := driver.Info(context.Background(), "bogus.wim")
	if err == nil {
		t.Fatal("expected failure")
	}
	if !strings.Contains(err.Error(), "not a WIM file") {
		t.Fatalf("stderr detail missing from error: %v", err)
	}
}

func TestDetachCommitFlag(t *testing.T) {
	// Stand-in binary that records its arguments.
	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args")
	script := filepath.Join(dir, "fake-imagex")
	body := "#!/bin/sh\necho \"$@\" >> " + argsFile + "\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}

	driver := &Driver{Binary: script}
	if err := driver.Detach(context.Background(), "/mnt/work", true); err != nil {
		t.Fatalf("detach commit failed: %v", err)
	}
	if err := driver.Detach(context.Background(), "/mnt/work", false); err != nil {
		t.Fatalf("detach discard failed: %v", err)
	}

	data, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatalf("read recorded args: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 invocations, got %v", lines)
	}
	if lines[0] != "unmount /mnt/work --commit" {
		t.Fatalf("commit invocation = %q", lines[0])
	}
	if lines[1] != "unmount /mnt/work" {
		t.Fatalf("discard invocation = %q", lines[1])
	}
}
