package main

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cvsouth/phttp-go/payload"
	"github.com/cvsouth/phttp-go/peerid"
	"github.com/cvsouth/phttp-go/segment"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// writeConfig writes a one route config and returns its path and the hex seed
// of its exit.
func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	entry, err := peerid.Generate()
	if err != nil {
		t.Fatal(err)
	}
	exit, err := peerid.Generate()
	if err != nil {
		t.Fatal(err)
	}
	text := fmt.Sprintf(`
ClientID = "cli-cmd"
[Logging]
  Level = "debug"
  File = %q
[Cache]
  Dir = %q
[[Nodes]]
  EntryPeerID = %q
  [[Nodes.Exits]]
    PeerID = %q
    Version = "2.1.0"
`, filepath.Join(dir, "debug.log"), filepath.Join(dir, "cache"), entry.PeerID, exit.PeerID)
	path := filepath.Join(dir, "client.toml")
	if err := os.WriteFile(path, []byte(text), 0600); err != nil {
		t.Fatal(err)
	}
	return path, hex.EncodeToString(exit.PrivateKey.Seed())
}

func TestKeygen(t *testing.T) {
	out, err := run(t, "keygen")
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}
	if !strings.Contains(out, "peer id: 12D3KooW") || !strings.Contains(out, "seed:") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestInfoEncodeDecode(t *testing.T) {
	seed := strings.Repeat("07", 32)
	encoded, err := run(t, "info", "encode", "--seed", seed, "--version", "2.3.0", "--relay-short-ids", "ab12,cd34")
	if err != nil {
		t.Fatalf("info encode: %v", err)
	}
	info, err := payload.DecodeInfo(strings.TrimSpace(encoded))
	if err != nil {
		t.Fatalf("DecodeInfo: %v", err)
	}
	if info.Version != "2.3.0" || len(info.RelayShortIDs) != 2 {
		t.Fatalf("unexpected info %+v", info)
	}

	out, err := run(t, "info", "decode", strings.TrimSpace(encoded))
	if err != nil {
		t.Fatalf("info decode: %v", err)
	}
	if !strings.Contains(out, `"peerId": "12D3KooW`) {
		t.Fatalf("unexpected output %q", out)
	}

	if _, err := run(t, "info", "encode", "--seed", "zz"); err == nil {
		t.Fatal("expected error for invalid seed")
	}
}

func TestRoute(t *testing.T) {
	configFile, _ := writeConfig(t)
	out, err := run(t, "route", "-c", configFile)
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if !strings.Contains(out, "(via only route available)") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestRouteRequiresConfig(t *testing.T) {
	if _, err := run(t, "route"); err == nil {
		t.Fatal("expected error without config")
	}
}

func TestPrepareWritesSegments(t *testing.T) {
	configFile, exitSeed := writeConfig(t)
	segFile := filepath.Join(t.TempDir(), "segments.bin")
	out, err := run(t, "prepare", "-c", configFile,
		"--provider", "https://rpc.example",
		"--body", strings.Repeat("x", 2*segment.MaxBodyLen),
		"-H", "Content-Type=application/json",
		"-o", segFile,
	)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if !strings.Contains(out, "https://rpc.example]") || !strings.Contains(out, "segments: ") {
		t.Fatalf("unexpected output %q", out)
	}

	f, err := os.Open(segFile)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	r := segment.NewReader(bufio.NewReader(f))
	first, err := r.ReadSegment()
	if err != nil {
		t.Fatalf("ReadSegment: %v", err)
	}
	if first.TotalCount < 2 {
		t.Fatalf("expected several segments, got %d", first.TotalCount)
	}

	out, err = run(t, "open", "--seed", exitSeed, "-i", segFile)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !strings.Contains(out, "request "+first.RequestID) || !strings.Contains(out, `"endpoint": "https://rpc.example"`) {
		t.Fatalf("unexpected output %q", out)
	}

	other := strings.Repeat("07", 32)
	if _, err := run(t, "open", "--seed", other, "-i", segFile); err == nil {
		t.Fatal("expected error opening with another exit's seed")
	}
}
