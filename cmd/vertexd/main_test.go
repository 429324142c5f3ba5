package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestRunRejectsMissingSequencerKey(t *testing.T) {
	dir := t.TempDir()
	var out, errOut bytes.Buffer
	code := run([]string{"--dry-run", "--datadir", dir, "--bitcoind-user", "vertex"}, &out, &errOut)
	if code != 1 {
		t.Fatalf("expected exit code 1 for missing sequencer key, got %d (stderr=%q)", code, errOut.String())
	}
}

func TestRunDryRunOKWithSequencerKey(t *testing.T) {
	dir := t.TempDir()
	var out, errOut bytes.Buffer
	code := run([]string{
		"--dry-run",
		"--datadir", dir,
		"--sequencer-key", strings.Repeat("00", 32), // ed25519 seed
		"--bitcoind-user", "vertex",
	}, &out, &errOut)
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d (stderr=%q)", code, errOut.String())
	}
	if out.Len() == 0 {
		t.Fatalf("expected stdout output")
	}
}

func TestRunRejectsBadFlags(t *testing.T) {
	var out, errOut bytes.Buffer
	code := run([]string{"--not-a-real-flag"}, &out, &errOut)
	if code != 1 {
		t.Fatalf("expected exit code 1 for flag parse error, got %d", code)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]string{
		"debug": "DEBUG",
		"warn":  "WARN",
		"error": "ERROR",
		"":      "INFO",
		"bogus": "INFO",
	}
	for in, want := range cases {
		if got := parseLevel(in).String(); got != want {
			t.Fatalf("parseLevel(%q) = %q, want %q", in, got, want)
		}
	}
}
