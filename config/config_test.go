package config

import (
	"crypto/ed25519"
	"encoding/hex"
	"strings"
	"testing"
)

func validTestConfig(t *testing.T) Config {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	cfg := DefaultConfig()
	cfg.BitcoindUser = "vertex"
	cfg.SequencerKeyHex = hex.EncodeToString(priv)
	return cfg
}

func TestDefaultConfigIsValidOnceSequencerKeySet(t *testing.T) {
	cfg := validTestConfig(t)
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateRejectsMissingDatadir(t *testing.T) {
	cfg := validTestConfig(t)
	cfg.DataDir = ""
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for empty datadir")
	}
}

func TestValidateRejectsUnknownNetwork(t *testing.T) {
	cfg := validTestConfig(t)
	cfg.Network = "nosuchnet"
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for unknown network")
	}
}

func TestValidateRejectsMalformedBitcoindHost(t *testing.T) {
	cfg := validTestConfig(t)
	cfg.BitcoindHost = "not-a-host-port"
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for malformed bitcoind_host")
	}
}

func TestValidateRejectsBadSequencerKey(t *testing.T) {
	cfg := validTestConfig(t)
	cfg.SequencerKeyHex = "zz"
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for malformed sequencer_key")
	}
}

func TestLoadSequencerKeyAcceptsSeedOrExpandedKey(t *testing.T) {
	seed := make([]byte, ed25519.SeedSize)
	cfg := Config{SequencerKeyHex: hex.EncodeToString(seed)}
	priv, err := LoadSequencerKey(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(priv) != ed25519.PrivateKeySize {
		t.Fatalf("expected expanded key of length %d, got %d", ed25519.PrivateKeySize, len(priv))
	}

	full := make([]byte, ed25519.PrivateKeySize)
	cfg2 := Config{SequencerKeyHex: hex.EncodeToString(full)}
	priv2, err := LoadSequencerKey(cfg2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(priv2) != ed25519.PrivateKeySize {
		t.Fatalf("expected expanded key of length %d, got %d", ed25519.PrivateKeySize, len(priv2))
	}
}

func TestLoadSequencerKeyRejectsWrongLength(t *testing.T) {
	cfg := Config{SequencerKeyHex: hex.EncodeToString([]byte{1, 2, 3})}
	if _, err := LoadSequencerKey(cfg); err == nil {
		t.Fatalf("expected error for wrong-length key")
	}
}

func TestValidateRejectsInvalidRollupParams(t *testing.T) {
	cfg := validTestConfig(t)
	cfg.RollupParams.MagicBytes = nil
	if err := Validate(cfg); err == nil || !strings.Contains(err.Error(), "rollup_params") {
		t.Fatalf("expected rollup_params validation error, got %v", err)
	}
}
