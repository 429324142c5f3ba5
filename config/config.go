// Package config holds the node's per-node operational settings, distinct
// from params.RollupParams' consensus-critical values (spec.md §6's
// "rollup_params" bundle is embedded here as one field, but every other
// field here can differ node-to-node without breaking consensus).
// Grounded on the teacher's node/config.go: the same plain-struct +
// DefaultConfig + ValidateConfig shape, generalized from a P2P node's
// bind_addr/peers to this node's datadir/rpc_port/bitcoind connection.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"crypto/ed25519"

	"github.com/alpenvertex/vertex-node/params"
)

// Network is the Bitcoin network this node tracks, per spec.md §6.
type Network string

const (
	NetworkMainnet Network = "mainnet"
	NetworkTestnet Network = "testnet"
	NetworkSignet  Network = "signet"
	NetworkRegtest Network = "regtest"
)

var allowedNetworks = map[Network]struct{}{
	NetworkMainnet: {},
	NetworkTestnet: {},
	NetworkSignet:  {},
	NetworkRegtest: {},
}

// Config is the full set of recognized options spec.md §6 names.
type Config struct {
	DataDir  string  `json:"datadir"`
	RpcPort  uint16  `json:"rpc_port"`
	Network  Network `json:"network"`

	BitcoindHost     string `json:"bitcoind_host"`
	BitcoindUser     string `json:"bitcoind_user"`
	BitcoindPassword string `json:"bitcoind_password"`

	// SequencerKeyHex is the hex-encoded ed25519 identity (a 32-byte seed
	// or a 64-byte expanded key) this node signs L2 block headers with.
	// See LoadSequencerKey.
	SequencerKeyHex string `json:"sequencer_key"`

	RollupParams params.RollupParams `json:"rollup_params"`

	// L1PollIntervalSecs is how often the L1 ingestion loop polls bitcoind
	// for a new tip. There is no ZMQ/block-notify subscriber in this pack
	// (see DESIGN.md), so polling is the only option without fabricating a
	// dependency.
	L1PollIntervalSecs uint64 `json:"l1_poll_interval_secs"`
}

func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".vertex"
	}
	return filepath.Join(home, ".vertex")
}

func DefaultConfig() Config {
	return Config{
		DataDir:            DefaultDataDir(),
		RpcPort:            9100,
		Network:            NetworkRegtest,
		BitcoindHost:       "127.0.0.1:18443",
		RollupParams:       params.DefaultDevnetParams(),
		L1PollIntervalSecs: 5,
	}
}

// Validate checks every recognized option, returning a fatal-configuration
// error per spec.md §6's exit code 1 ("fatal configuration").
func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.DataDir) == "" {
		return errors.New("config: datadir is required")
	}
	if cfg.RpcPort == 0 {
		return errors.New("config: rpc_port is required")
	}
	if _, ok := allowedNetworks[cfg.Network]; !ok {
		return fmt.Errorf("config: invalid network %q", cfg.Network)
	}
	if err := validateHostPort(cfg.BitcoindHost); err != nil {
		return fmt.Errorf("config: invalid bitcoind_host: %w", err)
	}
	if strings.TrimSpace(cfg.BitcoindUser) == "" {
		return errors.New("config: bitcoind_user is required")
	}
	if strings.TrimSpace(cfg.SequencerKeyHex) == "" {
		return errors.New("config: sequencer_key is required")
	}
	if _, err := LoadSequencerKey(cfg); err != nil {
		return fmt.Errorf("config: sequencer_key: %w", err)
	}
	if err := params.Validate(cfg.RollupParams); err != nil {
		return fmt.Errorf("config: rollup_params: %w", err)
	}
	if cfg.L1PollIntervalSecs == 0 {
		return errors.New("config: l1_poll_interval_secs is required")
	}
	return nil
}

func validateHostPort(addr string) error {
	if strings.TrimSpace(addr) == "" {
		return errors.New("empty address")
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	if strings.TrimSpace(host) == "" {
		return errors.New("missing host")
	}
	if strings.TrimSpace(port) == "" {
		return errors.New("missing port")
	}
	return nil
}

// LoadSequencerKey decodes SequencerKeyHex into an ed25519 signing key. A
// 32-byte hex string is treated as a seed (ed25519.NewKeyFromSeed); a
// 64-byte hex string is treated as an already-expanded private key, the
// way ed25519 keys are commonly persisted interchangeably in either form.
func LoadSequencerKey(cfg Config) (ed25519.PrivateKey, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(cfg.SequencerKeyHex))
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	switch len(raw) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(raw), nil
	default:
		return nil, fmt.Errorf("expected %d or %d bytes, got %d", ed25519.SeedSize, ed25519.PrivateKeySize, len(raw))
	}
}
