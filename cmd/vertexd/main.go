// Command vertexd runs a Strata/Alpen Vertex node: it replays the
// append-only sync-event log through the consensus state machine, extracts
// and dispatches duties off every new tip, and serves spec.md §6's RPC
// surface over HTTP. Grounded on the teacher's cmd/rubin-node/main.go
// testable-main shape (run(args, stdout, stderr) int, flag.NewFlagSet,
// signal.NotifyContext graceful shutdown), generalized from a P2P block
// relay skeleton to this node's storage/CSM/duty/RPC wiring.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alpenvertex/vertex-node/broadcaster"
	"github.com/alpenvertex/vertex-node/config"
	"github.com/alpenvertex/vertex-node/internal/logging"
	"github.com/alpenvertex/vertex-node/state"
)

const shutdownTimeout = 5 * time.Second

// workerGraceTimeout bounds how long shutdown waits for in-flight duty
// workers before exiting without them.
const workerGraceTimeout = 30 * time.Second

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run returns the process exit code spec.md §6 names: 0 clean stop, 1
// fatal configuration, 2 unrecoverable state corruption, 3 I/O failure on
// a critical startup path.
func run(args []string, stdout, stderr io.Writer) int {
	defaults := config.DefaultConfig()
	cfg := defaults

	fs := flag.NewFlagSet("vertexd", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&cfg.DataDir, "datadir", defaults.DataDir, "node data directory")
	rpcPort := fs.Uint("rpc-port", uint(defaults.RpcPort), "RPC listen port")
	network := fs.String("network", string(defaults.Network), "bitcoin network: mainnet|testnet|signet|regtest")
	fs.StringVar(&cfg.BitcoindHost, "bitcoind-host", defaults.BitcoindHost, "bitcoind RPC host:port")
	fs.StringVar(&cfg.BitcoindUser, "bitcoind-user", defaults.BitcoindUser, "bitcoind RPC username")
	fs.StringVar(&cfg.BitcoindPassword, "bitcoind-password", defaults.BitcoindPassword, "bitcoind RPC password")
	fs.StringVar(&cfg.SequencerKeyHex, "sequencer-key", defaults.SequencerKeyHex, "hex-encoded ed25519 sequencer key (32-byte seed or 64-byte expanded key)")
	logLevel := fs.String("log-level", "info", "log level: debug|info|warn|error")
	dryRun := fs.Bool("dry-run", false, "validate config and exit")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	cfg.RpcPort = uint16(*rpcPort)
	cfg.Network = config.Network(*network)

	if err := config.Validate(cfg); err != nil {
		_, _ = fmt.Fprintf(stderr, "invalid config: %v\n", err)
		return 1
	}

	log := logging.New("vertexd", parseLevel(*logLevel))

	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		_, _ = fmt.Fprintf(stderr, "datadir create failed: %v\n", err)
		return 3
	}

	if *dryRun {
		_, _ = fmt.Fprintf(stdout, "config ok: datadir=%s rpc_port=%d network=%s\n", cfg.DataDir, cfg.RpcPort, cfg.Network)
		return 0
	}

	n, err := newNode(cfg, log)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "node init failed: %v\n", err)
		var fatal *state.FatalError
		if errors.As(err, &fatal) {
			return 2
		}
		return 3
	}
	defer func() {
		if err := n.Close(); err != nil {
			log.Errorf("close: %v", err)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	n.stop.cancel = cancel

	go func() {
		log.Infof("rpc listening on %s", n.httpSrv.Addr)
		if err := n.httpSrv.ListenAndServe(); err != nil {
			log.Errorf("rpc server stopped: %v", err)
		}
	}()
	go n.ingest.Run(ctx)
	go runBroadcastLoop(ctx, n.bcastLoop, time.Duration(cfg.L1PollIntervalSecs)*time.Second, log)

	_, _ = fmt.Fprintln(stdout, "vertexd running")
	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := n.httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("rpc shutdown: %v", err)
	}
	workersDone := make(chan struct{})
	go func() {
		n.dispatch.Wait()
		close(workersDone)
	}()
	select {
	case <-workersDone:
	case <-time.After(workerGraceTimeout):
		log.Warnf("shutdown: duty workers still running after %s; exiting without them", workerGraceTimeout)
	}

	_, _ = fmt.Fprintln(stdout, "vertexd stopped")
	return 0
}

// runBroadcastLoop drives broadcaster.Loop.Tick on a fixed interval until
// ctx is cancelled, the same periodic-poll shape l1IngestLoop.Run uses for
// its own bitcoind round trips.
func runBroadcastLoop(ctx context.Context, loop *broadcaster.Loop, interval time.Duration, log *logging.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := loop.Tick(ctx); err != nil {
			log.Errorf("broadcast loop: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func parseLevel(s string) logging.Level {
	switch s {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}
