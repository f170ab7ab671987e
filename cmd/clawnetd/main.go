// Command clawnetd runs one ClawNet node: it loads configuration, opens the
// event log and snapshot store, wires the validate-apply engine to the
// gossip relay, and serves the local API and metrics endpoints.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clawnet/clawnet/api"
	"github.com/clawnet/clawnet/config"
	"github.com/clawnet/clawnet/core/engine"
	"github.com/clawnet/clawnet/core/state"
	"github.com/clawnet/clawnet/gossip"
	"github.com/clawnet/clawnet/observability/logging"
	"github.com/clawnet/clawnet/observability/otel"
	"github.com/clawnet/clawnet/ratelimit"
	"github.com/clawnet/clawnet/storage"
)

// escrowSweepInterval is how often the node checks for funded escrows past
// their deadline. Expiry is a wall-clock transition, not an event, so it
// runs on its own ticker rather than waiting for the next envelope.
const escrowSweepInterval = 30 * time.Second

func main() {
	configFile := flag.String("config", "./clawnet.toml", "Path to the node configuration file")
	logFile := flag.String("log-file", "", "Path to a rotated log file (stdout only if empty)")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("CLAWNET_ENV"))
	logger := logging.Setup("clawnetd", env, *logFile)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	shutdownTracing, err := otel.Setup("clawnetd", cfg.NodeKey[:16])
	if err != nil {
		logger.Error("failed to set up tracing", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	eventLog, err := storage.OpenEventLog(cfg.Storage.EventLogDir)
	if err != nil {
		logger.Error("failed to open event log", slog.Any("error", err))
		os.Exit(1)
	}
	defer eventLog.Close()

	snapshots, err := storage.OpenSnapshotStore(cfg.Storage.SnapshotDir)
	if err != nil {
		logger.Error("failed to open snapshot store", slog.Any("error", err))
		os.Exit(1)
	}
	defer snapshots.Close()

	store := state.New(cfg.DAO.TreasuryAddress)

	limiter := ratelimit.New(cfg.RateLimit.EventsPerSecond, cfg.RateLimit.Burst)
	transport := gossip.NewLoopbackTransport()
	relay := gossip.NewRelay(store, eventLog, transport, limiter)
	syncer := gossip.NewSyncer(eventLog, snapshots)

	mux := http.NewServeMux()
	api.NewServer(store, relay, syncer).Register(mux)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Enabled {
		go serveMetrics(ctx, logger, cfg.Metrics.ListenAddress)
	}

	go sweepExpiredEscrows(ctx, logger, store)

	logger.Info("clawnetd starting", slog.String("listen", cfg.ListenAddress), slog.String("rpc", cfg.RPCAddress))
	server := &http.Server{Addr: cfg.RPCAddress, Handler: mux}
	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("local API server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

// sweepExpiredEscrows ticks escrowSweepInterval until ctx is cancelled,
// expiring any funded escrow past its deadline.
func sweepExpiredEscrows(ctx context.Context, logger *slog.Logger, store *state.Store) {
	ticker := time.NewTicker(escrowSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			if n := engine.SweepExpiredEscrows(store, t.UnixMilli()); n > 0 {
				logger.Info("escrow sweep expired escrows", slog.Int("count", n))
			}
		}
	}
}

func serveMetrics(ctx context.Context, logger *slog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics server exited", slog.Any("error", err))
	}
}
