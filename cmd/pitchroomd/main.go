// Pitchroomd is the pitchroom chat daemon.
//
// It serves the message REST API and the per-conversation event streams,
// persists messages in SQLite and fans change events out over NATS. Without
// a configured NATS URL an in-process broker is started.
//
// Usage:
//
//	# Start with ~/.config/pitchroom/config.yaml and defaults
//	pitchroomd
//
//	# Override through the environment
//	SERVER_HTTP_PORT=9000 NATS_URL=nats://broker:4222 pitchroomd
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pitchroom/internal/config"
	"github.com/fyrsmithlabs/pitchroom/internal/feed"
	httpapi "github.com/fyrsmithlabs/pitchroom/internal/http"
	"github.com/fyrsmithlabs/pitchroom/internal/logging"
	"github.com/fyrsmithlabs/pitchroom/internal/messages"
	"github.com/fyrsmithlabs/pitchroom/internal/storage"
	"github.com/fyrsmithlabs/pitchroom/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "config file (default ~/.config/pitchroom/config.yaml)")
	flag.Parse()

	if args := flag.Args(); len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  pitchroomd           Start the pitchroom daemon\n")
			fmt.Fprintf(os.Stderr, "  pitchroomd version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "pitchroomd: %v\n", err)
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("pitchroomd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the daemon and blocks until ctx is cancelled:
//  1. Loads and validates configuration
//  2. Initializes logger and telemetry
//  3. Opens the message store
//  4. Connects to NATS, starting the embedded broker if needed
//  5. Starts the HTTP server
//  6. Shuts everything down in reverse order
func run(ctx context.Context, configPath string) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logCfg, err := logging.FromSettings(cfg.Logging, false)
	if err != nil {
		return fmt.Errorf("invalid logging configuration: %w", err)
	}
	logger, err := logging.NewLogger(logCfg, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Close()
	}()

	tel, err := telemetry.New(ctx, telemetry.FromObservability(cfg.Observability, version), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			logger.Warn(context.Background(), "telemetry shutdown failed", zap.Error(err))
		}
	}()

	logger.Info(ctx, "starting pitchroomd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout.Duration()),
	)

	deps, err := initDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer deps.Close()

	svc := messages.NewService(deps.store, feed.NewPublisher(deps.natsConn, cfg.NATS.SubjectPrefix, logger), logger)
	srv, err := httpapi.NewServer(svc, feed.NewSubscriber(deps.natsConn, cfg.NATS.SubjectPrefix, logger), logger, &httpapi.Config{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		HeartbeatInterval: cfg.Server.HeartbeatInterval.Duration(),
		MessagesPerSecond: cfg.RateLimit.MessagesPerSecond,
		Burst:             cfg.RateLimit.Burst,
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}
	srv.Mount("/metrics", promhttp.Handler())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	logger.Info(shutdownCtx, "server shutdown complete")
	return nil
}

// dependencies holds infrastructure owned by the daemon.
type dependencies struct {
	store      *storage.Store
	natsServer *natsserver.Server
	natsConn   *nats.Conn
}

// Close releases resources in reverse order of acquisition.
func (d *dependencies) Close() {
	if d.natsConn != nil {
		_ = d.natsConn.Drain()
	}
	if d.natsServer != nil {
		d.natsServer.Shutdown()
		d.natsServer.WaitForShutdown()
	}
	if d.store != nil {
		_ = d.store.Close()
	}
}

func initDependencies(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*dependencies, error) {
	deps := &dependencies{}

	dbPath, err := config.ExpandPath(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("invalid storage path: %w", err)
	}
	deps.store, err = storage.Open(ctx, dbPath)
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "message store opened", zap.String("path", dbPath))

	natsURL := cfg.NATS.URL
	if cfg.NATS.Embedded && natsURL == "" {
		deps.natsServer, err = feed.StartEmbedded(feed.EmbeddedOptions{Port: cfg.NATS.EmbeddedPort})
		if err != nil {
			deps.Close()
			return nil, err
		}
		natsURL = deps.natsServer.ClientURL()
		logger.Info(ctx, "embedded nats broker started", zap.String("url", natsURL))
	}

	deps.natsConn, err = nats.Connect(natsURL,
		nats.Name("pitchroomd"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(cfg.NATS.MaxReconnects),
		nats.ReconnectWait(cfg.NATS.ReconnectWait.Duration()),
		nats.Timeout(5*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn(context.Background(), "nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info(context.Background(), "nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return deps, nil
}
