package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dungeongate/internal/server"
	"github.com/dungeongate/pkg/audit"
	"github.com/dungeongate/pkg/config"
	"github.com/dungeongate/pkg/logging"
	"github.com/dungeongate/pkg/metrics"
)

var (
	version   string = "dev"
	buildTime string = "unknown"
	gitCommit string = "unknown"
)

func main() {
	var (
		configFile  = flag.String("config", "configs/lockstep-server.yaml", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("Lockstep Arena Server\n")
		fmt.Printf("Version: %s\n", version)
		fmt.Printf("Build Time: %s\n", buildTime)
		fmt.Printf("Git Commit: %s\n", gitCommit)
		return
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if args := flag.Args(); len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			fmt.Fprintf(os.Stderr, "invalid required_players argument: %q\n", args[0])
			os.Exit(1)
		}
		cfg.RequiredPlayers = n
	}

	logger := logging.NewLogger("lockstep-server", cfg.Logging)

	metricsRegistry := metrics.NewRegistry("lockstep-server", version, buildTime, gitCommit, logger)
	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		go func() {
			if err := metricsRegistry.StartMetricsServer(cfg.Metrics.Port); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		logger.Info("metrics server starting", "port", cfg.Metrics.Port)
	}

	var auditStore *audit.Store
	if cfg.Audit != nil && cfg.Audit.Enabled {
		auditStore, err = audit.Open(cfg.Audit.Driver, cfg.Audit.DSN)
		if err != nil {
			logger.Error("failed to open audit store", "error", err)
			os.Exit(2)
		}
		defer auditStore.Close()
	}

	rateLimit := 1000
	if cfg.RateLimit != nil && cfg.RateLimit.Enabled {
		rateLimit = cfg.RateLimit.MaxConnectionsPerIP
	}
	registry := server.NewRegistry(cfg.MaxConnections, rateLimit, metricsRegistry.Lockstep, logger)

	var auditLogger server.AuditLogger
	if auditStore != nil {
		auditLogger = auditStore
	}
	turnMgr := server.NewTurnManager(cfg, registry, auditLogger, metricsRegistry.Lockstep, logger)

	var reconnect *server.ReconnectIssuer
	if cfg.Reconnect != nil && cfg.Reconnect.Enabled {
		grace := time.Duration(cfg.Reconnect.GraceSecs) * time.Second
		reconnect = server.NewReconnectIssuer(cfg.Reconnect.Secret, grace)
	}

	orchestrator := server.NewOrchestrator(registry, turnMgr, reconnect, logger)

	ctx, cancel := context.WithCancel(context.Background())
	go turnMgr.Run(ctx)

	httpServer := &http.Server{
		Addr:    cfg.Listen,
		Handler: orchestrator,
	}

	go func() {
		logger.Info("lockstep server listening", "addr", cfg.Listen,
			"tick_hz", cfg.TickHz, "turn_size", cfg.TurnSize, "required_players", cfg.RequiredPlayers)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed to bind", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("shutting down gracefully...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", "error", err)
	}
	registry.Shutdown(2 * time.Second)

	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		if err := metricsRegistry.StopMetricsServer(shutdownCtx); err != nil {
			logger.Error("error stopping metrics server", "error", err)
		}
	}

	logger.Info("lockstep server stopped")
}

func loadConfig(path string) (*config.ServerConfig, error) {
	if _, err := os.Stat(path); err != nil {
		return config.DefaultServerConfig(), nil
	}
	return config.LoadServerConfig(path)
}
