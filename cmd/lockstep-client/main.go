// Command lockstep-client is the reference headless client frame
// executor (C5): it dials a lockstep server, completes the readiness
// handshake, and drives the fixed-step simulation loop from the
// broadcast T0 and input_frame stream. The object simulation itself
// (tank/bullet/map shapes, rendering, input-device polling) is an
// external collaborator out of this core's scope (spec §1, §4.7); this
// binary substitutes a stepper that only counts the frames it is
// stepped through, so the protocol core can be exercised end to end
// without a renderer.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dungeongate/internal/client"
	"github.com/dungeongate/internal/lockstepinput"
	"github.com/dungeongate/pkg/config"
	"github.com/dungeongate/pkg/logging"
)

var (
	version   string = "dev"
	buildTime string = "unknown"
	gitCommit string = "unknown"
)

// digestStepper stands in for the simulation: it counts the frames it
// is stepped through and ignores their inputs. The count is logged at
// shutdown; no checksum of the installed inputs is computed.
type digestStepper struct {
	logger *slog.Logger
	frames int
}

func (d *digestStepper) Step(inputs lockstepinput.Table) {
	d.frames++
}

func main() {
	var (
		configFile  = flag.String("config", "configs/lockstep-client.yaml", "Path to configuration file")
		serverURL   = flag.String("server", "", "Server URL, overrides config and positional argument")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("Lockstep Arena Client\n")
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

	if *serverURL != "" {
		cfg.ServerURL = *serverURL
	} else if args := flag.Args(); len(args) > 0 {
		cfg.ServerURL = args[0]
	}

	logger := logging.NewLogger("lockstep-client", cfg.Logging)

	sim := &digestStepper{logger: logger}
	exec := client.NewFrameExecutor(cfg.TickHz, cfg.TurnSize, cfg.CatchupCap, sim, nil)
	exec.OnFrameAdvanced(func(frame int, inputs lockstepinput.Table) {
		logger.Debug("frame advanced", "frame", frame, "inputs", len(inputs))
	})

	net := client.NewNetwork(cfg, exec, logger)
	net.OnWelcome = func(clientID, _ string) {
		logger.Info("connected", "client_id", clientID)
		net.SendClientReady()
	}
	net.OnGameReady = func(players int, clients []string) {
		logger.Info("game_ready", "players", players, "clients", clients)
	}
	net.OnGameStart = func(startTimeMillis int64, players int) {
		logger.Info("game_start", "start_time", startTimeMillis, "players", players)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	networkErr := make(chan error, 1)
	go func() { networkErr <- net.Run(ctx) }()

	ticker := time.NewTicker(cfg.FrameInterval())
	defer ticker.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-sigChan:
			logger.Info("shutting down", "frames_advanced", sim.frames)
			cancel()
			<-networkErr
			return
		case err := <-networkErr:
			if err != nil {
				logger.Error("connection failed", "error", err)
				os.Exit(1)
			}
			return
		case now := <-ticker.C:
			exec.Update(now)
		}
	}
}

func loadConfig(path string) (*config.ClientConfig, error) {
	if _, err := os.Stat(path); err != nil {
		return config.DefaultClientConfig(), nil
	}
	return config.LoadClientConfig(path)
}
