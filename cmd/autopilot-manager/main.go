package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tummler-rov/autopilot-manager/announce"
	"github.com/tummler-rov/autopilot-manager/api"
	"github.com/tummler-rov/autopilot-manager/board"
	"github.com/tummler-rov/autopilot-manager/bus"
	"github.com/tummler-rov/autopilot-manager/config"
	"github.com/tummler-rov/autopilot-manager/detector"
	"github.com/tummler-rov/autopilot-manager/hostinfo"
	"github.com/tummler-rov/autopilot-manager/logger"
	"github.com/tummler-rov/autopilot-manager/metrics"
)

func main() {
	// 1. Load Config
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize Logging
	if err := logger.Init(cfg.LogDir, cfg.Debug); err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	// 3. Collect Host Information
	host := hostinfo.Collect()
	if host.Model != "" {
		logger.Info("Running on %s", host.Model)
	}

	// 4. Initialize Bus Prober
	prober := bus.NewI2CProber(cfg.ProbeTimeout)
	defer prober.Close()

	// 5. Build Detection Service
	var sitl *board.SITLBoard
	if cfg.SITL.Enabled {
		sitl, err = board.NewSITL(cfg.SITL.Endpoint, 0)
		if err != nil {
			logger.Error("SITL config: %v", err)
			os.Exit(1)
		}
		logger.Info("SITL candidate enabled at %s", cfg.SITL.Endpoint)
	}

	m := metrics.New()
	svc := detector.New(detector.Options{
		Prober:          prober,
		SITL:            sitl,
		ScanInterval:    cfg.ScanInterval,
		TelemetryCheck:  cfg.Telemetry.Check,
		TelemetryWindow: cfg.Telemetry.Window,
		Metrics:         m,
	})

	// 6. Wire API Server and mDNS Announcer
	srv := api.NewServer(cfg.HTTPAddr, svc, host, m)

	var ann *announce.Announcer
	if cfg.Announce.Enabled {
		port, perr := cfg.HTTPPort()
		if perr != nil {
			logger.Error("announce: %v", perr)
			os.Exit(1)
		}
		ann = announce.New(cfg.Announce.Instance, port)
	}

	svc.SetCallback(func(info detector.StatusInfo) {
		srv.Hub().Broadcast(info)
		if ann != nil {
			if aerr := ann.Update(info); aerr != nil {
				logger.Warn("announce: %v", aerr)
			}
		}
	})

	// 7. Start Detection Loop
	svc.Start()

	// 8. Serve Until Interrupted
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("Received %s, shutting down", sig)
	case err := <-errCh:
		if err != nil {
			logger.Error("Server failed: %v", err)
		}
	}

	// 9. Orderly Shutdown
	svc.Stop()
	if ann != nil {
		ann.Stop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Shutdown: %v", err)
	}
}
