// flo-relay bridges local game clients to a remote relay node.
//
// It accepts game client connections on an OS-assigned port, dials the
// configured node for each client, and runs a relay session that
// multiplexes client frames, node frames and node status updates. A REST
// API, an interactive CLI, a SQLite session history and optional MQTT
// telemetry sit around the relay core.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/diewolke9/flo/internal/api"
	"github.com/diewolke9/flo/internal/cli"
	"github.com/diewolke9/flo/internal/config"
	"github.com/diewolke9/flo/internal/events"
	"github.com/diewolke9/flo/internal/network"
	"github.com/diewolke9/flo/internal/records"
	"github.com/diewolke9/flo/internal/relay"
	"github.com/diewolke9/flo/internal/telemetry"
	"github.com/diewolke9/flo/internal/util"
)

const (
	AppName    = "flo-relay"
	AppVersion = "1.0.0"
	Banner     = `
   __ _                     _
  / _| | ___   ___ _ __ ___| | __ _ _   _
 | |_| |/ _ \ / _ \ '__/ _ \ |/ _' | | | |
 |  _| | (_) |  __/ | |  __/ | (_| | |_| |
 |_| |_|\___/ \___|_|  \___|_|\__,_|\__, |
                                    |___/  v%s
 Game Traffic Relay
`
)

func main() {
	fmt.Printf(Banner, AppVersion)
	fmt.Println()

	if err := util.InitLogger(util.DefaultLogConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Info().
		Str("version", AppVersion).
		Str("platform", runtime.GOOS).
		Str("arch", runtime.GOARCH).
		Int("cpus", runtime.NumCPU()).
		Msg("starting flo-relay")

	cfg, err := config.Load(config.DefaultConfigDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Re-initialize logger with config-based settings
	logCfg := util.LogConfig{
		Level:      cfg.Logging.Level,
		Directory:  cfg.Logging.Directory,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		Console:    cfg.Logging.Console,
	}
	if err := util.InitLogger(logCfg); err != nil {
		log.Warn().Err(err).Msg("failed to reconfigure logger, using defaults")
	}

	validation := config.Validate(cfg)
	for _, w := range validation.Warnings {
		log.Warn().Str("field", w.Field).Msg(w.Message)
	}
	if !validation.IsValid() {
		for _, e := range validation.Errors {
			log.Error().Str("field", e.Field).Msg(e.Message)
		}
		log.Fatal().Msg("configuration validation failed, please fix the errors above")
	}

	sysInfo := util.GetSystemInfo()
	log.Info().
		Str("hostname", sysInfo.Hostname).
		Str("os", sysInfo.OS).
		Str("cpu", sysInfo.CPUModel).
		Int("cores", sysInfo.CPUCores).
		Uint64("memory_mb", sysInfo.TotalMemory).
		Msg("system information")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eventBus := events.NewEventBus()

	var store *records.Store
	if cfg.Database.Path != "" {
		store, err = records.Open(cfg.Database.Path)
		if err != nil {
			log.Warn().Err(err).Msg("failed to open session store, history disabled")
		} else {
			defer store.Close()
		}
	}

	mgr := relay.NewManager(cfg, eventBus, store)

	listener, err := network.Listen()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to bind client listener")
	}
	listener.StopOnAcceptError = cfg.GetRelay().StopOnAcceptError

	var mqttHandler *telemetry.MQTTHandler
	if cfg.MQTT.Enabled {
		mqttHandler, err = telemetry.NewMQTTHandler(cfg, eventBus)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize MQTT, telemetry disabled")
		}
	}

	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer = api.NewServer(cfg, mgr, store)
	}

	cliHandler := cli.NewCLI(cfg, eventBus, mgr, store)

	// The CLI quit command requests shutdown through the event bus.
	shutdownCh := make(chan struct{})
	var shutdownOnce sync.Once
	eventBus.Subscribe(events.EventShutdown, "main", func(ctx context.Context, ev events.Event) error {
		shutdownOnce.Do(func() { close(shutdownCh) })
		return nil
	})

	var wg sync.WaitGroup
	errCh := make(chan error, 4)

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Uint16("port", listener.Port()).Msg("starting client listener")
		if err := listener.Serve(ctx, mgr.HandleClient); err != nil {
			errCh <- fmt.Errorf("client listener: %w", err)
		}
	}()

	if apiServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info().Int("port", cfg.API.Port).Msg("starting REST API server")
			if err := apiServer.Start(ctx); err != nil {
				log.Warn().Err(err).Msg("API server failed (non-fatal)")
			}
		}()
	}

	if mqttHandler != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info().Msg("starting MQTT telemetry")
			if err := mqttHandler.Start(ctx); err != nil {
				log.Warn().Err(err).Msg("MQTT telemetry failed")
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Msg("starting interactive CLI")
		cliHandler.Start(ctx)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case err := <-errCh:
		log.Error().Err(err).Msg("critical error, initiating shutdown")
	case <-shutdownCh:
		log.Info().Msg("shutdown requested")
	}

	log.Info().Msg("initiating graceful shutdown...")

	cancel()
	listener.Close()

	eventBus.Emit(context.Background(), events.Event{
		Type:   events.EventShutdown,
		Source: "main",
	})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("all tasks stopped gracefully")
	case <-time.After(30 * time.Second):
		log.Warn().Msg("shutdown timed out after 30 seconds, forcing exit")
	}

	eventBus.Stop()

	log.Info().Msg("flo-relay stopped")
}
