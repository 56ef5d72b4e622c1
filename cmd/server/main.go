package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"lanwatch/internal/agent"
	"lanwatch/internal/classify"
	"lanwatch/internal/config"
	"lanwatch/internal/connector"
	"lanwatch/internal/discovery"
	"lanwatch/internal/handler"
	"lanwatch/internal/hub"
	"lanwatch/internal/repository/sqlite"
	"lanwatch/internal/secrets"
	"lanwatch/internal/service"
)

func main() {
	configPath := flag.String("config", "", "config file path (overrides search)")
	flag.Parse()

	cfg, loadedPath, err := loadConfig(*configPath)
	if err != nil {
		fallbackLog := zerolog.New(os.Stderr)
		fallbackLog.Fatal().Err(err).Msg("failed to load config")
	}

	log := newLogger(cfg.LogLevel)
	if loadedPath != "" {
		log.Info().Str("path", loadedPath).Msg("loaded config")
	} else {
		log.Info().Msg("no config file found, using defaults")
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.DataDir).Msg("failed to create data directory")
	}

	repo, err := sqlite.New(cfg.Database())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer repo.Close()
	log.Info().Str("path", cfg.Database()).Msg("database opened")

	// Vendor table: embedded defaults plus optional site overrides.
	ouiTable := classify.NewOUITable()
	ouiPath := filepath.Join(cfg.DataDir, "oui.csv")
	if err := ouiTable.LoadFile(ouiPath); err != nil {
		log.Debug().Err(err).Str("path", ouiPath).Msg("no oui override file")
	}

	eventBus := service.NewEventBus()
	defer eventBus.Close()

	devices := service.NewDeviceService(repo, classify.New(ouiTable), eventBus, log)
	analytics := service.NewAnalyticsService(repo)

	vault, err := secrets.Open(filepath.Join(cfg.DataDir, "vault.json"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open secrets vault")
	}
	agents, err := agent.NewTokenStore(filepath.Join(cfg.DataDir, "agents.json"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load agent tokens")
	}

	discoverySettings := discovery.NewSettingsStore(filepath.Join(cfg.DataDir, "discovery.json"), log)
	connectorSettings := connector.NewSettingsStore(filepath.Join(cfg.DataDir, "connectors.json"), log)

	statusStore := connector.NewStatusStore()
	registry := connector.NewRegistry(statusStore, buildConnectors(devices, vault, log)...)
	scheduler := connector.NewScheduler(registry, connectorSettings,
		time.Duration(cfg.ConnectorPollSeconds)*time.Second, log)

	fingerprintStore := connector.NewFingerprintStore()
	fingerprinter := connector.NewFingerprinter(discovery.DefaultGateways, fingerprintStore,
		time.Duration(cfg.FingerprintIntervalSeconds)*time.Second, log)

	scanner := discovery.NewScanner(discoverySettings, devices, log)
	listeners := discovery.NewPassiveListeners(devices, log)
	sweeper := discovery.NewSweeper(devices, 30*time.Second,
		time.Duration(cfg.StaleAfterSeconds)*time.Second, log)

	sseHub := hub.New(eventBus, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go sseHub.Run(ctx)
	go scanner.Run(ctx)
	go sweeper.Run(ctx)
	go scheduler.Run(ctx)
	go fingerprinter.Run(ctx)
	for _, l := range listeners {
		go l.Run(ctx)
	}

	api := handler.NewAPIHandler(devices, analytics, discoverySettings, connectorSettings,
		registry, fingerprintStore, vault, agents, log)

	mux := http.NewServeMux()
	api.Routes(mux)
	mux.Handle("GET /events", sseHub)

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      handler.Chain(mux, handler.Recover(log), handler.CORS, handler.Logger(log)),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // SSE streams stay open
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("server listening")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}
	log.Info().Msg("server stopped")
}

func loadConfig(explicit string) (*config.Config, string, error) {
	if explicit != "" {
		return config.LoadFromPath(explicit)
	}
	return config.Load()
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}

// buildConnectors wires every router integration against the device
// service and the vault.
func buildConnectors(devices *service.DeviceService, vault *secrets.Vault, log zerolog.Logger) []connector.Connector {
	connectors := []connector.Connector{
		connector.NewUPnPIGDConnector(devices, log),
		connector.NewSNMPConnector(devices, vault, log),
		connector.NewDHCPHTTPConnector(devices, vault, log),
		connector.NewUniFiConnector(devices, vault, log),
	}
	for _, c := range connector.NewLeaseHTTPConnectors(devices, vault, log) {
		connectors = append(connectors, c)
	}
	return connectors
}
