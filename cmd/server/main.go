// Package main provides the server entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/ahribot/foxbox/internal/api"
	"github.com/ahribot/foxbox/internal/app/admission"
	"github.com/ahribot/foxbox/internal/app/autoplay"
	"github.com/ahribot/foxbox/internal/app/guild"
	"github.com/ahribot/foxbox/internal/app/playback"
	"github.com/ahribot/foxbox/internal/app/resolve"
	"github.com/ahribot/foxbox/internal/audio/gateway"
	"github.com/ahribot/foxbox/internal/infra/config"
	"github.com/ahribot/foxbox/internal/infra/logger"
	"github.com/ahribot/foxbox/internal/infra/streamd"
	"github.com/ahribot/foxbox/internal/infra/tts"
)

var (
	app        = kingpin.New("foxbox-server", "foxbox voice playback server")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	// list-filters command
	listFiltersCmd = app.Command("list-filters", "List available admission filters and exit")
)

func init() {
	// start command (default)
	app.Command("start", "Start the server (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if command == listFiltersCmd.FullCommand() {
		printFilters()
		return
	}

	loggerConfig := logger.Config{Output: "stdout", Level: "info"}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Server error: %v", err)
		os.Exit(1)
	}
}

// run executes the main server logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	ttsClient := tts.New(tts.Config{
		BaseURL:     cfg.TTS.BaseURL,
		DefaultLang: cfg.TTS.DefaultLang,
		Timeout:     cfg.Playback.ResolveTimeout(),
	})
	streamdClient := streamd.New(streamd.Config{
		BaseURL: cfg.Streamd.BaseURL,
		Timeout: cfg.Playback.ResolveTimeout(),
	})
	directory := gateway.New(gateway.Config{BaseURL: cfg.Gateway.BaseURL})

	resolver := resolve.NewAdapter(ttsClient, streamdClient, cfg.Playback.ResolveTimeout())

	autoplayChain, err := autoplay.NewChainFromConfig(cfg, streamdClient)
	if err != nil {
		return fmt.Errorf("failed to build autoplay chain: %w", err)
	}

	admissionChain, err := admission.NewChainFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("failed to build admission chain: %w", err)
	}

	registry := guild.NewRegistry(func(guildID string) *playback.Engine {
		return playback.NewEngine(guildID, resolver, directory, autoplayChain, playback.Config{
			IdleTimeout:   cfg.Playback.IdleTimeout(),
			SelectTimeout: cfg.Playback.ResolveTimeout(),
			DefaultVolume: cfg.Playback.DefaultVolume,
		})
	})
	defer registry.Close()

	handler := api.New(registry, directory, admissionChain)

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: handler.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		zlog.Info().Msgf("Server listening on %s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		zlog.Info().Msgf("Received signal %v, shutting down", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

// printFilters lists registered admission filters with their metadata.
func printFilters() {
	fmt.Println("Available admission filters:")
	for name, factory := range admission.GetRegistered() {
		f := factory()
		fmt.Printf("  %s\n    %s\n    return codes: %v\n", name, f.Description(), f.ReturnCodes())
	}
}
