package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dgnsrekt/murfstream-go/internal/api"
	"github.com/dgnsrekt/murfstream-go/internal/audio"
	"github.com/dgnsrekt/murfstream-go/internal/config"
	"github.com/dgnsrekt/murfstream-go/internal/discord"
	"github.com/dgnsrekt/murfstream-go/internal/logging"
	"github.com/dgnsrekt/murfstream-go/internal/metrics"
	"github.com/dgnsrekt/murfstream-go/internal/murf"
	"github.com/dgnsrekt/murfstream-go/internal/pipeline"
	"github.com/dgnsrekt/murfstream-go/internal/sink"
	"github.com/dgnsrekt/murfstream-go/internal/telemetry"
)

func main() {
	// Load .env if present; real environment takes precedence
	_ = godotenv.Load()

	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		// Use stderr before logger is initialized
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Initialize structured logger
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting murfstream", "version", "0.1.0")

	// Warn if bearer token auth is disabled
	if cfg.AuthDisabled() {
		logger.Warn("HTTP bearer authentication is disabled (BEARER_TOKEN is empty)")
	}

	// Log loaded configuration (without sensitive values)
	logger.Info("configuration loaded",
		"log_level", cfg.LogLevel,
		"log_format", cfg.LogFormat,
		"http_port", cfg.HTTPPort,
		"voice_id", cfg.VoiceID,
		"model", cfg.Model,
		"sample_rate", cfg.SampleRate,
		"auto_disconnect_idle", cfg.AutoDisconnectIdle,
		"max_text_length", cfg.MaxTextLength,
		"queue_capacity", cfg.QueueCapacity,
	)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	}()

	// Initialize telemetry and synthesis instruments
	shutdownTelemetry, err := telemetry.Setup("murfstream", cfg.MetricsEnabled, logger)
	if err != nil {
		logger.Error("failed to initialize telemetry", "error", err)
		os.Exit(1)
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Error("failed to flush telemetry", "error", err)
		}
	}()

	recorder, err := metrics.New()
	if err != nil {
		logger.Error("failed to create metrics recorder", "error", err)
		os.Exit(1)
	}

	// Initialize the Murf synthesis service
	settings, err := cfg.MurfSettings()
	if err != nil {
		logger.Error("invalid voice settings", "error", err)
		os.Exit(1)
	}

	svc, err := murf.NewService(murf.Config{
		APIKey:   cfg.MurfAPIKey,
		URL:      cfg.MurfWSURL,
		Settings: settings,
		Logger:   logger,
		Recorder: recorder,
	})
	if err != nil {
		logger.Error("failed to create murf service", "error", err)
		os.Exit(1)
	}

	// Connect eagerly so the first turn does not pay the dial latency.
	// A failure here is not fatal; Speak retries on demand.
	if err := svc.Start(ctx); err != nil {
		logger.Warn("initial murf connection failed, will retry on demand", "error", err)
	}

	// Assemble the frame sinks
	var sinks []sink.Sink

	if cfg.OutputDir != "" {
		fileSink, err := sink.NewFileSink(cfg.OutputDir, logger)
		if err != nil {
			logger.Error("failed to create file sink", "error", err)
			os.Exit(1)
		}
		sinks = append(sinks, fileSink)
		logger.Info("file sink enabled", "dir", cfg.OutputDir)
	}

	var voiceManager *discord.VoiceManager
	if cfg.DiscordToken != "" && cfg.GuildID != "" && cfg.VoiceChannelID != "" {
		audioConv, err := audio.NewConverter()
		if err != nil {
			logger.Error("ffmpeg is required for Discord playback", "error", err)
			os.Exit(1)
		}

		voiceManager, err = discord.NewVoiceManager(
			cfg.DiscordToken,
			cfg.GuildID,
			cfg.VoiceChannelID,
			logger,
		)
		if err != nil {
			logger.Error("failed to create voice manager", "error", err)
			os.Exit(1)
		}

		if err := voiceManager.Open(); err != nil {
			logger.Error("failed to open Discord session", "error", err)
			os.Exit(1)
		}
		defer voiceManager.Close()

		sinks = append(sinks, sink.NewDiscordSink(voiceManager, audioConv, logger))
		logger.Info("Discord sink enabled", "guild_id", cfg.GuildID)
	}

	if len(sinks) == 0 {
		logger.Warn("no sinks configured, synthesized audio will be discarded")
	}

	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		sink.Dispatch(ctx, svc.Frames(), logger, sinks...)
	}()

	// Create and start the speech queue
	speechQueue := pipeline.NewQueue(cfg.QueueCapacity, cfg.AutoDisconnectIdle, logger)
	speechQueue.SetTurnHandler(pipeline.NewHandler(svc, logger).Handle)

	speechQueue.SetInterruptFunc(func() {
		svc.Interrupt(context.Background())
	})

	// Drop the websocket when the queue has been idle for a while
	speechQueue.SetIdleCallback(func() {
		logger.Info("queue idle, disconnecting from murf")
		svc.Disconnect()
		if voiceManager != nil {
			if err := voiceManager.Disconnect(); err != nil {
				logger.Error("failed to disconnect from voice", "error", err)
			}
		}
	})

	speechQueue.SetShutdownCallback(func() {
		if voiceManager != nil && voiceManager.IsConnected() {
			if err := voiceManager.Disconnect(); err != nil {
				logger.Error("failed to disconnect from voice during shutdown", "error", err)
			}
		}
	})

	speechQueue.Start()

	// Create and start HTTP server
	server := api.New(cfg, logger, speechQueue, svc)

	go func() {
		if err := server.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	speechQueue.Stop()
	if err := svc.Close(); err != nil {
		logger.Error("failed to close murf service", "error", err)
	}
	<-dispatchDone

	for _, s := range sinks {
		if err := s.Close(); err != nil {
			logger.Error("failed to close sink", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
