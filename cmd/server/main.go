package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lexiqai/voice-transcriber/internal/api"
	"github.com/lexiqai/voice-transcriber/internal/asr"
	"github.com/lexiqai/voice-transcriber/internal/bot"
	"github.com/lexiqai/voice-transcriber/internal/config"
	"github.com/lexiqai/voice-transcriber/internal/message"
	"github.com/lexiqai/voice-transcriber/internal/observability"
	"github.com/lexiqai/voice-transcriber/internal/onebot"
	"github.com/lexiqai/voice-transcriber/internal/probe"
	"github.com/lexiqai/voice-transcriber/internal/resilience"
	"github.com/lexiqai/voice-transcriber/internal/resolver"
	"github.com/lexiqai/voice-transcriber/internal/transcriber"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("region", cfg.TencentASRRegion).
		Str("engine", cfg.ASREngineType).
		Bool("onebot", cfg.OneBotAPIURL != "").
		Bool("auto_recognize", cfg.AutoRecognize).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Voice Transcriber Service starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Platform resolvers
	registry := resolver.NewRegistry()
	registry.Register(message.PlatformTelegram, resolver.NewTelegramResolver())
	registry.Register(message.PlatformDiscord, resolver.NewDiscordResolver(cfg.FetchTimeout()))

	var onebotClient *onebot.Client
	if cfg.OneBotAPIURL != "" {
		onebotClient = onebot.NewClient(cfg.OneBotAPIURL, cfg.OneBotAccessToken, cfg.FetchTimeout())
		registry.Register(message.PlatformOneBot, resolver.NewOneBotResolver(onebotClient))
	}

	logger.Info().Interface("platforms", registry.Platforms()).Msg("Audio resolvers registered")

	// Recognition pipeline
	breaker := resilience.NewCircuitBreaker(
		"tencent_asr",
		cfg.CircuitBreakerMaxFailures,
		time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
	)
	provider, err := asr.NewTencentProvider(asr.TencentConfig{
		SecretID:  cfg.TencentSecretID,
		SecretKey: cfg.TencentSecretKey,
		Region:    cfg.TencentASRRegion,
		Endpoint:  cfg.TencentASREndpoint,
	}, breaker)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create ASR provider")
	}

	service := transcriber.NewService(
		registry,
		probe.NewProber(cfg.FFmpegPath, cfg.ProbeDeadline()),
		asr.NewRecognizer(provider, cfg.ASREngineType, cfg.PollInterval(), cfg.TaskMaxWait()),
	)

	// Readiness checks
	checks := map[string]observability.HealthCheckFunc{
		"ffmpeg": func(ctx context.Context) (bool, error) {
			if _, err := exec.LookPath(cfg.FFmpegPath); err != nil {
				return false, err
			}
			return true, nil
		},
		"tencent_asr": provider.HealthCheck,
	}
	if onebotClient != nil {
		checks["onebot"] = onebotClient.HealthCheck
	}

	mux := http.NewServeMux()
	api.NewHandler(service, cfg.Locale).Register(mux)
	mux.HandleFunc("/health", observability.HealthCheckHandler())
	mux.HandleFunc("/ready", observability.ReadinessHandler(checks))

	// Metrics endpoint (Prometheus)
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	// Long recordings keep the request open for the whole task
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.TaskMaxWait() + cfg.ProbeDeadline() + cfg.FetchTimeout() + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var wg sync.WaitGroup

	if cfg.GRPCHealthPort != "" {
		grpcHealth := observability.NewGRPCHealthServer(checks, 10*time.Second)
		wg.Add(1)
		go func() {
			defer wg.Done()
			addr := fmt.Sprintf(":%s", cfg.GRPCHealthPort)
			logger.Info().Str("addr", addr).Msg("gRPC health server listening")
			if err := grpcHealth.Serve(ctx, addr); err != nil {
				logger.Error().Err(err).Msg("gRPC health server failed")
			}
		}()
	}

	if cfg.AutoRecognize {
		events := onebot.NewEventStream(cfg.OneBotWSURL, cfg.OneBotAccessToken, &resilience.ReconnectConfig{
			MaxAttempts: cfg.ReconnectMaxAttempts,
			Backoff:     time.Duration(cfg.ReconnectBackoff) * time.Millisecond,
			Multiplier:  2.0,
			MaxBackoff:  30 * time.Second,
		})
		b := bot.New(events, onebotClient, service, cfg.Locale)
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info().Str("url", cfg.OneBotWSURL).Msg("Auto recognition enabled")
			if err := b.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("Auto recognition stopped")
			}
		}()
	}

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("http://localhost:%s/v1/audio2text", cfg.Port)).
			Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	wg.Wait()

	logger.Info().Msg("Server exited gracefully")
}
