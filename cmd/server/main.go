package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/satriahrh/scribe/adapters"
	"github.com/satriahrh/scribe/adapters/mongo"
	"github.com/satriahrh/scribe/adapters/stt"
	"github.com/satriahrh/scribe/domain/repositories"
	"github.com/satriahrh/scribe/internal/api"
	"github.com/satriahrh/scribe/internal/auth"
	"github.com/satriahrh/scribe/internal/config"
	"github.com/satriahrh/scribe/internal/housekeeping"
	"github.com/satriahrh/scribe/internal/websocket"
	"github.com/satriahrh/scribe/usecase"
)

func main() {
	bootLogger, _ := zap.NewProduction()
	cfg, err := config.Load(bootLogger)
	if err != nil {
		bootLogger.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Initialize logger
	logger, err := newLogger(cfg)
	if err != nil {
		bootLogger.Fatal("Failed to build logger", zap.Error(err))
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize adapters
	speechToText, err := stt.NewSpeechToText(ctx, providerConfig(cfg), logger)
	if err != nil {
		logger.Fatal("Failed to initialize speech-to-text provider", zap.Error(err))
	}
	if closer, ok := speechToText.(io.Closer); ok {
		defer closer.Close()
	}
	tokens := realtimeTokenIssuer(speechToText, cfg, logger)

	var requestLog repositories.RequestLogRepository
	var mongoClient *mongo.Client
	if cfg.MongoDB.URI != "" {
		mongoClient, err = mongo.NewClient(ctx, mongo.Config{URI: cfg.MongoDB.URI, Database: cfg.MongoDB.Database}, logger)
		if err != nil {
			logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
		}
		requestLog = adapters.NewMongoRequestLogRepository(mongoClient.Database, logger)
	} else {
		logger.Info("MONGODB_URI not set, keeping request log in memory",
			zap.Int("capacity", cfg.RequestLog.Capacity))
		requestLog = adapters.NewMemoryRequestLogRepository(cfg.RequestLog.Capacity)
	}

	// Initialize usecase services
	transcriptionService := usecase.NewTranscriptionService(speechToText, requestLog, cfg.RequestRetention(), logger)

	cleanup := housekeeping.NewRequestLogCleanupService(requestLog, cfg.CleanupInterval(), logger)
	cleanup.Start(ctx)

	// Initialize WebSocket hub with the transcription service
	hub := websocket.NewHub(transcriptionService, websocket.HubConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MaxAudioBytes:  int(cfg.MaxUploadBytes()),
	}, logger)
	go hub.Run(ctx)

	var tokenManager *auth.TokenManager
	if cfg.Auth.JWTSecret != "" {
		tokenManager, err = auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.TokenTTL())
		if err != nil {
			logger.Fatal("Failed to initialize token manager", zap.Error(err))
		}
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(requestLogger(logger))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders:     []string{"*"},
		AllowCredentials: true,
	}))
	// Leave headroom for multipart framing around the file
	e.Use(middleware.BodyLimit(fmt.Sprintf("%dM", cfg.Server.MaxUploadMB+1)))

	// Initialize API routes
	api.InitRoutes(e, api.Dependencies{
		Transcription:  transcriptionService,
		Tokens:         tokens,
		Hub:            hub,
		TokenManager:   tokenManager,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		Logger:         logger,
	})

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + cfg.Server.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	provider, model := transcriptionService.Provider()
	logger.Info("Server started",
		zap.String("port", cfg.Server.Port),
		zap.String("provider", provider),
		zap.String("model", model),
		zap.Strings("allowedOrigins", cfg.Server.AllowedOrigins))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	cleanup.Stop()
	cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if mongoClient != nil {
		mongoClient.Close(shutdownCtx)
	}

	logger.Info("Server exited")
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zapConfig := zap.NewProductionConfig()
	if cfg.IsDevelopment() {
		zapConfig = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
	}
	zapConfig.Level = level
	return zapConfig.Build()
}

func providerConfig(cfg *config.Config) stt.ProviderConfig {
	return stt.ProviderConfig{
		Provider: cfg.STT.Provider,
		ElevenLabs: stt.ElevenLabsConfig{
			APIKey:     cfg.STT.ElevenLabs.APIKey,
			APIBaseURL: cfg.STT.ElevenLabs.BaseURL,
			ModelID:    cfg.STT.ElevenLabs.Model,
			Timeout:    config.Seconds(cfg.STT.ElevenLabs.TimeoutSeconds),
		},
		Whisper: stt.WhisperConfig{
			APIKey:  cfg.STT.Whisper.APIKey,
			BaseURL: cfg.STT.Whisper.BaseURL,
			Model:   cfg.STT.Whisper.Model,
			Timeout: config.Seconds(cfg.STT.Whisper.TimeoutSeconds),
		},
		Google: stt.GoogleConfig{
			CredentialsFile: cfg.STT.Google.CredentialsFile,
			LanguageCode:    cfg.STT.Google.Language,
			Model:           cfg.STT.Google.Model,
			MinSpeakers:     int32(cfg.STT.Google.MinSpeakers),
			MaxSpeakers:     int32(cfg.STT.Google.MaxSpeakers),
		},
		Gemini: stt.GeminiConfig{
			APIKey:  cfg.STT.Gemini.APIKey,
			Model:   cfg.STT.Gemini.Model,
			Timeout: config.Seconds(cfg.STT.Gemini.TimeoutSeconds),
		},
	}
}

// realtimeTokenIssuer reuses the provider when it can issue realtime tokens,
// otherwise falls back to ElevenLabs when a key is configured.
func realtimeTokenIssuer(speechToText repositories.SpeechToText, cfg *config.Config, logger *zap.Logger) repositories.RealtimeTokenIssuer {
	if issuer, ok := speechToText.(repositories.RealtimeTokenIssuer); ok {
		return issuer
	}
	if cfg.STT.ElevenLabs.APIKey == "" {
		logger.Info("Realtime tokens disabled, no ElevenLabs API key")
		return nil
	}

	issuer, err := stt.NewElevenLabsSTT(providerConfig(cfg).ElevenLabs, logger.With(zap.String("provider", stt.ProviderElevenLabs)))
	if err != nil {
		logger.Warn("Realtime tokens disabled", zap.Error(err))
		return nil
	}
	return issuer
}

func requestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogMethod:   true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remote_ip", v.RemoteIP),
			}
			if v.Error != nil {
				logger.Error("request", append(fields, zap.Error(v.Error))...)
				return nil
			}
			logger.Info("request", fields...)
			return nil
		},
	})
}
