package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dimiro1/banner"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/satriahrh/voxrelay/adapters/llm"
	"github.com/satriahrh/voxrelay/adapters/stt"
	"github.com/satriahrh/voxrelay/domain/repositories"
	"github.com/satriahrh/voxrelay/internal/api"
	"github.com/satriahrh/voxrelay/internal/config"
	"github.com/satriahrh/voxrelay/internal/websocket"
	"github.com/satriahrh/voxrelay/usecase"
)

const bannerTemplate = "{{ .Title \"voxrelay\" \"\" 0 }}\nGo {{ .GoVersion }} {{ .GOOS }}/{{ .GOARCH }}\n\n"

func main() {
	envFile := flag.String("env-file", ".env", "optional dotenv file loaded before the environment")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	if cfg.Log.Env == "development" {
		banner.Init(os.Stdout, true, true, bytes.NewBufferString(bannerTemplate))
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowCredentials: true,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"*"},
	}))

	// Initialize adapters
	transcriber, err := stt.NewDeepgramTranscriber(stt.DeepgramConfig{
		APIKey:  cfg.Deepgram.APIKey,
		BaseURL: cfg.Deepgram.BaseURL,
		Stream: stt.StreamConfig{
			Model:          cfg.Deepgram.Model,
			Language:       cfg.Deepgram.Language,
			Encoding:       cfg.Deepgram.Encoding,
			SampleRate:     cfg.Deepgram.SampleRate,
			Channels:       cfg.Deepgram.Channels,
			SmartFormat:    cfg.Deepgram.SmartFormat,
			Punctuate:      cfg.Deepgram.Punctuate,
			InterimResults: cfg.Deepgram.InterimResults,
		},
	}, logger)
	if err != nil {
		logger.Fatal("Failed to configure transcriber", zap.Error(err))
	}

	model, err := newLanguageModel(context.Background(), cfg.LLM, logger)
	if err != nil {
		logger.Fatal("Failed to configure language model", zap.Error(err))
	}

	// Initialize usecase services
	analysisService := usecase.NewAnalysisService(model, logger)

	// Initialize WebSocket hub
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hub := websocket.NewHub(transcriber, cfg.Server.AllowedOrigins, logger)
	go hub.Run(hubCtx)

	if cfg.Server.SessionReportInterval > 0 {
		reporter := websocket.NewSessionReporter(hub, cfg.Server.SessionReportInterval, logger)
		reporter.Start()
		defer reporter.Stop()
	}

	// Initialize API routes
	api.InitRoutes(e, hub, analysisService, logger)

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + cfg.Server.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Relay server started",
		zap.String("port", cfg.Server.Port),
		zap.String("llmProvider", model.Name()),
		zap.Strings("allowedOrigins", cfg.Server.AllowedOrigins))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...", zap.Int("activeSessions", hub.ActiveSessions()))

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Live sessions close their upstream first, then the client
	stopHub()
	if err := hub.Drain(ctx); err != nil {
		logger.Warn("Transcription sessions did not drain in time", zap.Error(err))
	}

	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func newLanguageModel(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (repositories.LargeLanguageModel, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		return llm.NewGeminiLLM(ctx, llm.GeminiConfig{
			APIKey: cfg.GeminiAPIKey,
			Model:  cfg.GeminiModel,
		}, logger)
	case config.ProviderMock:
		logger.Warn("Using mock language model")
		return llm.NewMockLLM(`{"sentiment":0.5,"label":"neutral","keywords":["mock"]}`), nil
	default:
		return llm.NewOpenAILLM(llm.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
			BaseURL: cfg.OpenAIURL,
		}, logger), nil
	}
}
