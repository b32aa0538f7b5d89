package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/voxrelay/domain"
	"github.com/satriahrh/voxrelay/domain/entities"
	"github.com/satriahrh/voxrelay/internal/websocket"
)

// TextAnalyzer turns free text into a sentiment result
type TextAnalyzer interface {
	Analyze(ctx context.Context, text string) (entities.AnalysisResult, error)
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, hub *websocket.Hub, analyzer TextAnalyzer, logger *zap.Logger) {
	// Health check
	e.GET("/health", health)

	e.POST("/process_text", func(c echo.Context) error {
		return processText(c, analyzer, logger)
	})

	// Live transcription relay
	e.GET("/ws/transcribe", hub.HandleTranscribe)
}

func health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "healthy"})
}

func processText(c echo.Context, analyzer TextAnalyzer, logger *zap.Logger) error {
	var req TextRequest

	if err := c.Bind(&req); err != nil {
		logger.Warn("Failed to bind process_text request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "request body must be a JSON object with a string \"text\" field",
		})
	}

	if req.Text == nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "\"text\" is required",
		})
	}

	result, err := analyzer.Analyze(c.Request().Context(), *req.Text)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrConfigurationMissing):
			logger.Error("Text analysis is not configured", zap.Error(err))
		case errors.Is(err, domain.ErrAnalysisUpstream):
			logger.Error("Text analysis upstream failed", zap.Error(err))
		default:
			logger.Error("Text analysis failed", zap.Error(err))
		}
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}

	return c.JSON(http.StatusOK, result)
}
