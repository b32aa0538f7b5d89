package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/satriahrh/voxrelay/domain"
	"github.com/satriahrh/voxrelay/domain/entities"
	"github.com/satriahrh/voxrelay/domain/repositories"
)

const (
	analysisTemperature = 0.2
	analysisMaxTokens   = 200
)

const analysisSystemPrompt = `You are a sentiment analysis engine.
Analyze the text provided by the user and respond ONLY with a JSON object of the form:
{"sentiment": <number between 0 and 1, where 0 is very negative, 0.5 neutral and 1 very positive>,
 "label": <one of "positive", "neutral", "negative">,
 "keywords": [<up to 5 short keywords or key phrases from the text>]}
Do not include any other text.`

// AnalysisService turns free text into a sentiment and keyword summary
type AnalysisService struct {
	llm    repositories.LargeLanguageModel
	logger *zap.Logger
}

// NewAnalysisService creates a new analysis service
func NewAnalysisService(llm repositories.LargeLanguageModel, logger *zap.Logger) *AnalysisService {
	return &AnalysisService{llm: llm, logger: logger}
}

// Analyze returns the sentiment summary of text.
// Blank text short-circuits to a neutral result. A reply that cannot be parsed yields the
// parsing fallback. Provider failures are returned wrapped in domain.ErrAnalysisUpstream,
// missing credentials as domain.ErrConfigurationMissing.
func (s *AnalysisService) Analyze(ctx context.Context, text string) (entities.AnalysisResult, error) {
	if strings.TrimSpace(text) == "" {
		return entities.NeutralResult(), nil
	}

	reply, err := s.llm.Complete(ctx, repositories.CompletionRequest{
		SystemPrompt: analysisSystemPrompt,
		Prompt:       text,
		Temperature:  analysisTemperature,
		MaxTokens:    analysisMaxTokens,
		JSON:         true,
	})
	if err != nil {
		if errors.Is(err, domain.ErrConfigurationMissing) {
			return entities.AnalysisResult{}, err
		}
		s.logger.Error("Analysis model call failed",
			zap.String("provider", s.llm.Name()),
			zap.Error(err))
		return entities.AnalysisResult{}, fmt.Errorf("%w: %v", domain.ErrAnalysisUpstream, err)
	}

	result, err := entities.ParseAnalysisResult(reply)
	if err != nil {
		s.logger.Warn("Failed to parse analysis reply, using fallback",
			zap.String("provider", s.llm.Name()),
			zap.String("replyPreview", preview(reply, 120)),
			zap.Error(err))
		return entities.ParsingFallbackResult(), nil
	}

	s.logger.Debug("Text analyzed",
		zap.String("provider", s.llm.Name()),
		zap.String("label", string(result.Label)),
		zap.Float64("sentiment", result.Sentiment),
		zap.Int("keywords", len(result.Keywords)))

	return result, nil
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
