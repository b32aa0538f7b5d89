package usecase

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/voxrelay/adapters/llm"
	"github.com/satriahrh/voxrelay/domain"
	"github.com/satriahrh/voxrelay/domain/entities"
)

func TestAnalysisService_BlankTextShortCircuits(t *testing.T) {
	inputs := []string{"", " ", "\n\t", "   \r\n  "}

	for _, input := range inputs {
		t.Run(fmt.Sprintf("%q", input), func(t *testing.T) {
			model := llm.NewMockLLM(`{"sentiment": 0.9, "label": "positive", "keywords": ["x"]}`)
			service := NewAnalysisService(model, zaptest.NewLogger(t))

			got, err := service.Analyze(context.Background(), input)
			if err != nil {
				t.Fatalf("Analyze() error = %v", err)
			}
			if !reflect.DeepEqual(got, entities.NeutralResult()) {
				t.Errorf("Analyze() = %+v, want neutral result", got)
			}
			if model.Calls() != 0 {
				t.Errorf("Expected no model call, got %d", model.Calls())
			}
		})
	}
}

func TestAnalysisService_ParsesReply(t *testing.T) {
	model := llm.NewMockLLM(`{"sentiment": 0.85, "label": "positive", "keywords": ["friendly", "fast"]}`)
	service := NewAnalysisService(model, zaptest.NewLogger(t))

	got, err := service.Analyze(context.Background(), "The staff was friendly and fast.")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	want := entities.AnalysisResult{Sentiment: 0.85, Label: entities.LabelPositive, Keywords: []string{"friendly", "fast"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Analyze() = %+v, want %+v", got, want)
	}

	requests := model.Requests()
	if len(requests) != 1 {
		t.Fatalf("Expected 1 model call, got %d", len(requests))
	}
	req := requests[0]
	if req.Prompt != "The staff was friendly and fast." {
		t.Errorf("Unexpected prompt %q", req.Prompt)
	}
	if !req.JSON || req.Temperature != analysisTemperature || req.MaxTokens != analysisMaxTokens {
		t.Errorf("Unexpected request options %+v", req)
	}
	if req.SystemPrompt == "" {
		t.Error("Expected a system prompt")
	}
}

func TestAnalysisService_MalformedReplyFallsBack(t *testing.T) {
	replies := []string{
		"Sure! The sentiment is positive.",
		`{"sentiment": 0.5}`,
		`{"sentiment": 0.5, "label": "meh", "keywords": []}`,
		"",
	}

	for _, reply := range replies {
		t.Run(reply, func(t *testing.T) {
			service := NewAnalysisService(llm.NewMockLLM(reply), zaptest.NewLogger(t))

			got, err := service.Analyze(context.Background(), "some text")
			if err != nil {
				t.Fatalf("Analyze() error = %v", err)
			}
			if !reflect.DeepEqual(got, entities.ParsingFallbackResult()) {
				t.Errorf("Analyze() = %+v, want parsing fallback", got)
			}
		})
	}
}

func TestAnalysisService_ConfigurationMissing(t *testing.T) {
	model := llm.NewMockLLM("")
	model.Err = fmt.Errorf("%w: OPENAI_API_KEY is not set", domain.ErrConfigurationMissing)
	service := NewAnalysisService(model, zaptest.NewLogger(t))

	_, err := service.Analyze(context.Background(), "text")
	if !errors.Is(err, domain.ErrConfigurationMissing) {
		t.Fatalf("Expected ErrConfigurationMissing, got %v", err)
	}
	if errors.Is(err, domain.ErrAnalysisUpstream) {
		t.Error("Missing configuration must not be reported as an upstream error")
	}
}

func TestAnalysisService_UpstreamError(t *testing.T) {
	model := llm.NewMockLLM("")
	model.Err = errors.New("quota exceeded")
	service := NewAnalysisService(model, zaptest.NewLogger(t))

	_, err := service.Analyze(context.Background(), "text")
	if !errors.Is(err, domain.ErrAnalysisUpstream) {
		t.Fatalf("Expected ErrAnalysisUpstream, got %v", err)
	}
	if got := err.Error(); got != "analysis upstream error: quota exceeded" {
		t.Errorf("Expected underlying message to be preserved, got %q", got)
	}
}
