package entities

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// SentimentLabel classifies the overall tone of a text
type SentimentLabel string

const (
	LabelPositive SentimentLabel = "positive"
	LabelNeutral  SentimentLabel = "neutral"
	LabelNegative SentimentLabel = "negative"
)

// Valid reports whether the label is one of the known labels
func (l SentimentLabel) Valid() bool {
	switch l {
	case LabelPositive, LabelNeutral, LabelNegative:
		return true
	}
	return false
}

// AnalysisRequest is the input of a text analysis call
type AnalysisRequest struct {
	Text string `json:"text"`
}

// AnalysisResult is the structured sentiment and keyword summary of a text
type AnalysisResult struct {
	Sentiment float64        `json:"sentiment"`
	Label     SentimentLabel `json:"label"`
	Keywords  []string       `json:"keywords"`
}

// NeutralResult is returned for empty input without calling the model
func NeutralResult() AnalysisResult {
	return AnalysisResult{
		Sentiment: 0.5,
		Label:     LabelNeutral,
		Keywords:  []string{},
	}
}

// ParsingFallbackResult is returned when the model reply cannot be parsed
func ParsingFallbackResult() AnalysisResult {
	return AnalysisResult{
		Sentiment: 0.5,
		Label:     LabelNeutral,
		Keywords:  []string{"error", "parsing"},
	}
}

// ErrMalformedReply is returned by ParseAnalysisResult for replies that do not match
// the expected shape
var ErrMalformedReply = errors.New("malformed analysis reply")

// rawAnalysis uses pointers so missing fields can be told apart from zero values
type rawAnalysis struct {
	Sentiment *float64  `json:"sentiment"`
	Label     *string   `json:"label"`
	Keywords  *[]string `json:"keywords"`
}

// ParseAnalysisResult parses a model reply into an AnalysisResult.
// A reply wrapped in a markdown code fence is unwrapped first. Sentiment is clamped
// into [0,1] and blank keywords are dropped.
func ParseAnalysisResult(reply string) (AnalysisResult, error) {
	body := stripCodeFence(reply)
	if body == "" {
		return AnalysisResult{}, fmt.Errorf("%w: empty reply", ErrMalformedReply)
	}

	var raw rawAnalysis
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return AnalysisResult{}, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}

	if raw.Sentiment == nil || raw.Label == nil || raw.Keywords == nil {
		return AnalysisResult{}, fmt.Errorf("%w: missing fields", ErrMalformedReply)
	}

	label := SentimentLabel(strings.ToLower(strings.TrimSpace(*raw.Label)))
	if !label.Valid() {
		return AnalysisResult{}, fmt.Errorf("%w: unknown label %q", ErrMalformedReply, *raw.Label)
	}

	keywords := make([]string, 0, len(*raw.Keywords))
	for _, kw := range *raw.Keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			keywords = append(keywords, kw)
		}
	}

	return AnalysisResult{
		Sentiment: clamp01(*raw.Sentiment),
		Label:     label,
		Keywords:  keywords,
	}, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop an optional language tag on the opening fence
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
