package websocket

import (
	"encoding/json"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Upstream event types emitted by the transcription provider
const (
	EventResults       = "Results"
	EventMetadata      = "Metadata"
	EventSpeechStarted = "SpeechStarted"
	EventUtteranceEnd  = "UtteranceEnd"
	EventError         = "Error"

	eventBinary   = "binary"
	eventUnparsed = "unparsed"
)

// Client-facing error messages
const (
	errMsgNotConfigured      = "Deepgram API key not configured"
	errMsgUpstreamConnect    = "failed to connect to transcription service"
	errMsgInternal           = "internal relay error"
	errMsgServerShuttingDown = "server is shutting down"
)

// ErrorMessage is the structured error frame sent to the client before closing
type ErrorMessage struct {
	Error string `json:"error"`
}

// CreateErrorMessage encodes an error frame
func CreateErrorMessage(message string) []byte {
	data, _ := json.Marshal(ErrorMessage{Error: message})
	return data
}

type upstreamEnvelope struct {
	Type string `json:"type"`
}

// EventInspector decodes a copy of every upstream frame for logging. It never modifies
// frames. Not safe for concurrent use; it runs on the upstream pump only.
type EventInspector struct {
	logger *zap.Logger
	counts map[string]int
}

// NewEventInspector creates an inspector logging through logger
func NewEventInspector(logger *zap.Logger) *EventInspector {
	return &EventInspector{
		logger: logger,
		counts: make(map[string]int),
	}
}

// Observe inspects one upstream frame
func (i *EventInspector) Observe(messageType int, data []byte) {
	if messageType != websocket.TextMessage {
		i.counts[eventBinary]++
		return
	}

	var envelope upstreamEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil || envelope.Type == "" {
		i.counts[eventUnparsed]++
		return
	}
	i.counts[envelope.Type]++

	switch envelope.Type {
	case EventResults:
		if !i.logger.Core().Enabled(zap.DebugLevel) {
			return
		}
		var result msginterfaces.MessageResponse
		if err := json.Unmarshal(data, &result); err != nil || len(result.Channel.Alternatives) == 0 {
			return
		}
		transcript := result.Channel.Alternatives[0].Transcript
		if transcript == "" {
			return
		}
		i.logger.Debug("Transcript received",
			zap.String("transcript", preview(transcript, 80)),
			zap.Bool("isFinal", result.IsFinal),
			zap.Bool("speechFinal", result.SpeechFinal))

	case EventMetadata:
		var metadata msginterfaces.MetadataResponse
		if err := json.Unmarshal(data, &metadata); err != nil {
			return
		}
		i.logger.Info("Upstream stream metadata", zap.String("requestID", metadata.RequestID))

	case EventError:
		i.logger.Warn("Upstream reported an error", zap.String("payload", preview(string(data), 200)))
	}
}

// Counts returns the number of frames seen per event type
func (i *EventInspector) Counts() map[string]int {
	out := make(map[string]int, len(i.counts))
	for k, v := range i.counts {
		out[k] = v
	}
	return out
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
