package stt

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/schema"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/satriahrh/voxrelay/domain"
	"github.com/satriahrh/voxrelay/domain/repositories"
)

const (
	defaultBaseURL          = "wss://api.deepgram.com/v1"
	defaultModel            = "nova-2"
	defaultEncoding         = "linear16"
	defaultSampleRate       = 16000
	defaultChannels         = 1
	defaultHandshakeTimeout = 10 * time.Second

	// Time allowed to write a control message to the provider.
	controlWait = time.Second
)

// closeStreamMessage asks the provider to flush and close the stream
var closeStreamMessage = []byte(`{"type":"CloseStream"}`)

// StreamConfig is the fixed stream configuration sent to the provider as query parameters
type StreamConfig struct {
	Model          string `schema:"model"`
	Language       string `schema:"language,omitempty"`
	Encoding       string `schema:"encoding"`
	SampleRate     int    `schema:"sample_rate"`
	Channels       int    `schema:"channels"`
	SmartFormat    bool   `schema:"smart_format"`
	Punctuate      bool   `schema:"punctuate"`
	InterimResults bool   `schema:"interim_results"`
}

// DeepgramConfig holds configuration for the Deepgram streaming adapter
// Required at connect time:
// - APIKey: Deepgram API key
// Optional fields with defaults:
// - BaseURL: wss://api.deepgram.com/v1
// - HandshakeTimeout: 10s
// - Stream: nova-2, linear16, 16000 Hz, mono
type DeepgramConfig struct {
	APIKey           string
	BaseURL          string
	HandshakeTimeout time.Duration
	Stream           StreamConfig
}

// DeepgramTranscriber opens live transcription streams against Deepgram
type DeepgramTranscriber struct {
	apiKey string
	url    string
	dialer *websocket.Dialer
	logger *zap.Logger
}

// Ensure DeepgramTranscriber implements the StreamingTranscriber interface
var _ repositories.StreamingTranscriber = (*DeepgramTranscriber)(nil)

// NewDeepgramTranscriber creates a new Deepgram adapter. A missing API key is not an
// error here; it is reported by Ready and Connect.
func NewDeepgramTranscriber(config DeepgramConfig, logger *zap.Logger) (*DeepgramTranscriber, error) {
	config = applyDefaults(config)

	listenURL, err := BuildListenURL(config.BaseURL, config.Stream)
	if err != nil {
		return nil, err
	}

	logger.Info("Deepgram transcriber configured",
		zap.String("model", config.Stream.Model),
		zap.String("language", config.Stream.Language),
		zap.String("encoding", config.Stream.Encoding),
		zap.Int("sampleRate", config.Stream.SampleRate),
		zap.Int("channels", config.Stream.Channels),
		zap.Bool("credentialPresent", strings.TrimSpace(config.APIKey) != ""))

	return &DeepgramTranscriber{
		apiKey: strings.TrimSpace(config.APIKey),
		url:    listenURL,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: config.HandshakeTimeout,
		},
		logger: logger,
	}, nil
}

func applyDefaults(config DeepgramConfig) DeepgramConfig {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = defaultHandshakeTimeout
	}
	if config.Stream.Model == "" {
		config.Stream.Model = defaultModel
	}
	if config.Stream.Encoding == "" {
		config.Stream.Encoding = defaultEncoding
	}
	if config.Stream.SampleRate <= 0 {
		config.Stream.SampleRate = defaultSampleRate
	}
	if config.Stream.Channels <= 0 {
		config.Stream.Channels = defaultChannels
	}
	return config
}

// BuildListenURL returns the websocket listen endpoint with the stream configuration
// encoded as query parameters. http(s) base URLs are mapped to ws(s).
func BuildListenURL(base string, stream StreamConfig) (string, error) {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}

	listenURL, err := url.Parse(base + "/listen")
	if err != nil {
		return "", fmt.Errorf("invalid Deepgram base URL: %w", err)
	}
	if listenURL.Scheme != "ws" && listenURL.Scheme != "wss" {
		return "", fmt.Errorf("invalid Deepgram base URL scheme %q", listenURL.Scheme)
	}

	query := url.Values{}
	if err := schema.NewEncoder().Encode(stream, query); err != nil {
		return "", fmt.Errorf("failed to encode stream config: %w", err)
	}
	listenURL.RawQuery = query.Encode()
	return listenURL.String(), nil
}

// Ready reports whether a credential is configured
func (d *DeepgramTranscriber) Ready() error {
	if d.apiKey == "" {
		return fmt.Errorf("%w: DEEPGRAM_API_KEY is not set", domain.ErrConfigurationMissing)
	}
	return nil
}

// Connect opens one live transcription stream
func (d *DeepgramTranscriber) Connect(ctx context.Context) (repositories.TranscriptionStream, error) {
	if err := d.Ready(); err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+d.apiKey)

	conn, resp, err := d.dialer.DialContext(ctx, d.url, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: deepgram handshake rejected with status %d: %v",
				domain.ErrUpstreamUnavailable, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("%w: failed to connect to deepgram: %v", domain.ErrUpstreamUnavailable, err)
	}

	d.logger.Debug("Deepgram stream opened", zap.String("remote", conn.RemoteAddr().String()))
	return &DeepgramStream{Conn: conn}, nil
}

// DeepgramStream is an open Deepgram live connection
type DeepgramStream struct {
	*websocket.Conn

	closeOnce sync.Once
	closeErr  error
}

// Finish sends the CloseStream control message. Must not be called concurrently
// with another writer.
func (s *DeepgramStream) Finish() error {
	if err := s.SetWriteDeadline(time.Now().Add(controlWait)); err != nil {
		return err
	}
	return s.WriteMessage(websocket.TextMessage, closeStreamMessage)
}

// Close sends a best-effort close frame and closes the connection once
func (s *DeepgramStream) Close() error {
	s.closeOnce.Do(func() {
		_ = s.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(controlWait))
		s.closeErr = s.Conn.Close()
	})
	return s.closeErr
}
