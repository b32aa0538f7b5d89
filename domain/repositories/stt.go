package repositories

import (
	"context"
	"net"
	"time"
)

// FrameConn is one side of a duplex frame connection.
// It supports one concurrent reader and one concurrent writer.
type FrameConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	UnderlyingConn() net.Conn
}

// StreamingTranscriber opens duplex connections to a streaming speech-to-text provider
type StreamingTranscriber interface {
	// Ready reports domain.ErrConfigurationMissing when the provider credential is absent
	Ready() error
	// Connect opens one upstream stream. Failures wrap domain.ErrUpstreamUnavailable.
	Connect(ctx context.Context) (TranscriptionStream, error)
}

// TranscriptionStream is an open upstream connection to the transcription provider
type TranscriptionStream interface {
	FrameConn
	// Finish tells the provider no more audio will be sent
	Finish() error
	// Close releases the connection. Calling it more than once is safe.
	Close() error
}
