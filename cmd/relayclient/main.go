// Command relayclient streams a PCM16 recording to a running relay and prints every
// transcription event it receives.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// wavHeaderSize is the size of a canonical PCM WAV header
const wavHeaderSize = 44

func main() {
	serverURL := flag.String("url", "ws://localhost:8080/ws/transcribe", "relay websocket endpoint")
	audioPath := flag.String("file", "sample_audio.wav", "PCM16 16kHz mono audio, raw or WAV")
	chunkSize := flag.Int("chunk", 3200, "bytes per audio frame (3200 bytes = 100ms at 16kHz)")
	interval := flag.Duration("interval", 100*time.Millisecond, "delay between frames")
	origin := flag.String("origin", "", "Origin header to send, empty for none")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()
	log := logger.Sugar()

	audio, err := os.ReadFile(*audioPath)
	if err != nil {
		log.Fatalf("Error reading audio file: %v", err)
	}
	frames := chunkAudio(pcmPayload(audio), *chunkSize)
	log.Infof("📁 Read %s (%d bytes, %d frames)", *audioPath, len(audio), len(frames))

	headers := http.Header{}
	if *origin != "" {
		headers.Set("Origin", *origin)
	}

	log.Infof("connecting to %s", *serverURL)
	c, resp, err := websocket.DefaultDialer.Dial(*serverURL, headers)
	if err != nil {
		if resp != nil {
			log.Fatalf("dial: %v (status %d)", err, resp.StatusCode)
		}
		log.Fatalf("dial: %v", err)
	}
	defer c.Close()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	done := make(chan struct{})
	go readEvents(c, log, done)

	start := time.Now()
	for i, frame := range frames {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Info("interrupt")
			closeConnection(c, log, done)
			return
		default:
		}

		if err := c.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			log.Errorf("Error sending audio frame %d: %v", i, err)
			return
		}
		time.Sleep(*interval)
	}
	log.Infof("📤 Finished sending %d frames in %v", len(frames), time.Since(start))

	// Give the provider a moment to deliver final results before hanging up
	select {
	case <-done:
		return
	case <-interrupt:
	case <-time.After(2 * time.Second):
	}
	closeConnection(c, log, done)
}

func closeConnection(c *websocket.Conn, log *zap.SugaredLogger, done <-chan struct{}) {
	err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		log.Errorf("write close: %v", err)
		return
	}
	select {
	case <-done:
	case <-time.After(time.Second):
	}
}

func readEvents(c *websocket.Conn, log *zap.SugaredLogger, done chan struct{}) {
	defer close(done)
	for {
		messageType, message, err := c.ReadMessage()
		if err != nil {
			log.Infof("read: %v", err)
			return
		}
		if messageType != websocket.TextMessage {
			log.Infof("Received binary frame (%d bytes)", len(message))
			continue
		}
		log.Info(describeEvent(message))
	}
}

// pcmPayload strips a WAV header when present
func pcmPayload(data []byte) []byte {
	if len(data) >= wavHeaderSize && bytes.HasPrefix(data, []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")) {
		return data[wavHeaderSize:]
	}
	return data
}

func chunkAudio(data []byte, size int) [][]byte {
	if size <= 0 {
		size = len(data)
	}
	var frames [][]byte
	for start := 0; start < len(data); start += size {
		end := start + size
		if end > len(data) {
			end = len(data)
		}
		frames = append(frames, data[start:end])
	}
	return frames
}

// describeEvent renders one server frame as a single log line
func describeEvent(data []byte) string {
	var envelope struct {
		Type  string `json:"type"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Sprintf("Received text frame: %s", data)
	}

	switch {
	case envelope.Error != "":
		return fmt.Sprintf("❌ Relay error: %s", envelope.Error)
	case envelope.Type == "Results":
		var result msginterfaces.MessageResponse
		if err := json.Unmarshal(data, &result); err != nil || len(result.Channel.Alternatives) == 0 {
			return "📝 Empty result"
		}
		marker := "interim"
		if result.IsFinal {
			marker = "final"
		}
		return fmt.Sprintf("📝 [%s] %s", marker, result.Channel.Alternatives[0].Transcript)
	case envelope.Type == "Metadata":
		var metadata msginterfaces.MetadataResponse
		if err := json.Unmarshal(data, &metadata); err == nil {
			return fmt.Sprintf("ℹ️ Metadata request_id=%s", metadata.RequestID)
		}
	}
	return fmt.Sprintf("Received %s event", envelope.Type)
}
