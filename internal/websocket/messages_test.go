package websocket

import (
	"encoding/json"
	"testing"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func TestCreateErrorMessage(t *testing.T) {
	data := CreateErrorMessage("Deepgram API key not configured")

	var msg map[string]interface{}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to decode error frame: %v", err)
	}
	if len(msg) != 1 {
		t.Errorf("Expected only the error field, got %v", msg)
	}
	if msg["error"] != "Deepgram API key not configured" {
		t.Errorf("Expected error message, got %v", msg["error"])
	}
}

func TestEventInspector_Counts(t *testing.T) {
	inspector := NewEventInspector(zaptest.NewLogger(t))

	frames := []struct {
		messageType int
		data        string
	}{
		{websocket.TextMessage, `{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"hello"}]}}`},
		{websocket.TextMessage, `{"type":"Results","channel":{"alternatives":[]}}`},
		{websocket.TextMessage, `{"type":"Metadata","request_id":"req-1"}`},
		{websocket.TextMessage, `{"type":"SpeechStarted"}`},
		{websocket.TextMessage, `{"type":"UtteranceEnd"}`},
		{websocket.TextMessage, `not json`},
		{websocket.TextMessage, `{"no_type":true}`},
		{websocket.BinaryMessage, "\x00\x01"},
	}
	for _, f := range frames {
		inspector.Observe(f.messageType, []byte(f.data))
	}

	want := map[string]int{
		EventResults:       2,
		EventMetadata:      1,
		EventSpeechStarted: 1,
		EventUtteranceEnd:  1,
		eventUnparsed:      2,
		eventBinary:        1,
	}
	got := inspector.Counts()
	if len(got) != len(want) {
		t.Errorf("Expected %d event types, got %v", len(want), got)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("Expected %d %s events, got %d", v, k, got[k])
		}
	}
}

func TestEventInspector_DoesNotModifyFrames(t *testing.T) {
	inspector := NewEventInspector(zap.NewNop())

	data := []byte(`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"keep me"}]}}`)
	original := string(data)
	inspector.Observe(websocket.TextMessage, data)

	if string(data) != original {
		t.Errorf("Expected frame to be untouched, got %s", data)
	}
}

func TestEventInspector_Logging(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	inspector := NewEventInspector(zap.New(core))

	inspector.Observe(websocket.TextMessage, []byte(`{"type":"Results","is_final":true,"speech_final":true,"channel":{"alternatives":[{"transcript":"hello world"}]}}`))
	inspector.Observe(websocket.TextMessage, []byte(`{"type":"Metadata","request_id":"req-42"}`))
	inspector.Observe(websocket.TextMessage, []byte(`{"type":"Error","description":"bad audio"}`))

	transcripts := logs.FilterMessage("Transcript received").All()
	if len(transcripts) != 1 {
		t.Fatalf("Expected 1 transcript log, got %d", len(transcripts))
	}
	fields := transcripts[0].ContextMap()
	if fields["transcript"] != "hello world" {
		t.Errorf("Expected transcript field, got %v", fields["transcript"])
	}
	if fields["isFinal"] != true {
		t.Errorf("Expected isFinal true, got %v", fields["isFinal"])
	}

	metadata := logs.FilterMessage("Upstream stream metadata").All()
	if len(metadata) != 1 || metadata[0].ContextMap()["requestID"] != "req-42" {
		t.Errorf("Expected metadata log with request id, got %v", metadata)
	}

	if n := logs.FilterLevelExact(zap.WarnLevel).Len(); n != 1 {
		t.Errorf("Expected 1 warning for the upstream error, got %d", n)
	}
}

func TestEventInspector_SkipsTranscriptDecodeAboveDebug(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	inspector := NewEventInspector(zap.New(core))

	inspector.Observe(websocket.TextMessage, []byte(`{"type":"Results","channel":{"alternatives":[{"transcript":"quiet"}]}}`))

	if logs.Len() != 0 {
		t.Errorf("Expected no logs at info level, got %d", logs.Len())
	}
	if inspector.Counts()[EventResults] != 1 {
		t.Error("Expected result to be counted")
	}
}

func TestPreview(t *testing.T) {
	if got := preview("short", 10); got != "short" {
		t.Errorf("Expected short, got %s", got)
	}
	if got := preview("0123456789abc", 10); got != "0123456789" {
		t.Errorf("Expected truncation, got %s", got)
	}
}
