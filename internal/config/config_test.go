package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

// clearEnv hides any relay variables inherited from the developer's shell
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "ALLOWED_ORIGINS", "SHUTDOWN_TIMEOUT", "SESSION_REPORT_INTERVAL", "APP_ENV", "LOG_LEVEL",
		"DEEPGRAM_API_KEY", "DEEPGRAM_BASE_URL", "STT_MODEL", "STT_LANGUAGE", "STT_ENCODING",
		"STT_SAMPLE_RATE", "STT_CHANNELS", "STT_SMART_FORMAT", "STT_PUNCTUATE", "STT_INTERIM_RESULTS",
		"LLM_PROVIDER", "OPENAI_API_KEY", "OPENAI_MODEL", "OPENAI_BASE_URL", "GEMINI_API_KEY", "GEMINI_MODEL",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Expected port 8080, got %s", cfg.Server.Port)
	}
	if !reflect.DeepEqual(cfg.Server.AllowedOrigins, []string{"http://localhost:5173"}) {
		t.Errorf("Expected default origin, got %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Server.ShutdownTimeout != 10*time.Second {
		t.Errorf("Expected 10s shutdown timeout, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Server.SessionReportInterval != time.Minute {
		t.Errorf("Expected 1m report interval, got %v", cfg.Server.SessionReportInterval)
	}
	if cfg.Deepgram.APIKey != "" || cfg.LLM.OpenAIAPIKey != "" {
		t.Error("Expected credentials to be optional and empty")
	}
	if cfg.Deepgram.BaseURL != "wss://api.deepgram.com/v1" {
		t.Errorf("Expected default Deepgram URL, got %s", cfg.Deepgram.BaseURL)
	}
	if cfg.Deepgram.SampleRate != 16000 || cfg.Deepgram.Channels != 1 || cfg.Deepgram.Encoding != "linear16" {
		t.Errorf("Expected PCM16 16kHz mono defaults, got %+v", cfg.Deepgram)
	}
	if !cfg.Deepgram.SmartFormat || !cfg.Deepgram.Punctuate || !cfg.Deepgram.InterimResults {
		t.Errorf("Expected boolean stream options on, got %+v", cfg.Deepgram)
	}
	if cfg.LLM.Provider != ProviderOpenAI {
		t.Errorf("Expected openai provider, got %s", cfg.LLM.Provider)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("ALLOWED_ORIGINS", "http://a.example, https://b.example ,")
	t.Setenv("SHUTDOWN_TIMEOUT", "3s")
	t.Setenv("STT_SAMPLE_RATE", "8000")
	t.Setenv("STT_INTERIM_RESULTS", "false")
	t.Setenv("LLM_PROVIDER", " Gemini ")
	t.Setenv("GEMINI_API_KEY", "g-key")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Expected port 9090, got %s", cfg.Server.Port)
	}
	want := []string{"http://a.example", "https://b.example"}
	if !reflect.DeepEqual(cfg.Server.AllowedOrigins, want) {
		t.Errorf("Expected %v, got %v", want, cfg.Server.AllowedOrigins)
	}
	if cfg.Server.ShutdownTimeout != 3*time.Second {
		t.Errorf("Expected 3s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Deepgram.SampleRate != 8000 {
		t.Errorf("Expected 8000, got %d", cfg.Deepgram.SampleRate)
	}
	if cfg.Deepgram.InterimResults {
		t.Error("Expected interim results off")
	}
	if cfg.LLM.Provider != ProviderGemini || cfg.LLM.GeminiAPIKey != "g-key" {
		t.Errorf("Expected gemini with key, got %+v", cfg.LLM)
	}
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_MODEL", "from-env")

	path := filepath.Join(t.TempDir(), ".env")
	content := "DEEPGRAM_API_KEY=dg-from-file\nOPENAI_MODEL=from-file\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("DEEPGRAM_API_KEY") })

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Deepgram.APIKey != "dg-from-file" {
		t.Errorf("Expected key from file, got %q", cfg.Deepgram.APIKey)
	}
	if cfg.LLM.OpenAIModel != "from-env" {
		t.Errorf("Expected environment to win over file, got %q", cfg.LLM.OpenAIModel)
	}
}

func TestLoad_MissingEnvFileIsIgnored(t *testing.T) {
	clearEnv(t)

	if _, err := Load(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Errorf("Expected missing env file to be ignored, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Server:   ServerConfig{Port: "8080", ShutdownTimeout: time.Second},
			Deepgram: DeepgramConfig{BaseURL: "wss://api.deepgram.com/v1", SampleRate: 16000, Channels: 1},
			LLM:      LLMConfig{Provider: ProviderOpenAI},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"mock provider", func(c *Config) { c.LLM.Provider = ProviderMock }, ""},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "claude" }, "LLM_PROVIDER"},
		{"empty port", func(c *Config) { c.Server.Port = "" }, "PORT"},
		{"zero shutdown timeout", func(c *Config) { c.Server.ShutdownTimeout = 0 }, "SHUTDOWN_TIMEOUT"},
		{"negative report interval", func(c *Config) { c.Server.SessionReportInterval = -time.Second }, "SESSION_REPORT_INTERVAL"},
		{"zero sample rate", func(c *Config) { c.Deepgram.SampleRate = 0 }, "STT_SAMPLE_RATE"},
		{"zero channels", func(c *Config) { c.Deepgram.Channels = 0 }, "STT_CHANNELS"},
		{"bad base url", func(c *Config) { c.Deepgram.BaseURL = "ftp://x" }, "DEEPGRAM_BASE_URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error mentioning %s, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	if _, err := NewLogger(LogConfig{Env: "development", Level: "debug"}); err != nil {
		t.Errorf("Expected development logger, got %v", err)
	}
	if _, err := NewLogger(LogConfig{Level: "info"}); err != nil {
		t.Errorf("Expected production logger, got %v", err)
	}
	if _, err := NewLogger(LogConfig{Level: "loud"}); err == nil {
		t.Error("Expected an invalid level to be rejected")
	}
}
