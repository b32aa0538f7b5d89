// Package config builds the process configuration record from defaults, an optional
// .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// LLM providers accepted by LLM_PROVIDER
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderMock   = "mock"
)

// Config is the explicit configuration record handed to every component
type Config struct {
	Server   ServerConfig   `mapstructure:",squash"`
	Log      LogConfig      `mapstructure:",squash"`
	Deepgram DeepgramConfig `mapstructure:",squash"`
	LLM      LLMConfig      `mapstructure:",squash"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// Zero disables the periodic session report
	SessionReportInterval time.Duration `mapstructure:"session_report_interval"`
}

type LogConfig struct {
	Env   string `mapstructure:"app_env"`
	Level string `mapstructure:"log_level"`
}

// DeepgramConfig holds the speech-to-text credential and stream parameters
type DeepgramConfig struct {
	APIKey         string `mapstructure:"deepgram_api_key"`
	BaseURL        string `mapstructure:"deepgram_base_url"`
	Model          string `mapstructure:"stt_model"`
	Language       string `mapstructure:"stt_language"`
	Encoding       string `mapstructure:"stt_encoding"`
	SampleRate     int    `mapstructure:"stt_sample_rate"`
	Channels       int    `mapstructure:"stt_channels"`
	SmartFormat    bool   `mapstructure:"stt_smart_format"`
	Punctuate      bool   `mapstructure:"stt_punctuate"`
	InterimResults bool   `mapstructure:"stt_interim_results"`
}

// LLMConfig holds the language-model provider selection and credentials
type LLMConfig struct {
	Provider     string `mapstructure:"llm_provider"`
	OpenAIAPIKey string `mapstructure:"openai_api_key"`
	OpenAIModel  string `mapstructure:"openai_model"`
	OpenAIURL    string `mapstructure:"openai_base_url"`
	GeminiAPIKey string `mapstructure:"gemini_api_key"`
	GeminiModel  string `mapstructure:"gemini_model"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("allowed_origins", "http://localhost:5173")
	v.SetDefault("shutdown_timeout", "10s")
	v.SetDefault("session_report_interval", "1m")

	v.SetDefault("app_env", "production")
	v.SetDefault("log_level", "info")

	v.SetDefault("deepgram_api_key", "")
	v.SetDefault("deepgram_base_url", "wss://api.deepgram.com/v1")
	v.SetDefault("stt_model", "nova-2")
	v.SetDefault("stt_language", "en-US")
	v.SetDefault("stt_encoding", "linear16")
	v.SetDefault("stt_sample_rate", 16000)
	v.SetDefault("stt_channels", 1)
	v.SetDefault("stt_smart_format", true)
	v.SetDefault("stt_punctuate", true)
	v.SetDefault("stt_interim_results", true)

	v.SetDefault("llm_provider", ProviderOpenAI)
	v.SetDefault("openai_api_key", "")
	v.SetDefault("openai_model", "gpt-4o-mini")
	v.SetDefault("openai_base_url", "")
	v.SetDefault("gemini_api_key", "")
	v.SetDefault("gemini_model", "gemini-2.0-flash")
}

// Load reads envFile when it exists, then the process environment, on top of the
// defaults. Values already present in the environment win over the file.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	var cfg Config
	err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg.Server.AllowedOrigins = cleanList(cfg.Server.AllowedOrigins)
	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks structural settings. Credentials are not checked here; each
// endpoint checks its own at call time.
func (c Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Server.Port) == "" {
		problems = append(problems, "PORT is required")
	}
	if c.Server.ShutdownTimeout <= 0 {
		problems = append(problems, "SHUTDOWN_TIMEOUT must be positive")
	}
	if c.Server.SessionReportInterval < 0 {
		problems = append(problems, "SESSION_REPORT_INTERVAL must not be negative")
	}
	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderGemini, ProviderMock:
	default:
		problems = append(problems, fmt.Sprintf("LLM_PROVIDER %q is not one of openai, gemini, mock", c.LLM.Provider))
	}
	if c.Deepgram.SampleRate <= 0 {
		problems = append(problems, "STT_SAMPLE_RATE must be positive")
	}
	if c.Deepgram.Channels <= 0 {
		problems = append(problems, "STT_CHANNELS must be positive")
	}
	if !strings.HasPrefix(c.Deepgram.BaseURL, "ws") && !strings.HasPrefix(c.Deepgram.BaseURL, "http") {
		problems = append(problems, "DEEPGRAM_BASE_URL must be a ws, wss, http or https URL")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
