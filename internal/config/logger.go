package config

import (
	"fmt"

	"go.uber.org/zap"
)

// NewLogger builds the process logger. APP_ENV=development switches to the
// console encoder.
func NewLogger(c LogConfig) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.Level, err)
	}

	zc := zap.NewProductionConfig()
	if c.Env == "development" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level

	return zc.Build()
}
