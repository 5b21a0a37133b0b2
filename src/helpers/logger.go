package helpers

import (
	"fmt"

	"lucidodm/src/settings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the sugared logger shared by the stores and the model registry.
func NewLogger(config *settings.Arguments) (*zap.SugaredLogger, error) {
	var logger *zap.Logger
	var err error

	level := zapcore.InfoLevel
	if config.LogLevel != "" {
		if err := level.UnmarshalText([]byte(config.LogLevel)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", config.LogLevel, err)
		}
	}

	if config.Debug {
		z := zap.NewDevelopmentConfig()
		z.OutputPaths = []string{"stdout"}
		if !config.Verbose && level > zapcore.DebugLevel {
			z.Level = zap.NewAtomicLevelAt(level)
		}
		logger, err = z.Build()
	} else {
		z := zap.NewProductionConfig()
		z.Level = zap.NewAtomicLevelAt(level)
		logger, err = z.Build()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return logger.Sugar(), nil
}
