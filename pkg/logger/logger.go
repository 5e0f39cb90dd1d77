// Package logger builds the zap loggers shared by the session packages and orctl.
package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a production JSON logger for env "prod" and a development console logger otherwise.
// level overrides the default level when it parses ("debug", "info", "warn", "error").
func New(env, level string) *zap.Logger {
	var cfg zap.Config
	if env == "prod" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if level != "" {
		var lvl zapcore.Level
		if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err == nil {
			cfg.Level = zap.NewAtomicLevelAt(lvl)
		}
	}

	z, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return z
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// Mask hides all but the first and last characters of s.
func Mask(s string) string {
	if len(s) <= 3 {
		return strings.Repeat("*", len(s))
	}
	return s[:1] + strings.Repeat("*", len(s)-2) + s[len(s)-1:]
}
