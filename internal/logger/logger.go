package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options override the per-environment defaults. Zero values keep them.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // json or console
}

// NewLogger builds the process logger. prod and staging log JSON at info,
// local, dev and docker log console output at debug, and test only lets
// errors through.
func NewLogger(env string, opts Options) (*zap.Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(env) {
	case "prod", "staging":
		cfg = zap.NewProductionConfig()
	case "local", "dev", "docker":
		cfg = zap.NewDevelopmentConfig()
	case "test":
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	default:
		return nil, fmt.Errorf("unknown environment %q for logger", env)
	}

	if opts.Level != "" {
		level, err := zapcore.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(level)
	}

	switch opts.Format {
	case "":
	case "json", "console":
		cfg.Encoding = opts.Format
		if opts.Format == "json" {
			cfg.EncoderConfig = zap.NewProductionEncoderConfig()
		}
	default:
		return nil, fmt.Errorf("invalid log format %q", opts.Format)
	}

	l, err := cfg.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return l.Named("sqee"), nil
}

// ForScope returns a child logger tagged with a registry scope.
func ForScope(l *zap.Logger, scope string) *zap.Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return l.With(zap.String("scope", scope))
}

// Collection is the field every collection-scoped log line carries.
func Collection(name string) zap.Field {
	return zap.String("collection", name)
}
