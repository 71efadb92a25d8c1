package utilities

import (
	"os"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Console destinations for Config.Output.
const (
	OutputStdout = "stdout"
	OutputStderr = "stderr"
)

type Config struct {
	Level string
	Dev   bool
	// Output picks the console stream. Empty means stderr in dev mode and
	// stdout otherwise.
	Output string
	// File, when set, receives a JSON copy of every entry rotated daily.
	File    string
	MaxAge  time.Duration
	Service string
}

// ConfigFromEnv reads minimal config from env vars.
func ConfigFromEnv() Config {
	dev := os.Getenv("LOG_DEV") == "1"
	lvl := os.Getenv("LOG_LEVEL")
	if lvl == "" {
		if dev {
			lvl = "debug"
		} else {
			lvl = "info"
		}
	}
	maxAge := 7 * 24 * time.Hour
	if v := os.Getenv("LOG_MAX_AGE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			maxAge = d
		}
	}
	return Config{
		Level:   lvl,
		Dev:     dev,
		Output:  os.Getenv("LOG_OUTPUT"),
		File:    os.Getenv("LOG_FILE"),
		MaxAge:  maxAge,
		Service: "zippora-client",
	}
}

func levelFromString(l string) zapcore.Level {
	switch l {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func consoleSink(cfg Config) *os.File {
	switch cfg.Output {
	case OutputStderr:
		return os.Stderr
	case OutputStdout:
		return os.Stdout
	}
	if cfg.Dev {
		return os.Stderr
	}
	return os.Stdout
}

// Init initializes and returns a *zap.Logger
func Init(cfg Config) (*zap.Logger, error) {
	lvl := levelFromString(cfg.Level)

	var console zapcore.Core
	sink := zapcore.AddSync(consoleSink(cfg))
	if cfg.Dev {
		encCfg := zap.NewDevelopmentEncoderConfig()
		console = zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), sink, lvl)
	} else {
		encoderCfg := zap.NewProductionEncoderConfig()
		encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		console = zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), sink, lvl)
	}

	core := console
	if cfg.File != "" {
		rot, err := rotatelogs.New(
			cfg.File+".%Y%m%d",
			rotatelogs.WithLinkName(cfg.File),
			rotatelogs.WithMaxAge(cfg.MaxAge),
			rotatelogs.WithRotationTime(24*time.Hour),
		)
		if err != nil {
			return nil, err
		}
		fileEnc := zap.NewProductionEncoderConfig()
		fileEnc.EncodeTime = zapcore.ISO8601TimeEncoder
		core = zapcore.NewTee(console, zapcore.NewCore(zapcore.NewJSONEncoder(fileEnc), zapcore.AddSync(rot), lvl))
	}

	opts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)}
	lg := zap.New(core, opts...)
	if cfg.Service != "" {
		lg = lg.With(zap.String("service", cfg.Service))
	}
	return lg, nil
}
