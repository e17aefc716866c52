package main

import (
	"os"
	"strings"

	"github.com/innernet/server/internal/config"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newLogger builds the process logger from the [logging] section. The
// returned func flushes the logger and closes its output; call it once on
// exit.
func newLogger(cfg config.LoggingConfig) (*zap.Logger, func(), error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, errors.Wrap(err, "logging.level")
	}

	var enc zapcore.Encoder
	switch strings.ToLower(cfg.Format) {
	case "json":
		ec := zap.NewProductionEncoderConfig()
		ec.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(ec)
	case "", "console":
		ec := zap.NewDevelopmentEncoderConfig()
		ec.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		ec.ConsoleSeparator = "  "
		if cfg.Output == "" || cfg.Output == "stderr" || cfg.Output == "stdout" {
			ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
		enc = zapcore.NewConsoleEncoder(ec)
	default:
		return nil, nil, errors.Errorf("logging.format: unknown format %q", cfg.Format)
	}

	var out zapcore.WriteSyncer
	closeOut := func() {}
	switch cfg.Output {
	case "", "stderr":
		out = zapcore.Lock(os.Stderr)
	case "stdout":
		out = zapcore.Lock(os.Stdout)
	default:
		ws, closeFile, err := zap.Open(cfg.Output)
		if err != nil {
			return nil, nil, errors.Wrap(err, "logging.output")
		}
		out, closeOut = ws, closeFile
	}

	log := zap.New(zapcore.NewCore(enc, out, level),
		zap.ErrorOutput(zapcore.Lock(os.Stderr)),
		zap.AddStacktrace(zapcore.DPanicLevel),
	).Named("innernet")

	return log, func() {
		_ = log.Sync()
		closeOut()
	}, nil
}
