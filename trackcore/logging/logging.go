// Package logging implements S8: structured, rotated logging shared by
// every component above, continuing the teacher's bracketed
// "[component] message" texture as a single component field on a zap
// logger instead, and rotating the file sink with lumberjack the way
// the pack's other zap-based services do.
package logging

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures New. The zero value logs JSON to stderr only.
type Options struct {
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Level      zapcore.Level
}

// New builds a zap logger writing structured JSON to stderr and,
// when opts.FilePath is set, through a lumberjack-rotated file sink.
func New(opts Options) (*zap.Logger, error) {
	encoderCfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	// Stderr is wrapped so that only its Write is visible: Sync on stderr
	// is then a no-op, since fsync fails when stderr is a pipe and there is
	// nothing buffered to flush. Sync still flushes the file sink.
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(struct{ io.Writer }{os.Stderr}), opts.Level),
	}

	if opts.FilePath != "" {
		sink := zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    orDefault(opts.MaxSizeMB, 50),
			MaxBackups: orDefault(opts.MaxBackups, 5),
			MaxAge:     orDefault(opts.MaxAgeDays, 28),
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), sink, opts.Level))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}

// Component returns a SugaredLogger tagged with a "component" field,
// the structured-field successor to the teacher's "[audiofile]" /
// "[player]" message prefixes.
func Component(base *zap.Logger, name string) *zap.SugaredLogger {
	return base.With(zap.String("component", name)).Sugar()
}

// Warner adapts a SugaredLogger to the single-error Warn(msg, err)
// shape several core packages (package source's CacheLogger, package
// feeder's CacheWarner) expect of their logging collaborator, without
// making those packages import zap directly.
type Warner struct {
	*zap.SugaredLogger
}

func (w Warner) Warn(msg string, err error) {
	w.SugaredLogger.Warnw(msg, "error", err)
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
