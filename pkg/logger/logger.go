package logger

import (
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Leveled logger shared by the API server and the merge CLI.
// Printf-style helpers over a zap sugared logger; the level is atomic so
// Init may be called again at runtime.

var (
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	sugar = newSugar(zapcore.Lock(os.Stdout))
)

func newSugar(ws zapcore.WriteSyncer) *zap.SugaredLogger {
	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339)
	enc.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), ws, level)
	return zap.New(core).Sugar()
}

// Init sets the global log level (case-insensitive: debug, info, warn, error, fatal).
// Unknown values fall back to info.
func Init(l string) {
	switch strings.ToLower(strings.TrimSpace(l)) {
	case "debug":
		level.SetLevel(zapcore.DebugLevel)
	case "warn", "warning":
		level.SetLevel(zapcore.WarnLevel)
	case "error":
		level.SetLevel(zapcore.ErrorLevel)
	case "fatal":
		level.SetLevel(zapcore.FatalLevel)
	default:
		level.SetLevel(zapcore.InfoLevel)
	}
}

func Debugf(format string, v ...interface{}) { sugar.Debugf(format, v...) }
func Infof(format string, v ...interface{})  { sugar.Infof(format, v...) }
func Warnf(format string, v ...interface{})  { sugar.Warnf(format, v...) }
func Errorf(format string, v ...interface{}) { sugar.Errorf(format, v...) }

// Fatalf logs regardless of level and exits with status 1.
func Fatalf(format string, v ...interface{}) {
	sugar.Errorf(format, v...)
	_ = sugar.Sync()
	os.Exit(1)
}

// Println kept for brief messages (maps to Info)
func Println(v ...interface{}) {
	sugar.Info(strings.TrimSuffix(fmt.Sprintln(v...), "\n"))
}

func Debug(v string) { sugar.Debug(v) }
func Info(v string)  { sugar.Info(v) }
func Warn(v string)  { sugar.Warn(v) }
func Error(v string) { sugar.Error(v) }

// Sync flushes buffered entries; call before the process exits.
func Sync() { _ = sugar.Sync() }

// LevelString returns the current level as text.
func LevelString() string {
	return level.Level().String()
}
