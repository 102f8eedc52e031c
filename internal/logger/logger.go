// Package logger provides the process-wide leveled logger.
//
// The package exposes printf-style helpers backed by zap so callers never
// construct or carry logger instances. Level and format are mutable at
// runtime (SetLevel, SetFormat) to follow configuration reloads.
package logger

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu    sync.RWMutex
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	sugar = newSugar("console", os.Stdout)
)

func newSugar(format string, out *os.File) *zap.SugaredLogger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	var enc zapcore.Encoder
	if format == "json" {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.Lock(out), level)
	return zap.New(core).Sugar()
}

// SetLevel changes the minimum level. Accepts DEBUG, INFO, WARN, ERROR
// (case-insensitive); unknown values are ignored.
func SetLevel(l string) {
	switch strings.ToUpper(l) {
	case "DEBUG":
		level.SetLevel(zapcore.DebugLevel)
	case "INFO":
		level.SetLevel(zapcore.InfoLevel)
	case "WARN":
		level.SetLevel(zapcore.WarnLevel)
	case "ERROR":
		level.SetLevel(zapcore.ErrorLevel)
	}
}

// SetFormat switches the encoder. Accepts "console" (default) or "json".
func SetFormat(format string) {
	mu.Lock()
	defer mu.Unlock()
	sugar = newSugar(strings.ToLower(format), os.Stdout)
}

// Sync flushes buffered output. Call before process exit.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = sugar.Sync()
}

func Debug(format string, v ...any) {
	mu.RLock()
	defer mu.RUnlock()
	sugar.Debugf(format, v...)
}

func Info(format string, v ...any) {
	mu.RLock()
	defer mu.RUnlock()
	sugar.Infof(format, v...)
}

func Warn(format string, v ...any) {
	mu.RLock()
	defer mu.RUnlock()
	sugar.Warnf(format, v...)
}

func Error(format string, v ...any) {
	mu.RLock()
	defer mu.RUnlock()
	sugar.Errorf(format, v...)
}
