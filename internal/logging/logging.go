// Package logging builds the process-wide zap logger, grounded on
// xkilldash9x-scalpel-cli's internal/observability/logger.go: a tee of a
// console core and an optional lumberjack-rotated file core, built once
// behind a sync.Once.
package logging

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/tripleyak/dev-browser-studio/internal/config"
)

var (
	globalMu     sync.RWMutex
	globalLogger *zap.Logger
	once         sync.Once
)

func storeGlobal(l *zap.Logger) {
	globalMu.Lock()
	globalLogger = l
	globalMu.Unlock()
}

func loadGlobal() *zap.Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// New builds the global logger from cfg. Safe to call more than once;
// only the first call takes effect.
func New(cfg config.LoggingConfig) *zap.Logger {
	once.Do(func() {
		level := zap.NewAtomicLevel()
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			level.SetLevel(zap.InfoLevel)
		}

		encoderCfg := zap.NewProductionEncoderConfig()
		encoderCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02T15:04:05.000Z07:00")

		var consoleEncoder zapcore.Encoder
		if cfg.Format == "json" {
			consoleEncoder = zapcore.NewJSONEncoder(encoderCfg)
		} else {
			encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
			consoleEncoder = zapcore.NewConsoleEncoder(encoderCfg)
		}
		cores := []zapcore.Core{zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stdout), level)}

		if cfg.File != "" {
			fileEncoder := zapcore.NewJSONEncoder(encoderCfg)
			fileWriter := zapcore.AddSync(&lumberjack.Logger{
				Filename:   cfg.File,
				MaxSize:    cfg.MaxSizeMB,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAgeDays,
				Compress:   cfg.Compress,
			})
			cores = append(cores, zapcore.NewCore(fileEncoder, fileWriter, level))
		}

		logger := zap.New(zapcore.NewTee(cores...), zap.AddStacktrace(zap.ErrorLevel))
		storeGlobal(logger)
	})
	return Get()
}

// Get returns the global logger, falling back to a no-op logger if New
// hasn't run yet (e.g. in a package's own tests).
func Get() *zap.Logger {
	if l := loadGlobal(); l != nil {
		return l
	}
	return zap.NewNop()
}

// Sync flushes buffered log entries, suppressing the benign
// "sync /dev/stdout: invalid argument" error some terminals return.
func Sync() error {
	l := loadGlobal()
	if l == nil {
		return nil
	}
	if err := l.Sync(); err != nil && !strings.Contains(err.Error(), "invalid argument") {
		return err
	}
	return nil
}
