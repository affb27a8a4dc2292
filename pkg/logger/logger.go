// Package logger wires a zap JSON logger behind the logr interface and
// propagates it through contexts.
package logger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/oakwood-commons/kqlrun/pkg/settings"
)

// Unexported custom type for the context key to prevent collisions.
type loggerContextKey struct{}

const (
	CommitKey    = "commit"
	VersionKey   = "version"
	GoVersionKey = "go_version"
	TimeStampKey = "timestamp"
	MessageKey   = "message"
)

var (
	once sync.Once // Ensures the global logger is built only once

	// globalZapLogger is the underlying *zap.Logger for Zap-specific
	// operations like Sync().
	globalZapLogger *zap.Logger

	// globalLogrLogger is the logr.Logger instance application code uses when
	// no logger is found in the context.
	globalLogrLogger *logr.Logger

	// defaultNoopLogger is a logger that does nothing, used as a fallback.
	defaultNoopLogger logr.Logger = logr.Discard()
)

// Get initializes the global Zap and Logr loggers at the given minimum level
// and returns the logr facade. It can only be called once; subsequent calls
// return the already-built logger regardless of the level argument.
func Get(logLevel int8) *logr.Logger {
	once.Do(func() {
		encoderCfg := zap.NewProductionEncoderConfig()
		encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoderCfg.TimeKey = TimeStampKey
		encoderCfg.MessageKey = MessageKey

		minimumLogLevel := zapcore.Level(logLevel)

		buildInfo, _ := debug.ReadBuildInfo()
		core := zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderCfg),
			zapcore.Lock(os.Stderr),
			zap.NewAtomicLevelAt(minimumLogLevel),
		).With(
			[]zapcore.Field{
				zap.String(CommitKey, settings.VersionInformation.Commit),
				zap.String(VersionKey, settings.VersionInformation.BuildVersion),
				zap.String(GoVersionKey, buildInfo.GoVersion),
			},
		)

		globalZapLogger = zap.New(core,
			zap.AddStacktrace(zap.ErrorLevel),
			zap.WithFatalHook(zapcore.WriteThenPanic),
		)

		gl := zapr.NewLogger(globalZapLogger)
		globalLogrLogger = &gl
	})
	if globalLogrLogger == nil {
		// Unreachable with once.Do, kept as a guard
		return &defaultNoopLogger
	}
	return globalLogrLogger
}

// WithLogger returns a new context with the provided logr.Logger attached.
// If the context already carries the same logger instance, the original
// context is returned.
func WithLogger(ctx context.Context, log *logr.Logger) context.Context {
	if lp, ok := ctx.Value(loggerContextKey{}).(*logr.Logger); ok {
		if lp == log {
			return ctx
		}
	}
	return context.WithValue(ctx, loggerContextKey{}, log)
}

// FromContext retrieves the logr.Logger from the context, falling back to
// the global logger, and to a no-op logger when Get has never been called.
func FromContext(ctx context.Context) *logr.Logger {
	if log, ok := ctx.Value(loggerContextKey{}).(*logr.Logger); ok {
		return log
	} else if log := globalLogrLogger; log != nil {
		return log
	}
	return &defaultNoopLogger
}

// Sync flushes any buffered log entries to their destination. Call before
// the process exits, typically from main.
func Sync() {
	if globalZapLogger != nil {
		if err := globalZapLogger.Sync(); err != nil {
			if isIgnorableSyncError(err) {
				return
			}
			fmt.Fprintf(os.Stderr, "WARNING: failed to sync zap logger: %v\n", err)
		}
	}
}

// isIgnorableSyncError returns true for common Sync errors on pipes/TTYs.
// Windows consoles can return ERROR_INVALID_HANDLE wrapped in *os.PathError,
// which does not compare equal to syscall.EINVAL, so we also string-match.
func isIgnorableSyncError(err error) bool {
	if errors.Is(err, syscall.ENOTTY) || errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.EIO) || errors.Is(err, syscall.EBADF) {
		return true
	}
	if strings.Contains(err.Error(), "The handle is invalid") {
		return true
	}
	return false
}

// GetNoopLogger returns a logger that discards everything, for tests and as
// a safe default.
func GetNoopLogger() *logr.Logger {
	return &defaultNoopLogger
}

// WithValues returns a new logr.Logger with additional key-value pairs for
// structured logging.
func WithValues(lgr *logr.Logger, keysAndValues ...any) *logr.Logger {
	nlgr := lgr.WithValues(keysAndValues...)
	return &nlgr
}
