package pkg

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

// Component identifies a subsystem for log filtering.
type Component string

// I3C engine component identifiers.
const (
	ComponentController Component = "controller"
	ComponentTarget     Component = "target"
	ComponentBus        Component = "bus"
	ComponentSim        Component = "sim"
	ComponentRecovery   Component = "recovery"
	ComponentHDR        Component = "hdr"
)

// Attribute keys shared by the engines. Integer values under KeyAddress,
// KeyCode and KeyMDB are rendered as hex bytes.
const (
	KeyComponent = "component"
	KeyAddress   = "address"
	KeyState     = "state"
	KeyCondition = "condition"
	KeyCode      = "code"
	KeyMDB       = "mdb"
	KeyTime      = "time"
)

// LogFormat specifies the output format for logging.
type LogFormat int

// Log format options.
const (
	LogFormatText LogFormat = iota // Text format (default)
	LogFormatJSON                  // JSON format
)

var (
	// DefaultLogger is the logger every engine writes through.
	DefaultLogger *slog.Logger

	logLevel = new(slog.LevelVar)
	logMutex sync.RWMutex
)

func init() {
	logLevel.Set(slog.LevelWarn)
	DefaultLogger = slog.New(newHandler(os.Stderr, LogFormatText, nil))
}

// byteAttr renders bus bytes the way they appear in traces and datasheets.
func byteAttr(_ []string, a slog.Attr) slog.Attr {
	switch a.Key {
	case KeyAddress, KeyCode, KeyMDB:
	default:
		return a
	}
	switch a.Value.Kind() {
	case slog.KindUint64:
		return slog.String(a.Key, fmt.Sprintf("0x%02X", a.Value.Uint64()))
	case slog.KindInt64:
		if v := a.Value.Int64(); v >= 0 {
			return slog.String(a.Key, fmt.Sprintf("0x%02X", v))
		}
	}
	return a
}

// newHandler builds a handler for format. Options without a ReplaceAttr
// get the hex byte rendering; nil options also follow the global level.
func newHandler(w io.Writer, format LogFormat, opts *slog.HandlerOptions) slog.Handler {
	o := slog.HandlerOptions{Level: logLevel}
	if opts != nil {
		o = *opts
	}
	if o.ReplaceAttr == nil {
		o.ReplaceAttr = byteAttr
	}
	if format == LogFormatJSON {
		return slog.NewJSONHandler(w, &o)
	}
	return slog.NewTextHandler(w, &o)
}

// SetLogLevel sets the minimum level for engine logging.
func SetLogLevel(level slog.Level) {
	logLevel.Set(level)
}

// GetLogLevel returns the current minimum log level.
func GetLogLevel() slog.Level {
	return logLevel.Level()
}

// DebugEnabled reports whether debug records would be emitted. Hot paths
// check it before building log arguments.
func DebugEnabled() bool {
	return GetLogLevel() <= slog.LevelDebug
}

// SetLogger replaces the default logger.
func SetLogger(logger *slog.Logger) {
	logMutex.Lock()
	DefaultLogger = logger
	logMutex.Unlock()
}

// SetLogFormat switches the default logger to format on os.Stderr at the
// global level.
func SetLogFormat(format LogFormat) {
	SetLogger(slog.New(newHandler(os.Stderr, format, nil)))
}

// NewLogger creates a text logger writing to w.
func NewLogger(w io.Writer, opts *slog.HandlerOptions) *slog.Logger {
	return slog.New(newHandler(w, LogFormatText, opts))
}

// NewJSONLogger creates a JSON logger writing to w.
func NewJSONLogger(w io.Writer, opts *slog.HandlerOptions) *slog.Logger {
	return slog.New(newHandler(w, LogFormatJSON, opts))
}

func logAt(level slog.Level, component Component, msg string, args []any) {
	logMutex.RLock()
	logger := DefaultLogger
	logMutex.RUnlock()
	if !logger.Enabled(context.Background(), level) {
		return
	}
	logger.Log(context.Background(), level, msg,
		append([]any{slog.String(KeyComponent, string(component))}, args...)...)
}

// LogDebug logs a debug record tagged with component.
func LogDebug(component Component, msg string, args ...any) {
	logAt(slog.LevelDebug, component, msg, args)
}

// LogInfo logs an info record tagged with component.
func LogInfo(component Component, msg string, args ...any) {
	logAt(slog.LevelInfo, component, msg, args)
}

// LogWarn logs a warning record tagged with component.
func LogWarn(component Component, msg string, args ...any) {
	logAt(slog.LevelWarn, component, msg, args)
}

// LogError logs an error record tagged with component.
func LogError(component Component, msg string, args ...any) {
	logAt(slog.LevelError, component, msg, args)
}
