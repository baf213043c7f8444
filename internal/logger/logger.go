package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Component names used with Get.
const (
	Main     = "main"
	HTTP     = "http"
	Webhook  = "webhook"
	Devices  = "devices"
	Hub      = "hub"
	LED      = "led"
	Store    = "store"
	Client   = "client"
	Limiter  = "ratelimit"
	Shutdown = "shutdown"
)

var (
	mu          sync.RWMutex
	out         io.Writer = os.Stdout
	format                = "text"
	level                 = new(slog.LevelVar)
	loggerCache sync.Map
)

// Configure sets the output format ("text" or "json") and the minimum level for
// every logger returned by Get.
func Configure(logFormat, logLevel string) {
	SetOutput(os.Stdout, logFormat, logLevel)
}

// SetOutput is Configure with an explicit writer.
func SetOutput(w io.Writer, logFormat, logLevel string) {
	mu.Lock()
	out = w
	format = strings.ToLower(strings.TrimSpace(logFormat))
	level.Set(parseLevel(logLevel))
	mu.Unlock()

	loggerCache.Clear()
}

// Get returns the logger for a component, tagged with component=name.
func Get(name string) *slog.Logger {
	if l, ok := loggerCache.Load(name); ok {
		return l.(*slog.Logger)
	}
	l := newLogger(name)
	loggerCache.Store(name, l)
	return l
}

func newLogger(component string) *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	l := slog.New(handler)
	if component != "" {
		l = l.With("component", component)
	}
	return l
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
