package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const (
	reset  = "\033[0m"
	red    = "\033[31m"
	green  = "\033[32m"
	yellow = "\033[33m"
	purple = "\033[35m"
	cyan   = "\033[36m"
	gray   = "\033[37m"
	white  = "\033[97m"
)

// Handler writes human-readable colored log lines. Structured output is not
// needed for an interactive console process.
type Handler struct {
	level slog.Level
	w     io.Writer
	mu    *sync.Mutex
	attrs []slog.Attr
	group string
}

func NewHandler(w io.Writer, level slog.Level) *Handler {
	return &Handler{
		level: level,
		w:     w,
		mu:    &sync.Mutex{},
		attrs: []slog.Attr{},
	}
}

// New builds a slog.Logger writing to w at the named level. Unknown level
// names fall back to info.
func New(w io.Writer, levelName string) *slog.Logger {
	return slog.New(NewHandler(w, ParseLevel(levelName)))
}

func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
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

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	fmt.Fprintf(h.w, "%s%s%s ", gray, r.Time.Format("15:04:05.000"), reset)

	var levelColor string
	switch r.Level {
	case slog.LevelDebug:
		levelColor = purple
	case slog.LevelInfo:
		levelColor = green
	case slog.LevelWarn:
		levelColor = yellow
	case slog.LevelError:
		levelColor = red
	default:
		levelColor = white
	}
	fmt.Fprintf(h.w, "%s%-5s%s ", levelColor, r.Level.String(), reset)

	fmt.Fprintf(h.w, "%s%s%s", white, r.Message, reset)

	for _, a := range h.attrs {
		h.printAttr(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.printAttr(a)
		return true
	})

	fmt.Fprintln(h.w)
	return nil
}

func (h *Handler) printAttr(a slog.Attr) {
	key := a.Key
	if h.group != "" {
		key = h.group + "." + key
	}

	val := a.Value.Any()
	if t, ok := val.(time.Time); ok {
		val = t.Format(time.RFC3339)
	}

	fmt.Fprintf(h.w, " %s%s%s=%v", cyan, key, reset, val)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, len(h.attrs)+len(attrs))
	copy(merged, h.attrs)
	copy(merged[len(h.attrs):], attrs)

	return &Handler{
		level: h.level,
		w:     h.w,
		mu:    h.mu, // share the mutex, same output stream
		attrs: merged,
		group: h.group,
	}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	group := name
	if h.group != "" {
		group = h.group + "." + name
	}

	return &Handler{
		level: h.level,
		w:     h.w,
		mu:    h.mu,
		attrs: h.attrs,
		group: group,
	}
}
