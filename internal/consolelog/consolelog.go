// Package consolelog provides the structured logging sink used by the
// command-line driver and the virtual machine core. It wraps log/slog
// with a handler that favours operator-readable output over JSON.
package consolelog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Level is re-exported so callers need not import log/slog directly.
type Level = slog.Level

const (
	Debug = slog.LevelDebug
	Info  = slog.LevelInfo
	Warn  = slog.LevelWarn
	Error = slog.LevelError
)

// ParseLevel maps the --log-level flag's values onto slog levels.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return Debug, nil
	case "info", "":
		return Info, nil
	case "warn", "warning":
		return Warn, nil
	case "error":
		return Error, nil
	default:
		return 0, fmt.Errorf("consolelog: unknown log level %q", s)
	}
}

// New builds a logger that writes formatted records to out at or above
// level.
func New(out io.Writer, level Level) *slog.Logger {
	lv := new(slog.LevelVar)
	lv.Set(level)
	return slog.New(&handler{out: out, mut: new(sync.Mutex), level: lv})
}

// handler implements slog.Handler with a compact, single-line format
// suited to a scrolling terminal rather than a log aggregator.
type handler struct {
	mut   *sync.Mutex
	out   io.Writer
	level *slog.LevelVar
	attrs []slog.Attr
}

func (h *handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *handler) Handle(_ context.Context, rec slog.Record) error {
	buf := make([]byte, 0, 256)
	out := bytes.NewBuffer(buf)

	fmt.Fprintf(out, "%s [%s] %s", rec.Time.Format(time.TimeOnly), rec.Level.String(), rec.Message)

	for _, a := range h.attrs {
		fmt.Fprintf(out, " %s=%v", a.Key, a.Value.Any())
	}
	rec.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(out, " %s=%v", a.Key, a.Value.Any())
		return true
	})
	fmt.Fprintln(out)

	h.mut.Lock()
	defer h.mut.Unlock()
	_, err := h.out.Write(out.Bytes())
	return err
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &handler{out: h.out, mut: h.mut, level: h.level, attrs: merged}
}

func (h *handler) WithGroup(_ string) slog.Handler {
	// No nested device subsystem currently attributes its logs by group;
	// groups collapse to the parent handler rather than being dropped.
	return h
}
