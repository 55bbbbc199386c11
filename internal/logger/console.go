package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/fatih/color"
)

var (
	errorColor   = color.New(color.FgRed)
	warnColor    = color.New(color.FgYellow)
	verboseColor = color.New(color.FgCyan)
)

// ConsoleHandler writes one short colored line per record.
type ConsoleHandler struct {
	writer  io.Writer
	verbose bool
	attrs   []slog.Attr
}

// NewConsoleHandler creates a console handler writing to w.
func NewConsoleHandler(w io.Writer, verbose bool) *ConsoleHandler {
	return &ConsoleHandler{writer: w, verbose: verbose}
}

func (h *ConsoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	switch {
	case level <= LevelTrace:
		return false
	case level == slog.LevelDebug:
		return h.verbose
	default:
		return true
	}
}

func (h *ConsoleHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(r.Message)

	for _, a := range h.attrs {
		writeAttr(&b, a)
	}

	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, a)
		return true
	})

	line := b.String()

	switch r.Level {
	case slog.LevelError:
		_, _ = errorColor.Fprintf(h.writer, "ERROR: %s\n", line)
	case slog.LevelWarn:
		_, _ = warnColor.Fprintf(h.writer, "WARNING: %s\n", line)
	case slog.LevelDebug:
		_, _ = verboseColor.Fprintf(h.writer, "VERBOSE: %s\n", line)
	default:
		_, _ = fmt.Fprintln(h.writer, line)
	}

	return nil
}

// writeAttr appends " key=value". Window handles print in hex, as Spy++ shows them.
func writeAttr(b *strings.Builder, a slog.Attr) {
	a.Value = a.Value.Resolve()

	b.WriteByte(' ')
	b.WriteString(a.Key)
	b.WriteByte('=')

	if a.Key == "hwnd" && a.Value.Kind() == slog.KindUint64 {
		fmt.Fprintf(b, "%#x", a.Value.Uint64())
		return
	}

	b.WriteString(a.Value.String())
}

func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)

	return &ConsoleHandler{writer: h.writer, verbose: h.verbose, attrs: merged}
}

func (h *ConsoleHandler) WithGroup(_ string) slog.Handler {
	return h
}
