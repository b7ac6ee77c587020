// Package logger provides the slog handlers used by the CLI and server.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
)

// ANSI escape sequences. Output is meant for terminals; pipe it through a
// pager that understands color or use a plain text handler instead.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorGray   = "\033[90m"
)

// ColorHandler is a slog.Handler that writes human-oriented colored lines:
// debug in gray, warnings in yellow, errors in red. Info messages that mark
// run progress, answered questions and written artifacts, come out green so
// they stand out in long batch logs.
type ColorHandler struct {
	opts  slog.HandlerOptions
	attrs []slog.Attr
	group string

	mu *sync.Mutex
	w  io.Writer
}

// NewColorHandler creates a handler writing colored lines to w. A nil opts
// uses the slog defaults.
func NewColorHandler(w io.Writer, opts *slog.HandlerOptions) *ColorHandler {
	h := &ColorHandler{w: w, mu: &sync.Mutex{}}
	if opts != nil {
		h.opts = *opts
	}
	return h
}

// Enabled reports whether level is at or above the configured minimum.
func (h *ColorHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

// Handle writes one colored line: time, level, message, attributes.
func (h *ColorHandler) Handle(_ context.Context, record slog.Record) error {
	color := ""
	switch {
	case record.Level >= slog.LevelError:
		color = colorRed
	case record.Level >= slog.LevelWarn:
		color = colorYellow
	case record.Level < slog.LevelInfo:
		color = colorGray
	case isMilestone(record.Message):
		color = colorGreen
	}

	var b strings.Builder
	if !record.Time.IsZero() {
		b.WriteString(record.Time.Format("15:04:05.000"))
		b.WriteByte(' ')
	}
	b.WriteString(color)
	b.WriteString(record.Level.String())
	b.WriteByte(' ')
	b.WriteString(record.Message)

	for _, attr := range h.attrs {
		writeAttr(&b, attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		writeAttr(&b, h.qualify(attr))
		return true
	})

	if color != "" {
		b.WriteString(colorReset)
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

// WithAttrs returns a handler that prepends attrs to every record.
func (h *ColorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h2 := h.clone()
	for _, attr := range attrs {
		h2.attrs = append(h2.attrs, h.qualify(attr))
	}
	return h2
}

// WithGroup returns a handler that prefixes subsequent attribute keys with
// name.
func (h *ColorHandler) WithGroup(name string) slog.Handler {
	h2 := h.clone()
	if name == "" {
		return h2
	}
	if h2.group != "" {
		h2.group += "." + name
	} else {
		h2.group = name
	}
	return h2
}

func (h *ColorHandler) clone() *ColorHandler {
	return &ColorHandler{
		opts:  h.opts,
		attrs: append([]slog.Attr(nil), h.attrs...),
		group: h.group,
		mu:    h.mu,
		w:     h.w,
	}
}

func (h *ColorHandler) qualify(attr slog.Attr) slog.Attr {
	if h.group == "" {
		return attr
	}
	return slog.Attr{Key: h.group + "." + attr.Key, Value: attr.Value}
}

func writeAttr(b *strings.Builder, attr slog.Attr) {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return
	}
	b.WriteByte(' ')
	b.WriteString(attr.Key)
	b.WriteByte('=')
	value := attr.Value.String()
	if strings.ContainsAny(value, " \t\n\"=") {
		value = strconv.Quote(value)
	}
	b.WriteString(value)
}

// isMilestone reports whether an info message marks batch-run progress.
func isMilestone(message string) bool {
	lower := strings.ToLower(message)
	return strings.Contains(lower, "answered") ||
		strings.Contains(lower, "exported") ||
		strings.Contains(lower, "written")
}

// NewDefaultLogger creates a colored stderr logger at the given level.
func NewDefaultLogger(level slog.Level) *slog.Logger {
	return slog.New(NewColorHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
