package logging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Recorder is a slog.Handler that mirrors records into a bounded in-memory
// ring so the status surface can expose recent log lines. It delegates the
// actual output to the wrapped handler.
type Recorder struct {
	inner slog.Handler
	attrs []slog.Attr
	ring  *ring
}

type ring struct {
	mu    sync.Mutex
	lines []string
	next  int
	full  bool
}

func NewRecorder(inner slog.Handler, keep int) *Recorder {
	if keep <= 0 {
		keep = 100
	}
	return &Recorder{inner: inner, ring: &ring{lines: make([]string, keep)}}
}

func (r *Recorder) Enabled(ctx context.Context, level slog.Level) bool {
	return r.inner.Enabled(ctx, level)
}

func (r *Recorder) Handle(ctx context.Context, rec slog.Record) error {
	var b strings.Builder
	b.WriteString(rec.Time.Format("15:04:05"))
	b.WriteByte(' ')
	b.WriteString(rec.Level.String())
	b.WriteByte(' ')
	b.WriteString(rec.Message)
	for _, a := range r.attrs {
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value)
	}
	rec.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value)
		return true
	})
	r.ring.add(b.String())
	return r.inner.Handle(ctx, rec)
}

// WithAttrs returns a handler sharing the same ring, so every module's lines
// land in one buffer.
func (r *Recorder) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Recorder{
		inner: r.inner.WithAttrs(attrs),
		attrs: append(append([]slog.Attr(nil), r.attrs...), attrs...),
		ring:  r.ring,
	}
}

func (r *Recorder) WithGroup(name string) slog.Handler {
	return &Recorder{inner: r.inner.WithGroup(name), attrs: r.attrs, ring: r.ring}
}

// Recent returns the captured lines, oldest first.
func (r *Recorder) Recent() []string {
	return r.ring.snapshot()
}

func (g *ring) add(line string) {
	g.mu.Lock()
	g.lines[g.next] = line
	g.next++
	if g.next == len(g.lines) {
		g.next = 0
		g.full = true
	}
	g.mu.Unlock()
}

func (g *ring) snapshot() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []string
	if g.full {
		out = append(out, g.lines[g.next:]...)
	}
	out = append(out, g.lines[:g.next]...)
	return out
}
