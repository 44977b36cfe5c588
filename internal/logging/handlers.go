package logging

import (
	"context"
	"errors"
	"log/slog"
)

// ContextProvider returns attributes that change while the process runs, such as the
// current descent phase and tick. It is called once per record.
type ContextProvider func() []slog.Attr

// fanout delivers each record to every sink that accepts its level.
type fanout struct {
	sinks []slog.Handler
}

func newFanout(sinks ...slog.Handler) *fanout {
	f := &fanout{sinks: make([]slog.Handler, 0, len(sinks))}
	for _, s := range sinks {
		if s != nil {
			f.sinks = append(f.sinks, s)
		}
	}
	return f
}

func (f *fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, s := range f.sinks {
		if s.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle keeps going past a failing sink (Graylog unreachable, closed file) and
// returns the joined failures.
func (f *fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, s := range f.sinks {
		if s.Enabled(ctx, r.Level) {
			errs = append(errs, s.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f *fanout) each(wrap func(slog.Handler) slog.Handler) *fanout {
	out := &fanout{sinks: make([]slog.Handler, len(f.sinks))}
	for i, s := range f.sinks {
		out.sinks[i] = wrap(s)
	}
	return out
}

func (f *fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return f
	}
	return f.each(func(s slog.Handler) slog.Handler { return s.WithAttrs(attrs) })
}

func (f *fanout) WithGroup(name string) slog.Handler {
	if name == "" {
		return f
	}
	return f.each(func(s slog.Handler) slog.Handler { return s.WithGroup(name) })
}

// liveAttrs appends the provider's attributes to each record. A key the caller
// already set on the record wins over the provider's value, so a log line about a
// phase change can carry its own "phase" without a duplicate.
type liveAttrs struct {
	next     slog.Handler
	provider ContextProvider
}

func (l *liveAttrs) Enabled(ctx context.Context, level slog.Level) bool {
	return l.next.Enabled(ctx, level)
}

func (l *liveAttrs) Handle(ctx context.Context, r slog.Record) error {
	extra := l.provider()
	if len(extra) == 0 {
		return l.next.Handle(ctx, r)
	}
	set := make(map[string]bool, r.NumAttrs())
	r.Attrs(func(a slog.Attr) bool {
		set[a.Key] = true
		return true
	})
	for _, a := range extra {
		if a.Key == "" || set[a.Key] {
			continue
		}
		r.AddAttrs(a)
	}
	return l.next.Handle(ctx, r)
}

func (l *liveAttrs) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &liveAttrs{next: l.next.WithAttrs(attrs), provider: l.provider}
}

func (l *liveAttrs) WithGroup(name string) slog.Handler {
	if name == "" {
		return l
	}
	return &liveAttrs{next: l.next.WithGroup(name), provider: l.provider}
}
