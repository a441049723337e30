package logger

import (
	"context"
	"time"
)

// Entry carries aggregatable metric fields such as counts and durations,
// and resolves its logger from the context at write time, so cycle and
// request fields attached upstream end up on the same line.
//
//	logger.With(logger.Fields{"fetched": 12}).WithDuration(time.Since(start)).Info(ctx, "Fetched jobs")
type Entry struct {
	fields Fields
}

// With starts an Entry with the given fields.
func With(fields Fields) *Entry {
	e := &Entry{fields: make(Fields, len(fields))}
	for k, v := range fields {
		e.fields[k] = v
	}
	return e
}

// With returns a copy of e with fields merged in; later keys win.
func (e *Entry) With(fields Fields) *Entry {
	next := With(e.fields)
	for k, v := range fields {
		next.fields[k] = v
	}
	return next
}

func (e *Entry) WithCount(n int) *Entry {
	return e.With(Fields{FieldCount: n})
}

// WithDuration records d in milliseconds.
func (e *Entry) WithDuration(d time.Duration) *Entry {
	return e.With(Fields{FieldDurationMs: d.Milliseconds()})
}

func (e *Entry) WithSubscription(id uint) *Entry {
	return e.With(Fields{FieldSubscriptionID: id})
}

func (e *Entry) target(ctx context.Context) *Logger {
	return FromContext(ctx).WithFields(e.fields)
}

func (e *Entry) Debug(ctx context.Context, format string, args ...interface{}) {
	e.target(ctx).Debugf(format, args...)
}

func (e *Entry) Info(ctx context.Context, format string, args ...interface{}) {
	e.target(ctx).Infof(format, args...)
}

func (e *Entry) Warn(ctx context.Context, format string, args ...interface{}) {
	e.target(ctx).Warnf(format, args...)
}

func (e *Entry) Error(ctx context.Context, format string, args ...interface{}) {
	e.target(ctx).Errorf(format, args...)
}
