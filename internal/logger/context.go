package logger

import (
	"context"
	"sync"
)

type ctxKey struct{}

var (
	defaultMu sync.RWMutex
	fallback  = New(nil)
)

// GetDefault returns the process-wide logger used when a context carries none.
func GetDefault() *Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return fallback
}

// SetDefaultLogger replaces the process-wide logger. nil is ignored.
func SetDefaultLogger(l *Logger) {
	if l == nil {
		return
	}
	defaultMu.Lock()
	fallback = l
	defaultMu.Unlock()
}

// WithContext attaches l to ctx.
func (l *Logger) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger attached to ctx, or the default logger.
func FromContext(ctx context.Context) *Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(*Logger); ok {
			return l
		}
	}
	return GetDefault()
}

// WithField returns ctx carrying a logger with one more field.
func WithField(ctx context.Context, key string, value interface{}) context.Context {
	return FromContext(ctx).WithField(key, value).WithContext(ctx)
}

// WithFields returns ctx carrying a logger enriched with fields.
func WithFields(ctx context.Context, fields Fields) context.Context {
	return FromContext(ctx).WithFields(fields).WithContext(ctx)
}

// SetRequestID tags every later line logged through ctx with the HTTP request id.
func SetRequestID(ctx context.Context, id string) context.Context {
	return WithField(ctx, FieldRequestID, id)
}

// SetCycleID tags every later line logged through ctx with the alert cycle id.
func SetCycleID(ctx context.Context, id string) context.Context {
	return WithField(ctx, FieldCycleID, id)
}

func SetRegion(ctx context.Context, region string) context.Context {
	return WithField(ctx, FieldRegion, region)
}

func stringField(ctx context.Context, key string) string {
	s, _ := FromContext(ctx).Data[key].(string)
	return s
}

func GetRequestID(ctx context.Context) string {
	return stringField(ctx, FieldRequestID)
}

func GetCycleID(ctx context.Context) string {
	return stringField(ctx, FieldCycleID)
}
