package logger

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogger routes GORM statements through the context logger.
type GormLogger struct {
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

// NewGormLogger creates a GORM logger at the named level (silent, error, warn, info).
func NewGormLogger(levelName string) *GormLogger {
	level := gormlogger.Warn
	switch levelName {
	case "silent":
		level = gormlogger.Silent
	case "error":
		level = gormlogger.Error
	case "info":
		level = gormlogger.Info
	}
	return &GormLogger{level: level, slowThreshold: 500 * time.Millisecond}
}

// LogMode implements gormlogger.Interface.
func (g *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *g
	cp.level = level
	return &cp
}

// Info implements gormlogger.Interface.
func (g *GormLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Info {
		FromContext(ctx).WithField(FieldComponent, "db").Infof(msg, args...)
	}
}

// Warn implements gormlogger.Interface.
func (g *GormLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Warn {
		FromContext(ctx).WithField(FieldComponent, "db").Warnf(msg, args...)
	}
}

// Error implements gormlogger.Interface.
func (g *GormLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Error {
		FromContext(ctx).WithField(FieldComponent, "db").Errorf(msg, args...)
	}
}

// Trace implements gormlogger.Interface.
func (g *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	log := FromContext(ctx).WithFields(Fields{
		FieldComponent:  "db",
		FieldDurationMs: elapsed.Milliseconds(),
	})
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && g.level >= gormlogger.Error:
		sql, rows := fc()
		log.WithError(err).WithField("rows", rows).Errorf("query failed: %s", sql)
	case elapsed > g.slowThreshold && g.level >= gormlogger.Warn:
		sql, rows := fc()
		log.WithField("rows", rows).Warnf("slow query: %s", sql)
	case g.level >= gormlogger.Info:
		sql, rows := fc()
		log.WithField("rows", rows).Debugf("query: %s", sql)
	}
}
