package database

import (
	"context"
	"errors"
	"time"

	"github.com/kart-io/logger"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogger adapts the global logger to GORM's logger interface.
type GormLogger struct {
	LogLevel      gormlogger.LogLevel
	SlowThreshold time.Duration
}

// NewGormLogger creates a new GormLogger.
func NewGormLogger(level gormlogger.LogLevel, slowThreshold time.Duration) *GormLogger {
	return &GormLogger{LogLevel: level, SlowThreshold: slowThreshold}
}

// LogMode sets the log level.
func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	n := *l
	n.LogLevel = level
	return &n
}

// Info logs info messages.
func (l *GormLogger) Info(_ context.Context, msg string, data ...any) {
	if l.LogLevel >= gormlogger.Info {
		logger.Infof(msg, data...)
	}
}

// Warn logs warning messages.
func (l *GormLogger) Warn(_ context.Context, msg string, data ...any) {
	if l.LogLevel >= gormlogger.Warn {
		logger.Warnf(msg, data...)
	}
}

// Error logs error messages.
func (l *GormLogger) Error(_ context.Context, msg string, data ...any) {
	if l.LogLevel >= gormlogger.Error {
		logger.Errorf(msg, data...)
	}
}

// Trace logs SQL statements. Record-not-found is expected by the repository and never logged.
func (l *GormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	switch {
	case err != nil && l.LogLevel >= gormlogger.Error && !errors.Is(err, gormlogger.ErrRecordNotFound):
		sql, rows := fc()
		logger.Errorw("Database query failed", "error", err.Error(), "sql", sql, "rows", rows, "duration_ms", elapsed.Milliseconds())
	case l.SlowThreshold != 0 && elapsed > l.SlowThreshold && l.LogLevel >= gormlogger.Warn:
		sql, rows := fc()
		logger.Warnw("Slow database query detected", "sql", sql, "rows", rows, "duration_ms", elapsed.Milliseconds())
	case l.LogLevel >= gormlogger.Info:
		sql, rows := fc()
		logger.Debugw("Database query executed", "sql", sql, "rows", rows, "duration_ms", elapsed.Milliseconds())
	}
}

var _ gormlogger.Interface = (*GormLogger)(nil)
