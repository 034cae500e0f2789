package database

import (
	"context"
	"errors"
	"time"

	"tally/internal/logger"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// gormLogger routes gorm's statement log through zap. Record-not-found is
// expected control flow and is not logged as an error.
type gormLogger struct {
	slowThreshold time.Duration
}

// NewGormLogger returns a gorm logger that reports errors and statements
// slower than slowThreshold at warn level, everything else at debug.
func NewGormLogger(slowThreshold time.Duration) gormlogger.Interface {
	return &gormLogger{slowThreshold: slowThreshold}
}

func (l *gormLogger) LogMode(gormlogger.LogLevel) gormlogger.Interface {
	return l
}

func (l *gormLogger) Info(ctx context.Context, s string, args ...interface{}) {
	logger.FromContext(ctx).Infof(s, args...)
}

func (l *gormLogger) Warn(ctx context.Context, s string, args ...interface{}) {
	logger.FromContext(ctx).Warnf(s, args...)
}

func (l *gormLogger) Error(ctx context.Context, s string, args ...interface{}) {
	logger.FromContext(ctx).Errorf(s, args...)
}

func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	sql, rows := fc()
	log := logger.FromContext(ctx)

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		log.Errorw("gorm query error", "error", err, "sql", sql, "rows", rows, "duration_ms", elapsed.Milliseconds())
	case l.slowThreshold > 0 && elapsed > l.slowThreshold:
		log.Warnw("gorm slow query", "sql", sql, "rows", rows, "duration_ms", elapsed.Milliseconds())
	default:
		log.Debugw("gorm query", "sql", sql, "rows", rows, "duration_ms", elapsed.Milliseconds())
	}
}
