package logger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// DefaultSlowStatement is the duration above which a statement is logged as slow.
const DefaultSlowStatement = 200 * time.Millisecond

// GormLogger routes gorm's statement log to zap. Statement lines carry the
// request, run and trace IDs of the calling context. Unless full SQL is
// enabled, bound values (member names, charges) are kept out of the log and
// only the placeholder form of each statement is written.
type GormLogger struct {
	logger   *zap.Logger
	level    gormlogger.LogLevel
	slow     time.Duration
	fullSQL  bool
	notFound bool // log record-not-found as an error
}

// GormLoggerOption configures a GormLogger
type GormLoggerOption func(*GormLogger)

// WithSlowThreshold sets the slow statement threshold. Zero disables slow logging.
func WithSlowThreshold(threshold time.Duration) GormLoggerOption {
	return func(l *GormLogger) { l.slow = threshold }
}

// WithFullSQL writes statements with their bound values interpolated.
func WithFullSQL(enabled bool) GormLoggerOption {
	return func(l *GormLogger) { l.fullSQL = enabled }
}

// WithRecordNotFound logs gorm.ErrRecordNotFound like any other error.
// Repositories translate it to a domain error, so it is quiet by default.
func WithRecordNotFound(enabled bool) GormLoggerOption {
	return func(l *GormLogger) { l.notFound = enabled }
}

// NewGormLogger creates a gorm logger writing to a "store" child of zapLogger.
func NewGormLogger(zapLogger *zap.Logger, level gormlogger.LogLevel, opts ...GormLoggerOption) *GormLogger {
	l := &GormLogger{
		logger: zapLogger.Named("store"),
		level:  level,
		slow:   DefaultSlowStatement,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LogMode implements gormlogger.Interface
func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *GormLogger) printf(ctx context.Context, min gormlogger.LogLevel, lvl func(string, ...zap.Field), msg string, data []any) {
	if l.level < min {
		return
	}
	lvl(strings.TrimSpace(fmt.Sprintf(msg, data...)), correlationFields(ctx)...)
}

// Info implements gormlogger.Interface
func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Info, l.logger.Info, msg, data)
}

// Warn implements gormlogger.Interface
func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Warn, l.logger.Warn, msg, data)
}

// Error implements gormlogger.Interface
func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Error, l.logger.Error, msg, data)
}

// ParamsFilter implements gorm.ParamsFilter. Dropping the values makes
// gorm hand Trace the statement with its placeholders.
func (l *GormLogger) ParamsFilter(_ context.Context, sql string, params ...any) (string, []any) {
	if l.fullSQL {
		return sql, params
	}
	return sql, nil
}

// Trace implements gormlogger.Interface. Failed statements are errors, slow
// ones warnings and everything else debug lines.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	failed := err != nil && (l.notFound || !errors.Is(err, gormlogger.ErrRecordNotFound))
	slow := l.slow > 0 && elapsed > l.slow

	var (
		msg string
		log func(string, ...zap.Field)
	)
	switch {
	case failed && l.level >= gormlogger.Error:
		msg, log = "Store statement failed", l.logger.Error
	case slow && l.level >= gormlogger.Warn:
		msg, log = "Slow store statement", l.logger.Warn
	case !failed && l.level >= gormlogger.Info:
		msg, log = "Store statement", l.logger.Debug
	default:
		return
	}

	sql, rows := fc()
	fields := append([]zap.Field{
		zap.String("sql", sql),
		zap.Int64("rows", rows),
		zap.Duration("elapsed", elapsed),
	}, correlationFields(ctx)...)
	if failed {
		fields = append(fields, zap.Error(err))
	}
	if slow {
		fields = append(fields, zap.Duration("slow_threshold", l.slow))
	}
	log(msg, fields...)
}

// MapGormLogLevel maps an application log level to gorm's. Debug and info
// log every statement; anything unknown logs slow statements and failures.
func MapGormLogLevel(level string) gormlogger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info", "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}
