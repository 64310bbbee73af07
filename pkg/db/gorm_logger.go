package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/coffeeshop-backend/pkg/logger"
)

// queryLogger sends gorm output through the service logger. Failed and slow
// queries are always reported; every query is reported at Info level.
type queryLogger struct {
	logg          *logger.Logger
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

func newQueryLogger(logg *logger.Logger, slowThreshold time.Duration, logQueries bool) gormlogger.Interface {
	if logg == nil {
		return gormlogger.Discard
	}
	level := gormlogger.Warn
	if logQueries {
		level = gormlogger.Info
	}
	return &queryLogger{logg: logg, level: level, slowThreshold: slowThreshold}
}

func (l *queryLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *queryLogger) Info(ctx context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Info {
		l.logg.Info(ctx, "gorm: "+fmt.Sprintf(msg, args...))
	}
}

func (l *queryLogger) Warn(ctx context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Warn {
		l.logg.Warn(ctx, "gorm: "+fmt.Sprintf(msg, args...))
	}
}

func (l *queryLogger) Error(ctx context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Error {
		l.logg.Error(ctx, "gorm error", fmt.Errorf(msg, args...))
	}
}

func (l *queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level == gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	fields := func() map[string]any {
		sql, rows := fc()
		return map[string]any{"sql": sql, "rows": rows, "elapsed_ms": elapsed.Milliseconds()}
	}

	switch {
	case err != nil && l.level >= gormlogger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		l.logg.Error(l.logg.WithFields(ctx, fields()), "query failed", err)
	case l.slowThreshold > 0 && elapsed > l.slowThreshold && l.level >= gormlogger.Warn:
		ctx = l.logg.WithFields(ctx, fields())
		l.logg.Warn(l.logg.WithField(ctx, "threshold_ms", l.slowThreshold.Milliseconds()), "slow query")
	case l.level >= gormlogger.Info:
		l.logg.Debug(l.logg.WithFields(ctx, fields()), "query")
	}
}
