// Логирование запросов GORM через slog.
//
// Основные возможности:
//   - Ошибки SQL на уровне Error, медленные запросы на уровне Warn, остальные на уровне Debug.
//   - Параметры запросов не попадают в лог (ответы на формы и адреса почты), если включен ParameterizedQueries.
//   - Каскадное удаление форм не считается медленным запросом.
package gormlogger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"
	gormLog "gorm.io/gorm/logger"
	"gorm.io/gorm/utils"
)

type GormLogger struct {
	SlowThreshold        time.Duration
	ParameterizedQueries bool
	level                gormLog.LogLevel
	logger               *slog.Logger
}

func NewGormLogger(logger *slog.Logger, slowThreshold time.Duration, paramQueries bool) *GormLogger {
	return &GormLogger{logger: logger, SlowThreshold: slowThreshold, ParameterizedQueries: paramQueries, level: gormLog.Warn}
}

func (gl *GormLogger) LogMode(level gormLog.LogLevel) gormLog.Interface {
	l := *gl
	l.level = level
	return &l
}

func (gl *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	gl.log(ctx, gormLog.Info, slog.LevelInfo, msg, data)
}

func (gl *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	gl.log(ctx, gormLog.Warn, slog.LevelWarn, msg, data)
}

func (gl *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	gl.log(ctx, gormLog.Error, slog.LevelError, msg, data)
}

func (gl *GormLogger) log(ctx context.Context, min gormLog.LogLevel, level slog.Level, msg string, data []interface{}) {
	if gl.level < min {
		return
	}
	gl.logger.Log(ctx, level, fmt.Sprintf(msg, data...))
}

func (gl *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if gl.level <= gormLog.Silent {
		return
	}
	elapsed := time.Since(begin)
	sql, rows := fc()
	attrs := []any{
		slog.String("file", utils.FileWithLineNum()),
		slog.Duration("elapsed", elapsed),
		slog.Int64("rowsCount", rows),
		slog.String("sql", sql),
	}

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		gl.logger.ErrorContext(ctx, "SQL error", append(attrs, "err", err)...)
	case gl.isSlow(elapsed, sql):
		gl.logger.WarnContext(ctx, fmt.Sprintf("SLOW SQL >= %v", gl.SlowThreshold), attrs...)
	default:
		gl.logger.DebugContext(ctx, "SQL trace", attrs...)
	}
}

func (gl *GormLogger) isSlow(elapsed time.Duration, sql string) bool {
	if gl.SlowThreshold == 0 || elapsed < gl.SlowThreshold {
		return false
	}
	return !strings.HasPrefix(strings.TrimSpace(strings.ToUpper(sql)), "DELETE")
}

func (gl *GormLogger) ParamsFilter(ctx context.Context, sql string, params ...interface{}) (string, []interface{}) {
	if gl.ParameterizedQueries {
		return sql, nil
	}
	return sql, params
}
