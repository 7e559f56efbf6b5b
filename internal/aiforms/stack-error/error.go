// Ошибки с контекстом обработки запроса: какие точки кода прошла ошибка и к какой форме и этапу конвейера она относится.
package stack_error

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/labstack/echo/v4"
)

// Frame место в коде, где ошибка была передана в TrackErrorStack
type Frame struct {
	File string
	Line int
	Func string
}

func (f Frame) String() string {
	return fmt.Sprintf("%s:%d %s", f.File, f.Line, f.Func)
}

type contextValue struct {
	key   string
	value any
}

// TrackerError оборачивает ошибку, сохраняя порядок добавления контекста
type TrackerError struct {
	cause   error
	context []contextValue
	frames  []Frame
}

// TrackErrorStack оборачивает err или, если err уже TrackerError, добавляет к нему текущую точку вызова
func TrackErrorStack(err error) *TrackerError {
	frame := callerFrame(2)

	var te *TrackerError
	if errors.As(err, &te) {
		te.frames = append(te.frames, frame)
		return te
	}
	return &TrackerError{cause: err, frames: []Frame{frame}}
}

// AddContext добавляет значение, если ключ еще не задан. Первое значение не перезаписывается.
func (te *TrackerError) AddContext(k string, v any) *TrackerError {
	if _, ok := te.Value(k); !ok {
		te.context = append(te.context, contextValue{k, v})
	}
	return te
}

func (te *TrackerError) Value(k string) (any, bool) {
	for _, c := range te.context {
		if c.key == k {
			return c.value, true
		}
	}
	return nil, false
}

func (te *TrackerError) Frames() []Frame {
	return te.frames
}

func (te *TrackerError) Error() string {
	if te.cause == nil {
		return "tracked error"
	}
	return te.cause.Error()
}

func (te *TrackerError) Unwrap() error {
	return te.cause
}

// LogError пишет ошибку с накопленным контекстом, стеком и, если передан, методом и адресом запроса
func LogError(c echo.Context, err error) {
	attrs := make([]any, 0, 4)

	var te *TrackerError
	if errors.As(err, &te) {
		for _, v := range te.context {
			attrs = append(attrs, slog.Any(v.key, v.value))
		}
		trace := make([]string, len(te.frames))
		for i, f := range te.frames {
			trace[i] = f.String()
		}
		attrs = append(attrs, slog.String("trace", strings.Join(trace, " <- ")))
	}

	if c != nil {
		attrs = append(attrs,
			slog.String("method", c.Request().Method),
			slog.String("url", c.Request().URL.String()))
	}

	slog.Error("Request failed", append(attrs, "err", err)...)
}

func callerFrame(skip int) Frame {
	pc, path, line, ok := runtime.Caller(skip)
	if !ok {
		return Frame{File: "unknown"}
	}
	f := Frame{File: filepath.Base(path), Line: line}
	if fn := runtime.FuncForPC(pc); fn != nil {
		name := fn.Name()
		f.Func = name[strings.LastIndex(name, "/")+1:]
	}
	return f
}
