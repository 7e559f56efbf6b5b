// Утилиты возврата ошибок API с логированием запроса (метод, url, пользователь, место вызова).
package aiforms

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"runtime"

	"github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/apierrors"
	"github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/dao"
	"github.com/labstack/echo/v4"
)

// EError возвращает DefinedError из цепочки err, иначе логирует ошибку и возвращает 500 с универсальным сообщением
func EError(c echo.Context, err error) error {
	var defined apierrors.DefinedError
	if errors.As(err, &defined) {
		return EErrorDefined(c, defined)
	}
	logAPIError(c, http.StatusInternalServerError, err)
	return EErrorDefined(c, apierrors.ErrGeneric)
}

// EErrorMsgStatus ответ с произвольным статусом. 403 без ошибки и 404 не логируются.
func EErrorMsgStatus(c echo.Context, err error, status int) error {
	if status == http.StatusRequestEntityTooLarge {
		return EErrorDefined(c, apierrors.ErrEntityToLarge)
	}

	res := apierrors.ErrGeneric
	res.StatusCode = status
	if err != nil {
		res.Err = err.Error()
	}

	quiet := status == http.StatusNotFound || (status == http.StatusForbidden && err == nil)
	if !quiet {
		logAPIError(c, status, err)
	}
	return EErrorDefined(c, res)
}

func logAPIError(c echo.Context, status int, err error) {
	msg := "API error"
	if err == nil {
		msg = "Unknown API error"
	}
	slog.Error(msg,
		"err", err,
		"method", c.Request().Method,
		slog.Int("status", status),
		"url", c.Request().URL,
		"user", contextUserId(c),
		getCallerFile(3),
	)
}

// EErrorDefined возвращает JSON-ответ с кодом статуса и описанием ошибки. Если код статуса не определен, используется 400 Bad Request.
func EErrorDefined(c echo.Context, err apierrors.DefinedError) error {
	// If unknown code use 400 Bad Request
	if http.StatusText(err.StatusCode) == "" {
		err.StatusCode = http.StatusBadRequest
	}
	return c.JSON(err.StatusCode, err)
}

func contextUserId(c echo.Context) string {
	var user *dao.User
	switch ctx := c.(type) {
	case AuthContext:
		user = ctx.User
	case FormContext:
		user = ctx.User
	}
	if user == nil {
		return ""
	}
	return user.ID.String()
}

// getCallerFile файл и строка вызова, skip считается от getCallerFile
func getCallerFile(skip int) slog.Attr {
	_, path, no, ok := runtime.Caller(skip)
	if !ok {
		return slog.Attr{}
	}
	_, file := filepath.Split(path)
	return slog.String("caller", fmt.Sprintf("%s:%d", file, no))
}
