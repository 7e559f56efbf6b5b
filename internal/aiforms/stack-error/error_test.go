package stack_error

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBase = errors.New("base")

func TestTrackErrorStack(t *testing.T) {
	te := TrackErrorStack(errBase).AddContext("formId", "f1")
	assert.ErrorIs(t, te, errBase)
	require.Len(t, te.Frames(), 1)
	assert.Equal(t, "error_test.go", te.Frames()[0].File)
	assert.Contains(t, te.Frames()[0].Func, "TestTrackErrorStack")

	// повторная обертка дополняет стек, а не создает новую ошибку
	te2 := TrackErrorStack(te).AddContext("formId", "other").AddContext("stage", "persisted")
	assert.Same(t, te, te2)
	assert.Len(t, te2.Frames(), 2)

	v, ok := te2.Value("formId")
	assert.True(t, ok)
	assert.Equal(t, "f1", v)
	v, _ = te2.Value("stage")
	assert.Equal(t, "persisted", v)
	_, ok = te2.Value("missing")
	assert.False(t, ok)
	assert.Equal(t, "base", te2.Error())
}

func TestTrackErrorStackWrapped(t *testing.T) {
	te := TrackErrorStack(errBase)
	wrapped := fmt.Errorf("submit: %w", te)

	assert.Same(t, te, TrackErrorStack(wrapped))
	assert.Len(t, te.Frames(), 2)
}

func TestLogError(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/api/v3/forms/f1/submissions/encrypt/", nil), httptest.NewRecorder())

	assert.NotPanics(t, func() {
		LogError(c, TrackErrorStack(errBase).AddContext("formId", "f1"))
		LogError(nil, errBase)
	})
}
