package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/diewo77/go-crm/httpx"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newEcho(log *zap.Logger, h echo.HandlerFunc) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(log)
	e.Use(RequestID(), Logger(log))
	e.GET("/x", h)
	return e
}

func call(e *echo.Echo, requestID string) (*httptest.ResponseRecorder, httpx.ErrorResponse) {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if requestID != "" {
		req.Header.Set(echo.HeaderXRequestID, requestID)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var body httpx.ErrorResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return rec, body
}

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    int
		message string
	}{
		{"http error", httperror.NewHTTPError(http.StatusConflict, "already exists").AddMetaValue("field", "name"), http.StatusConflict, "already exists"},
		{"wrapped http error", fmt.Errorf("assign: %w", httperror.NewHTTPError(http.StatusNotFound, "staff not found")), http.StatusNotFound, "staff not found"},
		{"echo error", echo.NewHTTPError(http.StatusRequestEntityTooLarge, "too big"), http.StatusRequestEntityTooLarge, "too big"},
		{"internal", errors.New("db exploded"), http.StatusInternalServerError, "Internal Server Error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEcho(zap.NewNop(), func(echo.Context) error { return tt.err })
			rec, body := call(e, "")
			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, tt.message, body.Message)
			assert.NotEmpty(t, body.RequestID)
			assert.Equal(t, rec.Header().Get(echo.HeaderXRequestID), body.RequestID)
		})
	}
}

func TestErrorHandler_Meta(t *testing.T) {
	e := newEcho(zap.NewNop(), func(echo.Context) error {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid quotation_id").AddMetaValue("field", "quotation_id")
	})
	_, body := call(e, "req-1")
	assert.Equal(t, "req-1", body.RequestID)
	assert.Equal(t, "quotation_id", body.Meta["field"])
}

func TestLogger_LevelsByStatus(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := zap.New(core)

	ok := newEcho(log, func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
	call(ok, "")
	missing := newEcho(log, func(echo.Context) error { return httperror.NewHTTPError(http.StatusNotFound, "gone") })
	call(missing, "")
	broken := newEcho(log, func(echo.Context) error { return errors.New("boom") })
	call(broken, "")

	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.Equal(t, int64(http.StatusNotFound), entries[1].ContextMap()["status"])
	assert.Len(t, logs.FilterMessage("request failed").All(), 1)
}

func TestTraceID_NoSpan(t *testing.T) {
	assert.Empty(t, TraceID(httptest.NewRequest(http.MethodGet, "/", nil).Context()))
}
