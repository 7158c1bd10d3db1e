// Package httpx holds the JSON error body and the small request helpers shared
// by the HTTP handlers.
package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Message   string         `json:"message"`
	RequestID string         `json:"request_id,omitempty"`
	TraceID   string         `json:"trace_id,omitempty"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// ParseID reads a positive integer path parameter.
func ParseID(c echo.Context, name string) (uint, error) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid %s: %q", name, raw)
	}
	return uint(id), nil
}

// QueryUint reads an optional positive integer query parameter.
func QueryUint(c echo.Context, name string) (*uint, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid %s: %q", name, raw)
	}
	v := uint(id)
	return &v, nil
}

// NotFound returns the 404 used for a missing resource.
func NotFound(resource string) error {
	return httperror.NewHTTPErrorf(http.StatusNotFound, "%s not found", resource)
}

// BadRequest returns a 400 with msg.
func BadRequest(msg string) error {
	return httperror.NewHTTPError(http.StatusBadRequest, msg)
}

// DBError maps persistence errors: a missing row becomes 404 and a unique
// violation 409. Anything else is wrapped for a 500.
func DBError(err error, resource string) error {
	switch {
	case err == nil:
		return nil
	case httperror.IsHTTPError(err):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return NotFound(resource)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return httperror.NewHTTPErrorf(http.StatusConflict, "%s already exists", resource)
	default:
		return fmt.Errorf("%s: %w", resource, err)
	}
}
