// Package handlers exposes the CRM services over a JSON REST API on echo.
// Each handler registers its routes on the authenticated /api/v1 group and
// guards every route with the permission gate.
package handlers

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/diewo77/go-crm/auth"
	"github.com/diewo77/go-crm/internal/services"
	"github.com/labstack/echo/v4"
)

// APIPrefix is where the REST routes are mounted.
const APIPrefix = "/api/v1"

// callerID returns the authenticated user, 0 when anonymous.
func callerID(c echo.Context) uint {
	id, _ := auth.UserIDFromContext(c.Request().Context())
	return id
}

// isMultipart reports whether the body is a multipart form.
func isMultipart(c echo.Context) bool {
	return strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm)
}

// bindJSON decodes the body into v, reporting malformed input as 400.
func bindJSON(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		var msg any = err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			msg = he.Message
		}
		return httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid request body: %v", msg)
	}
	return nil
}

// multipartForm parses the request as a multipart form.
func multipartForm(c echo.Context) (*multipart.Form, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid multipart form: %v", err)
	}
	return form, nil
}

// formValue returns the first value of a form field.
func formValue(form *multipart.Form, name string) string {
	if vals := form.Value[name]; len(vals) > 0 {
		return vals[0]
	}
	return ""
}

// isNullish reports the placeholder values clients send for "no value".
func isNullish(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || s == "null"
}

// formUint parses an optional numeric field. Placeholders read as absent.
func formUint(form *multipart.Form, name string) (*uint, error) {
	raw := formValue(form, name)
	if isNullish(raw) {
		return nil, nil
	}
	v, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || v == 0 {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "invalid "+name).AddMetaValue("field", name)
	}
	id := uint(v)
	return &id, nil
}

// formUintList reads ids sent as repeated fields, as one comma-separated
// field, or as a JSON array.
func formUintList(form *multipart.Form, name string) ([]uint, error) {
	var out []uint
	for _, raw := range form.Value[name] {
		raw = strings.TrimSpace(raw)
		if strings.HasPrefix(raw, "[") {
			var ids []uint
			if err := json.Unmarshal([]byte(raw), &ids); err != nil {
				return nil, httperror.NewHTTPError(http.StatusBadRequest, "invalid "+name).AddMetaValue("field", name)
			}
			out = append(out, ids...)
			continue
		}
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part == "" {
				continue
			}
			v, err := strconv.ParseUint(part, 10, 64)
			if err != nil {
				return nil, httperror.NewHTTPError(http.StatusBadRequest, "invalid "+name).AddMetaValue("field", name)
			}
			out = append(out, uint(v))
		}
	}
	return out, nil
}

// formUploads returns the file parts of a field.
func formUploads(form *multipart.Form, name string) []services.Upload {
	files := form.File[name]
	out := make([]services.Upload, 0, len(files))
	for _, fh := range files {
		out = append(out, fileUpload(fh))
	}
	return out
}

// formUpload returns the single file part of a field, or nil when the field
// carries no file. Text values such as "" or "null" never clear a file.
func formUpload(form *multipart.Form, name string) *services.Upload {
	files := form.File[name]
	if len(files) == 0 {
		return nil
	}
	up := fileUpload(files[0])
	return &up
}

func fileUpload(fh *multipart.FileHeader) services.Upload {
	return services.Upload{
		Name: fh.Filename,
		Open: func() (io.ReadCloser, error) { return fh.Open() },
	}
}

// stream copies a blob to the response and closes it.
func stream(c echo.Context, rc io.ReadCloser, contentType string) error {
	defer rc.Close()
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	return c.Stream(http.StatusOK, contentType, rc)
}
