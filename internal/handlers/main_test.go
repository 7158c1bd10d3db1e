package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/diewo77/go-crm/internal/blobstore"
	"github.com/diewo77/go-crm/internal/config"
	"github.com/diewo77/go-crm/internal/dbtest"
	"github.com/diewo77/go-crm/internal/handlers"
	"github.com/diewo77/go-crm/internal/models"
	"github.com/diewo77/go-crm/internal/server"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Env:              "test",
			SessionSecret:    "test-secret",
			JWTTTL:           time.Hour,
			ProfileCacheTTL:  time.Minute,
			ProfileCacheSize: 32,
			MaxUploadMB:      5,
		},
		Calendar: config.CalendarConfig{EventMinutes: 30},
	}
}

// app is a server over an isolated database, acting as one signed-in user.
type app struct {
	t     *testing.T
	srv   *server.Server
	db    *gorm.DB
	user  models.User
	token string
}

func newApp(t *testing.T, profile string) *app {
	t.Helper()
	conn := dbtest.New(t)
	blobs, err := blobstore.NewLocal(t.TempDir())
	require.NoError(t, err)
	srv := server.New(server.Deps{Config: testConfig(), DB: conn, Blobs: blobs, Log: zap.NewNop()})
	a := &app{t: t, srv: srv, db: conn}
	if profile != "" {
		a.user = dbtest.CreateUser(t, conn, profile+"@example.com", profile)
		a.token, _, err = srv.Auth.IssueToken(a.user.ID)
		require.NoError(t, err)
	}
	return a
}

// as returns a copy of a acting as another user of the same database.
func (a *app) as(email, profile string) *app {
	a.t.Helper()
	u := dbtest.CreateUser(a.t, a.db, email, profile)
	token, _, err := a.srv.Auth.IssueToken(u.ID)
	require.NoError(a.t, err)
	return &app{t: a.t, srv: a.srv, db: a.db, user: u, token: token}
}

func (a *app) serve(req *http.Request) *httptest.ResponseRecorder {
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	rec := httptest.NewRecorder()
	a.srv.Echo.ServeHTTP(rec, req)
	return rec
}

func (a *app) do(method, path string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, handlers.APIPrefix+path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return a.serve(req)
}

type filePart struct {
	field, name string
	data        []byte
}

func (a *app) multipart(method, path string, fields [][2]string, files ...filePart) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range fields {
		require.NoError(a.t, w.WriteField(f[0], f[1]))
	}
	for _, f := range files {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", `form-data; name="`+f.field+`"; filename="`+f.name+`"`)
		h.Set("Content-Type", "application/octet-stream")
		part, err := w.CreatePart(h)
		require.NoError(a.t, err)
		_, err = part.Write(f.data)
		require.NoError(a.t, err)
	}
	require.NoError(a.t, w.Close())
	req := httptest.NewRequest(method, handlers.APIPrefix+path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return a.serve(req)
}

// decode asserts the status and unmarshals the body.
func decode[T any](t *testing.T, rec *httptest.ResponseRecorder, status int) T {
	t.Helper()
	require.Equal(t, status, rec.Code, "body: %s", rec.Body.String())
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

type obj = map[string]any

func id(t *testing.T, v obj) uint {
	t.Helper()
	n, ok := v["id"].(float64)
	require.True(t, ok, "no id in %v", v)
	return uint(n)
}

func newGet(path string) *http.Request {
	return httptest.NewRequest(http.MethodGet, path, nil)
}
