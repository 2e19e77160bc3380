package handlers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/filconv/filconv/internal/bootid"
	"github.com/filconv/filconv/internal/cloudconvert"
	"github.com/filconv/filconv/internal/config"
	"github.com/filconv/filconv/internal/convert"
	"github.com/filconv/filconv/internal/filestore"
	"github.com/filconv/filconv/internal/history"
	"github.com/filconv/filconv/internal/sessions"
	"github.com/filconv/filconv/internal/tokens"
	"github.com/filconv/filconv/internal/users"
)

const testBoot = 1700000000000

type fakeConverter struct {
	out []byte
	err error

	gotName   string
	gotFormat string
}

func (f *fakeConverter) Convert(_ context.Context, filename string, r io.Reader, outputFormat string) (*cloudconvert.Output, error) {
	f.gotName, f.gotFormat = filename, outputFormat
	_, _ = io.Copy(io.Discard, r)
	if f.err != nil {
		return nil, fmt.Errorf("conversion failed: %w", f.err)
	}
	return &cloudconvert.Output{JobID: "job-1", URL: "https://storage.example/out"}, nil
}

func (f *fakeConverter) Download(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.out)), nil
}

type testEnv struct {
	srv    *Server
	router *gin.Engine
	store  *filestore.Local
	conv   *fakeConverter
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := filestore.NewLocal(t.TempDir())
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.JWT.Secret = "test-secret-0123456789abcdef0123456789"
	cfg.JWT.AccessTokenTTL = 15 * time.Minute
	cfg.JWT.RefreshTokenTTL = time.Hour
	cfg.Storage.MaxEditUpload = config.MaxEditUploadBytes

	conv := &fakeConverter{out: []byte("%PDF-converted")}
	rec := history.NewRecorder(history.NewMemoryRepository(100))
	svc := convert.NewService(store, conv, rec, time.Minute)

	s := NewServer(cfg, store, svc, rec, bootid.New(time.UnixMilli(testBoot)))
	s.Users = users.NewService(users.NewMemoryRepository())
	s.Sessions = sessions.NewService(sessions.NewMemoryRepository())
	s.Verifier = tokens.NewVerifier(cfg.JWT.Secret)
	s.Blacklist = sessions.NewMemoryBlacklist()

	r := gin.New()
	s.Register(r)
	return &testEnv{srv: s, router: r, store: store, conv: conv}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) get(path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return e.do(req)
}

func (e *testEnv) count(t *testing.T, area filestore.Area) int {
	t.Helper()
	items, err := e.store.List(context.Background(), area)
	require.NoError(t, err)
	return len(items)
}

type filePart struct {
	field       string
	filename    string
	contentType string
	data        []byte
}

func pdfPart(field, name string, data []byte) filePart {
	return filePart{field: field, filename: name, contentType: "application/pdf", data: data}
}

func multipartRequest(t *testing.T, path string, fields map[string]string, parts ...filePart) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, p.field, p.filename))
		h.Set("Content-Type", p.contentType)
		w, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = w.Write(p.data)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}
