package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filconv/filconv/handlers"
	"github.com/filconv/filconv/internal/bootid"
	"github.com/filconv/filconv/internal/cloudconvert"
	"github.com/filconv/filconv/internal/config"
	"github.com/filconv/filconv/internal/convert"
	"github.com/filconv/filconv/internal/filestore"
	"github.com/filconv/filconv/internal/history"
	"github.com/filconv/filconv/internal/pdfops"
	"github.com/filconv/filconv/internal/pdftest"
	"github.com/filconv/filconv/internal/sessions"
	"github.com/filconv/filconv/internal/tokens"
	"github.com/filconv/filconv/internal/users"
)

type stubConverter struct {
	out []byte
	err error
}

func (s *stubConverter) Convert(_ context.Context, _ string, r io.Reader, _ string) (*cloudconvert.Output, error) {
	_, _ = io.Copy(io.Discard, r)
	if s.err != nil {
		return nil, fmt.Errorf("conversion failed: %w", s.err)
	}
	return &cloudconvert.Output{JobID: "job", URL: "https://storage.example/out"}, nil
}

func (s *stubConverter) Download(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s.out)), nil
}

func newServer(t *testing.T) (*Client, *stubConverter) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := filestore.NewLocal(t.TempDir())
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.JWT.Secret = "client-test-secret-0123456789abcdef"
	cfg.JWT.AccessTokenTTL = 15 * time.Minute
	cfg.JWT.RefreshTokenTTL = time.Hour

	conv := &stubConverter{out: []byte("converted")}
	rec := history.NewRecorder(history.NewMemoryRepository(100))
	srv := handlers.NewServer(cfg, store, convert.NewService(store, conv, rec, time.Minute), rec, bootid.New(time.UnixMilli(42)))
	srv.Users = users.NewService(users.NewMemoryRepository())
	srv.Sessions = sessions.NewService(sessions.NewMemoryRepository())
	srv.Verifier = tokens.NewVerifier(cfg.JWT.Secret)
	srv.Blacklist = sessions.NewMemoryBlacklist()

	r := gin.New()
	srv.Register(r)
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return New(ts.URL), conv
}

func pdfFile(name string, data []byte) File {
	return File{Name: name, ContentType: "application/pdf", Data: bytes.NewReader(data)}
}

func TestUploadConvert(t *testing.T) {
	c, _ := newServer(t)
	out, err := c.UploadConvert(context.Background(), File{Name: "letter.docx", Data: bytes.NewReader([]byte("doc"))}, "pdf")
	require.NoError(t, err)
	assert.Equal(t, "letter.pdf", out.Name)
	assert.Equal(t, "converted", string(out.Data))
}

func TestUploadConvertError(t *testing.T) {
	c, conv := newServer(t)
	conv.err = errors.New("Invalid output format")

	_, err := c.UploadConvert(context.Background(), File{Name: "a.docx", Data: bytes.NewReader([]byte("x"))}, "zzz")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Contains(t, apiErr.Message, "Invalid output format")
}

func TestConvertHandoffThenDownload(t *testing.T) {
	c, _ := newServer(t)
	ctx := context.Background()

	h, err := c.Convert(ctx, File{Name: "sheet.xlsx", Data: bytes.NewReader([]byte("x"))}, "csv")
	require.NoError(t, err)
	assert.True(t, h.Success)
	assert.Equal(t, "sheet.xlsx", h.OriginalFileName)

	got, err := c.Download(ctx, h.DownloadURL)
	require.NoError(t, err)
	assert.Equal(t, "sheet.csv", got.Name)

	_, err = c.Download(ctx, h.DownloadURL)
	assert.True(t, IsStatus(err, http.StatusNotFound))
}

func TestMergeFilesKeepsOrder(t *testing.T) {
	c, _ := newServer(t)
	ctx := context.Background()

	a := pdftest.Doc(2, 100)
	b := pdftest.Doc(3, 500)
	h, err := c.MergeFiles(ctx, []File{pdfFile("b.pdf", b), pdfFile("a.pdf", a)})
	require.NoError(t, err)

	got, err := c.Download(ctx, h.DownloadURL)
	require.NoError(t, err)
	sizes, err := pdfops.PageSizes(got.Data)
	require.NoError(t, err)
	require.Len(t, sizes, 5)
	assert.Equal(t, 500.0, sizes[0].Width)
	assert.Equal(t, 100.0, sizes[3].Width)
}

func TestMergeFilesNeedsTwo(t *testing.T) {
	c, _ := newServer(t)
	_, err := c.MergeFiles(context.Background(), []File{pdfFile("a.pdf", pdftest.Pages(1))})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "Please upload at least two files to merge.", apiErr.Message)
}

func TestSplitAndCompress(t *testing.T) {
	c, _ := newServer(t)
	ctx := context.Background()

	h, err := c.Split(ctx, pdfFile("book.pdf", pdftest.Pages(3)), "every:2")
	require.NoError(t, err)
	assert.Equal(t, 2, h.Parts)

	h, err = c.Compress(ctx, pdfFile("big.pdf", pdftest.Pages(2)))
	require.NoError(t, err)
	assert.NotZero(t, h.OriginalSize)
	got, err := c.Download(ctx, h.DownloadURL)
	require.NoError(t, err)
	assert.Equal(t, int(h.CompressedSize), len(got.Data))
}

func TestUploadForEdit(t *testing.T) {
	c, _ := newServer(t)
	ctx := context.Background()

	id, err := c.UploadForEdit(ctx, pdfFile("form.pdf", pdftest.Pages(1)))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	_, err = c.UploadForEdit(ctx, File{Name: "notes.txt", ContentType: "text/plain", Data: bytes.NewReader([]byte("hi"))})
	assert.True(t, IsStatus(err, http.StatusBadRequest))
}

func TestAuthFlow(t *testing.T) {
	c, _ := newServer(t)
	ctx := context.Background()

	_, err := c.Me(ctx)
	require.ErrorIs(t, err, ErrNotLoggedIn)

	u, err := c.Signup(ctx, "alice", "alice@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)

	_, err = c.Login(ctx, "alice@example.com", "wrong")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "Invalid password", apiErr.Message)

	s, err := c.Login(ctx, "alice@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.NotEmpty(t, s.AccessToken)

	me, err := c.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", me.Email)
}

func TestBootID(t *testing.T) {
	c, _ := newServer(t)
	id, err := c.BootID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "No user found", errorMessage([]byte("No user found")))
	assert.Equal(t, "No file uploaded.", errorMessage([]byte(`{"message":"No file uploaded."}`)))
	assert.Equal(t, "File merge failed. (boom)", errorMessage([]byte(`{"message":"File merge failed.","error":"boom"}`)))
	assert.Equal(t, "invalid token", errorMessage([]byte(`{"error":"invalid token"}`)))
}

func TestAttachmentName(t *testing.T) {
	assert.Equal(t, "a b.pdf", attachmentName(`attachment; filename="a b.pdf"`))
	assert.Equal(t, "résumé.pdf", attachmentName(`inline; filename*=UTF-8''r%C3%A9sum%C3%A9.pdf`))
	assert.Equal(t, "", attachmentName(""))
}
