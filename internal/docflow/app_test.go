package docflow

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
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

type echoConverter struct{}

func (echoConverter) Convert(_ context.Context, _ string, r io.Reader, _ string) (*cloudconvert.Output, error) {
	_, _ = io.Copy(io.Discard, r)
	return &cloudconvert.Output{JobID: "job", URL: "https://storage.example/out"}, nil
}

func (echoConverter) Download(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader([]byte("converted text"))), nil
}

type fixture struct {
	app    *App
	out    *bytes.Buffer
	dir    string
	srv    *handlers.Server
	server *httptest.Server
}

func newFixture(t *testing.T, boot int64) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := filestore.NewLocal(t.TempDir())
	require.NoError(t, err)
	cfg := &config.Config{}
	cfg.JWT.Secret = "docflow-test-secret-0123456789abcdef"
	cfg.JWT.AccessTokenTTL = time.Minute
	cfg.JWT.RefreshTokenTTL = time.Hour

	rec := history.NewRecorder(history.NewMemoryRepository(10))
	srv := handlers.NewServer(cfg, store, convert.NewService(store, echoConverter{}, rec, time.Minute), rec, bootid.New(time.UnixMilli(boot)))
	srv.Users = users.NewService(users.NewMemoryRepository())
	srv.Sessions = sessions.NewService(sessions.NewMemoryRepository())
	srv.Verifier = tokens.NewVerifier(cfg.JWT.Secret)
	srv.Blacklist = sessions.NewMemoryBlacklist()

	r := gin.New()
	srv.Register(r)
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)

	dir := t.TempDir()
	var out bytes.Buffer
	app, err := NewApp(&Config{
		ServerURL:   ts.URL,
		OutputDir:   filepath.Join(dir, "out"),
		SessionFile: filepath.Join(dir, "session.json"),
		Timeout:     10 * time.Second,
	}, &out)
	require.NoError(t, err)
	return &fixture{app: app, out: &out, dir: dir, srv: srv, server: ts}
}

func (f *fixture) write(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(f.dir, name)
	require.NoError(t, os.WriteFile(p, data, 0o600))
	return p
}

func TestConvertCommand(t *testing.T) {
	f := newFixture(t, 1)
	in := f.write(t, "notes.docx", []byte("docx"))

	require.NoError(t, f.app.Run(context.Background(), []string{"convert", in, "TXT"}))
	data, err := os.ReadFile(filepath.Join(f.dir, "out", "notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "converted text", string(data))
	assert.Contains(t, f.out.String(), "Conversion Successful!")

	err = f.app.Run(context.Background(), []string{"convert", in, "exe"})
	require.Error(t, err)
}

func TestMergeCommandKeepsArgumentOrder(t *testing.T) {
	f := newFixture(t, 1)
	a := f.write(t, "a.pdf", pdftest.Doc(2, 100))
	b := f.write(t, "b.pdf", pdftest.Doc(1, 400))

	require.NoError(t, f.app.Run(context.Background(), []string{"merge", "joined", b, a}))
	data, err := os.ReadFile(filepath.Join(f.dir, "out", "joined.pdf"))
	require.NoError(t, err)
	sizes, err := pdfops.PageSizes(data)
	require.NoError(t, err)
	require.Len(t, sizes, 3)
	assert.Equal(t, 400.0, sizes[0].Width)
	assert.Equal(t, 100.0, sizes[1].Width)

	require.ErrorIs(t, f.app.Run(context.Background(), []string{"merge", "x.pdf", a}), ErrUsage)
}

func TestMergeCommandSameFileTwice(t *testing.T) {
	f := newFixture(t, 1)
	a := f.write(t, "a.pdf", pdftest.Doc(2, 100))

	require.NoError(t, f.app.Run(context.Background(), []string{"merge", "twice", a, a}))
	data, err := os.ReadFile(filepath.Join(f.dir, "out", "twice.pdf"))
	require.NoError(t, err)
	n, err := pdfops.PageCount(data)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestSplitCommand(t *testing.T) {
	f := newFixture(t, 1)
	in := f.write(t, "book.pdf", pdftest.Pages(3))

	require.NoError(t, f.app.Run(context.Background(), []string{"split", in, "every:2"}))
	entries, err := os.ReadDir(filepath.Join(f.dir, "out"))
	require.NoError(t, err)
	require.Len(t, entries, 1)

	zr, err := zip.OpenReader(filepath.Join(f.dir, "out", entries[0].Name()))
	require.NoError(t, err)
	defer zr.Close()
	assert.Len(t, zr.File, 2)
}

func TestCompressCommand(t *testing.T) {
	f := newFixture(t, 1)
	in := f.write(t, "big.pdf", pdftest.Pages(2))
	require.NoError(t, f.app.Run(context.Background(), []string{"compress", in}))
	assert.Contains(t, f.out.String(), "Compressed")

	txt := f.write(t, "notes.txt", []byte("hi"))
	require.Error(t, f.app.Run(context.Background(), []string{"compress", txt}))
}

func TestLoginSurvivesUntilServerRestart(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	require.NoError(t, f.app.Run(ctx, []string{"signup", "alice", "alice@example.com", "pw-123456"}))

	prev := readPassword
	readPassword = func(int) ([]byte, error) { return []byte("pw-123456"), nil }
	t.Cleanup(func() { readPassword = prev })

	require.NoError(t, f.app.Run(ctx, []string{"login", "alice@example.com"}))
	f.out.Reset()
	require.NoError(t, f.app.Run(ctx, []string{"boot-id"}))
	assert.Contains(t, f.out.String(), "boot id: 1")
	assert.Contains(t, f.out.String(), "logged in as alice")

	// same cache, restarted server
	f.srv.BootID = bootid.New(time.UnixMilli(2))
	f.out.Reset()
	require.NoError(t, f.app.Run(ctx, []string{"boot-id"}))
	assert.Contains(t, f.out.String(), "boot id: 2")
	assert.NotContains(t, f.out.String(), "logged in")
}

func TestInfoCommand(t *testing.T) {
	f := newFixture(t, 1)
	in := f.write(t, "two.pdf", pdftest.WithWidths(210, 420))
	require.NoError(t, f.app.Run(context.Background(), []string{"info", in}))
	assert.Contains(t, f.out.String(), "two.pdf: 2 pages")
	assert.Contains(t, f.out.String(), "420 x 300 pt")
}

func TestFormatsAndUsage(t *testing.T) {
	f := newFixture(t, 1)
	require.NoError(t, f.app.Run(context.Background(), []string{"formats"}))
	assert.Contains(t, f.out.String(), "Document:")
	assert.Contains(t, f.out.String(), "docx")

	require.ErrorIs(t, f.app.Run(context.Background(), nil), ErrUsage)
	require.ErrorIs(t, f.app.Run(context.Background(), []string{"explode"}), ErrUsage)
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("DOCFLOW_SERVER", "http://env:9000/")
	t.Setenv("DOCFLOW_SESSION_FILE", "/tmp/s.json")

	cfg, rest, err := LoadConfig([]string{"-o", "results", "convert", "a.docx", "pdf"})
	require.NoError(t, err)
	assert.Equal(t, "http://env:9000", cfg.ServerURL)
	assert.Equal(t, "results", cfg.OutputDir)
	assert.Equal(t, "/tmp/s.json", cfg.SessionFile)
	assert.Equal(t, 900*time.Second, cfg.Timeout)
	assert.Equal(t, []string{"convert", "a.docx", "pdf"}, rest)

	cfg, _, err = LoadConfig([]string{"-s", "http://flag:1", "-t", "5", "boot-id"})
	require.NoError(t, err)
	assert.Equal(t, "http://flag:1", cfg.ServerURL)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
}
