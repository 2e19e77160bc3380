// Package convert runs the upload → remote conversion → download pipeline and
// owns the lifetime of the artifacts it creates.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/filconv/filconv/internal/cloudconvert"
	"github.com/filconv/filconv/internal/filestore"
	"github.com/filconv/filconv/internal/history"
	"github.com/filconv/filconv/pkg/logger"
	"github.com/filconv/filconv/pkg/metrics"
)

var ErrMissingInput = errors.New("missing file or output format")

// Upload is a source file as received from the client.
type Upload struct {
	Filename string
	Body     io.Reader
	UserID   string
}

// Service converts uploads through a remote Converter.
type Service struct {
	Store       filestore.Store
	Converter   cloudconvert.Converter
	History     *history.Recorder
	WaitTimeout time.Duration
	Now         func() time.Time
}

func NewService(store filestore.Store, conv cloudconvert.Converter, rec *history.Recorder, wait time.Duration) *Service {
	return &Service{Store: store, Converter: conv, History: rec, WaitTimeout: wait, Now: time.Now}
}

// Result is a converted artifact waiting in the downloads area.
type Result struct {
	// Name is the user-facing file name, "<original base>.<format>".
	Name  string
	JobID string
	Size  int64

	store    filestore.Store
	upload   string
	download string
}

// Open streams the converted file.
func (r *Result) Open(ctx context.Context) (io.ReadCloser, error) {
	rc, _, err := r.store.Open(ctx, filestore.Downloads, r.download)
	return rc, err
}

// StoredName is the key of the output in the downloads area.
func (r *Result) StoredName() string { return r.download }

// Cleanup removes the saved upload and the converted output. Safe to call more
// than once.
func (r *Result) Cleanup(ctx context.Context) {
	filestore.Discard(ctx, r.store, filestore.Uploads, r.upload)
	filestore.Discard(ctx, r.store, filestore.Downloads, r.download)
	r.upload, r.download = "", ""
}

// UploadConvert saves the upload, converts it and downloads the result. On
// success the caller streams the result and then calls Cleanup; on failure
// every artifact is already gone.
func (s *Service) UploadConvert(ctx context.Context, up Upload, outputFormat string) (*Result, error) {
	outputFormat = strings.TrimSpace(outputFormat)
	if up.Body == nil || up.Filename == "" || outputFormat == "" {
		return nil, ErrMissingInput
	}
	now := s.now()
	started := time.Now()
	res := &Result{
		Name:     filestore.ConvertedName(up.Filename, outputFormat),
		store:    s.Store,
		upload:   filestore.UploadName(up.Filename, now),
	}
	// both keys carry a process-unique stamp so concurrent conversions of
	// files with the same name never share an artifact
	res.download = filestore.DownloadName(res.Name, now)

	err := s.run(ctx, up, outputFormat, res)

	entry := history.Finish(history.OpConvert, started, err)
	entry.InputNames = []string{up.Filename}
	entry.OutputName = res.Name
	entry.OutputFormat = outputFormat
	entry.RemoteJobID = res.JobID
	entry.UserID = up.UserID
	s.History.Record(ctx, entry)

	metrics.Conversions.WithLabelValues(metrics.Outcome(err)).Inc()
	metrics.ConversionDuration.Observe(time.Since(started).Seconds())

	if err != nil {
		logger.Errorf("Conversion failed: %v", err)
		// request context may already be done; cleanup must still run
		res.Cleanup(context.WithoutCancel(ctx))
		return nil, err
	}
	return res, nil
}

func (s *Service) run(ctx context.Context, up Upload, outputFormat string, res *Result) error {
	if _, err := s.Store.Save(ctx, filestore.Uploads, res.upload, up.Body); err != nil {
		return fmt.Errorf("save upload: %w", err)
	}
	logger.Debugf("original file name: %s, desired output format: %s", up.Filename, outputFormat)

	src, _, err := s.Store.Open(ctx, filestore.Uploads, res.upload)
	if err != nil {
		return fmt.Errorf("reopen upload: %w", err)
	}
	defer src.Close()

	wctx := ctx
	if s.WaitTimeout > 0 {
		var cancel context.CancelFunc
		wctx, cancel = context.WithTimeout(ctx, s.WaitTimeout)
		defer cancel()
	}
	out, err := s.Converter.Convert(wctx, res.upload, src, outputFormat)
	if err != nil {
		return err
	}
	res.JobID = out.JobID

	body, err := s.Converter.Download(ctx, out.URL)
	if err != nil {
		return err
	}
	defer body.Close()
	n, err := s.Store.Save(ctx, filestore.Downloads, res.download, body)
	if err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	res.Size = n
	return nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Handoff converts and leaves the output in the downloads area for a later
// single-use GET /downloads/<name>. The saved upload is removed either way.
func (s *Service) Handoff(ctx context.Context, up Upload, outputFormat string) (string, error) {
	res, err := s.UploadConvert(ctx, up, outputFormat)
	if err != nil {
		return "", err
	}
	filestore.Discard(ctx, s.Store, filestore.Uploads, res.upload)
	return res.download, nil
}
