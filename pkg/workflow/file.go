// Package workflow holds the client-side state of the convert, merge and
// split screens. Every flow is an ordinary value owned by its caller.
package workflow

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/filconv/filconv/pkg/client"
)

var (
	ErrBusy          = errors.New("an operation is already in progress")
	ErrNoFile        = errors.New("please select a file first")
	ErrNoFormat      = errors.New("please select an output format")
	ErrUnknownFormat = errors.New("unsupported output format")
	ErrNotPDF        = errors.New("please select a PDF file")
	ErrTooFewFiles   = errors.New("please select at least two files to merge")
	ErrUnknownFile   = errors.New("file is not in the list")
)

// File is a local file picked by the user.
type File struct {
	Name         string
	Size         int64
	LastModified time.Time
	ContentType  string
	Open         func() (io.ReadCloser, error)
}

// ID identifies a file in a list the way the browser pages did:
// name-size-lastModified (milliseconds).
func (f File) ID() string {
	return fmt.Sprintf("%s-%d-%d", f.Name, f.Size, f.LastModified.UnixMilli())
}

func (f File) IsPDF() bool {
	if strings.EqualFold(f.ContentType, "application/pdf") {
		return true
	}
	return f.ContentType == "" && strings.EqualFold(filepath.Ext(f.Name), ".pdf")
}

// FromPath describes the file at path. It is opened only when submitted.
func FromPath(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, err
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("%s is a directory", path)
	}
	return File{
		Name:         filepath.Base(path),
		Size:         info.Size(),
		LastModified: info.ModTime(),
		ContentType:  mime.TypeByExtension(strings.ToLower(filepath.Ext(path))),
		Open:         func() (io.ReadCloser, error) { return os.Open(path) },
	}, nil
}

// FromBytes wraps in-memory content.
func FromBytes(name, contentType string, data []byte, modified time.Time) File {
	return File{
		Name:         name,
		Size:         int64(len(data)),
		LastModified: modified,
		ContentType:  contentType,
		Open:         func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil },
	}
}

// opened is a set of open files handed to the client; close releases all.
type opened struct {
	files   []client.File
	closers []io.Closer
}

func (o *opened) close() {
	for _, c := range o.closers {
		_ = c.Close()
	}
}

func openAll(files ...File) (*opened, error) {
	o := &opened{}
	for _, f := range files {
		if f.Open == nil {
			o.close()
			return nil, fmt.Errorf("%s: no content", f.Name)
		}
		rc, err := f.Open()
		if err != nil {
			o.close()
			return nil, fmt.Errorf("open %s: %w", f.Name, err)
		}
		o.closers = append(o.closers, rc)
		o.files = append(o.files, client.File{Name: f.Name, ContentType: f.ContentType, Data: rc})
	}
	return o, nil
}

// message turns a submit error into the text shown to the user.
func message(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}
