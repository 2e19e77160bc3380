// Package pdfops merges, splits, compresses and inspects PDF documents.
package pdfops

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var (
	ErrTooFewFiles = errors.New("please upload at least two files to merge")
	ErrNotPDF      = errors.New("only PDFs are supported")
)

const pdfMIME = "application/pdf"

func init() {
	// no per-user config directory on servers
	api.DisableConfigDir()
}

func newConf() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Input is one uploaded document.
type Input struct {
	Name        string
	ContentType string
	Data        []byte
}

// Size is a page's media box in points.
type Size struct {
	Width  float64
	Height float64
}

// IsPDF accepts the declared MIME type, or sniffs the header when the client
// only sent a generic type.
func IsPDF(contentType string, head []byte) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch ct {
	case pdfMIME:
		return true
	case "", "application/octet-stream", "binary/octet-stream":
		return bytes.HasPrefix(head, []byte("%PDF-"))
	}
	return false
}

// Merge concatenates every page of every input in input order. Any input that
// is not a PDF, or fails to load, aborts the whole merge.
func Merge(inputs []Input) ([]byte, error) {
	if len(inputs) < 2 {
		return nil, ErrTooFewFiles
	}
	for _, in := range inputs {
		if !IsPDF(in.ContentType, in.Data) {
			return nil, fmt.Errorf("%w for merging: %s", ErrNotPDF, in.Name)
		}
	}
	rsc := make([]io.ReadSeeker, len(inputs))
	for i, in := range inputs {
		rsc[i] = bytes.NewReader(in.Data)
	}
	var out bytes.Buffer
	if err := api.MergeRaw(rsc, &out, false, newConf()); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	return out.Bytes(), nil
}

// PageCount returns the number of pages in data.
func PageCount(data []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(data), newConf())
	if err != nil {
		return 0, fmt.Errorf("page count: %w", err)
	}
	return n, nil
}

// PageSizes returns every page's dimensions in page order.
func PageSizes(data []byte) ([]Size, error) {
	dims, err := api.PageDims(bytes.NewReader(data), newConf())
	if err != nil {
		return nil, fmt.Errorf("page dims: %w", err)
	}
	out := make([]Size, len(dims))
	for i, d := range dims {
		out[i] = Size{Width: d.Width, Height: d.Height}
	}
	return out, nil
}

// Compress rewrites data with duplicate streams merged and unreferenced
// objects dropped.
func Compress(data []byte) ([]byte, error) {
	var out bytes.Buffer
	if err := api.Optimize(bytes.NewReader(data), &out, newConf()); err != nil {
		return nil, fmt.Errorf("optimize: %w", err)
	}
	// never hand back something larger than what came in
	if out.Len() >= len(data) {
		return data, nil
	}
	return out.Bytes(), nil
}
