package pdfops

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

var ErrBadSplitMethod = errors.New("invalid split method")

// Range is an inclusive 1-based page range.
type Range struct {
	From, Thru int
}

// SplitMethod decides how a document is cut into parts.
type SplitMethod struct {
	Kind   string // all, every, ranges
	Every  int
	Ranges []Range
}

// ParseSplitMethod understands "all", "every:N" and "ranges:1-3,5".
// An empty value means "all".
func ParseSplitMethod(s string) (SplitMethod, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	kind, arg, _ := strings.Cut(s, ":")
	switch kind {
	case "", "all", "pages":
		return SplitMethod{Kind: "all"}, nil
	case "every":
		n, err := strconv.Atoi(strings.TrimSpace(arg))
		if err != nil || n < 1 {
			return SplitMethod{}, fmt.Errorf("%w: every needs a positive page count", ErrBadSplitMethod)
		}
		return SplitMethod{Kind: "every", Every: n}, nil
	case "ranges", "range":
		var rs []Range
		for _, part := range strings.Split(arg, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			lo, hi, isRange := strings.Cut(part, "-")
			from, err := strconv.Atoi(strings.TrimSpace(lo))
			if err != nil {
				return SplitMethod{}, fmt.Errorf("%w: %q", ErrBadSplitMethod, part)
			}
			thru := from
			if isRange {
				if thru, err = strconv.Atoi(strings.TrimSpace(hi)); err != nil {
					return SplitMethod{}, fmt.Errorf("%w: %q", ErrBadSplitMethod, part)
				}
			}
			if from < 1 || thru < from {
				return SplitMethod{}, fmt.Errorf("%w: %q", ErrBadSplitMethod, part)
			}
			rs = append(rs, Range{From: from, Thru: thru})
		}
		if len(rs) == 0 {
			return SplitMethod{}, fmt.Errorf("%w: no ranges", ErrBadSplitMethod)
		}
		return SplitMethod{Kind: "ranges", Ranges: rs}, nil
	}
	return SplitMethod{}, fmt.Errorf("%w: %q", ErrBadSplitMethod, s)
}

func (m SplitMethod) ranges(pages int) ([]Range, error) {
	switch m.Kind {
	case "all":
		m.Every = 1
		fallthrough
	case "every":
		var rs []Range
		for from := 1; from <= pages; from += m.Every {
			thru := from + m.Every - 1
			if thru > pages {
				thru = pages
			}
			rs = append(rs, Range{From: from, Thru: thru})
		}
		return rs, nil
	case "ranges":
		for _, r := range m.Ranges {
			if r.Thru > pages {
				return nil, fmt.Errorf("%w: range %d-%d exceeds %d pages", ErrBadSplitMethod, r.From, r.Thru, pages)
			}
		}
		return m.Ranges, nil
	}
	return nil, ErrBadSplitMethod
}

// Part is one output document of a split.
type Part struct {
	Name  string
	Range Range
	Data  []byte
}

// Split cuts data into parts named "<base>_<from>-<thru>.pdf".
func Split(name string, data []byte, m SplitMethod) ([]Part, error) {
	pages, err := PageCount(data)
	if err != nil {
		return nil, err
	}
	rs, err := m.ranges(pages)
	if err != nil {
		return nil, err
	}
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	if base == "" || base == "." {
		base = "document"
	}
	parts := make([]Part, 0, len(rs))
	for _, r := range rs {
		var out bytes.Buffer
		sel := []string{fmt.Sprintf("%d-%d", r.From, r.Thru)}
		if err := api.Trim(bytes.NewReader(data), &out, sel, newConf()); err != nil {
			return nil, fmt.Errorf("extract pages %d-%d: %w", r.From, r.Thru, err)
		}
		parts = append(parts, Part{
			Name:  fmt.Sprintf("%s_%d-%d.pdf", base, r.From, r.Thru),
			Range: r,
			Data:  out.Bytes(),
		})
	}
	return parts, nil
}

// ZipParts writes parts into a zip archive.
func ZipParts(w io.Writer, parts []Part) error {
	zw := zip.NewWriter(w)
	for _, p := range parts {
		f, err := zw.Create(p.Name)
		if err != nil {
			return err
		}
		if _, err := f.Write(p.Data); err != nil {
			return err
		}
	}
	return zw.Close()
}
