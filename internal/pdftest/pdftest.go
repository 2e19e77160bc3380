// Package pdftest builds small, well-formed PDF documents for tests.
package pdftest

import (
	"bytes"
	"fmt"
)

// Page i (0-based) of Pages(n) is BaseWidth+i*Step points wide, which lets
// tests read page order back after merge or split.
const (
	BaseWidth = 200
	Step      = 10
	Height    = 300
)

// Doc returns a PDF with n pages whose widths start at firstWidth and grow by Step.
func Doc(n int, firstWidth int) []byte {
	widths := make([]int, n)
	for i := range widths {
		widths[i] = firstWidth + i*Step
	}
	return WithWidths(widths...)
}

// Pages returns a PDF with n pages of the default widths.
func Pages(n int) []byte {
	return Doc(n, BaseWidth)
}

// WithWidths returns a PDF with one page per width, each Height tall.
func WithWidths(widths ...int) []byte {
	var buf bytes.Buffer
	var offsets []int

	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")
	obj("<< /Type /Catalog /Pages 2 0 R >>")

	kids := ""
	for i := range widths {
		kids += fmt.Sprintf("%d 0 R ", 3+2*i)
	}
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, len(widths)))

	for i, w := range widths {
		content := fmt.Sprintf("BT /F1 12 Tf 20 20 Td (page %d) Tj ET", i+1)
		obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d %d] /Resources << /Font << /F1 << /Type /Font /Subtype /Type1 /BaseFont /Helvetica >> >> >> /Contents %d 0 R >>", w, Height, 4+2*i))
		obj(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}
