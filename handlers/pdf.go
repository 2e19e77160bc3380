package handlers

import (
	"bytes"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/filconv/filconv/internal/filestore"
	"github.com/filconv/filconv/internal/history"
	"github.com/filconv/filconv/internal/pdfops"
	"github.com/filconv/filconv/pkg/logger"
	"github.com/filconv/filconv/pkg/metrics"
)

func readUpload(fh *multipart.FileHeader) (pdfops.Input, error) {
	f, err := fh.Open()
	if err != nil {
		return pdfops.Input{}, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return pdfops.Input{}, err
	}
	return pdfops.Input{Name: fh.Filename, ContentType: fh.Header.Get("Content-Type"), Data: data}, nil
}

// MergeFiles merges the uploaded PDFs in upload order and leaves the result
// in the downloads area.
func (s *Server) MergeFiles(c *gin.Context) {
	var files []*multipart.FileHeader
	if form, err := c.MultipartForm(); err == nil {
		files = form.File["filesToMerge"]
	}
	if len(files) < 2 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Please upload at least two files to merge."})
		return
	}
	if f := strings.ToLower(strings.TrimSpace(c.PostForm("outputFormat"))); f != "" && f != "pdf" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Only PDFs are supported for merging."})
		return
	}

	started := time.Now()
	names := make([]string, len(files))
	inputs := make([]pdfops.Input, len(files))
	for i, fh := range files {
		names[i] = fh.Filename
		in, err := readUpload(fh)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "File merge failed.", "error": err.Error()})
			return
		}
		inputs[i] = in
	}

	merged, err := pdfops.Merge(inputs)
	metrics.PDFOperations.WithLabelValues(history.OpMerge, metrics.Outcome(err)).Inc()
	switch {
	case errors.Is(err, pdfops.ErrTooFewFiles):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Please upload at least two files to merge."})
		return
	case errors.Is(err, pdfops.ErrNotPDF):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Only PDFs are supported for merging."})
		return
	case err != nil:
		logger.Errorf("Merge error: %v", err)
		s.record(c, history.OpMerge, started, err, names, "")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "File merge failed.", "error": err.Error()})
		return
	}

	name := filestore.MergedName(s.now())
	if _, err := s.Store.Save(c.Request.Context(), filestore.Downloads, name, bytes.NewReader(merged)); err != nil {
		logger.Errorf("Merge error: %v", err)
		s.record(c, history.OpMerge, started, err, names, name)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "File merge failed.", "error": err.Error()})
		return
	}
	s.record(c, history.OpMerge, started, nil, names, name)
	c.JSON(http.StatusOK, gin.H{"success": true, "downloadUrl": "/downloads/" + url.PathEscape(name), "fileName": name})
}

// singlePDF reads one PDF upload from field. It answers the request itself
// and returns ok=false when the upload is missing or not a PDF.
func singlePDF(c *gin.Context, field, notPDF string) (pdfops.Input, bool) {
	fh, err := c.FormFile(field)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "No file uploaded."})
		return pdfops.Input{}, false
	}
	in, err := readUpload(fh)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return pdfops.Input{}, false
	}
	if !pdfops.IsPDF(in.ContentType, in.Data) {
		c.JSON(http.StatusBadRequest, gin.H{"message": notPDF})
		return pdfops.Input{}, false
	}
	return in, true
}

// CompressPDF optimizes one PDF and leaves the result in the compressed area.
func (s *Server) CompressPDF(c *gin.Context) {
	in, ok := singlePDF(c, "fileToCompress", "Only PDF files can be compressed.")
	if !ok {
		return
	}
	started := time.Now()
	out, err := pdfops.Compress(in.Data)
	metrics.PDFOperations.WithLabelValues(history.OpCompress, metrics.Outcome(err)).Inc()
	if err != nil {
		logger.Errorf("Compression error: %v", err)
		s.record(c, history.OpCompress, started, err, []string{in.Name}, "")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "File compression failed.", "error": err.Error()})
		return
	}

	name := filestore.CompressedName(in.Name, s.now())
	if _, err := s.Store.Save(c.Request.Context(), filestore.Compressed, name, bytes.NewReader(out)); err != nil {
		s.record(c, history.OpCompress, started, err, []string{in.Name}, name)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "File compression failed.", "error": err.Error()})
		return
	}
	s.record(c, history.OpCompress, started, nil, []string{in.Name}, name)
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"downloadUrl":    "/download/compressed/" + url.PathEscape(name),
		"fileName":       name,
		"originalSize":   len(in.Data),
		"compressedSize": len(out),
	})
}

// SplitPDF cuts one PDF according to splitMethod and leaves a zip of the
// parts in the split area.
func (s *Server) SplitPDF(c *gin.Context) {
	in, ok := singlePDF(c, "fileToSplit", "Only PDF files can be split.")
	if !ok {
		return
	}
	method, err := pdfops.ParseSplitMethod(c.PostForm("splitMethod"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	started := time.Now()
	parts, err := pdfops.Split(in.Name, in.Data, method)
	metrics.PDFOperations.WithLabelValues(history.OpSplit, metrics.Outcome(err)).Inc()
	if errors.Is(err, pdfops.ErrBadSplitMethod) {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	if err != nil {
		logger.Errorf("Split error: %v", err)
		s.record(c, history.OpSplit, started, err, []string{in.Name}, "")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "File split failed.", "error": err.Error()})
		return
	}

	var archive bytes.Buffer
	if err := pdfops.ZipParts(&archive, parts); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "File split failed.", "error": err.Error()})
		return
	}
	name := filestore.SplitArchiveName(in.Name, s.now())
	if _, err := s.Store.Save(c.Request.Context(), filestore.Split, name, &archive); err != nil {
		s.record(c, history.OpSplit, started, err, []string{in.Name}, name)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "File split failed.", "error": err.Error()})
		return
	}
	s.record(c, history.OpSplit, started, nil, []string{in.Name}, name)
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"downloadUrl": "/download/split/" + url.PathEscape(name),
		"fileName":    name,
		"parts":       len(parts),
	})
}
