package handlers

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/filconv/filconv/internal/config"
	"github.com/filconv/filconv/internal/filestore"
	"github.com/filconv/filconv/internal/history"
	"github.com/filconv/filconv/internal/pdfops"
	"github.com/filconv/filconv/pkg/logger"
)

// multipart framing allowance on top of the file cap
const formOverhead = 1 << 20

func (s *Server) maxEditUpload() int64 {
	if s.Config != nil && s.Config.Storage.MaxEditUpload > 0 {
		return s.Config.Storage.MaxEditUpload
	}
	return config.MaxEditUploadBytes
}

// UploadForEdit stores one PDF for the in-browser editor and returns its id.
func (s *Server) UploadForEdit(c *gin.Context) {
	limit := s.maxEditUpload()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+formOverhead)

	fh, err := c.FormFile("pdfFile")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"message": "File too large."})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"message": "No PDF file uploaded."})
		return
	}
	if fh.Size > limit {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"message": "File too large."})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	head = head[:n]
	if !pdfops.IsPDF(fh.Header.Get("Content-Type"), head) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Only PDF files are allowed for editing!"})
		return
	}

	started := time.Now()
	id := filestore.EditName(fh.Filename)
	_, err = s.Store.Save(c.Request.Context(), filestore.Edit, id, io.MultiReader(bytes.NewReader(head), f))
	s.record(c, history.OpEditUpload, started, err, []string{fh.Filename}, id)
	if err != nil {
		logger.Errorf("save editor upload %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Upload failed.", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "PDF uploaded successfully!", "fileId": id})
}

// DownloadForEdit sends an editor file inline. It is kept so the editor can
// reload it; the janitor removes it later.
func (s *Server) DownloadForEdit(c *gin.Context) {
	id := c.Param("fileId")
	s.sendArtifact(c, filestore.Edit, id, "inline", id, false, "File not found for editing.")
}
