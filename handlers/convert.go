package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/filconv/filconv/internal/convert"
	"github.com/filconv/filconv/pkg/logger"
	"github.com/filconv/filconv/pkg/middleware"
)

// UploadConvert converts the uploaded file and answers with the converted
// bytes as an attachment. Input and output are removed afterwards.
func (s *Server) UploadConvert(c *gin.Context) {
	fh, err := c.FormFile("file")
	format := strings.TrimSpace(c.PostForm("outputFormat"))
	if err != nil || format == "" {
		c.String(http.StatusBadRequest, "No file uploaded or output format selected.")
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Conversion failed", "message": err.Error()})
		return
	}
	defer f.Close()

	ctx := c.Request.Context()
	res, err := s.Convert.UploadConvert(ctx, convert.Upload{Filename: fh.Filename, Body: f, UserID: middleware.Subject(c)}, format)
	if errors.Is(err, convert.ErrMissingInput) {
		c.String(http.StatusBadRequest, "No file uploaded or output format selected.")
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Conversion failed", "message": err.Error()})
		return
	}
	defer res.Cleanup(context.WithoutCancel(ctx))

	rc, err := res.Open(ctx)
	if err != nil {
		logger.Errorf("open converted file %s: %v", res.StoredName(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Conversion failed", "message": err.Error()})
		return
	}
	defer rc.Close()

	c.Header("Content-Disposition", contentDisposition("attachment", res.Name))
	c.Header("Content-Type", contentType(res.Name))
	c.Header("Content-Length", strconv.FormatInt(res.Size, 10))
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		logger.Errorf("Error sending file: %v", err)
	}
}

// APIConvert converts through the configured upstream conversion service, or
// locally when none is configured, and answers with a download URL.
func (s *Server) APIConvert(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "No file uploaded."})
		return
	}
	format := strings.TrimSpace(c.PostForm("outputFormat"))
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "File conversion failed.", "error": err.Error()})
		return
	}
	defer f.Close()

	upstream := ""
	if s.Config != nil {
		upstream = s.Config.Proxy.UpstreamURL
	}
	if upstream == "" {
		s.handoff(c, convert.Upload{Filename: fh.Filename, Body: f, UserID: middleware.Subject(c)}, format)
		return
	}

	logger.Infof("Sending conversion request to %s for %s", upstream, fh.Filename)
	status, body, err := s.forward(c.Request.Context(), upstream, fh.Filename, f, format)
	if err != nil {
		logger.Errorf("Conversion error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "File conversion failed.", "error": err.Error()})
		return
	}
	if status < 200 || status > 299 {
		c.JSON(status, body)
		return
	}
	link, _ := body["downloadUrl"].(string)
	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"downloadUrl":      absoluteURL(upstream, link),
		"originalFileName": fh.Filename,
	})
}

func (s *Server) handoff(c *gin.Context, up convert.Upload, format string) {
	stored, err := s.Convert.Handoff(c.Request.Context(), up, format)
	if errors.Is(err, convert.ErrMissingInput) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "No output format selected."})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "File conversion failed.", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"downloadUrl":      "/downloads/" + url.PathEscape(stored),
		"originalFileName": up.Filename,
	})
}

// forward posts file and outputFormat to upstream's /api/convert and decodes
// the JSON answer. Non-JSON error bodies are wrapped as {"message": body}.
func (s *Server) forward(ctx context.Context, upstream, filename string, r io.Reader, format string) (int, map[string]interface{}, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		err := func() error {
			fw, err := mw.CreateFormFile("file", filename)
			if err != nil {
				return err
			}
			if _, err := io.Copy(fw, r); err != nil {
				return err
			}
			if err := mw.WriteField("outputFormat", format); err != nil {
				return err
			}
			return mw.Close()
		}()
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, upstream+"/api/convert", pr)
	if err != nil {
		pr.CloseWithError(err)
		return 0, nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	client := s.Proxy
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		pr.CloseWithError(err)
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, fmt.Errorf("read upstream response: %w", err)
	}
	body := map[string]interface{}{}
	if err := json.Unmarshal(raw, &body); err != nil {
		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			return 0, nil, fmt.Errorf("upstream answered %d with a non-JSON body", resp.StatusCode)
		}
		body = map[string]interface{}{"message": strings.TrimSpace(string(raw))}
	}
	return resp.StatusCode, body, nil
}

// absoluteURL resolves a link the upstream returned against the upstream's
// own address so the client can fetch it directly.
func absoluteURL(base, link string) string {
	if link == "" {
		return ""
	}
	b, err := url.Parse(base + "/")
	if err != nil {
		return link
	}
	l, err := url.Parse(link)
	if err != nil {
		return link
	}
	return b.ResolveReference(l).String()
}
