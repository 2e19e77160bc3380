// Package client is a Go SDK for the filconv HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"
)

// File is one upload. Data is read once per request.
type File struct {
	Name        string
	ContentType string
	Data        io.Reader
}

// Client talks to one filconv server.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	// Token is sent as a bearer token when set.
	Token string
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 15 * time.Minute},
	}
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

// resolve turns a server-relative link into an absolute URL.
func (c *Client) resolve(ref string) (string, error) {
	base, err := url.Parse(c.BaseURL + "/")
	if err != nil {
		return "", err
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(u).String(), nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	target, err := c.resolve(path)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	return req, nil
}

// multipartBody streams fields and files through a pipe so large uploads are
// never buffered whole.
func multipartBody(fields map[string]string, fileField string, files []File) (io.Reader, string) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		err := func() error {
			for k, v := range fields {
				if err := mw.WriteField(k, v); err != nil {
					return err
				}
			}
			for _, f := range files {
				part, err := mw.CreatePart(fileHeader(fileField, f))
				if err != nil {
					return err
				}
				if _, err := io.Copy(part, f.Data); err != nil {
					return err
				}
			}
			return mw.Close()
		}()
		pw.CloseWithError(err)
	}()
	return pr, mw.FormDataContentType()
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func fileHeader(field string, f File) textproto.MIMEHeader {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(field), quoteEscaper.Replace(f.Name)))
	ct := f.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)
	return h
}

func (c *Client) postMultipart(ctx context.Context, path string, fields map[string]string, fileField string, files []File) (*http.Response, error) {
	body, ct := multipartBody(fields, fileField, files)
	req, err := c.newRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", ct)
	return c.httpClient().Do(req)
}

// Converted is a finished conversion: the suggested file name and its bytes.
type Converted struct {
	Name string
	Data []byte
}

// UploadConvert converts f and returns the streamed result.
func (c *Client) UploadConvert(ctx context.Context, f File, outputFormat string) (*Converted, error) {
	resp, err := c.postMultipart(ctx, "/upload-convert", map[string]string{"outputFormat": outputFormat}, "file", []File{f})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkResponse(resp); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	name := attachmentName(resp.Header.Get("Content-Disposition"))
	if name == "" {
		name = "converted-file." + strings.ToLower(outputFormat)
	}
	return &Converted{Name: name, Data: data}, nil
}

// Handoff is the JSON answer of the routes that leave a result on the
// server for a later download.
type Handoff struct {
	Success          bool   `json:"success"`
	DownloadURL      string `json:"downloadUrl"`
	FileName         string `json:"fileName,omitempty"`
	OriginalFileName string `json:"originalFileName,omitempty"`
	OriginalSize     int64  `json:"originalSize,omitempty"`
	CompressedSize   int64  `json:"compressedSize,omitempty"`
	Parts            int    `json:"parts,omitempty"`
}

func (c *Client) handoff(ctx context.Context, path string, fields map[string]string, fileField string, files []File) (*Handoff, error) {
	resp, err := c.postMultipart(ctx, path, fields, fileField, files)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkResponse(resp); err != nil {
		return nil, err
	}
	var h Handoff
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &h, nil
}

// Convert runs a conversion whose result is fetched later with Download.
func (c *Client) Convert(ctx context.Context, f File, outputFormat string) (*Handoff, error) {
	return c.handoff(ctx, "/api/convert", map[string]string{"outputFormat": outputFormat}, "file", []File{f})
}

// MergeFiles merges files in the given order into one PDF.
func (c *Client) MergeFiles(ctx context.Context, files []File) (*Handoff, error) {
	return c.handoff(ctx, "/merge-files", map[string]string{"outputFormat": "pdf"}, "filesToMerge", files)
}

// Split cuts a PDF. method is "all", "every:N" or "ranges:1-3,5".
func (c *Client) Split(ctx context.Context, f File, method string) (*Handoff, error) {
	return c.handoff(ctx, "/split-pdf", map[string]string{"splitMethod": method}, "fileToSplit", []File{f})
}

func (c *Client) Compress(ctx context.Context, f File) (*Handoff, error) {
	return c.handoff(ctx, "/api/compress", nil, "fileToCompress", []File{f})
}

// UploadForEdit stores a PDF for the editor and returns its file id.
func (c *Client) UploadForEdit(ctx context.Context, f File) (string, error) {
	resp, err := c.postMultipart(ctx, "/upload-for-edit", nil, "pdfFile", []File{f})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if err := checkResponse(resp); err != nil {
		return "", err
	}
	var out struct {
		FileID string `json:"fileId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return out.FileID, nil
}

// Download fetches a link returned by the server. Handoff links work once.
func (c *Client) Download(ctx context.Context, link string) (*Converted, error) {
	req, err := c.newRequest(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkResponse(resp); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &Converted{Name: attachmentName(resp.Header.Get("Content-Disposition")), Data: data}, nil
}

// BootID returns the server's per-process boot id.
func (c *Client) BootID(ctx context.Context) (int64, error) {
	var out struct {
		BootID int64 `json:"bootId"`
	}
	if err := c.getJSON(ctx, "/boot-id", &out); err != nil {
		return 0, err
	}
	return out.BootID, nil
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := checkResponse(resp); err != nil {
		return err
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// attachmentName extracts the file name from a Content-Disposition header.
func attachmentName(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return params["filename"]
}

func formBody(values url.Values) io.Reader {
	return bytes.NewBufferString(values.Encode())
}
