// Package cloudconvert is a small client for the CloudConvert v2 job API:
// create an import/convert/export job, upload the source, wait for the job to
// settle and read the export URL.
package cloudconvert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/filconv/filconv/pkg/logger"
)

var (
	ErrMissingAPIKey = errors.New("missing CloudConvert API key")
	ErrNoOutput      = errors.New("no output file was generated")
)

const (
	importTask  = "import-my-file"
	convertTask = "convert-my-file"
	exportTask  = "export-my-file"
)

// Converter is what the orchestrator needs from a conversion backend.
type Converter interface {
	Convert(ctx context.Context, filename string, r io.Reader, outputFormat string) (*Output, error)
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}

// Output is the settled result of a conversion job.
type Output struct {
	JobID string
	URL   string
	// Filename as reported by the export task.
	Filename string
}

// Client talks to the CloudConvert REST API.
type Client struct {
	APIKey       string
	BaseURL      string
	SyncBaseURL  string
	HTTP         *http.Client
	PollInterval time.Duration
}

func NewClient(apiKey, baseURL, syncBaseURL string, poll time.Duration) *Client {
	return &Client{
		APIKey:       apiKey,
		BaseURL:      strings.TrimRight(baseURL, "/"),
		SyncBaseURL:  strings.TrimRight(syncBaseURL, "/"),
		HTTP:         &http.Client{Timeout: 0},
		PollInterval: poll,
	}
}

var officeExtensions = map[string]bool{
	".doc": true, ".docx": true, ".ppt": true, ".pptx": true, ".xls": true, ".xlsx": true,
	".odt": true, ".ods": true, ".odp": true, ".rtf": true, ".csv": true, ".txt": true,
}

// IsOfficeDocument reports whether name should be converted with the office engine.
func IsOfficeDocument(name string) bool {
	return officeExtensions[strings.ToLower(filepath.Ext(name))]
}

type task struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Operation string          `json:"operation"`
	Status    string          `json:"status"`
	Message   string          `json:"message"`
	Code      string          `json:"code"`
	Result    json.RawMessage `json:"result"`
}

type job struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Tasks  []task `json:"tasks"`
}

func (j *job) task(name string) *task {
	for i := range j.Tasks {
		if j.Tasks[i].Name == name {
			return &j.Tasks[i]
		}
	}
	return nil
}

type uploadForm struct {
	Form struct {
		URL        string            `json:"url"`
		Parameters map[string]string `json:"parameters"`
	} `json:"form"`
}

type exportResult struct {
	Files []struct {
		Filename string `json:"filename"`
		URL      string `json:"url"`
	} `json:"files"`
}

type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Convert runs a full import/convert/export job for r and returns where the
// converted file can be downloaded. The caller bounds the wait through ctx.
func (c *Client) Convert(ctx context.Context, filename string, r io.Reader, outputFormat string) (*Output, error) {
	out, err := c.convert(ctx, filename, r, outputFormat)
	if err != nil {
		return nil, fmt.Errorf("conversion failed: %w", err)
	}
	return out, nil
}

func (c *Client) convert(ctx context.Context, filename string, r io.Reader, outputFormat string) (*Output, error) {
	if c.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	logger.Infof("cloudconvert: converting %s to %s", filename, outputFormat)

	j, err := c.createJob(ctx, filename, outputFormat)
	if err != nil {
		return nil, err
	}
	imp := j.task(importTask)
	if imp == nil {
		return nil, fmt.Errorf("job %s has no %s task", j.ID, importTask)
	}
	if err := c.upload(ctx, imp, filename, r); err != nil {
		return nil, err
	}
	done, err := c.wait(ctx, j.ID)
	if err != nil {
		return nil, err
	}
	exp := done.task(exportTask)
	if exp == nil || len(exp.Result) == 0 {
		return nil, ErrNoOutput
	}
	var res exportResult
	if err := json.Unmarshal(exp.Result, &res); err != nil {
		return nil, fmt.Errorf("decode export result: %w", err)
	}
	if len(res.Files) == 0 || res.Files[0].URL == "" {
		return nil, ErrNoOutput
	}
	logger.Debugf("cloudconvert: job %s finished, export url ready", j.ID)
	return &Output{JobID: j.ID, URL: res.Files[0].URL, Filename: res.Files[0].Filename}, nil
}

func (c *Client) createJob(ctx context.Context, filename, outputFormat string) (*job, error) {
	conv := map[string]interface{}{
		"operation":     "convert",
		"input":         importTask,
		"output_format": outputFormat,
	}
	if IsOfficeDocument(filename) {
		conv["engine"] = "office"
	}
	body := map[string]interface{}{
		"tasks": map[string]interface{}{
			importTask:  map[string]interface{}{"operation": "import/upload"},
			convertTask: conv,
			exportTask:  map[string]interface{}{"operation": "export/url", "input": convertTask},
		},
	}
	var j job
	if err := c.do(ctx, http.MethodPost, c.BaseURL+"/v2/jobs", body, &j); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	return &j, nil
}

// upload posts the source as multipart form data to the import task's form
// URL. Parameters must precede the file field.
func (c *Client) upload(ctx context.Context, imp *task, filename string, r io.Reader) error {
	var form uploadForm
	if err := json.Unmarshal(imp.Result, &form); err != nil || form.Form.URL == "" {
		return fmt.Errorf("import task %s has no upload form", imp.ID)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		err := func() error {
			for k, v := range form.Form.Parameters {
				if err := mw.WriteField(k, v); err != nil {
					return err
				}
			}
			fw, err := mw.CreateFormFile("file", filepath.Base(filename))
			if err != nil {
				return err
			}
			if _, err := io.Copy(fw, r); err != nil {
				return err
			}
			return mw.Close()
		}()
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, form.Form.URL, pr)
	if err != nil {
		pr.CloseWithError(err)
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := c.HTTP.Do(req)
	if err != nil {
		pr.CloseWithError(err)
		return fmt.Errorf("upload: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusSeeOther {
		return fmt.Errorf("upload: %s", statusMessage(resp))
	}
	return nil
}

// wait blocks on the sync endpoint when configured, then falls back to
// polling until the job is finished or failed.
func (c *Client) wait(ctx context.Context, id string) (*job, error) {
	if c.SyncBaseURL != "" {
		var j job
		err := c.do(ctx, http.MethodGet, c.SyncBaseURL+"/v2/jobs/"+id, nil, &j)
		switch {
		case err == nil && j.Status == "finished":
			return &j, nil
		case err == nil && j.Status == "error":
			return nil, jobFailure(&j)
		case ctx.Err() != nil:
			return nil, fmt.Errorf("wait job %s: %w", id, ctx.Err())
		case err != nil:
			logger.Debugf("cloudconvert: sync wait for job %s failed, polling: %v", id, err)
		}
	}

	interval := c.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		var j job
		if err := c.do(ctx, http.MethodGet, c.BaseURL+"/v2/jobs/"+id, nil, &j); err != nil {
			return nil, fmt.Errorf("wait job %s: %w", id, err)
		}
		switch j.Status {
		case "finished":
			return &j, nil
		case "error":
			return nil, jobFailure(&j)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("wait job %s: %w", id, ctx.Err())
		case <-ticker.C:
		}
	}
}

func jobFailure(j *job) error {
	for _, t := range j.Tasks {
		if t.Status == "error" {
			if t.Message != "" {
				return fmt.Errorf("task %s failed: %s", t.Name, t.Message)
			}
			return fmt.Errorf("task %s failed (%s)", t.Name, t.Code)
		}
	}
	return fmt.Errorf("job %s failed", j.ID)
}

// do performs an authenticated JSON call. Responses wrap the payload in "data".
func (c *Client) do(ctx context.Context, method, url string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return errors.New(statusMessage(resp))
	}
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return json.Unmarshal(env.Data, out)
}

func statusMessage(resp *http.Response) string {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var e apiError
	if json.Unmarshal(b, &e) == nil && e.Message != "" {
		return e.Message
	}
	if s := strings.TrimSpace(string(b)); s != "" {
		return fmt.Sprintf("%s: %s", resp.Status, s)
	}
	return resp.Status
}

// Download fetches the converted bytes from an export URL.
func (c *Client) Download(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download result: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, fmt.Errorf("download result: %s", statusMessage(resp))
	}
	return resp.Body, nil
}

// Ping checks that the API key is accepted.
func (c *Client) Ping(ctx context.Context) error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	var me json.RawMessage
	return c.do(ctx, http.MethodGet, c.BaseURL+"/v2/users/me", nil, &me)
}
