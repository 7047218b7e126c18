// Package client provides an HTTP client for the data-analysis backend.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/raphaelgruber/analyst-go/internal/metrics"
)

// DefaultServerURL is the loopback address the backend listens on by default.
const DefaultServerURL = "http://localhost:8000"

// Client talks to the analysis backend over its multipart HTTP contract.
type Client struct {
	baseURL    string
	httpClient *http.Client
	metrics    *metrics.Collector
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithMetrics records request timings into m.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger sets the logger used for request logging.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// New creates a backend client.
// If baseURL is empty, uses ANALYST_SERVER_URL env var or defaults to localhost:8000.
// A non-positive timeout defaults to 10m; analysis requests can run long.
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("ANALYST_SERVER_URL")
	}
	if baseURL == "" {
		baseURL = DefaultServerURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend address the client targets.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// =============================================================================
// ANALYZE
// =============================================================================

// Analyze dispatches to UploadAndAnalyze when upload is set, otherwise to
// AnalyzeExisting.
func (c *Client) Analyze(ctx context.Context, upload *Upload, prompt string, agent AgentKind) (*AnalysisResult, error) {
	if upload != nil {
		return c.UploadAndAnalyze(ctx, upload, prompt, agent)
	}
	return c.AnalyzeExisting(ctx, prompt, agent)
}

// UploadAndAnalyze sends the file together with the prompt.
func (c *Client) UploadAndAnalyze(ctx context.Context, upload *Upload, prompt string, agent AgentKind) (*AnalysisResult, error) {
	return c.analyze(ctx, metrics.OpAnalyzeUpload, upload, prompt, agent)
}

// AnalyzeExisting sends only the prompt; the backend answers from the data
// retained from an earlier upload.
func (c *Client) AnalyzeExisting(ctx context.Context, prompt string, agent AgentKind) (*AnalysisResult, error) {
	return c.analyze(ctx, metrics.OpAnalyze, nil, prompt, agent)
}

func (c *Client) analyze(ctx context.Context, op string, upload *Upload, prompt string, agent AgentKind) (result *AnalysisResult, err error) {
	start := time.Now()
	var sent int64
	defer func() {
		c.metrics.Record(op, time.Since(start), sent, err != nil)
		c.logRequest(op, start, err)
	}()

	body, contentType, err := encodeAnalyzeForm(upload, prompt, agent)
	if err != nil {
		return nil, err
	}
	sent = int64(body.Len())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	data, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var res AnalysisResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("%w: unmarshal response: %v", ErrRequestFailed, err)
	}
	return &res, nil
}

// encodeAnalyzeForm builds the multipart body. agent_type is omitted for
// auto so the backend infers the agent itself.
func encodeAnalyzeForm(upload *Upload, prompt string, agent AgentKind) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if upload != nil {
		part, err := w.CreateFormFile("file", upload.Name)
		if err != nil {
			return nil, "", fmt.Errorf("create file part: %w", err)
		}
		r, err := upload.Open()
		if err != nil {
			return nil, "", fmt.Errorf("open upload: %w", err)
		}
		_, err = io.Copy(part, r)
		r.Close()
		if err != nil {
			return nil, "", fmt.Errorf("copy upload: %w", err)
		}
	}

	if err := w.WriteField("prompt", prompt); err != nil {
		return nil, "", fmt.Errorf("write prompt: %w", err)
	}
	if agent != "" && agent != AgentAuto {
		if err := w.WriteField("agent_type", string(agent)); err != nil {
			return nil, "", fmt.Errorf("write agent_type: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

// =============================================================================
// DOWNLOADS
// =============================================================================

// DownloadReport fetches a generated artifact by filename.
func (c *Client) DownloadReport(ctx context.Context, filename string) (data []byte, err error) {
	start := time.Now()
	defer func() {
		c.metrics.Record(metrics.OpDownload, time.Since(start), int64(len(data)), err != nil)
		c.logRequest(metrics.OpDownload, start, err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/download/"+url.PathEscape(filename), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return c.do(req)
}

// DownloadArtifact downloads the artifact at location (a full download URL
// or a bare filename) into dir and returns the written path.
func (c *Client) DownloadArtifact(ctx context.Context, location, dir string) (string, error) {
	name := ArtifactFilename(location)
	if name == "" {
		return "", fmt.Errorf("download artifact: no filename in %q", location)
	}

	data, err := c.DownloadReport(ctx, name)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}
	dest := filepath.Join(dir, name)
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return dest, nil
}

// ArtifactFilename extracts the filename from an artifact location such as
// http://localhost:8000/download/report.pdf. The path is decoded once by
// url.Parse; names that are not a single local path element yield "".
func ArtifactFilename(location string) string {
	p := location
	if u, err := url.Parse(location); err == nil && u.Path != "" {
		p = u.Path
	}
	name := path.Base(p)
	if name == "." || name == "download" || strings.ContainsAny(name, `/\`) || !filepath.IsLocal(name) {
		return ""
	}
	return name
}

// =============================================================================
// TRANSPORT
// =============================================================================

// do executes req and returns the body of a 2xx response.
func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrRequestFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s", ErrRequestFailed, resp.Status)
	}
	return body, nil
}

func (c *Client) logRequest(op string, start time.Time, err error) {
	attrs := []any{"op", op, "duration_ms", time.Since(start).Milliseconds()}
	if err != nil {
		c.logger.Error("backend request failed", append(attrs, "error", err.Error())...)
		return
	}
	c.logger.Debug("backend request completed", attrs...)
}
