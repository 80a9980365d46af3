// Package removebg wraps the remote background-removal service. The adapter
// never fails a caller: any service hiccup degrades to the original image.
package removebg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"packshot-studio/internal/frame"
)

const (
	defaultBaseURL       = "https://api.remove.bg"
	defaultMaxMegapixels = 50
	defaultMaxBodyBytes  = 50 << 20
	defaultTimeout       = 30 * time.Second
)

type Options struct {
	APIKey        string
	BaseURL       string
	HTTPClient    *http.Client
	Logger        *slog.Logger
	MaxMegapixels float64
	MaxBodyBytes  int64
	Timeout       time.Duration
}

type Client struct {
	apiKey        string
	baseURL       string
	httpClient    *http.Client
	logger        *slog.Logger
	maxMegapixels float64
	maxBodyBytes  int64
	timeout       time.Duration
}

// Result is the adapter outcome. Degraded means the service could not be
// used and Image holds the original input bytes unmodified.
type Result struct {
	Image    []byte
	Degraded bool
	Reason   string
}

func New(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	maxMegapixels := opts.MaxMegapixels
	if maxMegapixels <= 0 {
		maxMegapixels = defaultMaxMegapixels
	}

	maxBodyBytes := opts.MaxBodyBytes
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		apiKey:        opts.APIKey,
		baseURL:       baseURL,
		httpClient:    opts.HTTPClient,
		logger:        logger,
		maxMegapixels: maxMegapixels,
		maxBodyBytes:  maxBodyBytes,
		timeout:       timeout,
	}
}

// Enabled reports whether the adapter holds a credential. A client without a
// key still works; every Remove call degrades immediately.
func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

// Remove submits the image for background removal and returns the response
// bytes. Oversized inputs are downscaled to the service's pixel ceiling
// first. On any failure the original bytes come back with Degraded set;
// label only feeds the log line.
func (c *Client) Remove(ctx context.Context, image []byte, label string) Result {
	out, err := c.remove(ctx, image)
	if err != nil {
		c.logger.Warn("background removal failed, keeping original", "file", label, "err", err)
		return Result{Image: image, Degraded: true, Reason: err.Error()}
	}
	return Result{Image: out}
}

func (c *Client) remove(ctx context.Context, image []byte) ([]byte, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("api key is empty")
	}
	if c.httpClient == nil {
		return nil, fmt.Errorf("http client is nil")
	}

	payload, err := frame.Downscale(image, int(c.maxMegapixels*1_000_000))
	if err != nil {
		return nil, fmt.Errorf("downscale: %w", err)
	}
	if int64(len(payload)) > c.maxBodyBytes {
		return nil, fmt.Errorf("payload %d bytes exceeds limit %d", len(payload), c.maxBodyBytes)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("size", "preview"); err != nil {
		return nil, fmt.Errorf("build form: %w", err)
	}
	part, err := writer.CreateFormFile("image_file", "image.png")
	if err != nil {
		return nil, fmt.Errorf("build form: %w", err)
	}
	if _, err := part.Write(payload); err != nil {
		return nil, fmt.Errorf("build form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("build form: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+"/v1.0/removebg", &body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("content-type", writer.FormDataContentType())
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	// Read one byte past the bound so an oversized body is detected
	// instead of being truncated into a corrupt image.
	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if int64(len(raw)) > c.maxBodyBytes {
		return nil, fmt.Errorf("response exceeds limit %d bytes", c.maxBodyBytes)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("remove.bg %s: %s", resp.Status, errorDetail(raw))
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("remove.bg %s: empty response", resp.Status)
	}

	return raw, nil
}

// errorDetail pulls the service's error title out of a JSON failure body.
// Bodies that do not parse are reported verbatim.
func errorDetail(raw []byte) string {
	var decoded struct {
		Errors []struct {
			Title  string `json:"title"`
			Detail string `json:"detail"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(raw, &decoded); err == nil && len(decoded.Errors) > 0 {
		title := decoded.Errors[0].Title
		if decoded.Errors[0].Detail != "" {
			return title + ": " + decoded.Errors[0].Detail
		}
		if title != "" {
			return title
		}
	}
	return strings.TrimSpace(string(raw))
}
