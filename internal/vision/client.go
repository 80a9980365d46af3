// Package vision reads EAN barcodes off product photos through a generative
// vision model, for files whose names carry no usable pattern.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"packshot-studio/internal/ean"
)

const model = "gemini-2.5-flash"

const extractionPrompt = `Read the product barcode (EAN, 12 or 13 digits) visible in this image.
Respond with strict JSON only, no prose: {"ean":"<digits or empty>","confidence":<0..1>}
Use an empty ean and confidence 0 when no barcode is readable.`

type Options struct {
	APIKey     string
	BaseURL    string
	APIVersion string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type Client struct {
	apiKey     string
	baseURL    string
	apiVersion string
	httpClient *http.Client
	logger     *slog.Logger
}

func New(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}

	apiVersion := strings.TrimSpace(opts.APIVersion)
	if apiVersion == "" {
		apiVersion = "v1beta"
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		apiKey:     opts.APIKey,
		baseURL:    baseURL,
		apiVersion: apiVersion,
		httpClient: opts.HTTPClient,
		logger:     logger,
	}
}

// ExtractEAN asks the model for the barcode in the image. A readable but
// invalid digit string comes back as a zero-confidence result rather than an
// error; errors are reserved for transport and protocol failures.
func (c *Client) ExtractEAN(ctx context.Context, image []byte, mimeType string) (ean.AIResult, error) {
	if mimeType == "" {
		mimeType = http.DetectContentType(image)
	}

	req := generateContentRequest{
		Contents: []content{
			{
				Role: "user",
				Parts: []part{
					{Text: extractionPrompt},
					{InlineData: &blob{
						Data:     base64.StdEncoding.EncodeToString(image),
						MimeType: mimeType,
					}},
				},
			},
		},
		GenerationConfig: generationConfig{Temperature: 0},
	}

	text, err := c.generateContent(ctx, req)
	if err != nil {
		return ean.AIResult{}, err
	}

	var result ean.AIResult
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &result); err != nil {
		return ean.AIResult{}, fmt.Errorf("decode model answer %q: %w", text, err)
	}

	result.EAN = strings.TrimSpace(result.EAN)
	if result.EAN != "" && !ean.IsValid(result.EAN) {
		c.logger.Warn("model returned malformed ean", "ean", result.EAN)
		return ean.AIResult{}, nil
	}
	if result.Confidence < 0 {
		result.Confidence = 0
	}
	if result.Confidence > 1 {
		result.Confidence = 1
	}

	return result, nil
}

func (c *Client) generateContent(ctx context.Context, payload generateContentRequest) (string, error) {
	if c.httpClient == nil {
		return "", errors.New("http client is nil")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/models/%s:generateContent", c.baseURL, c.apiVersion, model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("content-type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request: %w", err)
	}
	defer httpResp.Body.Close()

	rawBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode >= 400 {
		return "", fmt.Errorf("vision API %s: %s", httpResp.Status, strings.TrimSpace(string(rawBody)))
	}

	var decoded generateContentResponse
	if err := json.Unmarshal(rawBody, &decoded); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	if len(decoded.Candidates) == 0 {
		return "", errors.New("empty response")
	}

	var text strings.Builder
	for _, p := range decoded.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}
	return text.String(), nil
}

func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

type generateContentRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig,omitempty"`
}

type generationConfig struct {
	Temperature float64 `json:"temperature"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string `json:"text,omitempty"`
	InlineData *blob  `json:"inlineData,omitempty"`
}

type blob struct {
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}
