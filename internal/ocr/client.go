// Package ocr is the client side of the external vision/OCR port.
package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// PageResult is one OCR'd page as returned by the service.
type PageResult struct {
	PageNumber int     `json:"page_number"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Width      float64 `json:"width,omitempty"`
	Height     float64 `json:"height,omitempty"`
}

// Result is the OCR port's response envelope.
type Result struct {
	OK       bool         `json:"ok"`
	Pages    []PageResult `json:"pages"`
	Model    string       `json:"model,omitempty"`
	Warnings []string     `json:"warnings,omitempty"`
}

// Client is the OCR port consumed by the fallback coordinator.
type Client interface {
	OCR(ctx context.Context, pdfBytes []byte) (Result, error)
}

// HTTPClient talks JSON to the OCR service. It assumes nothing about the
// provider beyond the request/response shapes.
type HTTPClient struct {
	baseURL  string
	apiKey   string
	maxPages int
	client   *http.Client
	logger   *slog.Logger
}

type Config struct {
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
	MaxPages int
}

func NewHTTPClient(cfg Config, logger *slog.Logger) *HTTPClient {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &HTTPClient{
		baseURL:  cfg.BaseURL,
		apiKey:   cfg.APIKey,
		maxPages: cfg.MaxPages,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// Enabled reports whether the port is configured at all.
func (c *HTTPClient) Enabled() bool { return c.baseURL != "" }

func (c *HTTPClient) OCR(ctx context.Context, pdfBytes []byte) (Result, error) {
	if !c.Enabled() {
		return Result{}, fmt.Errorf("ocr service not configured")
	}

	reqID := uuid.New().String()
	start := time.Now()

	body := map[string]any{
		"document":  base64.StdEncoding.EncodeToString(pdfBytes),
		"mime_type": "application/pdf",
	}
	if c.maxPages > 0 {
		body["max_pages"] = c.maxPages
	}
	bs, err := json.Marshal(body)
	if err != nil {
		return Result{}, fmt.Errorf("encode json: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/ocr", bytes.NewReader(bs))
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	c.logger.Info("ocr.http.request", "req_id", reqID, "content_length", len(bs))

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("ocr.http.send_error", "req_id", reqID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return Result{}, err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Warn("ocr.http.body_close_error", "req_id", reqID, "error", cerr)
		}
	}()

	raw, _ := io.ReadAll(resp.Body)
	c.logger.Info("ocr.http.response",
		"req_id", reqID,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		return Result{}, fmt.Errorf("ocr service non-2xx status: %d", resp.StatusCode)
	}

	var out Result
	if err := json.Unmarshal(raw, &out); err != nil {
		return Result{}, fmt.Errorf("decode ocr response: %w", err)
	}
	return out, nil
}
