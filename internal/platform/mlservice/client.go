// Package mlservice implements summarization.Gateway over HTTP against the
// hosted summarization model.
package mlservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/blogapp/summarizer/internal/config"
	"github.com/blogapp/summarizer/internal/metrics"
	"github.com/blogapp/summarizer/internal/platform/logger"
	"github.com/blogapp/summarizer/internal/redact"
	"github.com/blogapp/summarizer/internal/summarization"
)

// maxErrorBody bounds how much of an error response body is kept in errors.
const maxErrorBody = 512

type summarizeRequest struct {
	Text string `json:"text"`
}

type summarizeResponse struct {
	Summary string `json:"summary"`
	Error   string `json:"error"`
}

// Client calls the ML service health and summarize endpoints.
type Client struct {
	httpClient       *http.Client
	healthURL        string
	summarizeURL     string
	authToken        string
	healthTimeout    time.Duration
	summarizeTimeout time.Duration
	logger           *slog.Logger
}

// Ensure Client implements summarization.Gateway interface
var _ summarization.Gateway = (*Client)(nil)

// NewClient builds a Client from cfg. httpClient may be nil.
func NewClient(cfg config.MLConfig, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: ML service URL cannot be empty", summarization.ErrInvalidConfig)
	}
	if cfg.AuthToken == "" {
		return nil, fmt.Errorf("%w: ML service auth token cannot be empty", summarization.ErrInvalidConfig)
	}
	if cfg.HealthTimeout <= 0 || cfg.SummarizeTimeout <= 0 {
		return nil, fmt.Errorf("%w: timeouts must be positive", summarization.ErrInvalidConfig)
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	base := strings.TrimRight(cfg.URL, "/")
	return &Client{
		httpClient:       httpClient,
		healthURL:        base + cfg.HealthPath,
		summarizeURL:     base + cfg.SummarizePath,
		authToken:        cfg.AuthToken,
		healthTimeout:    cfg.HealthTimeout,
		summarizeTimeout: cfg.SummarizeTimeout,
		logger:           logger.With(slog.String("component", "ml_client")),
	}, nil
}

func (c *Client) newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	// The service expects the token verbatim, including any scheme prefix.
	req.Header.Set("Authorization", c.authToken)
	return req, nil
}

// Health implements summarization.Gateway.Health
func (c *Client) Health(ctx context.Context) bool {
	log := logger.FromContextOrDefault(ctx, c.logger)

	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, c.healthURL, nil)
	if err != nil {
		log.Error("failed to build health request", slog.String("error", err.Error()))
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			log.Warn("ML health check timed out", slog.Duration("timeout", c.healthTimeout))
		} else {
			log.Warn("ML health check failed", slog.String("error", err.Error()))
		}
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	healthy := resp.StatusCode >= 200 && resp.StatusCode < 300
	log.Debug("ML health check finished",
		slog.Int("status", resp.StatusCode),
		slog.Bool("healthy", healthy))
	return healthy
}

// Summarize implements summarization.Gateway.Summarize
func (c *Client) Summarize(ctx context.Context, text string) (summary string, err error) {
	log := logger.FromContextOrDefault(ctx, c.logger)
	start := time.Now()
	defer func() { metrics.ObserveSummarize(time.Since(start), err) }()

	ctx, cancel := context.WithTimeout(ctx, c.summarizeTimeout)
	defer cancel()

	payload, err := json.Marshal(summarizeRequest{Text: text})
	if err != nil {
		return "", fmt.Errorf("failed to encode summarize request: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.summarizeURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build summarize request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w after %s", summarization.ErrTimeout, c.summarizeTimeout)
		}
		return "", fmt.Errorf("%w: %w", summarization.ErrServiceUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w after %s", summarization.ErrTimeout, c.summarizeTimeout)
		}
		return "", fmt.Errorf("%w: reading body: %w", summarization.ErrInvalidResponse, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status %d: %s", summarization.ErrServiceUnavailable, resp.StatusCode, truncate(body))
	}

	var result summarizeResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("%w: %w", summarization.ErrInvalidResponse, err)
	}

	if result.Summary == "" {
		if result.Error != "" {
			return "", fmt.Errorf("%w: %s", summarization.ErrEmptySummary, result.Error)
		}
		return "", summarization.ErrEmptySummary
	}

	log.Debug("summary received",
		slog.Int("text_length", len(text)),
		slog.Int("summary_length", len(result.Summary)),
		slog.Duration("elapsed", time.Since(start)))
	return result.Summary, nil
}

// truncate shortens and redacts an error body before it is put in an error.
func truncate(body []byte) string {
	s := redact.String(strings.TrimSpace(string(body)))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}
