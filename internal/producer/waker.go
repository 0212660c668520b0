package producer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/blogapp/summarizer/internal/config"
	"github.com/blogapp/summarizer/internal/metrics"
	"github.com/blogapp/summarizer/internal/redact"
	"golang.org/x/time/rate"
)

// ErrWakeupRejected is returned when the worker answers with a non-2xx status.
var ErrWakeupRejected = errors.New("wakeup rejected")

// Waker sends the wakeup signal to the worker's control surface.
//
// Signals are throttled with a token bucket: a burst of post writes needs
// one wakeup, not one per post.
type Waker struct {
	httpClient *http.Client
	url        string
	secret     string
	timeout    time.Duration
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewWaker builds a Waker from cfg. An empty cfg.URL yields a Waker whose
// Wake is a no-op. httpClient may be nil.
func NewWaker(cfg config.WakeupConfig, httpClient *http.Client, logger *slog.Logger) *Waker {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(cfg.RatePerSecond)
	if cfg.RatePerSecond <= 0 {
		limit = rate.Inf
	}

	return &Waker{
		httpClient: httpClient,
		url:        cfg.URL,
		secret:     cfg.Secret,
		timeout:    cfg.Timeout,
		limiter:    rate.NewLimiter(limit, burst),
		logger:     logger.With(slog.String("component", "waker")),
	}
}

// Enabled reports whether a wakeup URL is configured.
func (w *Waker) Enabled() bool {
	return w.url != ""
}

// Wake posts the wakeup signal. Throttled and disabled calls return nil.
func (w *Waker) Wake(ctx context.Context) error {
	if !w.Enabled() {
		w.logger.Debug("wakeup URL not configured, skipping wakeup")
		return nil
	}

	if !w.limiter.Allow() {
		w.logger.Debug("wakeup throttled, a recent signal is still in effect")
		metrics.Wakeup("sent", "throttled")
		return nil
	}

	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, http.NoBody)
	if err != nil {
		metrics.Wakeup("sent", "error")
		return fmt.Errorf("failed to build wakeup request: %w", err)
	}
	if w.secret != "" {
		req.Header.Set(config.WakeupSecretHeader, w.secret)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		metrics.Wakeup("sent", "error")
		return fmt.Errorf("failed to send wakeup: %s", redact.Error(err))
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.Wakeup("sent", "rejected")
		return fmt.Errorf("%w: status %d", ErrWakeupRejected, resp.StatusCode)
	}

	metrics.Wakeup("sent", "ok")
	w.logger.Debug("wakeup signal sent", slog.Int("status", resp.StatusCode))
	return nil
}
