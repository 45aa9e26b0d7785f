package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"time"
)

// RetryConfig configures webhook redelivery on transient failures.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	JitterFraction float64 // 0.0 to 1.0
}

// DefaultRetryConfig returns sensible retry defaults.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:     2,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		JitterFraction: 0.25,
	}
}

// WebhookConfig holds the list of configured webhook URLs.
type WebhookConfig struct {
	URLs  []string
	Retry *RetryConfig
}

// WebhookRecorder POSTs events as JSON to the configured URLs.
// Delivery is synchronous: Record returns once every URL was tried.
type WebhookRecorder struct {
	config *WebhookConfig
	client *http.Client
	logger *slog.Logger
}

// NewWebhookRecorder creates a webhook recorder. Returns nil if no URLs are configured.
func NewWebhookRecorder(cfg *WebhookConfig, logger *slog.Logger) *WebhookRecorder {
	if cfg == nil || len(cfg.URLs) == 0 {
		return nil
	}
	if cfg.Retry == nil {
		cfg.Retry = DefaultRetryConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookRecorder{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

// Record delivers the event to all configured URLs.
func (wr *WebhookRecorder) Record(ctx context.Context, event *Event) error {
	if wr == nil {
		return nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	var errs []error
	for _, url := range wr.config.URLs {
		if err := wr.post(ctx, url, data); err != nil {
			wr.logger.Warn("webhook: delivery failed", "url", url, "error", err)
			errs = append(errs, fmt.Errorf("webhook %s: %w", url, err))
		} else {
			wr.logger.Debug("webhook: delivered", "url", url, "event", event.Event)
		}
	}
	return errors.Join(errs...)
}

// statusError is a non-2xx webhook response.
type statusError struct {
	Status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.Status)
}

// isTransient returns true for errors that are worth retrying.
func isTransient(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.Status >= 500 || se.Status == http.StatusTooManyRequests
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true // network errors are transient
}

// post sends a single webhook POST, retrying transient failures.
func (wr *WebhookRecorder) post(ctx context.Context, url string, data []byte) error {
	cfg := wr.config.Retry
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		lastErr = wr.postOnce(ctx, url, data)
		if lastErr == nil {
			return nil
		}
		if !isTransient(lastErr) {
			return lastErr
		}
		if attempt < cfg.MaxRetries {
			if err := sleep(ctx, backoff(cfg, attempt)); err != nil {
				return fmt.Errorf("%w (retry cancelled)", lastErr)
			}
		}
	}
	return fmt.Errorf("%w (after %d retries)", lastErr, cfg.MaxRetries)
}

func (wr *WebhookRecorder) postOnce(ctx context.Context, url string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "lexmerge/1.0")

	resp, err := wr.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return &statusError{Status: resp.StatusCode}
}

// backoff computes the delay for the given attempt with jitter.
func backoff(cfg *RetryConfig, attempt int) time.Duration {
	base := float64(cfg.InitialBackoff) * math.Pow(2, float64(attempt))
	if base > float64(cfg.MaxBackoff) {
		base = float64(cfg.MaxBackoff)
	}
	jitter := base * cfg.JitterFraction * (rand.Float64()*2 - 1) // +/- jitter
	d := time.Duration(base + jitter)
	if d < 0 {
		d = 0
	}
	return d
}

// sleep waits for the given duration or until the context is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
