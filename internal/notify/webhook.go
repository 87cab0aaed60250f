package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

const (
	defaultTimeout      = 10 * time.Second
	defaultMaxRetryWait = 5 * time.Second
)

// Option configures a webhook notifier.
type Option func(*webhook)

// WithHTTPClient sets the HTTP client used for webhook calls.
func WithHTTPClient(c *http.Client) Option {
	return func(w *webhook) {
		if c != nil {
			w.client = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *webhook) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithFormatter replaces the default message formatter.
func WithFormatter(f *Formatter) Option {
	return func(w *webhook) {
		if f != nil {
			w.formatter = f
		}
	}
}

// WithMaxRetryWait caps how long a rate-limited call waits before its
// single retry.
func WithMaxRetryWait(d time.Duration) Option {
	return func(w *webhook) { w.maxRetryWait = d }
}

// webhook posts JSON payloads to one URL.
type webhook struct {
	name         string
	url          string
	client       *http.Client
	formatter    *Formatter
	logger       *slog.Logger
	maxRetryWait time.Duration
}

func newWebhook(name, url string, opts []Option) *webhook {
	w := &webhook{
		name:         name,
		url:          url,
		client:       &http.Client{Timeout: defaultTimeout},
		formatter:    DefaultFormatter(),
		logger:       slog.Default(),
		maxRetryWait: defaultMaxRetryWait,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// post sends payload, retrying once when the endpoint answers 429.
func (w *webhook) post(ctx context.Context, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", w.name, err)
	}

	resp, err := w.do(ctx, body)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		wait := retryAfter(resp.Header.Get("Retry-After"), w.maxRetryWait)
		w.logger.Warn("webhook rate limited, retrying", "notifier", w.name, "wait", wait)
		drain(resp)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		if resp, err = w.do(ctx, body); err != nil {
			return err
		}
	}
	defer drain(resp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s webhook returned status %d: %s", w.name, resp.StatusCode, bytes.TrimSpace(snippet))
	}
	return nil
}

func (w *webhook) do(ctx context.Context, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", w.name, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post to %s webhook: %w", w.name, err)
	}
	return resp, nil
}

// retryAfter parses a Retry-After value in (possibly fractional) seconds,
// capped at max.
func retryAfter(v string, max time.Duration) time.Duration {
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil || secs < 0 {
		secs = 1
	}
	d := time.Duration(secs * float64(time.Second))
	if d > max {
		d = max
	}
	return d
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
