// Package providers implements the cloud and local generation backends.
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Option customises a provider
type Option func(*base)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(b *base) {
		if client != nil {
			b.client = client
		}
	}
}

// WithBaseURL points the provider at another endpoint
func WithBaseURL(url string) Option {
	return func(b *base) {
		if url != "" {
			b.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithLogger sets the provider logger
func WithLogger(logger *slog.Logger) Option {
	return func(b *base) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithPolling overrides the status polling schedule of long-running backends:
// first wait, growth per attempt, cap and attempt limit.
func WithPolling(initial, step, maxDelay time.Duration, attempts int) Option {
	return func(b *base) {
		b.poll = pollSchedule{initial: initial, step: step, max: maxDelay, attempts: attempts}
	}
}

type pollSchedule struct {
	initial  time.Duration
	step     time.Duration
	max      time.Duration
	attempts int
}

// wait sleeps for the delay of attempt n, returning early on cancellation
func (p pollSchedule) wait(ctx context.Context, attempt int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	delay := p.initial + time.Duration(attempt)*p.step
	if p.max > 0 && delay > p.max {
		delay = p.max
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type base struct {
	name    string
	label   string
	baseURL string
	client  *http.Client
	logger  *slog.Logger
	poll    pollSchedule
}

func newBase(name, label, defaultURL string, defaultPoll pollSchedule, opts []Option) base {
	b := base{
		name:    name,
		label:   label,
		baseURL: defaultURL,
		client:  &http.Client{Timeout: 120 * time.Second},
		logger:  slog.Default(),
		poll:    defaultPoll,
	}
	for _, opt := range opts {
		opt(&b)
	}
	b.logger = b.logger.With(slog.String("provider", name))
	return b
}

func (b *base) Name() string { return b.name }

// doJSON sends body as JSON and returns the raw response. Non-2xx statuses
// become "<label> API error (<status>): <body>".
func (b *base) doJSON(ctx context.Context, method, url string, headers map[string]string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s request: %w", b.label, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", b.label, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", b.label, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", b.label, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s API error (%s): %s", b.label, resp.Status, strings.TrimSpace(string(data)))
	}

	return data, nil
}

func (b *base) postJSON(ctx context.Context, path string, headers map[string]string, body any) ([]byte, error) {
	return b.doJSON(ctx, http.MethodPost, b.baseURL+path, headers, body)
}

func (b *base) getJSON(ctx context.Context, path string, headers map[string]string) ([]byte, error) {
	return b.doJSON(ctx, http.MethodGet, b.baseURL+path, headers, nil)
}

// decode unmarshals a response into out and returns it as generic metadata too
func decode(data []byte, out any) (map[string]any, error) {
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	var meta map[string]any
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return meta, nil
}

func bearer(key string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + key}
}
