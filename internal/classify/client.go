// Package classify talks to the remote ad-classification backend. The
// backend receives per-candidate feature vectors and returns confidence
// scores matched back by batch index.
package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"adscrub/internal/domain"
)

var (
	// ErrTimeout means the request exceeded the configured deadline.
	// Timeouts are never retried; the backend may be slow or unavailable.
	ErrTimeout = errors.New("classifier request timeout")
	// ErrUnavailable covers network failures, HTTP error statuses and
	// malformed responses after retries are exhausted.
	ErrUnavailable = errors.New("classifier unavailable")
	// ErrNoCandidates is returned before any network call when the batch is
	// empty.
	ErrNoCandidates = errors.New("no candidates to classify")
)

// Client is the HTTP adapter for the classification backend.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	timeout     time.Duration
	maxRetries  int
	backoffBase time.Duration
	maxBatch    int
	log         *zap.Logger
}

// Options tune the client. Zero values fall back to defaults.
type Options struct {
	Timeout     time.Duration // default 30s
	MaxRetries  int           // default 2
	BackoffBase time.Duration // default 500ms; delay = base × attempt
	MaxBatch    int           // default 500
}

func NewClient(baseURL string, opts Options, log *zap.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	} else if opts.MaxRetries == 0 {
		opts.MaxRetries = 2
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = 500 * time.Millisecond
	}
	if opts.MaxBatch <= 0 {
		opts.MaxBatch = 500
	}
	return &Client{
		baseURL:     baseURL,
		httpClient:  &http.Client{},
		timeout:     opts.Timeout,
		maxRetries:  opts.MaxRetries,
		backoffBase: opts.BackoffBase,
		maxBatch:    opts.MaxBatch,
		log:         log,
	}
}

// Predict scores a batch of candidates. Predictions come back indexed to the
// batch as sent; an empty prediction list is a valid "no ads" result, not an
// error. Oversized batches are truncated with a logged warning so the caller
// keeps index correspondence with what was actually sent.
func (c *Client) Predict(ctx context.Context, feats []domain.Features) (*domain.PredictResponse, error) {
	if len(feats) == 0 {
		return nil, ErrNoCandidates
	}
	if len(feats) > c.maxBatch {
		c.log.Warn("truncating oversized candidate batch",
			zap.Int("got", len(feats)), zap.Int("max", c.maxBatch))
		feats = feats[:c.maxBatch]
	}

	body, err := json.Marshal(domain.PredictRequest{AdCandidates: feats})
	if err != nil {
		return nil, fmt.Errorf("encode predict request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries+1; attempt++ {
		raw, err := c.doOnce(ctx, body)
		if err == nil {
			return decode(raw, len(feats))
		}
		if errors.Is(err, ErrTimeout) || errors.Is(err, context.Canceled) || errors.Is(err, ErrUnavailable) {
			// Timeouts, cancellation and definitive backend answers are not
			// transient; retrying them only adds load.
			return nil, err
		}
		lastErr = err
		if attempt <= c.maxRetries {
			delay := c.backoffBase * time.Duration(attempt)
			c.log.Warn("classifier request failed, retrying",
				zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(err))
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
			case <-time.After(delay):
			}
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

func (c *Client) doOnce(ctx context.Context, body []byte) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || reqCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w after %s: backend may be slow or unavailable", ErrTimeout, c.timeout)
		}
		if errors.Is(err, context.Canceled) {
			return nil, context.Canceled
		}
		return nil, err
	}
	defer resp.Body.Close()
	c.log.Debug("classifier responded",
		zap.Int("status", resp.StatusCode), zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, snippet)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func decode(raw []byte, sent int) (*domain.PredictResponse, error) {
	var out domain.PredictResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", ErrUnavailable, err)
	}
	for _, p := range out.Predictions {
		if p.Index < 0 || p.Index >= sent {
			return nil, fmt.Errorf("%w: prediction index %d out of range for batch of %d",
				ErrUnavailable, p.Index, sent)
		}
	}
	return &out, nil
}

// Health checks the backend's /health endpoint.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("classifier health: status %d", resp.StatusCode)
	}
	return nil
}
