// Package health waits for the print source to answer HTTP requests.
package health

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultInterval = 300 * time.Millisecond
)

// ErrUnreachable is returned when no probe succeeded before the timeout.
var ErrUnreachable = errors.New("source not reachable")

// Config controls the readiness poll.
type Config struct {
	Path     string
	Timeout  time.Duration
	Interval time.Duration
}

// Waiter polls a base URL until it responds.
type Waiter struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

type probe struct {
	method string
	url    string
}

// New returns a Waiter with defaults applied to zero values.
func New(cfg Config, client *http.Client, logger *zap.Logger) *Waiter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if strings.TrimSpace(cfg.Path) == "" {
		cfg.Path = "/"
	}
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Waiter{cfg: cfg, client: client, logger: logger}
}

// Wait blocks until one of the probes answers with a status in [200, 500).
// Probes run in order: HEAD path, GET path, GET /index.html, GET base.
func (w *Waiter) Wait(ctx context.Context, baseURL string) error {
	probes, err := probesFor(baseURL, w.cfg.Path)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, w.cfg.Timeout)
	defer cancel()

	var lastErr error
	start := time.Now()
	operation := func() error {
		for _, p := range probes {
			status, err := w.do(ctx, p)
			if err != nil {
				lastErr = err
				continue
			}
			if status >= http.StatusOK && status < http.StatusInternalServerError {
				w.logger.Info("source ready",
					zap.String("method", p.method),
					zap.String("url", p.url),
					zap.Int("status", status),
					zap.Duration("waited", time.Since(start)),
				)
				return nil
			}
			lastErr = fmt.Errorf("%s %s: status %d", p.method, p.url, status)
		}
		return lastErr
	}

	b := backoff.WithContext(backoff.NewConstantBackOff(w.cfg.Interval), ctx)
	notify := func(err error, next time.Duration) {
		w.logger.Debug("source not ready", zap.Error(err), zap.Duration("retry_in", next))
	}
	if err := backoff.RetryNotify(operation, b, notify); err != nil {
		if lastErr == nil {
			lastErr = err
		}
		return fmt.Errorf("%w: %s after %s: last error: %v", ErrUnreachable, baseURL, w.cfg.Timeout, lastErr)
	}
	return nil
}

func (w *Waiter) do(ctx context.Context, p probe) (int, error) {
	req, err := http.NewRequestWithContext(ctx, p.method, p.url, nil)
	if err != nil {
		return 0, fmt.Errorf("build %s request: %w", p.method, err)
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", p.method, p.url, err)
	}
	if err := resp.Body.Close(); err != nil {
		w.logger.Debug("close probe body", zap.Error(err))
	}
	return resp.StatusCode, nil
}

func probesFor(baseURL, path string) ([]probe, error) {
	base, err := url.Parse(baseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", baseURL)
	}
	hinted := resolve(base, path)
	return []probe{
		{method: http.MethodHead, url: hinted},
		{method: http.MethodGet, url: hinted},
		{method: http.MethodGet, url: resolve(base, "/index.html")},
		{method: http.MethodGet, url: base.String()},
	}, nil
}

func resolve(base *url.URL, rel string) string {
	ref, err := url.Parse(rel)
	if err != nil {
		return base.String() + rel
	}
	return base.ResolveReference(ref).String()
}
