package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"power-observer/src/logger"
	"power-observer/src/models"
)

// ErrNotFound is returned for 404 responses, which are never retried.
var ErrNotFound = errors.New("resource not found")

type AsyncNetworkManager struct {
	Config  models.MNetworkConfig
	Client  *http.Client
	Logger  *logger.Logger
	Backoff time.Duration

	slots chan struct{}
}

// -----------------------------------------------------------------------------

func NewAsyncNetworkManager(cfg models.MNetworkConfig, log *logger.Logger) *AsyncNetworkManager {
	concurrent := cfg.ConcurrentRequests
	if concurrent <= 0 {
		concurrent = 1
	}
	return &AsyncNetworkManager{
		Config: cfg,
		Client: &http.Client{
			Timeout: time.Duration(cfg.RequestTimeout) * time.Second,
		},
		Logger:  log,
		Backoff: time.Second,
		slots:   make(chan struct{}, concurrent),
	}
}

// -----------------------------------------------------------------------------

// Get performs a GET request with retries. At most ConcurrentRequests calls
// are in flight at once.
func (nm *AsyncNetworkManager) Get(ctx context.Context, urlStr string, params map[string]string) ([]byte, error) {
	reqURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, err
	}

	q := reqURL.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	reqURL.RawQuery = q.Encode()
	finalURL := reqURL.String()

	select {
	case nm.slots <- struct{}{}:
		defer func() { <-nm.slots }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	maxRetries := nm.Config.MaxRetries
	var lastErr error

	for i := 0; i <= maxRetries; i++ {
		if i > 0 {
			// quadratic backoff
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(i*i) * nm.Backoff):
			}
		}

		body, retry, err := nm.do(ctx, finalURL)
		if err == nil {
			return body, nil
		}
		if !retry {
			return nil, err
		}
		lastErr = err
		nm.Logger.Info("Request to %s failed (attempt %d/%d): %v", reqURL.Path, i+1, maxRetries+1, err)
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) do(ctx context.Context, finalURL string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, finalURL, nil)
	if err != nil {
		return nil, false, err
	}
	if nm.Config.UserAgent != "" {
		req.Header.Set("User-Agent", nm.Config.UserAgent)
	}

	resp, err := nm.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusForbidden:
		return nil, true, fmt.Errorf("blocked (status %d)", resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, true, fmt.Errorf("bad status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, err
	}
	return body, false, nil
}
