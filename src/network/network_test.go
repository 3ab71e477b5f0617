package network

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"power-observer/src/logger"
	"power-observer/src/models"
)

func newTestManager(retries int) *AsyncNetworkManager {
	nm := NewAsyncNetworkManager(models.MNetworkConfig{
		RequestTimeout:     5,
		MaxRetries:         retries,
		ConcurrentRequests: 2,
		UserAgent:          "power-observer-test",
	}, logger.NewLoggerWithWriter("ERROR", "network", io.Discard))
	nm.Backoff = time.Millisecond
	return nm
}

func TestGetSendsParamsAndUserAgent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("auth") != "secret" {
			t.Errorf("missing auth param: %s", r.URL.RawQuery)
		}
		if r.UserAgent() != "power-observer-test" {
			t.Errorf("unexpected user agent %q", r.UserAgent())
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	body, err := newTestManager(0).Get(context.Background(), srv.URL+"/C-1/2025/03/10.json", map[string]string{"auth": "secret"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(body) != `{"ok":true}` {
		t.Fatalf("unexpected body %s", body)
	}
}

func TestGetRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("null"))
	}))
	defer srv.Close()

	body, err := newTestManager(2).Get(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(body) != "null" || calls.Load() != 3 {
		t.Fatalf("body=%s calls=%d", body, calls.Load())
	}
}

func TestGetDoesNotRetryNotFound(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := newTestManager(3).Get(context.Background(), srv.URL, nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single call, got %d", calls.Load())
	}
}

func TestGetGivesUpAfterRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestManager(1).Get(context.Background(), srv.URL, nil)
	if err == nil {
		t.Fatalf("expected error after retries")
	}
}
