package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gerr "github.com/ethereumdegen/stark-guardian/internal/errors"
)

func TestGetJSONDecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "stark-guardian/1.0" {
			t.Errorf("user-agent = %q", got)
		}
		w.Write([]byte(`{"value":42}`))
	}))
	defer srv.Close()

	var out struct {
		Value int `json:"value"`
	}
	if err := New(2*time.Second, 0).GetJSON(context.Background(), srv.URL, &out); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if out.Value != 42 {
		t.Errorf("value = %d", out.Value)
	}
}

func TestRetriesOnServerError(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			http.Error(w, "flaky", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	var out map[string]bool
	if err := New(2*time.Second, 3).GetJSON(context.Background(), srv.URL, &out); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRateLimitMapsToTypedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := New(2*time.Second, 0).GetJSON(context.Background(), srv.URL, &struct{}{})
	ge, ok := gerr.As(err)
	if !ok || ge.Code != gerr.CodeRateLimited {
		t.Fatalf("error = %v, want rate-limited code", err)
	}
}

func TestPostJSONRetriesWithBody(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content-type = %q", r.Header.Get("Content-Type"))
		}
		buf := make([]byte, 64)
		n, _ := r.Body.Read(buf)
		if n == 0 {
			t.Error("empty request body on retry")
		}
		if attempts == 1 {
			http.Error(w, "try again", http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	body := map[string]string{"query": "hello"}
	if err := New(2*time.Second, 2).PostJSON(context.Background(), srv.URL, body, nil); err != nil {
		t.Fatalf("PostJSON: %v", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestNonRetryableStatusFailsFast(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "missing", http.StatusNotFound)
	}))
	defer srv.Close()

	if err := New(2*time.Second, 3).GetJSON(context.Background(), srv.URL, &struct{}{}); err == nil {
		t.Fatal("expected error for 404")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (no retry on 4xx)", attempts)
	}
}
