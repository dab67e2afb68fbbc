package valuation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testClient(endpoint string) *Client {
	return NewClient(Config{
		Endpoint:    endpoint,
		Timeout:     2 * time.Second,
		MaxAttempts: 3,
		RetryBase:   time.Millisecond,
	}, nil, nil)
}

func TestFetchValueSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method: got %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type: got %q", ct)
		}
		w.Write([]byte(`{"value":"123456","exerciseParams":{"swapper":["0xabc"]}}`))
	}))
	defer server.Close()

	got, err := testClient(server.URL).FetchValue(context.Background(), Request{
		TokenID: "7",
		Market:  "0xmarket",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Value != "123456" {
		t.Fatalf("value: got %q, want 123456", got.Value)
	}
	if got.ExerciseParams == nil {
		t.Fatal("exercise params not decoded")
	}
	if got.TokenID != "7" || got.Market != "0xmarket" {
		t.Fatalf("identity not carried through: %+v", got)
	}
}

func TestFetchValueEmptyValueDefaultsToZero(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	got, err := testClient(server.URL).FetchValue(context.Background(), Request{TokenID: "1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Value != "0" {
		t.Fatalf("value: got %q, want 0", got.Value)
	}
}

func TestFetchValueNon2xxIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	if _, err := testClient(server.URL).FetchValue(context.Background(), Request{}); err == nil {
		t.Fatal("expected error for HTTP 500")
	}
}

func TestFetchValueWithRetryDegradesAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	got := testClient(server.URL).FetchValueWithRetry(context.Background(), Request{
		TokenID: "9",
		Market:  "0xmarket",
	})

	if calls.Load() != 3 {
		t.Fatalf("attempts made: got %d, want 3", calls.Load())
	}
	if !got.Degraded {
		t.Fatal("expected degraded result")
	}
	if got.Value != "0" {
		t.Fatalf("degraded value: got %q, want 0", got.Value)
	}
	if got.ExerciseParams != nil {
		t.Fatalf("degraded exercise params must be nil, got %s", got.ExerciseParams)
	}
	if got.Attempts != 3 {
		t.Fatalf("attempts recorded: got %d, want 3", got.Attempts)
	}
}

func TestFetchValueWithRetryRecoversOnSecondAttempt(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "warming up", http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"value":"42"}`))
	}))
	defer server.Close()

	got := testClient(server.URL).FetchValueWithRetry(context.Background(), Request{TokenID: "1"})
	if got.Degraded {
		t.Fatal("expected recovery, got degraded result")
	}
	if got.Value != "42" {
		t.Fatalf("value: got %q, want 42", got.Value)
	}
	if got.Attempts != 2 {
		t.Fatalf("attempts: got %d, want 2", got.Attempts)
	}
}

func TestFetchValueWithRetryStopsOnCancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(Config{
		Endpoint:    server.URL,
		Timeout:     2 * time.Second,
		MaxAttempts: 10,
		RetryBase:   50 * time.Millisecond,
	}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := client.FetchValueWithRetry(ctx, Request{TokenID: "1"})
	if !got.Degraded {
		t.Fatal("expected degraded result on cancelled context")
	}
	if got.Attempts >= 10 {
		t.Fatalf("retry loop ignored cancellation, made %d attempts", got.Attempts)
	}
}
