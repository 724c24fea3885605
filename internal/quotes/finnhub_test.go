package quotes

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thanosan23/StockSim/internal/config"
	"github.com/thanosan23/StockSim/internal/logger"
)

type nopLogger struct{}

func (nopLogger) With(...interface{}) logger.Logger { return nopLogger{} }
func (nopLogger) Debugf(string, ...interface{})     {}
func (nopLogger) Infof(string, ...interface{})      {}
func (nopLogger) Warnf(string, ...interface{})      {}
func (nopLogger) Errorf(string, ...interface{})     {}
func (nopLogger) Fatalf(string, ...interface{})     {}
func (nopLogger) Sync() error                       { return nil }

func newTestClient(baseURL string, cacheTTL time.Duration) *FinnhubClient {
	return NewFinnhubClient(config.QuotesConfig{
		BaseURL:    baseURL,
		APIKey:     "test-key",
		Timeout:    2 * time.Second,
		CacheTTL:   cacheTTL,
		RatePerSec: 100,
	}, nopLogger{})
}

func TestQuote_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("symbol") != "AAPL" {
			t.Errorf("Expected symbol=AAPL, got %s", r.URL.Query().Get("symbol"))
		}
		if r.URL.Query().Get("token") != "test-key" {
			t.Errorf("Expected the API key as token param")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"c":150.25,"h":151.0,"l":149.0,"o":150.0,"pc":149.5}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 0)
	defer client.Close()

	price, err := client.Quote(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("Quote failed: %v", err)
	}
	if price != 150.25 {
		t.Errorf("Expected price 150.25, got %.2f", price)
	}
}

func TestQuote_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 0)
	defer client.Close()

	_, err := client.Quote(context.Background(), "AAPL")
	if !errors.Is(err, ErrQuoteUnavailable) {
		t.Errorf("Expected ErrQuoteUnavailable, got %v", err)
	}
}

func TestQuote_UnknownSymbol(t *testing.T) {
	// finnhub answers 200 with c=0 for symbols it doesn't know
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"c":0,"h":0,"l":0,"o":0,"pc":0}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 0)
	defer client.Close()

	_, err := client.Quote(context.Background(), "NOSUCH")
	if !errors.Is(err, ErrQuoteUnavailable) {
		t.Errorf("Expected ErrQuoteUnavailable for zero price, got %v", err)
	}
}

func TestQuote_EmptySymbol(t *testing.T) {
	client := newTestClient("http://127.0.0.1:0", 0)
	defer client.Close()

	_, err := client.Quote(context.Background(), "")
	if !errors.Is(err, ErrQuoteUnavailable) {
		t.Errorf("Expected ErrQuoteUnavailable for empty symbol, got %v", err)
	}
}

func TestQuote_CacheHit(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"c":99.5}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, time.Minute)
	defer client.Close()

	for i := 0; i < 5; i++ {
		price, err := client.Quote(context.Background(), "AAPL")
		if err != nil {
			t.Fatalf("Quote %d failed: %v", i, err)
		}
		if price != 99.5 {
			t.Errorf("Expected cached price 99.5, got %.2f", price)
		}
	}

	if got := calls.Load(); got != 1 {
		t.Errorf("Expected 1 upstream call with warm cache, got %d", got)
	}

	// A different symbol misses the cache
	if _, err := client.Quote(context.Background(), "MSFT"); err != nil {
		t.Fatalf("Quote failed: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("Expected 2 upstream calls, got %d", got)
	}
}

func TestQuote_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"c":1}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 0)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Quote(ctx, "AAPL")
	if !errors.Is(err, ErrQuoteUnavailable) {
		t.Errorf("Expected ErrQuoteUnavailable on timeout, got %v", err)
	}
}
