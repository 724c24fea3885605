package quotes

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/ratelimit"
	"resty.dev/v3"

	"github.com/thanosan23/StockSim/internal/config"
	"github.com/thanosan23/StockSim/internal/logger"
)

const _quoteURL = "/quote"

// ErrQuoteUnavailable covers every way a quote lookup can fail: transport
// error, non-2xx status, or a response without a usable price.
var ErrQuoteUnavailable = errors.New("quote unavailable")

// quoteResponse mirrors the finnhub /quote body; c is the current price.
type quoteResponse struct {
	Current float64 `json:"c"`
}

type cachedQuote struct {
	price   float64
	fetched time.Time
}

// FinnhubClient fetches current prices from finnhub. Quotes are cached for a
// short TTL and outbound calls are rate limited, since every buy, sell and
// portfolio view hits the oracle.
type FinnhubClient struct {
	c        *resty.Client
	apiKey   string
	cacheTTL time.Duration

	limiter ratelimit.Limiter

	mu    sync.Mutex
	cache map[string]cachedQuote

	logger logger.Logger
}

func NewFinnhubClient(cfg config.QuotesConfig, logger logger.Logger) *FinnhubClient {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout)

	return &FinnhubClient{
		c:        client,
		apiKey:   cfg.APIKey,
		cacheTTL: cfg.CacheTTL,
		limiter:  ratelimit.New(cfg.RatePerSec),
		cache:    make(map[string]cachedQuote),
		logger:   logger,
	}
}

// Quote returns the current price for symbol.
func (f *FinnhubClient) Quote(ctx context.Context, symbol string) (float64, error) {
	if symbol == "" {
		return 0, fmt.Errorf("%w: empty symbol", ErrQuoteUnavailable)
	}

	if price, ok := f.cached(symbol); ok {
		return price, nil
	}

	f.limiter.Take()

	req := f.c.R().
		SetQueryParams(map[string]string{
			"symbol": symbol,
			"token":  f.apiKey,
		}).
		SetResult(&quoteResponse{}).
		SetContext(ctx)

	resp, err := req.Get(_quoteURL)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrQuoteUnavailable, err)
	}
	defer resp.Body.Close()

	f.logger.Debugf("got response %s status: %s, %s", resp.Request.URL, resp.Status(), resp.Duration())

	if resp.IsError() {
		return 0, fmt.Errorf("%w: status %s", ErrQuoteUnavailable, resp.Status())
	}

	body, ok := resp.Result().(*quoteResponse)
	if !ok || body.Current <= 0 {
		// finnhub answers c=0 for unknown symbols
		return 0, fmt.Errorf("%w: no price for %q", ErrQuoteUnavailable, symbol)
	}

	f.store(symbol, body.Current)
	return body.Current, nil
}

// Close releases the underlying HTTP client.
func (f *FinnhubClient) Close() error {
	return f.c.Close()
}

func (f *FinnhubClient) cached(symbol string) (float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	q, ok := f.cache[symbol]
	if !ok || time.Since(q.fetched) > f.cacheTTL {
		return 0, false
	}
	return q.price, true
}

func (f *FinnhubClient) store(symbol string, price float64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.cache[symbol] = cachedQuote{price: price, fetched: time.Now()}
}
