// Package market serves stock metrics for the fixed company watchlist. One
// upstream batch quote call covers the whole list; results are cached
// globally for the configured TTL with last-good fallback on upstream
// failure.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/robertvmill/inference-backend/pkg/errors"
)

// Quote is one symbol's snapshot from the upstream quote endpoint.
type Quote struct {
	Symbol        string
	Price         float64
	ChangePercent float64
	MarketCap     float64
	Volume        int64
}

// Client fetches batch quotes from a Yahoo-compatible v7 quote endpoint.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a quote client against baseURL (scheme and host, no
// path).
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  slog.Default().With("component", "market-client"),
	}
}

type quoteResponse struct {
	QuoteResponse struct {
		Result []struct {
			Symbol                     string  `json:"symbol"`
			RegularMarketPrice         float64 `json:"regularMarketPrice"`
			RegularMarketChangePercent float64 `json:"regularMarketChangePercent"`
			MarketCap                  float64 `json:"marketCap"`
			RegularMarketVolume        int64   `json:"regularMarketVolume"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteResponse"`
}

// Quotes fetches all symbols in one request and returns the quotes keyed by
// symbol. Symbols the upstream omits are simply absent from the map; the
// caller decides how to degrade.
func (c *Client) Quotes(ctx context.Context, symbols []string) (map[string]Quote, error) {
	endpoint := fmt.Sprintf("%s/v7/finance/quote?symbols=%s",
		c.baseURL, url.QueryEscape(strings.Join(symbols, ",")))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building quote request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "inference-backend/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Newf(errors.ErrMarketData, 502, "quote request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.New(errors.ErrMarketData, 502,
			fmt.Sprintf("quote endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var parsed quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errors.Newf(errors.ErrMarketData, 502, "decoding quote response: %v", err)
	}
	if e := parsed.QuoteResponse.Error; e != nil {
		return nil, errors.New(errors.ErrMarketData, 502,
			fmt.Sprintf("quote endpoint error %s: %s", e.Code, e.Description))
	}

	quotes := make(map[string]Quote, len(parsed.QuoteResponse.Result))
	for _, r := range parsed.QuoteResponse.Result {
		quotes[r.Symbol] = Quote{
			Symbol:        r.Symbol,
			Price:         r.RegularMarketPrice,
			ChangePercent: r.RegularMarketChangePercent,
			MarketCap:     r.MarketCap,
			Volume:        r.RegularMarketVolume,
		}
	}
	return quotes, nil
}
