package market

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/robertvmill/inference-backend/pkg/config"
)

type fakeFetcher struct {
	mu     sync.Mutex
	calls  int
	quotes map[string]Quote
	err    error
}

func (f *fakeFetcher) Quotes(_ context.Context, _ []string) (map[string]Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.quotes, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testWatchlist() config.MarketConfig {
	return config.MarketConfig{
		CacheTTL: 5 * time.Minute,
		Watchlist: []config.Company{
			{Symbol: "NVDA", Name: "NVIDIA"},
			{Symbol: "GOOGL", Name: "Alphabet"},
		},
	}
}

func TestMetricsCachedWithinTTL(t *testing.T) {
	fetcher := &fakeFetcher{quotes: map[string]Quote{
		"NVDA":  {Symbol: "NVDA", Price: 130.5, ChangePercent: 1.2, MarketCap: 3.2e12, Volume: 1000},
		"GOOGL": {Symbol: "GOOGL", Price: 180.0, ChangePercent: -0.4, MarketCap: 2.2e12, Volume: 2000},
	}}
	svc := NewService(fetcher, testWatchlist(), nil, nil)

	now := time.Unix(1_700_000_000, 0)
	svc.now = func() time.Time { return now }

	first, err := svc.Metrics(context.Background())
	if err != nil {
		t.Fatalf("Metrics: %v", err)
	}
	if len(first) != 2 || first[0].Symbol != "NVDA" || first[0].Price != 130.5 {
		t.Fatalf("metrics = %+v", first)
	}

	// 4 minutes later: still within the 5-minute TTL, no new fetch, and the
	// snapshot is served unchanged to every caller.
	now = now.Add(4 * time.Minute)
	second, err := svc.Metrics(context.Background())
	if err != nil {
		t.Fatalf("Metrics: %v", err)
	}
	if fetcher.callCount() != 1 {
		t.Errorf("fetch calls = %d, want 1", fetcher.callCount())
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("snapshot changed within TTL: %+v vs %+v", first[i], second[i])
		}
	}

	// Past the TTL a fresh fetch happens.
	now = now.Add(2 * time.Minute)
	if _, err := svc.Metrics(context.Background()); err != nil {
		t.Fatalf("Metrics: %v", err)
	}
	if fetcher.callCount() != 2 {
		t.Errorf("fetch calls = %d, want 2 after TTL expiry", fetcher.callCount())
	}
}

func TestMetricsMissingSymbolDegradesToZeroRow(t *testing.T) {
	fetcher := &fakeFetcher{quotes: map[string]Quote{
		"NVDA": {Symbol: "NVDA", Price: 130.5, ChangePercent: 1.2, MarketCap: 3.2e12, Volume: 1000},
	}}
	svc := NewService(fetcher, testWatchlist(), nil, nil)

	got, err := svc.Metrics(context.Background())
	if err != nil {
		t.Fatalf("Metrics: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("metrics = %+v", got)
	}
	want := Metric{Symbol: "GOOGL", Name: "Alphabet"}
	if got[1] != want {
		t.Errorf("degraded row = %+v, want %+v", got[1], want)
	}
	if got[0].Price != 130.5 {
		t.Errorf("healthy row affected by degradation: %+v", got[0])
	}
}

func TestMetricsLastGoodFallbackOnTotalFailure(t *testing.T) {
	fetcher := &fakeFetcher{quotes: map[string]Quote{
		"NVDA":  {Symbol: "NVDA", Price: 130.5},
		"GOOGL": {Symbol: "GOOGL", Price: 180.0},
	}}
	svc := NewService(fetcher, testWatchlist(), nil, nil)

	now := time.Unix(1_700_000_000, 0)
	svc.now = func() time.Time { return now }

	good, err := svc.Metrics(context.Background())
	if err != nil {
		t.Fatalf("Metrics: %v", err)
	}

	// Upstream goes down after the cache expires.
	now = now.Add(10 * time.Minute)
	fetcher.err = errors.New("upstream down")

	stale, err := svc.Metrics(context.Background())
	if err != nil {
		t.Fatalf("Metrics should fall back to last good snapshot: %v", err)
	}
	for i := range good {
		if good[i] != stale[i] {
			t.Errorf("fallback changed data: %+v vs %+v", good[i], stale[i])
		}
	}
}

func TestMetricsErrorWithNoSnapshot(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("upstream down")}
	svc := NewService(fetcher, testWatchlist(), nil, nil)

	if _, err := svc.Metrics(context.Background()); err == nil {
		t.Fatal("expected error with no cached snapshot")
	}
}

func TestClientQuotesParsesBatchResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v7/finance/quote" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("symbols"); got != "NVDA,GOOGL" {
			t.Errorf("symbols = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"quoteResponse":{"result":[
			{"symbol":"NVDA","regularMarketPrice":130.5,"regularMarketChangePercent":1.2,"marketCap":3200000000000,"regularMarketVolume":41000000},
			{"symbol":"GOOGL","regularMarketPrice":180.0,"regularMarketChangePercent":-0.4,"marketCap":2200000000000,"regularMarketVolume":18000000}
		],"error":null}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	quotes, err := client.Quotes(context.Background(), []string{"NVDA", "GOOGL"})
	if err != nil {
		t.Fatalf("Quotes: %v", err)
	}
	if len(quotes) != 2 {
		t.Fatalf("quotes = %+v", quotes)
	}
	nvda := quotes["NVDA"]
	if nvda.Price != 130.5 || nvda.ChangePercent != 1.2 || nvda.Volume != 41000000 {
		t.Errorf("NVDA quote = %+v", nvda)
	}
}

func TestClientQuotesUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	if _, err := client.Quotes(context.Background(), []string{"NVDA"}); err == nil {
		t.Fatal("expected error on non-200 response")
	}
}
