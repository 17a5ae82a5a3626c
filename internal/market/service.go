package market

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/robertvmill/inference-backend/pkg/config"
	apperrors "github.com/robertvmill/inference-backend/pkg/errors"
	"github.com/robertvmill/inference-backend/pkg/metrics"
	"github.com/robertvmill/inference-backend/pkg/redis"
)

// cacheKey is the shared-cache entry holding the serialized metric list.
const cacheKey = "market:quotes"

// Metric is one watchlist row as served to clients.
type Metric struct {
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Change    float64 `json:"change"`
	MarketCap float64 `json:"marketCap"`
	Volume    int64   `json:"volume"`
}

// Fetcher fetches a batch of quotes keyed by symbol.
type Fetcher interface {
	Quotes(ctx context.Context, symbols []string) (map[string]Quote, error)
}

// Service caches watchlist metrics globally for the configured TTL. Within
// the TTL every caller gets the identical snapshot; concurrent refreshes
// collapse into one upstream call. A total upstream failure serves the last
// good snapshot when one exists. A symbol missing from an otherwise
// successful batch degrades to a zero row for that ticker only.
type Service struct {
	fetcher   Fetcher
	watchlist []config.Company
	ttl       time.Duration
	shared    *redis.Client
	metrics   *metrics.Metrics
	logger    *slog.Logger

	group singleflight.Group
	now   func() time.Time

	mu        sync.Mutex
	snapshot  []Metric
	fetchedAt time.Time
	hasGood   bool
}

// NewService creates the metrics service. shared may be nil (no Redis); m
// may be nil (tests).
func NewService(fetcher Fetcher, cfg config.MarketConfig, shared *redis.Client, m *metrics.Metrics) *Service {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Service{
		fetcher:   fetcher,
		watchlist: cfg.Watchlist,
		ttl:       ttl,
		shared:    shared,
		metrics:   m,
		logger:    slog.Default().With("component", "market"),
		now:       time.Now,
	}
}

// Metrics returns the watchlist metrics, serving the cached snapshot while
// it is fresh.
func (s *Service) Metrics(ctx context.Context) ([]Metric, error) {
	if cached, ok := s.fresh(); ok {
		s.observeCache(true)
		return cached, nil
	}
	s.observeCache(false)

	v, err, _ := s.group.Do(cacheKey, func() (any, error) {
		// A concurrent caller may have refreshed while this one waited.
		if cached, ok := s.fresh(); ok {
			return cached, nil
		}
		return s.refresh(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]Metric), nil
}

// fresh returns the in-memory snapshot if it is within the TTL.
func (s *Service) fresh() ([]Metric, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasGood && s.now().Sub(s.fetchedAt) < s.ttl {
		return s.snapshot, true
	}
	return nil, false
}

func (s *Service) refresh(ctx context.Context) ([]Metric, error) {
	if fromShared, ok := s.loadShared(ctx); ok {
		s.store(fromShared)
		return fromShared, nil
	}

	symbols := make([]string, len(s.watchlist))
	for i, c := range s.watchlist {
		symbols[i] = c.Symbol
	}

	quotes, err := s.fetcher.Quotes(ctx, symbols)
	if err != nil {
		s.observeFetch("error")
		s.logger.Error("quote fetch failed", "error", err)

		// Stale data beats no data.
		s.mu.Lock()
		snapshot, hasGood := s.snapshot, s.hasGood
		s.mu.Unlock()
		if hasGood {
			return snapshot, nil
		}
		return nil, apperrors.Newf(apperrors.ErrMarketData, 502, "fetching quotes: %v", err)
	}
	s.observeFetch("ok")

	result := make([]Metric, len(s.watchlist))
	for i, c := range s.watchlist {
		m := Metric{Symbol: c.Symbol, Name: c.Name}
		if q, ok := quotes[c.Symbol]; ok {
			m.Price = q.Price
			m.Change = q.ChangePercent
			m.MarketCap = q.MarketCap
			m.Volume = q.Volume
		} else {
			s.logger.Warn("quote missing for symbol, serving zero row", "symbol", c.Symbol)
		}
		result[i] = m
	}

	s.store(result)
	s.saveShared(ctx, result)
	return result, nil
}

func (s *Service) store(ms []Metric) {
	s.mu.Lock()
	s.snapshot = ms
	s.fetchedAt = s.now()
	s.hasGood = true
	s.mu.Unlock()
}

// loadShared reads the cross-process cache entry. Redis expiry enforces the
// TTL, so a hit is fresh by construction.
func (s *Service) loadShared(ctx context.Context) ([]Metric, bool) {
	if s.shared == nil {
		return nil, false
	}
	raw, err := s.shared.GetBytes(ctx, cacheKey)
	if err != nil {
		if !redis.IsNilError(err) {
			s.logger.Warn("shared cache read failed", "error", err)
		}
		return nil, false
	}
	var ms []Metric
	if err := json.Unmarshal(raw, &ms); err != nil {
		s.logger.Warn("shared cache entry corrupt, discarding", "error", err)
		return nil, false
	}
	return ms, true
}

func (s *Service) saveShared(ctx context.Context, ms []Metric) {
	if s.shared == nil {
		return
	}
	raw, err := json.Marshal(ms)
	if err != nil {
		return
	}
	if err := s.shared.SetBytes(ctx, cacheKey, raw, s.ttl); err != nil {
		s.logger.Warn("shared cache write failed", "error", err)
	}
}

func (s *Service) observeCache(hit bool) {
	if s.metrics == nil {
		return
	}
	if hit {
		s.metrics.QuoteCacheHitsTotal.Inc()
	} else {
		s.metrics.QuoteCacheMissTotal.Inc()
	}
}

func (s *Service) observeFetch(status string) {
	if s.metrics != nil {
		s.metrics.QuoteFetchesTotal.WithLabelValues(status).Inc()
	}
}
