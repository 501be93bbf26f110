package market

import (
	"context"
	"sync"
	"time"

	"github.com/wonny/talos/internal/contracts"
	"github.com/wonny/talos/pkg/logger"
	"github.com/wonny/talos/pkg/redis"
)

// Tick is a single last-price observation.
type Tick struct {
	Symbol string    `json:"symbol"`
	Price  float64   `json:"price"`
	TS     time.Time `json:"ts"`
}

// Feed wraps a MarketData source with a last-price cache
// ⭐ SSOT: 실시간 가격 캐싱은 이 구조체에서만
//
// Streaming sources (the Kraken ticker websocket) push into the cache
// via Update; REST consumers hit the underlying source on cache miss.
// The optional Redis cache mirrors last prices for the status API.
type Feed struct {
	mu     sync.RWMutex
	source contracts.MarketData
	last   map[string]Tick
	ttl    time.Duration
	cache  *redis.Cache // may be nil
	log    *logger.Logger
}

// NewFeed creates a feed over the given source. ttl bounds how long a
// pushed tick satisfies LastPrice before falling back to the source.
func NewFeed(source contracts.MarketData, ttl time.Duration, cache *redis.Cache, log *logger.Logger) *Feed {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Feed{
		source: source,
		last:   make(map[string]Tick),
		ttl:    ttl,
		cache:  cache,
		log:    log,
	}
}

// Update pushes a streamed tick into the cache. Older data than the
// cached tick is rejected.
func (f *Feed) Update(tick Tick) bool {
	f.mu.Lock()
	existing, exists := f.last[tick.Symbol]
	if exists && tick.TS.Before(existing.TS) {
		f.mu.Unlock()
		return false
	}
	f.last[tick.Symbol] = tick
	f.mu.Unlock()

	if f.cache != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := f.cache.Set(ctx, redis.TickerKey(tick.Symbol), tick, redis.TTLShort); err != nil {
			f.log.WithError(err).Debug("Failed to mirror tick to redis")
		}
	}

	return true
}

// LastPrice returns the cached last price when fresh, otherwise asks
// the underlying source and refreshes the cache.
func (f *Feed) LastPrice(ctx context.Context, symbol string) (float64, error) {
	f.mu.RLock()
	tick, ok := f.last[symbol]
	f.mu.RUnlock()

	if ok && time.Since(tick.TS) <= f.ttl {
		return tick.Price, nil
	}

	price, err := f.source.LastPrice(ctx, symbol)
	if err != nil {
		// A stale tick beats an error.
		if ok {
			return tick.Price, nil
		}
		return 0, err
	}

	f.Update(Tick{Symbol: symbol, Price: price, TS: time.Now()})
	return price, nil
}

// LastPrices returns cached prices for the given symbols, skipping
// symbols with no observation. It never hits the underlying source.
func (f *Feed) LastPrices(symbols []string) map[string]float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make(map[string]float64, len(symbols))
	for _, sym := range symbols {
		if tick, ok := f.last[sym]; ok {
			out[sym] = tick.Price
		}
	}
	return out
}

// OrderBook delegates to the underlying source.
func (f *Feed) OrderBook(ctx context.Context, symbol string) (*contracts.OrderBook, error) {
	return f.source.OrderBook(ctx, symbol)
}

// RecentCandles delegates to the underlying source.
func (f *Feed) RecentCandles(ctx context.Context, symbol string, limit int) ([]contracts.Candle, error) {
	return f.source.RecentCandles(ctx, symbol, limit)
}
