package market

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wonny/talos/internal/contracts"
	"github.com/wonny/talos/pkg/logger"
)

// stubSource is a canned MarketData implementation for feed tests.
type stubSource struct {
	price    float64
	priceErr error
	calls    int
}

func (s *stubSource) OrderBook(ctx context.Context, symbol string) (*contracts.OrderBook, error) {
	return &contracts.OrderBook{Symbol: symbol}, nil
}

func (s *stubSource) RecentCandles(ctx context.Context, symbol string, limit int) ([]contracts.Candle, error) {
	return nil, nil
}

func (s *stubSource) LastPrice(ctx context.Context, symbol string) (float64, error) {
	s.calls++
	return s.price, s.priceErr
}

func TestFeedServesFreshTickWithoutSourceCall(t *testing.T) {
	src := &stubSource{price: 99}
	f := NewFeed(src, time.Minute, nil, logger.Nop())

	f.Update(Tick{Symbol: "BTC/CAD", Price: 101, TS: time.Now()})

	got, err := f.LastPrice(context.Background(), "BTC/CAD")
	if err != nil {
		t.Fatalf("LastPrice error: %v", err)
	}
	if got != 101 {
		t.Errorf("LastPrice = %v, want cached 101", got)
	}
	if src.calls != 0 {
		t.Errorf("source calls = %d, want 0", src.calls)
	}
}

func TestFeedFallsBackToSourceWhenStale(t *testing.T) {
	src := &stubSource{price: 99}
	f := NewFeed(src, 10*time.Millisecond, nil, logger.Nop())

	f.Update(Tick{Symbol: "BTC/CAD", Price: 101, TS: time.Now().Add(-time.Second)})

	got, err := f.LastPrice(context.Background(), "BTC/CAD")
	if err != nil {
		t.Fatalf("LastPrice error: %v", err)
	}
	if got != 99 {
		t.Errorf("LastPrice = %v, want source 99", got)
	}
	if src.calls != 1 {
		t.Errorf("source calls = %d, want 1", src.calls)
	}
}

func TestFeedStaleTickBeatsSourceError(t *testing.T) {
	src := &stubSource{priceErr: errors.New("venue down")}
	f := NewFeed(src, 10*time.Millisecond, nil, logger.Nop())

	f.Update(Tick{Symbol: "BTC/CAD", Price: 101, TS: time.Now().Add(-time.Second)})

	got, err := f.LastPrice(context.Background(), "BTC/CAD")
	if err != nil {
		t.Fatalf("LastPrice error: %v", err)
	}
	if got != 101 {
		t.Errorf("LastPrice = %v, want stale 101", got)
	}

	// No observation at all: the error surfaces.
	if _, err := f.LastPrice(context.Background(), "ETH/CAD"); err == nil {
		t.Error("Expected error for unknown symbol with failing source")
	}
}

func TestFeedRejectsOlderTick(t *testing.T) {
	f := NewFeed(&stubSource{}, time.Minute, nil, logger.Nop())

	now := time.Now()
	f.Update(Tick{Symbol: "BTC/CAD", Price: 101, TS: now})
	if f.Update(Tick{Symbol: "BTC/CAD", Price: 50, TS: now.Add(-time.Second)}) {
		t.Error("Expected older tick to be rejected")
	}

	prices := f.LastPrices([]string{"BTC/CAD", "ETH/CAD"})
	if prices["BTC/CAD"] != 101 {
		t.Errorf("LastPrices = %v, want 101", prices["BTC/CAD"])
	}
	if _, ok := prices["ETH/CAD"]; ok {
		t.Error("Expected unknown symbol to be skipped")
	}
}
