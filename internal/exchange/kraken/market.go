package kraken

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/wonny/talos/internal/contracts"
)

// MarketData implements contracts.MarketData against the Kraken public API
type MarketData struct {
	client *Client
}

// NewMarketData creates a Kraken-backed market data source
func NewMarketData(client *Client) *MarketData {
	return &MarketData{client: client}
}

// OrderBook fetches a depth snapshot for the symbol.
// An empty book is returned as empty slices, not an error.
func (m *MarketData) OrderBook(ctx context.Context, symbol string) (*contracts.OrderBook, error) {
	pair := toPair(symbol)
	params := url.Values{}
	params.Set("pair", pair)
	params.Set("count", "10")

	raw, err := m.client.public(ctx, "/0/public/Depth", params)
	if err != nil {
		return nil, fmt.Errorf("fetch depth for %s: %w", symbol, err)
	}

	var result map[string]depthEntry
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode depth for %s: %w", symbol, err)
	}

	book := &contracts.OrderBook{
		Symbol: symbol,
		Bids:   []contracts.Level{},
		Asks:   []contracts.Level{},
		TS:     time.Now().UTC(),
	}

	// Result is keyed by Kraken's canonical pair name, which may differ
	// from the requested pair. Take the first (only) entry.
	for _, entry := range result {
		for _, lv := range entry.Bids {
			if len(lv) < 2 {
				continue
			}
			book.Bids = append(book.Bids, contracts.Level{
				Price: levelFloat(lv[0]),
				Size:  levelFloat(lv[1]),
			})
		}
		for _, lv := range entry.Asks {
			if len(lv) < 2 {
				continue
			}
			book.Asks = append(book.Asks, contracts.Level{
				Price: levelFloat(lv[0]),
				Size:  levelFloat(lv[1]),
			})
		}
		break
	}

	return book, nil
}

// RecentCandles fetches 1-minute OHLC bars, newest last
func (m *MarketData) RecentCandles(ctx context.Context, symbol string, limit int) ([]contracts.Candle, error) {
	params := url.Values{}
	params.Set("pair", toPair(symbol))
	params.Set("interval", "1")

	raw, err := m.client.public(ctx, "/0/public/OHLC", params)
	if err != nil {
		return nil, fmt.Errorf("fetch ohlc for %s: %w", symbol, err)
	}

	// Result: {"<pair>": [[time, open, high, low, close, vwap, volume, count], ...], "last": ...}
	var result map[string]json.RawMessage
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode ohlc for %s: %w", symbol, err)
	}

	var candles []contracts.Candle
	for key, rawBars := range result {
		if key == "last" {
			continue
		}
		var bars [][]any
		if err := json.Unmarshal(rawBars, &bars); err != nil {
			return nil, fmt.Errorf("decode ohlc bars for %s: %w", symbol, err)
		}
		for _, bar := range bars {
			if len(bar) < 7 {
				continue
			}
			candles = append(candles, contracts.Candle{
				TS:     time.Unix(int64(levelFloat(bar[0])), 0).UTC(),
				Open:   levelFloat(bar[1]),
				High:   levelFloat(bar[2]),
				Low:    levelFloat(bar[3]),
				Close:  levelFloat(bar[4]),
				Volume: levelFloat(bar[6]),
			})
		}
		break
	}

	if limit > 0 && len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	return candles, nil
}

// LastPrice fetches the last trade price for the symbol
func (m *MarketData) LastPrice(ctx context.Context, symbol string) (float64, error) {
	params := url.Values{}
	params.Set("pair", toPair(symbol))

	raw, err := m.client.public(ctx, "/0/public/Ticker", params)
	if err != nil {
		return 0, fmt.Errorf("fetch ticker for %s: %w", symbol, err)
	}

	var result map[string]tickerEntry
	if err := json.Unmarshal(raw, &result); err != nil {
		return 0, fmt.Errorf("decode ticker for %s: %w", symbol, err)
	}

	for _, entry := range result {
		if len(entry.C) == 0 {
			break
		}
		price, err := strconv.ParseFloat(entry.C[0], 64)
		if err != nil {
			return 0, fmt.Errorf("parse last price for %s: %w", symbol, err)
		}
		return price, nil
	}

	return 0, fmt.Errorf("no ticker data for %s", symbol)
}
