package contracts

import "time"

// Level is a single order book price level
type Level struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// OrderBook is a point-in-time depth snapshot
// 빈 호가창은 빈 슬라이스로 표현 (에러 아님)
type OrderBook struct {
	Symbol string    `json:"symbol"`
	Bids   []Level   `json:"bids"` // best bid first
	Asks   []Level   `json:"asks"` // best ask first
	TS     time.Time `json:"ts"`
}

// BestBid returns the top-of-book bid price, or 0 if the book is empty.
func (b *OrderBook) BestBid() float64 {
	if len(b.Bids) == 0 {
		return 0
	}
	return b.Bids[0].Price
}

// BestAsk returns the top-of-book ask price, or 0 if the book is empty.
func (b *OrderBook) BestAsk() float64 {
	if len(b.Asks) == 0 {
		return 0
	}
	return b.Asks[0].Price
}

// Mid returns the mid price, or 0 if either side is empty or the book
// is crossed/locked (ask <= bid). A crossed book is venue noise, not a
// price to quote against.
func (b *OrderBook) Mid() float64 {
	bid, ask := b.BestBid(), b.BestAsk()
	if bid <= 0 || ask <= bid {
		return 0
	}
	return (bid + ask) / 2
}

// Spread returns ask minus bid, or 0 if the book is unusable (see Mid).
func (b *OrderBook) Spread() float64 {
	bid, ask := b.BestBid(), b.BestAsk()
	if bid <= 0 || ask <= bid {
		return 0
	}
	return ask - bid
}

// SpreadBps returns the quoted spread in basis points of the mid price.
func (b *OrderBook) SpreadBps() float64 {
	mid := b.Mid()
	if mid <= 0 {
		return 0
	}
	return b.Spread() / mid * 10000
}

// BidImbalance returns top-of-book bid size share: bidSize/(bidSize+askSize).
// Returns 0.5 when both sides are empty.
func (b *OrderBook) BidImbalance() float64 {
	var bidSize, askSize float64
	if len(b.Bids) > 0 {
		bidSize = b.Bids[0].Size
	}
	if len(b.Asks) > 0 {
		askSize = b.Asks[0].Size
	}
	total := bidSize + askSize
	if total <= 0 {
		return 0.5
	}
	return bidSize / total
}

// Candle is a single OHLCV bar
type Candle struct {
	TS     time.Time `json:"ts"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}
