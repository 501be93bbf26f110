package contracts

import "time"

// Position represents the per-symbol signed position state
// AvgPrice는 Qty != 0일 때만 의미 있음, Qty가 0이 되면 0으로 리셋
type Position struct {
	Symbol   string  `json:"symbol"`
	Qty      float64 `json:"qty"` // signed, + = long
	AvgPrice float64 `json:"avg_price"`
}

// TradeRecord is an immutable history entry, created once per confirmed fill
type TradeRecord struct {
	TS             time.Time `json:"ts"`
	Symbol         string    `json:"symbol"`
	Side           Side      `json:"side"`
	Qty            float64   `json:"qty"`
	Price          float64   `json:"price"`
	Fees           float64   `json:"fees"`
	Maker          bool      `json:"maker"`
	PositionAfter  float64   `json:"position_after"`
	AvgPriceAfter  float64   `json:"avg_price_after"`
	RealizedChange float64   `json:"realized_change"`
	Reason         string    `json:"reason"`
}

// PnLSnapshot is a point-in-time copy of ledger PnL state
type PnLSnapshot struct {
	RealizedToday float64   `json:"realized_today"`
	Unrealized    float64   `json:"unrealized"`
	Total         float64   `json:"total"`
	AsOf          time.Time `json:"as_of"`
}
