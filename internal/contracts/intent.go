package contracts

import "time"

// Intent represents a proposed trade emitted by a strategy agent
// ⭐ SSOT: Agent → Execution 신호 전달, 발행 후 불변
type Intent struct {
	Symbol string    `json:"symbol"`
	Side   Side      `json:"side"`
	Qty    float64   `json:"qty"`
	Reason string    `json:"reason"`
	TS     time.Time `json:"ts"`
}

// Side represents buy or sell
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Valid reports whether the side is one of the two known values.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Actionable reports whether the executor should act on this intent.
// Zero or negative quantity is a legitimate no-op, not an error.
func (i Intent) Actionable() bool {
	return i.Qty > 0 && i.Side.Valid() && i.Symbol != ""
}
