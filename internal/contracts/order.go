package contracts

import "time"

// OrderRequest describes an order to be placed on a venue
// ⭐ SSOT: Execution → Exchange 주문 정보 전달
type OrderRequest struct {
	Symbol   string    `json:"symbol"`
	Side     Side      `json:"side"`
	Qty      float64   `json:"qty"`
	Price    float64   `json:"price"` // 0 for market order
	Type     OrderType `json:"type"`
	PostOnly bool      `json:"post_only"`
	ClientID string    `json:"client_id,omitempty"` // best-effort idempotency key
}

// Order represents venue-reported order state
type Order struct {
	ID        string      `json:"id"`
	Symbol    string      `json:"symbol"`
	Side      Side        `json:"side"`
	Qty       float64     `json:"qty"`
	Price     float64     `json:"price"`
	Status    OrderStatus `json:"status"`
	Filled    float64     `json:"filled"`
	Remaining float64     `json:"remaining"`
	AvgPrice  float64     `json:"avg_price"` // venue-reported average fill price
	Fees      float64     `json:"fees"`
	Maker     bool        `json:"maker"` // true when filled passively at the limit price
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// OrderType represents market or limit order
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// OrderStatus represents order status
type OrderStatus string

const (
	OrderStatusOpen     OrderStatus = "OPEN"
	OrderStatusFilled   OrderStatus = "FILLED"
	OrderStatusCanceled OrderStatus = "CANCELED"
	OrderStatusRejected OrderStatus = "REJECTED"
)

// IsFilled checks if the order is fully filled
func (o *Order) IsFilled() bool {
	return o.Status == OrderStatusFilled || (o.Qty > 0 && o.Remaining <= 0)
}

// IsOpen checks if the order is still resting on the book
func (o *Order) IsOpen() bool {
	return o.Status == OrderStatusOpen
}
