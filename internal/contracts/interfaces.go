package contracts

import "context"

// MarketData supplies order book snapshots and recent price history
// ⭐ SSOT: 시세 조회 인터페이스, 빈 호가창은 에러가 아님
type MarketData interface {
	OrderBook(ctx context.Context, symbol string) (*OrderBook, error)
	RecentCandles(ctx context.Context, symbol string, limit int) ([]Candle, error)
	LastPrice(ctx context.Context, symbol string) (float64, error)
}

// Exchange places, cancels and queries orders against a venue
// ⭐ SSOT: 주문 실행 인터페이스 (live or paper)
type Exchange interface {
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
	FetchOrder(ctx context.Context, id, symbol string) (*Order, error)
	CancelOrder(ctx context.Context, id, symbol string) error
	FetchOpenOrders(ctx context.Context, symbol string) ([]Order, error)
}
