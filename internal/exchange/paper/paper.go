package paper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wonny/talos/internal/contracts"
	"github.com/wonny/talos/pkg/logger"
)

// Exchange simulates order execution against live public market data
// ⭐ SSOT: 페이퍼 모드 체결 시뮬레이션은 여기서만
//
// Orders resolve immediately: a maker fill at the limit price with zero
// fees when the simulated execution price crosses the limit, otherwise a
// taker fill penalized by half the spread plus a taker fee on notional.
type Exchange struct {
	source      contracts.MarketData
	takerFeeBps float64
	logger      *logger.Logger

	mu     sync.Mutex
	seq    int64
	orders map[string]contracts.Order
}

// New creates a paper exchange over the given market data source
func New(source contracts.MarketData, takerFeeBps float64, log *logger.Logger) *Exchange {
	if takerFeeBps <= 0 {
		takerFeeBps = 6.0
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Exchange{
		source:      source,
		takerFeeBps: takerFeeBps,
		logger:      log,
		orders:      make(map[string]contracts.Order),
	}
}

// CreateOrder simulates a fill and returns the completed order
func (e *Exchange) CreateOrder(ctx context.Context, req contracts.OrderRequest) (*contracts.Order, error) {
	book, err := e.source.OrderBook(ctx, req.Symbol)
	if err != nil {
		return nil, fmt.Errorf("fetch order book for %s: %w", req.Symbol, err)
	}

	mid := book.Mid()
	spr := book.Spread()
	if mid <= 0 {
		return nil, fmt.Errorf("empty order book for %s", req.Symbol)
	}

	px, fees, maker := e.simulateFill(req, mid, spr)

	now := time.Now().UTC()
	order := contracts.Order{
		ID:        e.nextID(),
		Symbol:    req.Symbol,
		Side:      req.Side,
		Qty:       req.Qty,
		Price:     req.Price,
		Status:    contracts.OrderStatusFilled,
		Filled:    req.Qty,
		Remaining: 0,
		AvgPrice:  px,
		Fees:      fees,
		Maker:     maker,
		CreatedAt: now,
		UpdatedAt: now,
	}

	e.mu.Lock()
	e.orders[order.ID] = order
	e.mu.Unlock()

	e.logger.WithFields(map[string]interface{}{
		"order_id": order.ID,
		"symbol":   order.Symbol,
		"side":     order.Side,
		"qty":      order.Qty,
		"avg_px":   order.AvgPrice,
		"fees":     order.Fees,
		"maker":    order.Maker,
	}).Info("Paper order filled")

	return &order, nil
}

// simulateFill applies the maker-first slippage model.
// The simulated mid drifts a quarter spread against the order; if the
// resulting execution price still crosses the limit, the order rests and
// fills passively at the limit price.
func (e *Exchange) simulateFill(req contracts.OrderRequest, mid, spr float64) (px, fees float64, maker bool) {
	simMove := 0.25 * spr

	var execPrice float64
	if req.Side == contracts.SideBuy {
		execPrice = mid - 0.1*spr - simMove
	} else {
		execPrice = mid + 0.1*spr + simMove
	}

	limit := req.Price
	isLimit := req.Type == contracts.OrderTypeLimit && limit > 0

	if isLimit && ((req.Side == contracts.SideBuy && execPrice <= limit) ||
		(req.Side == contracts.SideSell && execPrice >= limit)) {
		return limit, 0, true
	}

	// Taker penalty: half the spread plus the taker fee on notional
	penalty := 0.5 * spr
	if req.Side == contracts.SideBuy {
		px = execPrice + penalty
	} else {
		px = execPrice - penalty
	}
	fees = (e.takerFeeBps / 1e4) * req.Qty * px
	return px, fees, false
}

// FetchOrder returns the stored state of a simulated order
func (e *Exchange) FetchOrder(ctx context.Context, id, symbol string) (*contracts.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	order, ok := e.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %s not found", id)
	}
	return &order, nil
}

// CancelOrder is a no-op for filled paper orders
func (e *Exchange) CancelOrder(ctx context.Context, id, symbol string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	order, ok := e.orders[id]
	if !ok {
		return fmt.Errorf("order %s not found", id)
	}
	if order.IsOpen() {
		order.Status = contracts.OrderStatusCanceled
		order.UpdatedAt = time.Now().UTC()
		e.orders[id] = order
	}
	return nil
}

// FetchOpenOrders returns resting orders. Paper orders fill immediately,
// so this is normally empty.
func (e *Exchange) FetchOpenOrders(ctx context.Context, symbol string) ([]contracts.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	open := []contracts.Order{}
	for _, o := range e.orders {
		if o.IsOpen() && (symbol == "" || o.Symbol == symbol) {
			open = append(open, o)
		}
	}
	return open, nil
}

func (e *Exchange) nextID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seq++
	return fmt.Sprintf("paper-%d", e.seq)
}
