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

// Exchange implements contracts.Exchange against the Kraken private API
// ⭐ SSOT: 라이브 주문 실행은 이 어댑터에서만
type Exchange struct {
	client *Client
}

// NewExchange creates a Kraken-backed order execution adapter
func NewExchange(client *Client) *Exchange {
	return &Exchange{client: client}
}

// CreateOrder places an order. PostOnly limit orders use oflags=post so the
// venue rejects any crossing order instead of taking liquidity.
func (e *Exchange) CreateOrder(ctx context.Context, req contracts.OrderRequest) (*contracts.Order, error) {
	form := url.Values{}
	form.Set("pair", toPair(req.Symbol))
	form.Set("type", sideToKraken(req.Side))
	form.Set("volume", strconv.FormatFloat(req.Qty, 'f', -1, 64))

	switch req.Type {
	case contracts.OrderTypeLimit:
		form.Set("ordertype", "limit")
		form.Set("price", strconv.FormatFloat(req.Price, 'f', -1, 64))
		if req.PostOnly {
			form.Set("oflags", "post")
		}
	default:
		form.Set("ordertype", "market")
	}

	if req.ClientID != "" {
		form.Set("userref", req.ClientID)
	}

	raw, err := e.client.private(ctx, "/0/private/AddOrder", form)
	if err != nil {
		return nil, fmt.Errorf("add order: %w", err)
	}

	var result addOrderResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode add order: %w", err)
	}
	if len(result.TxID) == 0 {
		return nil, fmt.Errorf("add order returned no txid")
	}

	e.client.logger.WithFields(map[string]interface{}{
		"order_id": result.TxID[0],
		"symbol":   req.Symbol,
		"side":     req.Side,
		"qty":      req.Qty,
		"price":    req.Price,
		"descr":    result.Descr.Order,
	}).Info("Order placed")

	now := time.Now().UTC()
	return &contracts.Order{
		ID:        result.TxID[0],
		Symbol:    req.Symbol,
		Side:      req.Side,
		Qty:       req.Qty,
		Price:     req.Price,
		Status:    contracts.OrderStatusOpen,
		Remaining: req.Qty,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// FetchOrder queries current venue state for an order
func (e *Exchange) FetchOrder(ctx context.Context, id, symbol string) (*contracts.Order, error) {
	form := url.Values{}
	form.Set("txid", id)

	raw, err := e.client.private(ctx, "/0/private/QueryOrders", form)
	if err != nil {
		return nil, fmt.Errorf("query order %s: %w", id, err)
	}

	var result map[string]orderInfo
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode query order %s: %w", id, err)
	}

	info, ok := result[id]
	if !ok {
		return nil, fmt.Errorf("order %s not found", id)
	}

	return orderFromInfo(id, symbol, info), nil
}

// CancelOrder cancels a resting order. Canceling an already-closed order
// is reported as an error by the venue; callers treat that as best-effort.
func (e *Exchange) CancelOrder(ctx context.Context, id, symbol string) error {
	form := url.Values{}
	form.Set("txid", id)

	if _, err := e.client.private(ctx, "/0/private/CancelOrder", form); err != nil {
		return fmt.Errorf("cancel order %s: %w", id, err)
	}

	e.client.logger.WithFields(map[string]interface{}{
		"order_id": id,
		"symbol":   symbol,
	}).Info("Order canceled")
	return nil
}

// FetchOpenOrders lists resting orders, optionally filtered by symbol
func (e *Exchange) FetchOpenOrders(ctx context.Context, symbol string) ([]contracts.Order, error) {
	raw, err := e.client.private(ctx, "/0/private/OpenOrders", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch open orders: %w", err)
	}

	var result struct {
		Open map[string]orderInfo `json:"open"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode open orders: %w", err)
	}

	pair := toPair(symbol)
	orders := make([]contracts.Order, 0, len(result.Open))
	for id, info := range result.Open {
		if symbol != "" && info.Descr.Pair != pair {
			continue
		}
		orders = append(orders, *orderFromInfo(id, symbol, info))
	}
	return orders, nil
}

// orderFromInfo maps a venue order record into the shared contract
func orderFromInfo(id, symbol string, info orderInfo) *contracts.Order {
	qty := parseFloat(info.Vol)
	filled := parseFloat(info.VolExec)

	o := &contracts.Order{
		ID:        id,
		Symbol:    symbol,
		Side:      sideFromKraken(info.Descr.Type),
		Qty:       qty,
		Price:     parseFloat(info.Descr.Price),
		Filled:    filled,
		Remaining: qty - filled,
		AvgPrice:  parseFloat(info.Price),
		Fees:      parseFloat(info.Fee),
		CreatedAt: time.Unix(int64(info.OpenTS), 0).UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if info.CloseTS > 0 {
		o.UpdatedAt = time.Unix(int64(info.CloseTS), 0).UTC()
	}

	switch info.Status {
	case "closed":
		o.Status = contracts.OrderStatusFilled
	case "canceled", "expired":
		o.Status = contracts.OrderStatusCanceled
	default: // pending, open
		o.Status = contracts.OrderStatusOpen
	}

	// Post-only limit fills rest on the book, so executed volume is maker flow
	if info.Descr.OrderType == "limit" && filled > 0 {
		o.Maker = true
	}
	return o
}

func sideToKraken(side contracts.Side) string {
	if side == contracts.SideSell {
		return "sell"
	}
	return "buy"
}

func sideFromKraken(s string) contracts.Side {
	if s == "sell" {
		return contracts.SideSell
	}
	return contracts.SideBuy
}
