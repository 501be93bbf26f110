package execution

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/wonny/talos/internal/contracts"
	"github.com/wonny/talos/internal/ledger"
	"github.com/wonny/talos/internal/signal"
	"github.com/wonny/talos/pkg/config"
	"github.com/wonny/talos/pkg/logger"
)

// fillResult is the outcome of one order state machine run
type fillResult struct {
	Filled float64
	AvgPx  float64
	Fees   float64
	Maker  bool
}

// Engine consumes trade intents, applies the risk gate and drives the
// maker-first order state machine
// ⭐ SSOT: 포지션 원장과 킬 스위치 변경은 이 엔진에서만
type Engine struct {
	trading config.TradingConfig
	exec    config.ExecutionConfig
	live    bool

	bus      *signal.Bus
	md       contracts.MarketData
	exchange contracts.Exchange
	ledger   *ledger.Ledger
	kill     *KillSwitch
	logger   *logger.Logger

	allowed map[string]bool

	clientSeq atomic.Int64
}

// New creates an execution engine bound to the shared bus, market data
// source, exchange adapter and ledger.
func New(trading config.TradingConfig, exec config.ExecutionConfig, live bool,
	bus *signal.Bus, md contracts.MarketData, exchange contracts.Exchange,
	led *ledger.Ledger, kill *KillSwitch, log *logger.Logger) *Engine {

	allowed := make(map[string]bool, len(trading.AllowedSymbols))
	for _, s := range trading.AllowedSymbols {
		allowed[s] = true
	}
	if log == nil {
		log = logger.Nop()
	}

	e := &Engine{
		trading:  trading,
		exec:     exec,
		live:     live,
		bus:      bus,
		md:       md,
		exchange: exchange,
		ledger:   led,
		kill:     kill,
		logger:   log,
		allowed:  allowed,
	}
	e.clientSeq.Store(time.Now().Unix())
	return e
}

// Name identifies this worker to the supervisor
func (e *Engine) Name() string { return "execution" }

// Symbols returns the symbol allow-list
func (e *Engine) Symbols() []string { return e.trading.AllowedSymbols }

// Run is the single consume loop: it alone drives the order state
// machine and mutates the ledger. It exits on context cancellation or
// when a daily loss breach halts trading; an order resting at the venue
// is canceled best-effort at the next poll boundary.
func (e *Engine) Run(ctx context.Context) error {
	sub := e.bus.Subscribe()
	defer e.bus.Unsubscribe(sub)

	e.logger.WithFields(map[string]interface{}{
		"mode":    e.trading.Mode,
		"symbols": e.trading.AllowedSymbols,
	}).Info("Execution engine started")

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Execution engine stopped")
			return nil
		case intent, ok := <-sub.C():
			if !ok {
				return nil
			}
			if halt := e.handleIntent(ctx, intent); halt {
				e.logger.Error("Execution engine halted by daily loss breach")
				return nil
			}
		}
	}
}

// handleIntent applies the risk gate in order and, on pass, runs the
// order state machine to completion. Returns true when the engine must
// shut down.
func (e *Engine) handleIntent(ctx context.Context, intent contracts.Intent) bool {
	if !e.allowed[intent.Symbol] {
		return false
	}
	if !intent.Side.Valid() {
		e.logger.WithField("side", string(intent.Side)).Warn("Dropping intent with invalid side")
		return false
	}

	// producers may legitimately emit zero-qty no-ops
	if intent.Qty <= 0 {
		return false
	}
	qty := intent.Qty

	// 1. Kill switch
	if e.kill.Active() {
		e.logger.WithFields(map[string]interface{}{
			"symbol": intent.Symbol,
			"side":   intent.Side,
		}).Warn("Kill switch active, rejecting intent")
		return false
	}

	pos := e.ledger.Position(intent.Symbol)

	// 2. Long-only guard
	if e.trading.LongOnly && intent.Side == contracts.SideSell && pos.Qty <= 0 {
		e.logger.WithField("symbol", intent.Symbol).Debug("Long-only: ignoring sell while flat")
		return false
	}

	// 3. Position cap: clip to remaining headroom
	if intent.Side == contracts.SideBuy && pos.Qty+qty > e.trading.MaxPosition {
		qty = e.trading.MaxPosition - pos.Qty
		if qty <= 0 {
			e.logger.WithField("symbol", intent.Symbol).Info("Position cap reached, skipping buy")
			return false
		}
		e.logger.WithFields(map[string]interface{}{
			"symbol": intent.Symbol,
			"qty":    qty,
		}).Info("Clipped buy to position headroom")
	}

	// 4. Daily loss limit: emergency stop, not a per-order skip
	if e.trading.MaxDailyLoss > 0 && e.ledger.RealizedToday() <= -e.trading.MaxDailyLoss {
		e.kill.Set("daily loss limit breached")
		e.logger.WithFields(map[string]interface{}{
			"realized": e.ledger.RealizedToday(),
			"limit":    e.trading.MaxDailyLoss,
		}).Error("Daily loss limit breached, kill switch set")
		return true
	}

	// The state machine runs inline: one intent at a time, so the next
	// intent is always gated against the position including this fill,
	// and at most one order is ever outstanding from this engine.
	fill := e.executePostOnly(ctx, intent.Symbol, intent.Side, qty)
	if fill.Filled <= 0 {
		return false
	}

	record := e.ledger.ApplyFill(ledger.Fill{
		Symbol: intent.Symbol,
		Side:   intent.Side,
		Qty:    fill.Filled,
		Price:  fill.AvgPx,
		Fees:   fill.Fees,
		Maker:  fill.Maker,
		Reason: intent.Reason,
		TS:     time.Now().UTC(),
	})

	e.logger.WithFields(map[string]interface{}{
		"symbol":   intent.Symbol,
		"side":     intent.Side,
		"filled":   fill.Filled,
		"avg_px":   fill.AvgPx,
		"maker":    fill.Maker,
		"fees":     fill.Fees,
		"position": record.PositionAfter,
		"reason":   intent.Reason,
	}).Info("Fill applied")

	return false
}

// executePostOnly runs the order state machine for one intent.
// A zero-fill result (wide spread, venue fault) is a legitimate
// outcome: no ledger mutation, no trade record.
func (e *Engine) executePostOnly(ctx context.Context, symbol string, side contracts.Side, qty float64) fillResult {
	book, err := e.md.OrderBook(ctx, symbol)
	if err != nil {
		e.logger.WithError(err).WithField("symbol", symbol).Warn("Order book fetch failed, skipping intent")
		return fillResult{}
	}

	mid := book.Mid()
	spr := book.Spread()
	if mid <= 0 {
		e.logger.WithField("symbol", symbol).Debug("Empty or crossed order book, skipping intent")
		return fillResult{}
	}
	if sprBps := book.SpreadBps(); sprBps > e.exec.MaxSpreadBps {
		e.logger.WithFields(map[string]interface{}{
			"symbol":     symbol,
			"spread_bps": sprBps,
		}).Info("Wide spread, skipping intent")
		return fillResult{}
	}

	limit := postOnlyPrice(side, mid, spr, e.exec.PostOnlyOffset)
	req := contracts.OrderRequest{
		Symbol:   symbol,
		Side:     side,
		Qty:      qty,
		Price:    limit,
		Type:     contracts.OrderTypeLimit,
		PostOnly: true,
		ClientID: fmt.Sprintf("%d", e.clientSeq.Add(1)),
	}

	if !e.live {
		order, err := e.exchange.CreateOrder(ctx, req)
		if err != nil {
			e.logger.WithError(err).WithField("symbol", symbol).Warn("Simulated order failed")
			return fillResult{}
		}
		return fillResult{Filled: order.Filled, AvgPx: order.AvgPrice, Fees: order.Fees, Maker: order.Maker}
	}

	return e.executeLive(ctx, req, mid, spr)
}

// executeLive places a post-only limit order and polls it, canceling and
// repricing when the order rests too long or the market moves away.
// Each iteration is bounded in time; cancellation is observed at every
// poll boundary and cancels the outstanding order best-effort.
func (e *Engine) executeLive(ctx context.Context, req contracts.OrderRequest, mid, spr float64) fillResult {
	order, err := e.exchange.CreateOrder(ctx, req)
	if err != nil {
		e.logger.WithError(err).WithField("symbol", req.Symbol).Warn("Order placement failed")
		return fillResult{}
	}

	orderID := order.ID
	lastMid := mid
	start := time.Now()
	var lastStatus *contracts.Order

	ticker := time.NewTicker(e.exec.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.cancelBestEffort(orderID, req.Symbol)
			return partialFill(lastStatus)
		case <-ticker.C:
		}

		status, err := e.exchange.FetchOrder(ctx, orderID, req.Symbol)
		if err != nil {
			e.logger.WithError(err).WithField("order_id", orderID).Warn("Order status fetch failed")
			continue
		}
		lastStatus = status

		// refresh book and measure adverse movement since last check
		adverse := 0.0
		if book, err := e.md.OrderBook(ctx, req.Symbol); err == nil && book.Mid() > 0 {
			adverse = math.Abs(book.Mid() - lastMid)
			lastMid = book.Mid()
			spr = book.Spread()
		}

		if status.IsFilled() {
			avg := status.AvgPrice
			if avg <= 0 {
				avg = req.Price
			}
			return fillResult{Filled: status.Filled, AvgPx: avg, Fees: status.Fees, Maker: true}
		}

		if time.Since(start) > e.exec.RepriceTimeout || adverse > e.exec.RepriceMove*spr {
			e.cancelBestEffort(orderID, req.Symbol)

			remaining := status.Remaining
			if remaining <= 0 {
				remaining = req.Qty
			}
			req.Qty = remaining
			req.Price = postOnlyPrice(req.Side, lastMid, spr, e.exec.PostOnlyOffset)

			order, err = e.exchange.CreateOrder(ctx, req)
			if err != nil {
				e.logger.WithError(err).WithField("symbol", req.Symbol).Warn("Reprice placement failed")
				return partialFill(lastStatus)
			}
			orderID = order.ID
			lastStatus = nil
			start = time.Now()

			e.logger.WithFields(map[string]interface{}{
				"symbol": req.Symbol,
				"price":  req.Price,
				"qty":    req.Qty,
			}).Info("Repriced resting order")
		}
	}
}

// cancelBestEffort cancels an order without blocking shutdown on failure
func (e *Engine) cancelBestEffort(orderID, symbol string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := e.exchange.CancelOrder(ctx, orderID, symbol); err != nil {
		e.logger.WithError(err).WithField("order_id", orderID).Warn("Order cancel failed")
	}
}

// partialFill converts the last polled status into a fill result so
// partial executions still reach the ledger on shutdown.
func partialFill(status *contracts.Order) fillResult {
	if status == nil || status.Filled <= 0 {
		return fillResult{}
	}
	avg := status.AvgPrice
	if avg <= 0 {
		avg = status.Price
	}
	return fillResult{Filled: status.Filled, AvgPx: avg, Fees: status.Fees, Maker: true}
}

