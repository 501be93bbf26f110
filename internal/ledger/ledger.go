package ledger

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/wonny/talos/internal/contracts"
	"github.com/wonny/talos/pkg/logger"
)

// epsilon guards weighted-average division against a near-zero denominator.
const epsilon = 1e-9

// Fill describes a confirmed execution to be committed to the ledger.
type Fill struct {
	Symbol string
	Side   contracts.Side
	Qty    float64
	Price  float64
	Fees   float64
	Maker  bool
	Reason string
	TS     time.Time
}

// Ledger is the authoritative position/PnL state
// ⭐ SSOT: 포지션과 실현손익은 ApplyFill에서만 변경됨
//
// Single-writer discipline: only the execution engine's consume loop
// calls ApplyFill. The internal mutex exists for the read-side snapshot
// methods, which copy state instead of exposing it.
type Ledger struct {
	mu        sync.RWMutex
	positions map[string]*contracts.Position
	trades    *tradeRing
	realized  float64 // realized PnL since the last day reset
	day       time.Time
	repo      *Repository // optional, best-effort persistence
	log       *logger.Logger
}

// New creates a ledger with the given trade history capacity.
// repo may be nil (memory only).
func New(historyCap int, repo *Repository, log *logger.Logger) *Ledger {
	if historyCap <= 0 {
		historyCap = 1000
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Ledger{
		positions: make(map[string]*contracts.Position),
		trades:    newTradeRing(historyCap),
		day:       time.Now().UTC().Truncate(24 * time.Hour),
		repo:      repo,
		log:       log,
	}
}

// ApplyFill commits a confirmed fill and appends exactly one trade
// record. This is the only place position/PnL state may change.
//
// Buy: weighted-average entry price over the combined quantity.
// Sell: realizes (price − avg) * closingQty against the pre-fill
// average; position caps at zero rather than going net short (selling
// more than held flattens the position).
func (l *Ledger) ApplyFill(f Fill) contracts.TradeRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.positions[f.Symbol]
	if !ok {
		pos = &contracts.Position{Symbol: f.Symbol}
		l.positions[f.Symbol] = pos
	}

	var realizedDelta float64

	switch f.Side {
	case contracts.SideBuy:
		newQty := pos.Qty + f.Qty
		if math.Abs(newQty) > epsilon {
			pos.AvgPrice = (pos.AvgPrice*pos.Qty + f.Price*f.Qty) / newQty
		} else {
			pos.AvgPrice = 0
		}
		pos.Qty = newQty

	case contracts.SideSell:
		closingQty := math.Min(f.Qty, math.Max(pos.Qty, 0))
		if closingQty > 0 {
			realizedDelta = (f.Price - pos.AvgPrice) * closingQty
			l.realized += realizedDelta
		}
		pos.Qty = math.Max(pos.Qty-f.Qty, 0)
		if pos.Qty == 0 {
			pos.AvgPrice = 0
		}
	}

	// fees always reduce realized PnL
	if f.Fees > 0 {
		realizedDelta -= f.Fees
		l.realized -= f.Fees
	}

	ts := f.TS
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	rec := contracts.TradeRecord{
		TS:             ts,
		Symbol:         f.Symbol,
		Side:           f.Side,
		Qty:            f.Qty,
		Price:          f.Price,
		Fees:           f.Fees,
		Maker:          f.Maker,
		PositionAfter:  pos.Qty,
		AvgPriceAfter:  pos.AvgPrice,
		RealizedChange: realizedDelta,
		Reason:         f.Reason,
	}
	l.trades.push(rec)

	l.log.WithFields(map[string]interface{}{
		"symbol":   rec.Symbol,
		"side":     rec.Side,
		"qty":      rec.Qty,
		"price":    rec.Price,
		"maker":    rec.Maker,
		"position": rec.PositionAfter,
		"realized": rec.RealizedChange,
	}).Info("Fill applied")

	if l.repo != nil {
		// Best-effort async persistence; a DB fault never blocks trading.
		go func(r contracts.TradeRecord) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := l.repo.SaveTrade(ctx, &r); err != nil {
				l.log.WithError(err).Warn("Failed to persist trade record")
			}
		}(rec)
	}

	return rec
}

// Position returns a point-in-time copy of the symbol's position.
func (l *Ledger) Position(symbol string) contracts.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if pos, ok := l.positions[symbol]; ok {
		return *pos
	}
	return contracts.Position{Symbol: symbol}
}

// Positions returns a point-in-time copy of all non-flat positions.
func (l *Ledger) Positions() []contracts.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]contracts.Position, 0, len(l.positions))
	for _, pos := range l.positions {
		if pos.Qty != 0 {
			out = append(out, *pos)
		}
	}
	return out
}

// RealizedToday returns realized PnL accumulated since the last day reset.
func (l *Ledger) RealizedToday() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.realized
}

// Trades returns up to limit most recent trade records, newest last.
// limit <= 0 returns the full retained history.
func (l *Ledger) Trades(limit int) []contracts.TradeRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.trades.tail(limit)
}

// PnL returns a snapshot including unrealized PnL marked against the
// supplied last prices (symbol → price). Symbols with no mark are
// skipped in the unrealized total.
func (l *Ledger) PnL(marks map[string]float64) contracts.PnLSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var unrealized float64
	for sym, pos := range l.positions {
		if pos.Qty == 0 {
			continue
		}
		if mark, ok := marks[sym]; ok && mark > 0 {
			unrealized += (mark - pos.AvgPrice) * pos.Qty
		}
	}

	return contracts.PnLSnapshot{
		RealizedToday: l.realized,
		Unrealized:    unrealized,
		Total:         l.realized + unrealized,
		AsOf:          time.Now().UTC(),
	}
}

// ResetDay zeroes the daily realized PnL counter. Positions and trade
// history are untouched. Called by the daily scheduler job at UTC
// midnight and by operator action.
func (l *Ledger) ResetDay() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.realized = 0
	l.day = time.Now().UTC().Truncate(24 * time.Hour)
	l.log.Info("Daily realized PnL counter reset")
}
