package ledger

import (
	"math"
	"testing"

	"github.com/wonny/talos/internal/contracts"
	"github.com/wonny/talos/pkg/logger"
)

func newTestLedger() *Ledger {
	return New(1000, nil, logger.Nop())
}

func buy(l *Ledger, qty, price float64) contracts.TradeRecord {
	return l.ApplyFill(Fill{Symbol: "BTC/CAD", Side: contracts.SideBuy, Qty: qty, Price: price})
}

func sell(l *Ledger, qty, price float64) contracts.TradeRecord {
	return l.ApplyFill(Fill{Symbol: "BTC/CAD", Side: contracts.SideSell, Qty: qty, Price: price})
}

func TestApplyFillBuyWeightedAverage(t *testing.T) {
	l := newTestLedger()

	buy(l, 10, 100)
	buy(l, 10, 110)

	pos := l.Position("BTC/CAD")
	if pos.Qty != 20 {
		t.Errorf("Qty = %v, want 20", pos.Qty)
	}
	if math.Abs(pos.AvgPrice-105) > 1e-9 {
		t.Errorf("AvgPrice = %v, want 105", pos.AvgPrice)
	}
}

func TestWeightedAverageIndependentOfBatching(t *testing.T) {
	// The same total volume at the same prices must produce the same
	// average whether filled in one batch or many.
	prices := []float64{100, 101, 99.5, 102, 100.5}
	qtys := []float64{1, 2, 0.5, 3, 1.5}

	one := newTestLedger()
	var totalQty, totalNotional float64
	for i := range prices {
		buy(one, qtys[i], prices[i])
		totalQty += qtys[i]
		totalNotional += qtys[i] * prices[i]
	}

	split := newTestLedger()
	for i := range prices {
		// Each fill split into two halves.
		buy(split, qtys[i]/2, prices[i])
		buy(split, qtys[i]/2, prices[i])
	}

	want := totalNotional / totalQty
	for name, l := range map[string]*Ledger{"single": one, "split": split} {
		pos := l.Position("BTC/CAD")
		if math.Abs(pos.AvgPrice-want) > 1e-9 {
			t.Errorf("%s: AvgPrice = %v, want %v", name, pos.AvgPrice, want)
		}
		if math.Abs(pos.Qty-totalQty) > 1e-9 {
			t.Errorf("%s: Qty = %v, want %v", name, pos.Qty, totalQty)
		}
	}
}

func TestSellToFlatResetsAverageAndRealizes(t *testing.T) {
	l := newTestLedger()

	buy(l, 10, 100)
	rec := sell(l, 10, 110)

	pos := l.Position("BTC/CAD")
	if pos.Qty != 0 {
		t.Errorf("Qty = %v, want 0", pos.Qty)
	}
	if pos.AvgPrice != 0 {
		t.Errorf("AvgPrice = %v, want 0 after flat", pos.AvgPrice)
	}

	wantRealized := (110.0 - 100.0) * 10
	if math.Abs(rec.RealizedChange-wantRealized) > 1e-9 {
		t.Errorf("RealizedChange = %v, want %v", rec.RealizedChange, wantRealized)
	}
	if math.Abs(l.RealizedToday()-wantRealized) > 1e-9 {
		t.Errorf("RealizedToday() = %v, want %v", l.RealizedToday(), wantRealized)
	}
}

func TestPartialSellRealizesAgainstPreFillAverage(t *testing.T) {
	l := newTestLedger()

	buy(l, 10, 100)
	rec := sell(l, 4, 105)

	pos := l.Position("BTC/CAD")
	if pos.Qty != 6 {
		t.Errorf("Qty = %v, want 6", pos.Qty)
	}
	// Average entry is untouched by a partial close.
	if math.Abs(pos.AvgPrice-100) > 1e-9 {
		t.Errorf("AvgPrice = %v, want 100", pos.AvgPrice)
	}
	if math.Abs(rec.RealizedChange-20) > 1e-9 {
		t.Errorf("RealizedChange = %v, want 20", rec.RealizedChange)
	}
}

func TestSellMoreThanHeldCapsAtZero(t *testing.T) {
	l := newTestLedger()

	buy(l, 5, 100)
	rec := sell(l, 8, 110)

	pos := l.Position("BTC/CAD")
	if pos.Qty != 0 {
		t.Errorf("Qty = %v, want 0 (no net short)", pos.Qty)
	}
	if pos.AvgPrice != 0 {
		t.Errorf("AvgPrice = %v, want 0", pos.AvgPrice)
	}

	// Only the held 5 units realize PnL.
	wantRealized := (110.0 - 100.0) * 5
	if math.Abs(rec.RealizedChange-wantRealized) > 1e-9 {
		t.Errorf("RealizedChange = %v, want %v", rec.RealizedChange, wantRealized)
	}
}

func TestSellFromFlatRealizesNothing(t *testing.T) {
	l := newTestLedger()

	rec := sell(l, 3, 100)
	if rec.RealizedChange != 0 {
		t.Errorf("RealizedChange = %v, want 0", rec.RealizedChange)
	}
	if l.Position("BTC/CAD").Qty != 0 {
		t.Error("Expected position to stay flat")
	}
}

func TestFeesReduceRealized(t *testing.T) {
	l := newTestLedger()

	rec := l.ApplyFill(Fill{Symbol: "BTC/CAD", Side: contracts.SideBuy, Qty: 1, Price: 100, Fees: 0.06})
	if math.Abs(rec.RealizedChange-(-0.06)) > 1e-9 {
		t.Errorf("RealizedChange = %v, want -0.06", rec.RealizedChange)
	}
	if math.Abs(l.RealizedToday()-(-0.06)) > 1e-9 {
		t.Errorf("RealizedToday() = %v, want -0.06", l.RealizedToday())
	}
}

func TestResetDay(t *testing.T) {
	l := newTestLedger()

	buy(l, 10, 100)
	sell(l, 10, 110)
	if l.RealizedToday() == 0 {
		t.Fatal("Expected realized PnL before reset")
	}

	l.ResetDay()
	if l.RealizedToday() != 0 {
		t.Errorf("RealizedToday() = %v, want 0 after reset", l.RealizedToday())
	}

	// Positions survive the daily reset.
	buy(l, 2, 100)
	if l.Position("BTC/CAD").Qty != 2 {
		t.Error("Expected position to survive day reset")
	}
}

func TestTradeRecordPerFill(t *testing.T) {
	l := newTestLedger()

	buy(l, 10, 100)
	sell(l, 4, 105)

	trades := l.Trades(0)
	if len(trades) != 2 {
		t.Fatalf("len(Trades) = %d, want 2", len(trades))
	}
	if trades[0].Side != contracts.SideBuy || trades[1].Side != contracts.SideSell {
		t.Error("Expected trades in chronological order")
	}
	if trades[1].PositionAfter != 6 {
		t.Errorf("PositionAfter = %v, want 6", trades[1].PositionAfter)
	}
}

func TestTradesLimit(t *testing.T) {
	l := newTestLedger()

	for i := 0; i < 10; i++ {
		buy(l, 1, 100+float64(i))
	}

	trades := l.Trades(3)
	if len(trades) != 3 {
		t.Fatalf("len(Trades(3)) = %d, want 3", len(trades))
	}
	// Most recent three, oldest first.
	if trades[0].Price != 107 || trades[2].Price != 109 {
		t.Errorf("Unexpected window: %v .. %v", trades[0].Price, trades[2].Price)
	}
}

func TestPnLUnrealizedMarkToMarket(t *testing.T) {
	l := newTestLedger()

	buy(l, 10, 100)
	snap := l.PnL(map[string]float64{"BTC/CAD": 103})

	if math.Abs(snap.Unrealized-30) > 1e-9 {
		t.Errorf("Unrealized = %v, want 30", snap.Unrealized)
	}
	if math.Abs(snap.Total-snap.RealizedToday-snap.Unrealized) > 1e-9 {
		t.Errorf("Total = %v, want realized+unrealized", snap.Total)
	}

	// No mark for the symbol: skipped, not an error.
	snap = l.PnL(nil)
	if snap.Unrealized != 0 {
		t.Errorf("Unrealized = %v, want 0 without marks", snap.Unrealized)
	}
}

func TestPositionsSnapshotExcludesFlat(t *testing.T) {
	l := newTestLedger()

	buy(l, 10, 100)
	l.ApplyFill(Fill{Symbol: "ETH/CAD", Side: contracts.SideBuy, Qty: 5, Price: 50})
	l.ApplyFill(Fill{Symbol: "ETH/CAD", Side: contracts.SideSell, Qty: 5, Price: 55})

	positions := l.Positions()
	if len(positions) != 1 {
		t.Fatalf("len(Positions) = %d, want 1", len(positions))
	}
	if positions[0].Symbol != "BTC/CAD" {
		t.Errorf("Symbol = %s, want BTC/CAD", positions[0].Symbol)
	}
}
