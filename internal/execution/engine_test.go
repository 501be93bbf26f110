package execution

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/talos/internal/contracts"
	"github.com/wonny/talos/internal/ledger"
	"github.com/wonny/talos/internal/signal"
	"github.com/wonny/talos/pkg/config"
	"github.com/wonny/talos/pkg/logger"
)

// stubMD serves a fixed order book
type stubMD struct {
	mu   sync.Mutex
	book contracts.OrderBook
}

func (s *stubMD) OrderBook(ctx context.Context, symbol string) (*contracts.OrderBook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	book := s.book
	return &book, nil
}

func (s *stubMD) RecentCandles(ctx context.Context, symbol string, limit int) ([]contracts.Candle, error) {
	return nil, nil
}

func (s *stubMD) LastPrice(ctx context.Context, symbol string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.Mid(), nil
}

// fakeExchange records requests and fills every order at the limit price
type fakeExchange struct {
	mu       sync.Mutex
	requests []contracts.OrderRequest
	cancels  []string
	seq      int

	// when set, CreateOrder blocks until the channel is closed
	block chan struct{}

	// live-mode behavior: orders stay open until fillAfterCreates
	// CreateOrder calls have been made
	stayOpen         bool
	fillAfterCreates int
}

func (f *fakeExchange) CreateOrder(ctx context.Context, req contracts.OrderRequest) (*contracts.Order, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.seq++
	id := fmt.Sprintf("ord-%d", f.seq)
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	now := time.Now().UTC()
	order := &contracts.Order{
		ID: id, Symbol: req.Symbol, Side: req.Side, Qty: req.Qty, Price: req.Price,
		CreatedAt: now, UpdatedAt: now,
	}
	if f.stayOpen {
		order.Status = contracts.OrderStatusOpen
		order.Remaining = req.Qty
	} else {
		order.Status = contracts.OrderStatusFilled
		order.Filled = req.Qty
		order.AvgPrice = req.Price
		order.Maker = true
	}
	return order, nil
}

func (f *fakeExchange) FetchOrder(ctx context.Context, id, symbol string) (*contracts.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	last := f.requests[len(f.requests)-1]
	order := &contracts.Order{ID: id, Symbol: symbol, Side: last.Side, Qty: last.Qty, Price: last.Price}
	if f.stayOpen && f.seq < f.fillAfterCreates {
		order.Status = contracts.OrderStatusOpen
		order.Remaining = last.Qty
	} else {
		order.Status = contracts.OrderStatusFilled
		order.Filled = last.Qty
		order.AvgPrice = last.Price
		order.Maker = true
	}
	return order, nil
}

func (f *fakeExchange) CancelOrder(ctx context.Context, id, symbol string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels = append(f.cancels, id)
	return nil
}

func (f *fakeExchange) FetchOpenOrders(ctx context.Context, symbol string) ([]contracts.Order, error) {
	return []contracts.Order{}, nil
}

func (f *fakeExchange) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeExchange) request(i int) contracts.OrderRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[i]
}

func tightBook() contracts.OrderBook {
	return contracts.OrderBook{
		Symbol: "BTC/CAD",
		Bids:   []contracts.Level{{Price: 100.00, Size: 2}},
		Asks:   []contracts.Level{{Price: 100.05, Size: 2}},
		TS:     time.Now(),
	}
}

func wideBook() contracts.OrderBook {
	return contracts.OrderBook{
		Symbol: "BTC/CAD",
		Bids:   []contracts.Level{{Price: 100.00, Size: 2}},
		Asks:   []contracts.Level{{Price: 100.50, Size: 2}},
		TS:     time.Now(),
	}
}

type testRig struct {
	engine *Engine
	bus    *signal.Bus
	ledger *ledger.Ledger
	kill   *KillSwitch
	ex     *fakeExchange
	md     *stubMD
	cancel context.CancelFunc
	done   chan struct{}
}

func newRig(t *testing.T, mutate func(*config.TradingConfig, *config.ExecutionConfig)) *testRig {
	t.Helper()

	trading := config.TradingConfig{
		Mode:           "paper",
		AllowedSymbols: []string{"BTC/CAD"},
		MaxPosition:    50,
		OrderSize:      10,
		MaxDailyLoss:   100,
		LongOnly:       true,
	}
	exec := config.ExecutionConfig{
		PostOnlyOffset: 0.3,
		MaxSpreadBps:   7.0,
		RepriceTimeout: 6 * time.Second,
		RepriceMove:    0.5,
		PollInterval:   10 * time.Millisecond,
		TakerFeeBps:    6.0,
	}
	if mutate != nil {
		mutate(&trading, &exec)
	}

	rig := &testRig{
		bus:    signal.New(16, logger.Nop()),
		ledger: ledger.New(100, nil, logger.Nop()),
		kill:   NewKillSwitch(),
		ex:     &fakeExchange{},
		md:     &stubMD{book: tightBook()},
		done:   make(chan struct{}),
	}
	rig.engine = New(trading, exec, trading.Mode == "live",
		rig.bus, rig.md, rig.ex, rig.ledger, rig.kill, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	rig.cancel = cancel
	go func() {
		defer close(rig.done)
		rig.engine.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-rig.done
	})

	// Run subscribes on its own goroutine; wait so an immediate publish
	// cannot race the subscription
	require.Eventually(t, func() bool {
		return rig.bus.Subscribers() > 0
	}, 2*time.Second, time.Millisecond)
	return rig
}

func (r *testRig) publish(side contracts.Side, qty float64) {
	r.bus.Publish(contracts.Intent{
		Symbol: "BTC/CAD",
		Side:   side,
		Qty:    qty,
		Reason: "test",
		TS:     time.Now(),
	})
}

func TestMakerFillPriceWithinSpread(t *testing.T) {
	rig := newRig(t, nil)

	rig.publish(contracts.SideBuy, 10)

	require.Eventually(t, func() bool {
		return rig.ledger.Position("BTC/CAD").Qty == 10
	}, 2*time.Second, 5*time.Millisecond)

	trades := rig.ledger.Trades(10)
	require.Len(t, trades, 1)

	// Maker buy must price strictly inside the bid-mid band
	assert.Greater(t, trades[0].Price, 100.00)
	assert.Less(t, trades[0].Price, 100.025)
	assert.True(t, trades[0].Maker)
	assert.Equal(t, 0.0, trades[0].Fees)
}

func TestWideSpreadProducesNoFill(t *testing.T) {
	rig := newRig(t, nil)
	rig.md.mu.Lock()
	rig.md.book = wideBook()
	rig.md.mu.Unlock()

	rig.publish(contracts.SideBuy, 10)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, rig.ex.requestCount())
	assert.Equal(t, 0.0, rig.ledger.Position("BTC/CAD").Qty)
	assert.Empty(t, rig.ledger.Trades(10))
}

func TestCrossedBookProducesNoFill(t *testing.T) {
	rig := newRig(t, nil)
	rig.md.mu.Lock()
	rig.md.book = contracts.OrderBook{
		Symbol: "BTC/CAD",
		Bids:   []contracts.Level{{Price: 100.06, Size: 2}},
		Asks:   []contracts.Level{{Price: 100.05, Size: 2}},
		TS:     time.Now(),
	}
	rig.md.mu.Unlock()

	rig.publish(contracts.SideBuy, 10)

	time.Sleep(100 * time.Millisecond)
	// a crossed book is not a price to quote against
	assert.Equal(t, 0, rig.ex.requestCount())
	assert.Empty(t, rig.ledger.Trades(10))
}

func TestKillSwitchRejectsIntents(t *testing.T) {
	rig := newRig(t, nil)
	rig.kill.Set("operator halt")

	rig.publish(contracts.SideBuy, 10)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, rig.ex.requestCount())
	assert.Empty(t, rig.ledger.Trades(10))

	// does not auto-clear
	assert.True(t, rig.kill.Active())
}

func TestLongOnlyRejectsSellWhileFlat(t *testing.T) {
	rig := newRig(t, nil)

	rig.publish(contracts.SideSell, 10)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, rig.ex.requestCount())
}

func TestPositionCapClipsBuy(t *testing.T) {
	rig := newRig(t, func(tr *config.TradingConfig, _ *config.ExecutionConfig) {
		tr.MaxPosition = 15
	})

	rig.publish(contracts.SideBuy, 10)
	require.Eventually(t, func() bool {
		return rig.ledger.Position("BTC/CAD").Qty == 10
	}, 2*time.Second, 5*time.Millisecond)

	rig.publish(contracts.SideBuy, 10)
	require.Eventually(t, func() bool {
		return rig.ledger.Position("BTC/CAD").Qty == 15
	}, 2*time.Second, 5*time.Millisecond)

	// second order was clipped to the remaining headroom
	require.Equal(t, 2, rig.ex.requestCount())
	assert.Equal(t, 5.0, rig.ex.request(1).Qty)

	// a third buy has no headroom at all
	rig.publish(contracts.SideBuy, 10)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 2, rig.ex.requestCount())
	assert.Equal(t, 15.0, rig.ledger.Position("BTC/CAD").Qty)
}

func TestDailyLossBreachTripsKillAndHalts(t *testing.T) {
	rig := newRig(t, func(tr *config.TradingConfig, _ *config.ExecutionConfig) {
		tr.LongOnly = false
	})

	// realize a 150 loss: buy 10@100, sell 10@85
	rig.ledger.ApplyFill(ledger.Fill{Symbol: "BTC/CAD", Side: contracts.SideBuy, Qty: 10, Price: 100, TS: time.Now()})
	rig.ledger.ApplyFill(ledger.Fill{Symbol: "BTC/CAD", Side: contracts.SideSell, Qty: 10, Price: 85, TS: time.Now()})
	require.Equal(t, -150.0, rig.ledger.RealizedToday())

	rig.publish(contracts.SideBuy, 10)

	select {
	case <-rig.done:
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not halt on daily loss breach")
	}

	active, reason := rig.kill.State()
	assert.True(t, active)
	assert.Equal(t, "daily loss limit breached", reason)

	// breach happens before order placement
	assert.Equal(t, 0, rig.ex.requestCount())
}

func TestZeroQtyIntentIgnored(t *testing.T) {
	rig := newRig(t, nil)

	rig.publish(contracts.SideBuy, 0)

	time.Sleep(100 * time.Millisecond)
	// zero-qty intents are a legitimate no-op, never an order
	assert.Equal(t, 0, rig.ex.requestCount())
}

func TestSymbolAllowList(t *testing.T) {
	rig := newRig(t, nil)

	rig.bus.Publish(contracts.Intent{Symbol: "ETH/CAD", Side: contracts.SideBuy, Qty: 10, TS: time.Now()})

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, rig.ex.requestCount())
}

func TestIntentsProcessedSerially(t *testing.T) {
	rig := newRig(t, nil)
	rig.ex.block = make(chan struct{})

	// a sell published while the buy is still executing must be gated
	// against the position AFTER the buy, not the pre-buy flat position
	rig.publish(contracts.SideBuy, 5)
	require.Eventually(t, func() bool {
		return rig.ex.requestCount() == 1
	}, 2*time.Second, 5*time.Millisecond)

	rig.publish(contracts.SideSell, 5)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, rig.ex.requestCount())

	close(rig.ex.block)
	require.Eventually(t, func() bool {
		return rig.ex.requestCount() == 2
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, contracts.SideSell, rig.ex.request(1).Side)
	require.Eventually(t, func() bool {
		return rig.ledger.Position("BTC/CAD").Qty == 0
	}, 2*time.Second, 5*time.Millisecond)
	assert.Len(t, rig.ledger.Trades(10), 2)
}

func TestLiveRepriceOnTimeout(t *testing.T) {
	rig := newRig(t, func(tr *config.TradingConfig, ex *config.ExecutionConfig) {
		tr.Mode = "live"
		ex.RepriceTimeout = 30 * time.Millisecond
		ex.PollInterval = 10 * time.Millisecond
	})
	rig.ex.stayOpen = true
	rig.ex.fillAfterCreates = 2

	rig.publish(contracts.SideBuy, 10)

	require.Eventually(t, func() bool {
		return rig.ledger.Position("BTC/CAD").Qty == 10
	}, 2*time.Second, 5*time.Millisecond)

	// resting order was canceled and re-placed at least once
	rig.ex.mu.Lock()
	defer rig.ex.mu.Unlock()
	assert.GreaterOrEqual(t, len(rig.ex.requests), 2)
	assert.GreaterOrEqual(t, len(rig.ex.cancels), 1)
	assert.True(t, rig.ex.requests[0].PostOnly)
}
