package agent

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/wonny/talos/internal/contracts"
	"github.com/wonny/talos/internal/market"
	"github.com/wonny/talos/internal/signal"
	"github.com/wonny/talos/pkg/logger"
)

// Indicator strategy tunables
const (
	rsiLen            = 14
	atrLen            = 14
	emaFast           = 12
	emaSlow           = 26
	emaSig            = 9
	emaTrend          = 200
	emaTrendSlopeBars = 5

	maxSpreadBps = 3.0    // skip if spread wider than this
	minATRPct    = 0.0035 // 0.35% ATR/price floor
	minBidImb    = 0.55   // L1 imbalance gate

	rsiMomentumMin = 60.0 // trend mode: breakout threshold
	rsiMeanRevMax  = 30.0 // range/down mode: buy-the-dip

	minBarsForCompute = 210
	candleFetchLimit  = 300
)

// Indicator is the regime-aware RSI+MACD producer with microstructure
// gates. Long-only: it publishes buy intents exclusively.
// ⭐ SSOT: 지표 기반 매수 신호는 이 에이전트에서만 발행
type Indicator struct {
	symbols  []string
	cfg      AgentConfig
	md       contracts.MarketData
	bus      *signal.Bus
	logger   *logger.Logger
	longOnly bool
}

// NewIndicator creates the indicator strategy producer
func NewIndicator(symbols []string, cfg AgentConfig, longOnly bool, md contracts.MarketData, bus *signal.Bus, log *logger.Logger) *Indicator {
	return &Indicator{
		symbols:  symbols,
		cfg:      cfg,
		md:       md,
		bus:      bus,
		logger:   log,
		longOnly: longOnly,
	}
}

func (a *Indicator) Name() string      { return "indicator" }
func (a *Indicator) Symbols() []string { return a.symbols }

// Run evaluates every symbol each interval
func (a *Indicator) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.interval(2 * time.Second))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		for _, sym := range a.symbols {
			if err := a.evaluate(ctx, sym); err != nil {
				a.logger.WithError(err).WithField("symbol", sym).Warn("Indicator evaluation failed")
			}
		}
	}
}

// evaluate runs the gates and regime logic for one symbol
func (a *Indicator) evaluate(ctx context.Context, sym string) error {
	book, err := a.md.OrderBook(ctx, sym)
	if err != nil {
		return fmt.Errorf("fetch order book: %w", err)
	}

	candles, err := a.md.RecentCandles(ctx, sym, candleFetchLimit)
	if err != nil {
		return fmt.Errorf("fetch candles: %w", err)
	}

	mid := book.Mid()
	if len(candles) < minBarsForCompute || mid <= 0 {
		return nil
	}

	closes := make([]float64, len(candles))
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
		// synthesize highs/lows around closes if the feed lacks full OHLC
		highs[i] = c.High
		lows[i] = c.Low
		if c.High <= 0 || c.Low <= 0 {
			highs[i] = c.Close * 1.001
			lows[i] = c.Close * 0.999
		}
	}

	rsi := market.RSI(closes, rsiLen)
	_, _, macdHist := market.MACD(closes, emaFast, emaSlow, emaSig)
	slope200 := market.EMASlope(closes, emaTrend, emaTrendSlopeBars)
	atr := market.ATR(highs, lows, closes, atrLen)
	imb := book.BidImbalance()

	if math.IsNaN(rsi) || math.IsNaN(macdHist) || math.IsNaN(slope200) || math.IsNaN(atr) {
		return nil
	}

	// microstructure gates
	if book.SpreadBps() > maxSpreadBps {
		return nil
	}
	if atr <= 0 || atr/mid < minATRPct {
		return nil
	}

	trend := macdHist > 0 && slope200 > 0

	var shouldBuy bool
	var reason string
	if trend {
		if rsi >= rsiMomentumMin && imb >= minBidImb {
			shouldBuy = true
			reason = fmt.Sprintf("RSI_breakout(%.1f)+MACD_up hist=%.4f imb=%.2f", rsi, macdHist, imb)
		}
	} else {
		if rsi <= rsiMeanRevMax {
			shouldBuy = true
			reason = fmt.Sprintf("RSI_oversold(%.1f) meanrev atr%%=%.4f", rsi, atr/mid)
		}
	}

	if shouldBuy && a.longOnly {
		a.bus.Publish(contracts.Intent{
			Symbol: sym,
			Side:   contracts.SideBuy,
			Qty:    a.cfg.Qty,
			Reason: reason,
			TS:     time.Now().UTC(),
		})
		a.logger.WithFields(map[string]interface{}{
			"symbol": sym,
			"reason": reason,
		}).Info("Indicator buy intent published")
	}
	return nil
}
