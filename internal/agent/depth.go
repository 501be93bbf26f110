package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/talos/internal/contracts"
	"github.com/wonny/talos/internal/signal"
	"github.com/wonny/talos/pkg/logger"
)

// Depth emits intents from top-of-book volume imbalance
type Depth struct {
	symbols []string
	cfg     AgentConfig
	md      contracts.MarketData
	bus     *signal.Bus
	logger  *logger.Logger
}

// NewDepth creates a depth imbalance producer
func NewDepth(symbols []string, cfg AgentConfig, md contracts.MarketData, bus *signal.Bus, log *logger.Logger) *Depth {
	return &Depth{
		symbols: symbols,
		cfg:     cfg,
		md:      md,
		bus:     bus,
		logger:  log,
	}
}

func (d *Depth) Name() string      { return "depth" }
func (d *Depth) Symbols() []string { return d.symbols }

// Run publishes a buy when the signed book imbalance
// (bid−ask)/(bid+ask) exceeds the threshold, a sell below its negation.
func (d *Depth) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.interval(3 * time.Second))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		for _, sym := range d.symbols {
			book, err := d.md.OrderBook(ctx, sym)
			if err != nil {
				d.logger.WithError(err).WithField("symbol", sym).Warn("Depth book fetch failed")
				continue
			}

			var bid, ask float64
			if len(book.Bids) > 0 {
				bid = book.Bids[0].Size
			}
			if len(book.Asks) > 0 {
				ask = book.Asks[0].Size
			}

			denom := bid + ask
			if denom < 1e-6 {
				denom = 1e-6
			}
			imb := (bid - ask) / denom

			var side contracts.Side
			switch {
			case imb >= d.cfg.ImbalanceThresh:
				side = contracts.SideBuy
			case imb <= -d.cfg.ImbalanceThresh:
				side = contracts.SideSell
			default:
				continue
			}

			d.bus.Publish(contracts.Intent{
				Symbol: sym,
				Side:   side,
				Qty:    d.cfg.Qty,
				Reason: fmt.Sprintf("depth imb %.2f", imb),
				TS:     time.Now().UTC(),
			})
			d.logger.WithFields(map[string]interface{}{
				"symbol":    sym,
				"side":      side,
				"imbalance": imb,
			}).Info("Depth intent published")
		}
	}
}
