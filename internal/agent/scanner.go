package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/talos/internal/contracts"
	"github.com/wonny/talos/internal/signal"
	"github.com/wonny/talos/pkg/logger"
)

// Scanner emits momentum intents from tick-to-tick price changes
type Scanner struct {
	symbols []string
	cfg     AgentConfig
	md      contracts.MarketData
	bus     *signal.Bus
	logger  *logger.Logger

	last map[string]float64
}

// NewScanner creates a market scanner producer
func NewScanner(symbols []string, cfg AgentConfig, md contracts.MarketData, bus *signal.Bus, log *logger.Logger) *Scanner {
	return &Scanner{
		symbols: symbols,
		cfg:     cfg,
		md:      md,
		bus:     bus,
		logger:  log,
		last:    make(map[string]float64),
	}
}

func (s *Scanner) Name() string      { return "market_scanner" }
func (s *Scanner) Symbols() []string { return s.symbols }

// Run evaluates every symbol each interval and publishes an intent when
// the absolute price move exceeds the momentum threshold.
func (s *Scanner) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.interval(2 * time.Second))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		for _, sym := range s.symbols {
			price, err := s.md.LastPrice(ctx, sym)
			if err != nil {
				s.logger.WithError(err).WithField("symbol", sym).Warn("Scanner price fetch failed")
				continue
			}

			prev, ok := s.last[sym]
			s.last[sym] = price
			if !ok {
				continue
			}

			mom := price - prev
			if mom >= s.cfg.MomThresh || -mom >= s.cfg.MomThresh {
				side := contracts.SideBuy
				if mom < 0 {
					side = contracts.SideSell
				}
				s.bus.Publish(contracts.Intent{
					Symbol: sym,
					Side:   side,
					Qty:    s.cfg.Qty,
					Reason: fmt.Sprintf("momentum %.3f", mom),
					TS:     time.Now().UTC(),
				})
				s.logger.WithFields(map[string]interface{}{
					"symbol":   sym,
					"side":     side,
					"momentum": mom,
				}).Info("Scanner intent published")
			}
		}
	}
}
