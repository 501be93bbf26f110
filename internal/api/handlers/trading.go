package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/wonny/talos/internal/agent"
	"github.com/wonny/talos/internal/ledger"
	"github.com/wonny/talos/internal/market"
	"github.com/wonny/talos/pkg/config"
	"github.com/wonny/talos/pkg/logger"
)

const defaultTradeLimit = 100

// TradingHandler handles position, PnL and trade history endpoints
// ⭐ SSOT: 거래 API 핸들러는 이 구조체에서만
type TradingHandler struct {
	cfg     *config.Config
	manager *agent.Manager
	ledger  *ledger.Ledger
	feed    *market.Feed
	logger  *logger.Logger
}

// NewTradingHandler creates a new trading handler
func NewTradingHandler(cfg *config.Config, manager *agent.Manager, led *ledger.Ledger, feed *market.Feed, log *logger.Logger) *TradingHandler {
	return &TradingHandler{
		cfg:     cfg,
		manager: manager,
		ledger:  led,
		feed:    feed,
		logger:  log,
	}
}

// GetBuild returns build info for the UI header
// GET /api/build
func (h *TradingHandler) GetBuild(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"name":    "talos",
		"version": "1.0.0",
		"mode":    h.cfg.Trading.Mode,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// GetStatus returns a heartbeat with the agent snapshot
// GET /api/status
func (h *TradingHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"running": true,
		"mode":    h.cfg.Trading.Mode,
		"agents":  h.manager.List(),
	})
}

// GetPositions returns non-flat positions
// GET /api/positions
func (h *TradingHandler) GetPositions(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.ledger.Positions())
}

// symbolPnL is the per-symbol breakdown row
type symbolPnL struct {
	Symbol     string  `json:"symbol"`
	Qty        float64 `json:"qty"`
	AvgEntry   float64 `json:"avg_entry"`
	Unrealized float64 `json:"unrealized"`
}

// GetPnL returns a mark-to-market PnL snapshot
// GET /api/pnl
func (h *TradingHandler) GetPnL(w http.ResponseWriter, r *http.Request) {
	marks := h.feed.LastPrices(h.cfg.Trading.AllowedSymbols)
	snap := h.ledger.PnL(marks)

	bySymbol := make([]symbolPnL, 0)
	for _, pos := range h.ledger.Positions() {
		row := symbolPnL{
			Symbol:   pos.Symbol,
			Qty:      pos.Qty,
			AvgEntry: pos.AvgPrice,
		}
		if mark, ok := marks[pos.Symbol]; ok {
			row.Unrealized = (mark - pos.AvgPrice) * pos.Qty
		}
		bySymbol = append(bySymbol, row)
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"total":      snap.Total,
		"realized":   snap.RealizedToday,
		"unrealized": snap.Unrealized,
		"bySymbol":   bySymbol,
	})
}

// GetTrades returns recent trade records, oldest first
// GET /api/trades?limit=100
func (h *TradingHandler) GetTrades(w http.ResponseWriter, r *http.Request) {
	limit := defaultTradeLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	respondJSON(w, http.StatusOK, h.ledger.Trades(limit))
}
