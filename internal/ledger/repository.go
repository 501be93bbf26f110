package ledger

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/talos/internal/contracts"
)

// Repository handles trade record persistence
// ⭐ SSOT: 체결 이력 저장/조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new ledger repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveTrade saves a confirmed fill to database
func (r *Repository) SaveTrade(ctx context.Context, rec *contracts.TradeRecord) error {
	query := `
		INSERT INTO trading.trades (
			ts, symbol, side, qty, price, fees, maker,
			position_after, avg_price_after, realized_change, reason
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.pool.Exec(ctx, query,
		rec.TS, rec.Symbol, rec.Side, rec.Qty, rec.Price, rec.Fees, rec.Maker,
		rec.PositionAfter, rec.AvgPriceAfter, rec.RealizedChange, rec.Reason,
	)

	if err != nil {
		return fmt.Errorf("failed to save trade: %w", err)
	}

	return nil
}

// GetRecentTrades retrieves the most recent trades, newest last
func (r *Repository) GetRecentTrades(ctx context.Context, limit int) ([]contracts.TradeRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT ts, symbol, side, qty, price, fees, maker,
		       position_after, avg_price_after, realized_change, reason
		FROM trading.trades
		ORDER BY ts DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	trades := make([]contracts.TradeRecord, 0, limit)

	for rows.Next() {
		var rec contracts.TradeRecord
		err := rows.Scan(
			&rec.TS, &rec.Symbol, &rec.Side, &rec.Qty, &rec.Price, &rec.Fees, &rec.Maker,
			&rec.PositionAfter, &rec.AvgPriceAfter, &rec.RealizedChange, &rec.Reason,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	// reverse to chronological order
	for i, j := 0, len(trades)-1; i < j; i, j = i+1, j-1 {
		trades[i], trades[j] = trades[j], trades[i]
	}

	return trades, nil
}

// GetDailyRealized sums realized PnL changes for a UTC calendar day
func (r *Repository) GetDailyRealized(ctx context.Context, day string) (float64, error) {
	query := `
		SELECT COALESCE(SUM(realized_change), 0)
		FROM trading.trades
		WHERE ts::date = $1::date
	`

	var realized float64
	if err := r.pool.QueryRow(ctx, query, day).Scan(&realized); err != nil {
		return 0, fmt.Errorf("failed to get daily realized pnl: %w", err)
	}

	return realized, nil
}
