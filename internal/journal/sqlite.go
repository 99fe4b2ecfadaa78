package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"

	"go-signals/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS trades (
	id           TEXT PRIMARY KEY,
	symbol       TEXT NOT NULL,
	side         TEXT NOT NULL,
	strategy     TEXT NOT NULL,
	entry_price  REAL NOT NULL,
	exit_price   REAL NOT NULL,
	size         REAL NOT NULL,
	leverage     INTEGER NOT NULL,
	pnl_usd      REAL NOT NULL,
	pnl_pct      REAL NOT NULL,
	close_reason TEXT NOT NULL,
	stop_loss    REAL NOT NULL,
	take_profit  REAL NOT NULL,
	opened_at    TIMESTAMP NOT NULL,
	closed_at    TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trades_closed_at ON trades(closed_at);
CREATE INDEX IF NOT EXISTS idx_trades_strategy ON trades(strategy);
`

// SQLite persists trade records in a local SQLite file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the journal database at path.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening journal db %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating journal schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Record(ctx context.Context, tr model.TradeRecord) error {
	if tr.ID == "" {
		tr.ID = ulid.Make().String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trades (id, symbol, side, strategy, entry_price, exit_price,
			size, leverage, pnl_usd, pnl_pct, close_reason, stop_loss, take_profit,
			opened_at, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tr.ID, tr.Symbol, string(tr.Side), tr.Strategy, tr.EntryPrice, tr.ExitPrice,
		tr.Size, tr.Leverage, tr.PnlUsd, tr.PnlPct, string(tr.CloseReason),
		tr.StopLoss, tr.TakeProfit, tr.OpenedAt, tr.ClosedAt)
	if err != nil {
		return fmt.Errorf("inserting trade record %s: %w", tr.ID, err)
	}
	return nil
}

func (s *SQLite) Recent(ctx context.Context, limit int) ([]model.TradeRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, symbol, side, strategy, entry_price, exit_price, size,
			leverage, pnl_usd, pnl_pct, close_reason, stop_loss, take_profit,
			opened_at, closed_at
		FROM trades ORDER BY closed_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent trades: %w", err)
	}
	defer rows.Close()

	var out []model.TradeRecord
	for rows.Next() {
		var tr model.TradeRecord
		var side, reason string
		var openedAt, closedAt time.Time
		if err := rows.Scan(&tr.ID, &tr.Symbol, &side, &tr.Strategy, &tr.EntryPrice,
			&tr.ExitPrice, &tr.Size, &tr.Leverage, &tr.PnlUsd, &tr.PnlPct,
			&reason, &tr.StopLoss, &tr.TakeProfit, &openedAt, &closedAt); err != nil {
			return nil, fmt.Errorf("scanning trade record: %w", err)
		}
		tr.Side = model.Side(side)
		tr.CloseReason = model.CloseReason(reason)
		tr.OpenedAt = openedAt
		tr.ClosedAt = closedAt
		out = append(out, tr)
	}
	return out, rows.Err()
}

func (s *SQLite) SummaryByStrategy(ctx context.Context) ([]StrategySummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT strategy, COUNT(*), SUM(CASE WHEN pnl_usd > 0 THEN 1 ELSE 0 END), SUM(pnl_usd)
		FROM trades GROUP BY strategy ORDER BY SUM(pnl_usd) DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying strategy summary: %w", err)
	}
	defer rows.Close()

	var out []StrategySummary
	for rows.Next() {
		var s StrategySummary
		if err := rows.Scan(&s.Strategy, &s.Trades, &s.Wins, &s.PnlUsd); err != nil {
			return nil, fmt.Errorf("scanning strategy summary: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error { return s.db.Close() }
