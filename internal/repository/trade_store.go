package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"CoinPull/internal/domain/models"
	domrepo "CoinPull/internal/domain/repository"
	pkgpg "CoinPull/pkg/postgres"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSchema holds the tables used by the trade and settings stores.
var PostgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS trades (
        id          TEXT PRIMARY KEY,
        order_id    TEXT NOT NULL,
        signal_id   TEXT NOT NULL DEFAULT '',
        symbol      TEXT NOT NULL,
        side        TEXT NOT NULL,
        qty         DOUBLE PRECISION NOT NULL,
        entry_price DOUBLE PRECISION NOT NULL,
        stop_loss   DOUBLE PRECISION NOT NULL,
        take_profit DOUBLE PRECISION NOT NULL,
        trail       DOUBLE PRECISION NOT NULL DEFAULT 0,
        leverage    DOUBLE PRECISION NOT NULL,
        margin      DOUBLE PRECISION NOT NULL,
        score       DOUBLE PRECISION NOT NULL DEFAULT 0,
        confidence  DOUBLE PRECISION NOT NULL DEFAULT 0,
        status      TEXT NOT NULL,
        is_virtual  BOOLEAN NOT NULL DEFAULT TRUE,
        pnl         DOUBLE PRECISION NOT NULL DEFAULT 0,
        opened_at   TIMESTAMPTZ NOT NULL,
        closed_at   TIMESTAMPTZ
    )`,
	`CREATE INDEX IF NOT EXISTS trades_opened_at_idx ON trades (opened_at)`,
	`CREATE INDEX IF NOT EXISTS trades_closed_at_idx ON trades (closed_at) WHERE status = 'closed'`,
	`CREATE TABLE IF NOT EXISTS settings (
        key        TEXT PRIMARY KEY,
        value      TEXT NOT NULL,
        updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
    )`,
}

const tradeColumns = `id, order_id, signal_id, symbol, side, qty, entry_price, stop_loss, take_profit,
    trail, leverage, margin, score, confidence, status, is_virtual, pnl, opened_at, closed_at`

// PGTradeStore implements TradeStore on PostgreSQL.
type PGTradeStore struct {
	pool *pgxpool.Pool
}

func NewPGTradeStore(c *pkgpg.Client) *PGTradeStore { return &PGTradeStore{pool: c.Pool()} }

func (s *PGTradeStore) Open(ctx context.Context, t models.Trade) error {
	q := fmt.Sprintf(`INSERT INTO trades (%s) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`, tradeColumns)
	_, err := s.pool.Exec(ctx, q,
		t.ID, t.OrderID, t.SignalID, t.Symbol, string(t.Side), t.Qty, t.EntryPrice, t.StopLoss, t.TakeProfit,
		t.Trail, t.Leverage, t.Margin, t.Score, t.Confidence, string(t.Status), t.Virtual, t.PnL,
		t.OpenedAt.UTC(), t.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

func (s *PGTradeStore) Close(ctx context.Context, id string, pnl float64, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE trades SET status = $2, pnl = $3, closed_at = $4 WHERE id = $1 AND status = $5`,
		id, string(models.TradeClosed), pnl, at.UTC(), string(models.TradeOpen),
	)
	if err != nil {
		return fmt.Errorf("close trade: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("close trade %s: %w", id, models.ErrNotFound)
	}
	return nil
}

func (s *PGTradeStore) CountOpenedSince(ctx context.Context, from time.Time) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM trades WHERE opened_at >= $1`, from.UTC()).Scan(&n); err != nil {
		return 0, fmt.Errorf("count trades: %w", err)
	}
	return n, nil
}

// Closed returns the latest limit closed trades in close order. limit <= 0
// returns all of them.
func (s *PGTradeStore) Closed(ctx context.Context, limit int) ([]models.Trade, error) {
	q := fmt.Sprintf(`SELECT %s FROM trades WHERE status = 'closed' ORDER BY closed_at ASC`, tradeColumns)
	args := []interface{}{}
	if limit > 0 {
		q = fmt.Sprintf(`SELECT * FROM (SELECT %s FROM trades WHERE status = 'closed' ORDER BY closed_at DESC LIMIT $1) t ORDER BY closed_at ASC`, tradeColumns)
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query closed trades: %w", err)
	}
	defer rows.Close()

	var out []models.Trade
	for rows.Next() {
		var (
			t            models.Trade
			side, status string
		)
		if err := rows.Scan(&t.ID, &t.OrderID, &t.SignalID, &t.Symbol, &side, &t.Qty, &t.EntryPrice,
			&t.StopLoss, &t.TakeProfit, &t.Trail, &t.Leverage, &t.Margin, &t.Score, &t.Confidence,
			&status, &t.Virtual, &t.PnL, &t.OpenedAt, &t.ClosedAt); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		t.Side = models.Side(side)
		t.Status = models.TradeStatus(status)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

// PGSettingsStore implements SettingsStore on the settings table.
type PGSettingsStore struct {
	pool *pgxpool.Pool
}

func NewPGSettingsStore(c *pkgpg.Client) *PGSettingsStore { return &PGSettingsStore{pool: c.Pool()} }

func (s *PGSettingsStore) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %s: %w", key, err)
	}
	return v, true, nil
}

func (s *PGSettingsStore) Set(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx, `
        INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, now())
        ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`, key, value)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

var (
	_ domrepo.TradeStore    = (*PGTradeStore)(nil)
	_ domrepo.SettingsStore = (*PGSettingsStore)(nil)
)
