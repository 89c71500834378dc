package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"CoinPull/internal/domain/models"
	domrepo "CoinPull/internal/domain/repository"
	pkgch "CoinPull/pkg/clickhouse"
	applogger "CoinPull/pkg/logger"
)

// SignalSchema creates the append-only signal history table.
var SignalSchema = []string{`
CREATE TABLE IF NOT EXISTS signals (
    id                String,
    symbol            LowCardinality(String),
    side              LowCardinality(String),
    trend             LowCardinality(String),
    entry             Float64,
    take_profit       Float64,
    stop_loss         Float64,
    trailing_stop     Float64,
    liquidation_price Float64,
    margin            Float64,
    leverage          Float64,
    market_price      Float64,
    band_direction    LowCardinality(String),
    rule_score        Float64,
    score             Float64,
    confidence        Float64,
    scored_by         LowCardinality(String),
    generated_at      DateTime64(3, 'UTC')
) ENGINE = MergeTree
ORDER BY (symbol, generated_at)`,
}

const signalColumns = `id, symbol, side, trend, entry, take_profit, stop_loss, trailing_stop,
    liquidation_price, margin, leverage, market_price, band_direction, rule_score, score,
    confidence, scored_by, generated_at`

// CHSignalStore implements SignalStore backed by ClickHouse.
type CHSignalStore struct {
	ch *pkgch.Client
	db *sql.DB
	l  *applogger.Logger
}

func NewCHSignalStore(ch *pkgch.Client) *CHSignalStore {
	return &CHSignalStore{ch: ch, db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *CHSignalStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHSignalStore) Save(ctx context.Context, sig models.EnhancedSignal) error {
	return s.SaveBatch(ctx, []models.EnhancedSignal{sig})
}

func (s *CHSignalStore) SaveBatch(ctx context.Context, sigs []models.EnhancedSignal) error {
	if len(sigs) == 0 {
		return nil
	}
	rows := make([][]interface{}, 0, len(sigs))
	for _, sig := range sigs {
		rows = append(rows, []interface{}{
			sig.ID, sig.Symbol, string(sig.Side), string(sig.Trend),
			sig.Entry, sig.TakeProfit, sig.StopLoss, sig.TrailingStop,
			sig.LiquidationPrice, sig.Margin, sig.Leverage, sig.MarketPrice,
			string(sig.BandDirection), sig.RuleScore, sig.Score, sig.Confidence,
			string(sig.ScoredBy), sig.GeneratedAt.UTC(),
		})
	}
	q := fmt.Sprintf("INSERT INTO signals (%s)", signalColumns)
	if err := s.ch.InsertBatch(ctx, q, rows); err != nil {
		s.logError("clickhouse insert signals error", err, applogger.Int("rows", len(rows)))
		return fmt.Errorf("insert signals: %w", err)
	}
	return nil
}

// Recent returns the newest signals first. An empty symbol matches all.
func (s *CHSignalStore) Recent(ctx context.Context, symbol string, limit int) ([]models.EnhancedSignal, error) {
	if limit <= 0 {
		limit = 50
	}
	q := fmt.Sprintf(`SELECT %s FROM signals WHERE (? = '' OR symbol = ?) ORDER BY generated_at DESC LIMIT ?`, signalColumns)
	return s.query(ctx, "recent", q, symbol, symbol, limit)
}

// Since returns the latest limit signals generated at or after from, oldest
// first.
func (s *CHSignalStore) Since(ctx context.Context, from time.Time, limit int) ([]models.EnhancedSignal, error) {
	if limit <= 0 {
		limit = 5000
	}
	q := fmt.Sprintf(`SELECT * FROM (SELECT %s FROM signals WHERE generated_at >= ? ORDER BY generated_at DESC LIMIT ?) ORDER BY generated_at ASC`, signalColumns)
	return s.query(ctx, "since", q, from.UTC(), limit)
}

func (s *CHSignalStore) query(ctx context.Context, op, q string, args ...interface{}) ([]models.EnhancedSignal, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		s.logError("clickhouse signals query error", err, applogger.String("op", op))
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	var out []models.EnhancedSignal
	for rows.Next() {
		var (
			sig                    models.EnhancedSignal
			side, trend, band, by string
		)
		if err := rows.Scan(
			&sig.ID, &sig.Symbol, &side, &trend,
			&sig.Entry, &sig.TakeProfit, &sig.StopLoss, &sig.TrailingStop,
			&sig.LiquidationPrice, &sig.Margin, &sig.Leverage, &sig.MarketPrice,
			&band, &sig.RuleScore, &sig.Score, &sig.Confidence,
			&by, &sig.GeneratedAt,
		); err != nil {
			s.logError("clickhouse signals scan error", err, applogger.String("op", op))
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		sig.Side = models.Side(side)
		sig.Trend = models.TrendClass(trend)
		sig.BandDirection = models.BandDirection(band)
		sig.ScoredBy = models.ScoredBy(by)
		out = append(out, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *CHSignalStore) logError(msg string, err error, fields ...applogger.Field) {
	if s.l != nil {
		s.l.Error(msg, append(fields, applogger.Error(err))...)
	}
}

var _ domrepo.SignalStore = (*CHSignalStore)(nil)
