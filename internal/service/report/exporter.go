package report

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"CoinPull/internal/domain/models"
	"CoinPull/pkg/util"
)

var signalHeader = []string{
	"id", "symbol", "side", "trend", "entry", "take_profit", "stop_loss", "trailing_stop",
	"liquidation_price", "margin", "leverage", "market_price", "band_direction",
	"rule_score", "score", "confidence", "scored_by", "generated_at",
}

var tradeHeader = []string{
	"id", "order_id", "signal_id", "symbol", "side", "qty", "entry_price", "stop_loss",
	"take_profit", "leverage", "margin", "score", "confidence", "status", "virtual", "opened_at",
}

// Exporter writes scan results as CSV tables and per-signal JSON files.
type Exporter struct {
	dir string
}

// NewExporter returns an exporter rooted at dir. An empty dir disables it.
func NewExporter(dir string) *Exporter { return &Exporter{dir: dir} }

func (e *Exporter) Enabled() bool { return e.dir != "" }

// Export writes the files for res and returns their paths.
func (e *Exporter) Export(ctx context.Context, res models.ScanResult) ([]string, error) {
	if !e.Enabled() || (len(res.Signals) == 0 && len(res.Trades) == 0) {
		return nil, nil
	}
	stamp := util.FileStamp(res.FinishedAt)
	var paths []string

	if len(res.Signals) > 0 {
		p := filepath.Join(e.dir, "signals", "ALL_SIGNALS_"+stamp+".csv")
		rows := make([][]string, 0, len(res.Signals))
		for _, s := range res.Signals {
			rows = append(rows, signalRow(s))
		}
		if err := writeCSV(p, signalHeader, rows); err != nil {
			return paths, err
		}
		paths = append(paths, p)

		for _, s := range res.Signals {
			if err := ctx.Err(); err != nil {
				return paths, err
			}
			jp := filepath.Join(e.dir, "signals", fmt.Sprintf("%s_%s.json", s.Symbol, stamp))
			if err := writeJSON(jp, s); err != nil {
				return paths, err
			}
			paths = append(paths, jp)
		}
	}

	if len(res.Trades) > 0 {
		p := filepath.Join(e.dir, "trades", "TRADES_"+stamp+".csv")
		rows := make([][]string, 0, len(res.Trades))
		for _, t := range res.Trades {
			rows = append(rows, tradeRow(t))
		}
		if err := writeCSV(p, tradeHeader, rows); err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

func signalRow(s models.EnhancedSignal) []string {
	return []string{
		s.ID, s.Symbol, string(s.Side), string(s.Trend),
		f(s.Entry), f(s.TakeProfit), f(s.StopLoss), f(s.TrailingStop),
		f(s.LiquidationPrice), f(s.Margin), f(s.Leverage), f(s.MarketPrice), string(s.BandDirection),
		f(s.RuleScore), f(s.Score), f(s.Confidence), string(s.ScoredBy),
		s.GeneratedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

func tradeRow(t models.Trade) []string {
	return []string{
		t.ID, t.OrderID, t.SignalID, t.Symbol, string(t.Side),
		f(t.Qty), f(t.EntryPrice), f(t.StopLoss), f(t.TakeProfit),
		f(t.Leverage), f(t.Margin), f(t.Score), f(t.Confidence),
		string(t.Status), strconv.FormatBool(t.Virtual),
		t.OpenedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

func f(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func writeCSV(path string, header []string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return file.Close()
}

func writeJSON(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
