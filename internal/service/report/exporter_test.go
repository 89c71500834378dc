package report

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"CoinPull/internal/domain/models"
)

func TestExportWritesTables(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	res := models.ScanResult{
		FinishedAt: at,
		Signals: []models.EnhancedSignal{{
			RawSignal: models.RawSignal{ID: "s1", Symbol: "BTCUSDT", Side: models.SideLong, Entry: 100, GeneratedAt: at},
			Score:     81.25,
		}},
		Trades: []models.Trade{{ID: "t1", OrderID: "virtual_x", Symbol: "BTCUSDT", Virtual: true, OpenedAt: at}},
	}

	paths, err := NewExporter(dir).Export(context.Background(), res)
	if err != nil {
		t.Fatalf("Export error: %v", err)
	}
	if len(paths) != 3 {
		t.Fatalf("expected 3 files, got %v", paths)
	}

	f, err := os.Open(filepath.Join(dir, "signals", "ALL_SIGNALS_20240506_070809.csv"))
	if err != nil {
		t.Fatalf("signals csv missing: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 2 || rows[1][1] != "BTCUSDT" || rows[1][14] != "81.25" {
		t.Fatalf("unexpected rows %v", rows)
	}

	b, err := os.ReadFile(filepath.Join(dir, "signals", "BTCUSDT_20240506_070809.json"))
	if err != nil || !strings.Contains(string(b), `"symbol": "BTCUSDT"`) {
		t.Fatalf("signal json wrong: %v %s", err, b)
	}
	if _, err := os.Stat(filepath.Join(dir, "trades", "TRADES_20240506_070809.csv")); err != nil {
		t.Fatalf("trades csv missing: %v", err)
	}
}

func TestExportDisabled(t *testing.T) {
	paths, err := NewExporter("").Export(context.Background(), models.ScanResult{
		Signals: []models.EnhancedSignal{{}},
	})
	if err != nil || paths != nil {
		t.Fatalf("disabled exporter should do nothing: %v %v", paths, err)
	}
}
