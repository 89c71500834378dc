package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"CoinPull/internal/domain/models"
	domrepo "CoinPull/internal/domain/repository"
	"CoinPull/internal/repository"
	"CoinPull/internal/usecase"

	"github.com/labstack/echo/v4"
)

type stubMarket struct{ candles []models.Candle }

func (m stubMarket) GetCandles(_ context.Context, symbol string, _ domrepo.Timeframe, _ int) ([]models.Candle, error) {
	if symbol != "BTCUSDT" {
		return nil, nil
	}
	return m.candles, nil
}

func (m stubMarket) Universe(context.Context) ([]string, error) {
	return []string{"BTCUSDT", "DOGEUSDT"}, nil
}

func risingCandles() []models.Candle {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, 60)
	c := 100.0
	for i := range out {
		if i < 15 {
			c = 100 + float64(i%2)
		} else {
			c += 0.5
		}
		out[i] = models.Candle{Timestamp: base.Add(time.Duration(i) * time.Hour), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 5000}
	}
	return out
}

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()
	market := stubMarket{candles: risingCandles()}
	analyzer, err := usecase.NewAnalyzer(market, usecase.DefaultAnalyzerConfig())
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}
	signals := repository.NewMemorySignalStore(100)
	trades := repository.NewMemoryTradeStore()
	settings := repository.NewMemorySettingsStore()
	scorer := usecase.NewScorer(nil)
	scanner := usecase.NewScanner(market, analyzer, scorer, signals,
		usecase.WithSettingsStore(settings),
		usecase.WithExecutor(repository.NewPaperExecutor(trades)),
	)
	risk := usecase.NewRiskGuard(trades, models.RiskLimits{InitialCapital: 100, MaxDrawdownPct: 20, MaxDailyTrades: 50})
	scheduler := usecase.NewScheduler(scanner, risk, settings, usecase.SchedulerConfig{CheckEvery: 10 * time.Millisecond})
	trainer := usecase.NewTrainer(signals, trades, nil, scorer)

	e := echo.New()
	NewSignalsHandler(analyzer, scorer, scanner, scheduler, trainer, signals).RegisterRoutes(e)
	return e
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func do(t *testing.T, e *echo.Echo, method, target, body string) envelope {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: decode %q: %v", method, target, rec.Body.String(), err)
	}
	if env.Status != rec.Code {
		t.Fatalf("%s %s: envelope status %d, http %d", method, target, env.Status, rec.Code)
	}
	return env
}

func TestHealth(t *testing.T) {
	e := newTestServer(t)
	if env := do(t, e, http.MethodGet, "/healthz", ""); env.Status != http.StatusOK {
		t.Fatalf("healthz = %d", env.Status)
	}
}

func TestScanAndLatest(t *testing.T) {
	e := newTestServer(t)
	if env := do(t, e, http.MethodGet, "/api/signals/latest", ""); env.Status != http.StatusNotFound {
		t.Fatalf("latest before scan = %d", env.Status)
	}
	env := do(t, e, http.MethodPost, "/api/scan", "")
	if env.Status != http.StatusOK {
		t.Fatalf("scan = %d %s", env.Status, env.Data)
	}
	var res models.ScanResult
	if err := json.Unmarshal(env.Data, &res); err != nil {
		t.Fatalf("decode scan: %v", err)
	}
	if res.Scanned != 2 || len(res.Signals) != 1 || len(res.Trades) != 1 {
		t.Fatalf("unexpected scan %+v", res)
	}
	if env := do(t, e, http.MethodGet, "/api/signals/latest", ""); env.Status != http.StatusOK {
		t.Fatalf("latest after scan = %d", env.Status)
	}

	env = do(t, e, http.MethodGet, "/api/signals?symbol=BTCUSDT", "")
	var list struct {
		Rows  []models.EnhancedSignal `json:"rows"`
		Total int64                   `json:"total"`
	}
	if err := json.Unmarshal(env.Data, &list); err != nil || list.Total != 1 {
		t.Fatalf("history = %s (%v)", env.Data, err)
	}
	if env := do(t, e, http.MethodGet, "/api/signals?limit=1000", ""); env.Status != http.StatusBadRequest {
		t.Fatalf("oversized limit = %d", env.Status)
	}
}

func TestAnalyze(t *testing.T) {
	e := newTestServer(t)
	if env := do(t, e, http.MethodGet, "/api/analyze", ""); env.Status != http.StatusBadRequest {
		t.Fatalf("missing symbol = %d", env.Status)
	}
	if env := do(t, e, http.MethodGet, "/api/analyze?symbol=btc-usdt", ""); env.Status != http.StatusBadRequest {
		t.Fatalf("malformed symbol = %d", env.Status)
	}
	env := do(t, e, http.MethodGet, "/api/analyze?symbol=BTCUSDT", "")
	var out AnalyzeResponse
	if err := json.Unmarshal(env.Data, &out); err != nil || out.Signal == nil || out.Signal.Side != models.SideLong {
		t.Fatalf("analyze = %s (%v)", env.Data, err)
	}
	env = do(t, e, http.MethodGet, "/api/analyze?symbol=DOGEUSDT", "")
	out = AnalyzeResponse{}
	if err := json.Unmarshal(env.Data, &out); err != nil || out.Signal != nil || out.Reason != "insufficient_data" {
		t.Fatalf("analyze without data = %s (%v)", env.Data, err)
	}

	limited := false
	for i := 0; i < 10; i++ {
		if do(t, e, http.MethodGet, "/api/analyze?symbol=BTCUSDT", "").Status == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	if !limited {
		t.Fatalf("analyze was never rate limited")
	}
}

func TestAutomationEndpoints(t *testing.T) {
	e := newTestServer(t)
	if env := do(t, e, http.MethodPost, "/api/automation/stop", ""); env.Status != http.StatusConflict {
		t.Fatalf("stop while idle = %d", env.Status)
	}
	if env := do(t, e, http.MethodPost, "/api/automation/start", ""); env.Status != http.StatusAccepted {
		t.Fatalf("start = %d %s", env.Status, env.Data)
	}
	if env := do(t, e, http.MethodPost, "/api/automation/start", ""); env.Status != http.StatusConflict {
		t.Fatalf("second start = %d", env.Status)
	}

	env := do(t, e, http.MethodPut, "/api/automation/settings", `{"interval_seconds": 300, "top_n": 3}`)
	var st models.SchedulerStatus
	if err := json.Unmarshal(env.Data, &st); err != nil || st.IntervalSeconds != 300 || st.TopN != 3 {
		t.Fatalf("settings = %s (%v)", env.Data, err)
	}
	if env := do(t, e, http.MethodPut, "/api/automation/settings", `{"top_n": 0}`); env.Status != http.StatusBadRequest {
		t.Fatalf("invalid top_n = %d", env.Status)
	}

	if env := do(t, e, http.MethodPost, "/api/automation/stop", ""); env.Status != http.StatusOK {
		t.Fatalf("stop = %d %s", env.Status, env.Data)
	}
	env = do(t, e, http.MethodGet, "/api/automation/status", "")
	st = models.SchedulerStatus{}
	if err := json.Unmarshal(env.Data, &st); err != nil || st.Running {
		t.Fatalf("status after stop = %s", env.Data)
	}
}

func TestTrainInsufficientSamples(t *testing.T) {
	e := newTestServer(t)
	if env := do(t, e, http.MethodPost, "/api/model/train", ""); env.Status != http.StatusUnprocessableEntity {
		t.Fatalf("train = %d %s", env.Status, env.Data)
	}
}

func TestTrainUnavailableWithoutTrainer(t *testing.T) {
	market := stubMarket{candles: risingCandles()}
	analyzer, err := usecase.NewAnalyzer(market, usecase.DefaultAnalyzerConfig())
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}
	signals := repository.NewMemorySignalStore(10)
	scorer := usecase.NewScorer(nil)
	scanner := usecase.NewScanner(market, analyzer, scorer, signals)
	scheduler := usecase.NewScheduler(scanner, nil, nil, usecase.SchedulerConfig{})

	e := echo.New()
	NewSignalsHandler(analyzer, scorer, scanner, scheduler, nil, signals).RegisterRoutes(e)
	if env := do(t, e, http.MethodPost, "/api/model/train", ""); env.Status != http.StatusServiceUnavailable {
		t.Fatalf("train without trainer = %d %s", env.Status, env.Data)
	}
}
