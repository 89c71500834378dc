package bybit

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	drepo "CoinPull/internal/domain/repository"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch r.URL.Path {
		case klinePath:
			if q.Get("category") != "linear" || q.Get("interval") != "60" {
				t.Errorf("unexpected query %v", q)
			}
			if q.Get("symbol") == "NOPEUSDT" {
				fmt.Fprint(w, `{"retCode":10001,"retMsg":"params error: symbol invalid","result":{}}`)
				return
			}
			fmt.Fprint(w, `{"retCode":0,"retMsg":"OK","result":{"symbol":"BTCUSDT","list":[
				["1700007200000","102","104","101","103","12","1236"],
				["1700003600000","101","103","100","102","11","1122"],
				["1700000000000","100","102","99","101","10","1010"]]}}`)
		case tickersPath:
			fmt.Fprint(w, `{"retCode":0,"retMsg":"OK","result":{"list":[
				{"symbol":"ETHUSDT","turnover24h":"500"},
				{"symbol":"BTCUSDC","turnover24h":"9000"},
				{"symbol":"BTCUSDT","turnover24h":"1000"},
				{"symbol":"XRPUSDT","turnover24h":"20"}]}}`)
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestGetCandlesOldestFirst(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	c := NewClient(WithBaseURL(srv.URL), WithRateLimit(1000, 10))

	cs, err := c.GetCandles(context.Background(), "BTCUSDT", drepo.TF1h, 3)
	if err != nil {
		t.Fatalf("GetCandles error: %v", err)
	}
	if len(cs) != 3 {
		t.Fatalf("expected 3 candles, got %d", len(cs))
	}
	if !cs[0].Timestamp.Before(cs[2].Timestamp) {
		t.Fatalf("candles not ascending: %v", cs)
	}
	first := cs[0]
	if first.Open != 100 || first.High != 102 || first.Low != 99 || first.Close != 101 || first.Volume != 10 {
		t.Fatalf("columns mapped wrong: %+v", first)
	}
}

func TestGetCandlesUnknownSymbolIsEmpty(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	c := NewClient(WithBaseURL(srv.URL), WithRateLimit(1000, 10))

	cs, err := c.GetCandles(context.Background(), "NOPEUSDT", drepo.TF1h, 50)
	if err != nil || len(cs) != 0 {
		t.Fatalf("expected empty result, got %v %v", cs, err)
	}
	if _, err := c.GetCandles(context.Background(), "BTCUSDT", drepo.Timeframe("1d"), 50); err == nil {
		t.Fatalf("expected error for unsupported timeframe")
	}
}

func TestUniverseFiltersAndRanks(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	c := NewClient(WithBaseURL(srv.URL), WithRateLimit(1000, 10), WithUniverse("USDT", 2))

	got, err := c.Universe(context.Background())
	if err != nil {
		t.Fatalf("Universe error: %v", err)
	}
	want := []string{"BTCUSDT", "ETHUSDT"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("Universe = %v, want %v", got, want)
	}
}
