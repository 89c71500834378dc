package bybit

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"CoinPull/internal/domain/models"
	drepo "CoinPull/internal/domain/repository"
	svcmetrics "CoinPull/internal/service/metrics"
	"CoinPull/internal/service/ratelimit"
	xhttp "CoinPull/pkg/http"
	applogger "CoinPull/pkg/logger"
	"CoinPull/pkg/util"

	"github.com/shopspring/decimal"
)

const (
	klinePath   = "/v5/market/kline"
	tickersPath = "/v5/market/tickers"
	limiterKey  = "bybit"
	maxKlines   = 1000
)

// APIError is a non-zero retCode in an otherwise successful response.
type APIError struct {
	Code int
	Msg  string
}

func (e *APIError) Error() string { return fmt.Sprintf("bybit: retCode %d: %s", e.Code, e.Msg) }

// Client reads public market data from the Bybit v5 REST API.
type Client struct {
	baseURL     string
	category    string
	quoteSuffix string
	maxSymbols  int
	rate, burst float64

	http    *xhttp.Client
	limiter *ratelimit.Limiter
	log     *applogger.Logger
}

type Option func(*Client)

func WithBaseURL(u string) Option { return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") } }

func WithCategory(cat string) Option { return func(c *Client) { c.category = cat } }

// WithUniverse limits Universe to maxSymbols symbols ending in suffix.
func WithUniverse(suffix string, maxSymbols int) Option {
	return func(c *Client) {
		c.quoteSuffix = suffix
		c.maxSymbols = maxSymbols
	}
}

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(perSec, burst float64) Option {
	return func(c *Client) {
		c.rate = perSec
		c.burst = burst
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http = xhttp.NewClient(xhttp.WithTimeout(d)) }
}

func WithLimiter(l *ratelimit.Limiter) Option { return func(c *Client) { c.limiter = l } }

func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:     "https://api.bybit.com",
		category:    "linear",
		quoteSuffix: "USDT",
		maxSymbols:  100,
		rate:        5,
		burst:       5,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = xhttp.NewClient(xhttp.WithTimeout(10 * time.Second))
	}
	if c.limiter == nil {
		c.limiter = ratelimit.New()
	}
	return c
}

// SetLogger injects the application logger.
func (c *Client) SetLogger(l *applogger.Logger) { c.log = l }

type envelope[T any] struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  T      `json:"result"`
}

type klineResult struct {
	Symbol string     `json:"symbol"`
	List   [][]string `json:"list"`
}

type tickerResult struct {
	List []ticker `json:"list"`
}

type ticker struct {
	Symbol      string `json:"symbol"`
	LastPrice   string `json:"lastPrice"`
	Turnover24h string `json:"turnover24h"`
}

// GetCandles returns up to limit candles for symbol, oldest first. An unknown
// symbol yields an empty slice.
func (c *Client) GetCandles(ctx context.Context, symbol string, tf drepo.Timeframe, limit int) ([]models.Candle, error) {
	interval, ok := tf.BybitInterval()
	if !ok {
		return nil, fmt.Errorf("bybit: unsupported timeframe %q", tf)
	}
	if limit <= 0 || limit > maxKlines {
		limit = maxKlines
	}

	var env envelope[klineResult]
	err := c.get(ctx, klinePath, map[string][]string{
		"category": {c.category},
		"symbol":   {symbol},
		"interval": {interval},
		"limit":    {strconv.Itoa(limit)},
	}, &env)
	if err != nil {
		return nil, fmt.Errorf("get klines %s %s: %w", symbol, tf, err)
	}
	if env.RetCode != 0 {
		if isInvalidSymbol(env.RetCode, env.RetMsg) {
			return nil, nil
		}
		return nil, &APIError{Code: env.RetCode, Msg: env.RetMsg}
	}

	// The API returns newest first.
	out := make([]models.Candle, 0, len(env.Result.List))
	for i := len(env.Result.List) - 1; i >= 0; i-- {
		cd, err := parseKline(env.Result.List[i])
		if err != nil {
			c.warn("skip malformed kline", applogger.String("symbol", symbol), applogger.Error(err))
			continue
		}
		out = append(out, cd)
	}
	return out, nil
}

// Universe returns the most traded symbols of the configured category ending
// in the quote suffix, ordered by 24h turnover descending.
func (c *Client) Universe(ctx context.Context) ([]string, error) {
	var env envelope[tickerResult]
	if err := c.get(ctx, tickersPath, map[string][]string{"category": {c.category}}, &env); err != nil {
		return nil, fmt.Errorf("get tickers: %w", err)
	}
	if env.RetCode != 0 {
		return nil, &APIError{Code: env.RetCode, Msg: env.RetMsg}
	}

	type ranked struct {
		symbol   string
		turnover float64
	}
	rows := make([]ranked, 0, len(env.Result.List))
	for _, t := range env.Result.List {
		if !strings.HasSuffix(t.Symbol, c.quoteSuffix) {
			continue
		}
		to, err := parseNum(t.Turnover24h)
		if err != nil {
			to = 0
		}
		rows = append(rows, ranked{t.Symbol, to})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].turnover > rows[j].turnover })
	if c.maxSymbols > 0 && len(rows) > c.maxSymbols {
		rows = rows[:c.maxSymbols]
	}
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.symbol
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, query map[string][]string, dest interface{}) error {
	if err := c.limiter.Wait(ctx, limiterKey, c.burst, c.rate); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	start := time.Now()
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         c.baseURL + path,
		QueryParams: query,
	}, dest)
	svcmetrics.Observe("bybit"+path, start, err)
	return err
}

// parseKline reads [start, open, high, low, close, volume, turnover].
func parseKline(row []string) (models.Candle, error) {
	if len(row) < 6 {
		return models.Candle{}, fmt.Errorf("kline has %d columns", len(row))
	}
	ts, err := util.ParseUnixMillis(row[0])
	if err != nil {
		return models.Candle{}, fmt.Errorf("start: %w", err)
	}
	var vals [5]float64
	for i := range vals {
		v, err := parseNum(row[i+1])
		if err != nil {
			return models.Candle{}, fmt.Errorf("column %d: %w", i+1, err)
		}
		vals[i] = v
	}
	return models.Candle{
		Timestamp: ts,
		Open:      vals[0],
		High:      vals[1],
		Low:       vals[2],
		Close:     vals[3],
		Volume:    vals[4],
	}, nil
}

func parseNum(s string) (float64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}

func isInvalidSymbol(code int, msg string) bool {
	return code == 10001 && strings.Contains(strings.ToLower(msg), "symbol")
}

func (c *Client) warn(msg string, fields ...applogger.Field) {
	if c.log != nil {
		c.log.Warn(msg, fields...)
	}
}

var _ drepo.MarketData = (*Client)(nil)
