package di

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"CoinPull/internal/domain/models"
	"CoinPull/internal/domain/repository"
	domsvc "CoinPull/internal/domain/service"
	"CoinPull/internal/handler/api"
	"CoinPull/internal/handler/ws"
	internalrepo "CoinPull/internal/repository"
	"CoinPull/internal/service/bybit"
	svcmetrics "CoinPull/internal/service/metrics"
	"CoinPull/internal/service/notify"
	"CoinPull/internal/service/report"
	"CoinPull/internal/services/model"
	"CoinPull/internal/usecase"
	"CoinPull/pkg/cache"
	pkgch "CoinPull/pkg/clickhouse"
	"CoinPull/pkg/config"
	xhttp "CoinPull/pkg/http"
	pkgkafka "CoinPull/pkg/kafka"
	applogger "CoinPull/pkg/logger"
	"CoinPull/pkg/metrics"
	pkgpg "CoinPull/pkg/postgres"
	"CoinPull/pkg/queue"
	"CoinPull/pkg/server"
)

const initTimeout = 10 * time.Second

// ProvideKafkaProducer creates a Kafka producer. Returns nil when Kafka is
// disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.Linger),
		pkgkafka.WithWriteTimeout(cfg.Kafka.Producer.WriteTimeout),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideLogger builds the application logger. With Kafka enabled, repeated
// error logs are aggregated and shipped to the errors topic.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, func(), error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	if producer == nil || cfg.Log.ErrorsTopic == "" {
		return l, func() {}, nil
	}
	l.AddCollector(&applogger.CollectionConfig{
		TimeInterval: cfg.Log.FlushEvery,
		Topic:        cfg.Log.ErrorsTopic,
		Publisher:    producer,
	})
	return l, l.RemoveCollector, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() *metrics.Recorder {
	svcmetrics.Register()
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client and applies the signal
// schema. Returns nil when ClickHouse is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, func(), error) {
	if !cfg.ClickHouse.Enabled {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.SignalSchema); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvidePostgresClient opens the pool and migrates the trade and settings
// tables. Returns nil when Postgres is disabled.
func ProvidePostgresClient(cfg *config.Config) (*pkgpg.Client, func(), error) {
	if !cfg.Postgres.Enabled {
		return nil, func() {}, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	client, err := pkgpg.NewClient(ctx,
		pkgpg.WithURL(cfg.Postgres.URL),
		pkgpg.WithPoolLimits(cfg.Postgres.MinConns, cfg.Postgres.MaxConns),
		pkgpg.WithLifetimes(cfg.Postgres.MaxConnLifetime, cfg.Postgres.MaxConnIdleTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres client: %w", err)
	}
	if err := client.Migrate(ctx, internalrepo.PostgresSchema); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("postgres schema: %w", err)
	}
	return client, client.Close, nil
}

// ProvideRedisCache connects to Redis. Returns nil when Redis is disabled.
// The connection is closed through the cache returned by ProvideCache.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideCache returns a Redis-backed layered cache, or an in-process cache
// when Redis is disabled.
func ProvideCache(rc *cache.RedisCache) (cache.Service, func()) {
	if rc == nil {
		mc := cache.NewMemoryCache(cache.WithMemoryMaxSize(10000))
		return mc, func() { _ = mc.Close() }
	}
	lc := cache.NewLayeredCache(rc,
		cache.WithLayeredMemorySize(2000),
		cache.WithLayeredL1TTL(30*time.Second),
	)
	return lc, func() { _ = lc.Close() }
}

// ProvideNotifyQueue returns the durable notification queue, or nil when
// notifications are delivered inline.
func ProvideNotifyQueue(cfg *config.Config, rc *cache.RedisCache, l *applogger.Logger) *queue.RedisQueue {
	if !cfg.Notify.Queue.Enabled || rc == nil {
		return nil
	}
	q := queue.NewRedisQueue(rc.Client(),
		queue.WithWorkers(cfg.Notify.Queue.Workers),
		queue.WithRetry(cfg.Notify.Queue.RetryLimit, cfg.Notify.Queue.RetryDelay),
		queue.WithPrefix(cfg.Redis.Prefix+":notify"),
	)
	q.SetLogger(l)
	return q
}

// ProvideBybitClient creates the rate-limited Bybit REST client.
func ProvideBybitClient(cfg *config.Config, l *applogger.Logger) *bybit.Client {
	c := bybit.NewClient(
		bybit.WithBaseURL(cfg.Bybit.BaseURL),
		bybit.WithCategory(cfg.Bybit.Category),
		bybit.WithUniverse(cfg.Bybit.QuoteSuffix, cfg.Bybit.MaxSymbols),
		bybit.WithRateLimit(cfg.Bybit.RatePerSec, cfg.Bybit.Burst),
		bybit.WithTimeout(cfg.Bybit.Timeout),
	)
	c.SetLogger(l)
	return c
}

// ProvideMarketData fronts the exchange client with the cache.
func ProvideMarketData(client *bybit.Client, c cache.Service, cfg *config.Config, l *applogger.Logger) repository.MarketData {
	md := internalrepo.NewCachedMarketData(client, c, cfg.Bybit.CacheTTL.Universe, cfg.Bybit.CacheTTL.Candles)
	md.SetLogger(l)
	return md
}

// ProvideSignalStore returns the ClickHouse store when available, otherwise a
// bounded in-memory history.
func ProvideSignalStore(ch *pkgch.Client, l *applogger.Logger) repository.SignalStore {
	if ch == nil {
		return internalrepo.NewMemorySignalStore(10000)
	}
	s := internalrepo.NewCHSignalStore(ch)
	s.SetLogger(l)
	return s
}

func ProvideTradeStore(pg *pkgpg.Client) repository.TradeStore {
	if pg == nil {
		return internalrepo.NewMemoryTradeStore()
	}
	return internalrepo.NewPGTradeStore(pg)
}

func ProvideSettingsStore(pg *pkgpg.Client) repository.SettingsStore {
	if pg == nil {
		return internalrepo.NewMemorySettingsStore()
	}
	return internalrepo.NewPGSettingsStore(pg)
}

// ProvideModelStore picks where the classifier artifact lives.
func ProvideModelStore(cfg *config.Config, c cache.Service) repository.ModelStore {
	if cfg.Scorer.ModelStore == "redis" {
		return internalrepo.NewCacheModelStore(c, cfg.Scorer.ModelKey)
	}
	return internalrepo.NewFileModelStore(cfg.Scorer.ModelPath)
}

// ProvideScorer builds the scorer and loads the stored model. With the http
// model store, predictions go to the remote inference service instead.
func ProvideScorer(cfg *config.Config, store repository.ModelStore, m repository.Metrics, l *applogger.Logger) *usecase.Scorer {
	opts := []usecase.ScorerOption{
		usecase.WithDefaults(cfg.Scorer.DefaultScore, cfg.Scorer.DefaultConfidence),
		usecase.WithJitter(cfg.Scorer.JitterMax),
	}
	if cfg.Scorer.Seed != 0 {
		opts = append(opts, usecase.WithRand(rand.New(rand.NewSource(cfg.Scorer.Seed))))
	}
	remote := cfg.Scorer.ModelStore == "http"
	if remote {
		opts = append(opts, usecase.WithClassifier(model.NewHTTPClassifier(cfg.Scorer.RemoteURL, cfg.Scorer.RemoteTimeout)))
	}

	s := usecase.NewScorer(store, opts...)
	s.SetLogger(l)
	s.SetMetrics(m)
	if remote {
		return s
	}

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	if err := s.Reload(ctx); err != nil {
		// a corrupt artifact leaves the fallback scorer in place
		l.Warn("model not loaded", applogger.Error(err))
	}
	return s
}

func ProvideAnalyzer(cfg *config.Config, market repository.MarketData, m repository.Metrics, l *applogger.Logger) (*usecase.Analyzer, error) {
	acfg, err := usecase.AnalyzerConfigFrom(cfg)
	if err != nil {
		return nil, fmt.Errorf("analyzer config: %w", err)
	}
	a, err := usecase.NewAnalyzer(market, acfg)
	if err != nil {
		return nil, fmt.Errorf("analyzer: %w", err)
	}
	a.SetLogger(l)
	a.SetMetrics(m)
	return a, nil
}

// ProvideSignalPublisher returns nil when Kafka is disabled.
func ProvideSignalPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.SignalPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaSignalPublisher(producer, cfg.Kafka.Topic)
}

func ProvideExecutor(trades repository.TradeStore) repository.Executor {
	return internalrepo.NewPaperExecutor(trades)
}

func ProvideHub(l *applogger.Logger) *ws.Hub {
	h := ws.NewHub()
	h.SetLogger(l)
	return h
}

// ProvideNotifier fans notifications out to every configured channel. The
// websocket hub is always attached and always inline; the remote channels go
// through the queue when one is configured.
func ProvideNotifier(cfg *config.Config, hub *ws.Hub, q *queue.RedisQueue, m repository.Metrics, l *applogger.Logger) (*notify.Manager, error) {
	n := &cfg.Notify
	fcm, err := notify.NewFCM(context.Background(), n.FCM.CredentialsPath, n.FCM.Topic)
	if err != nil {
		return nil, fmt.Errorf("fcm notifier: %w", err)
	}
	remote := []domsvc.Notifier{
		notify.NewTelegram(n.Telegram.BaseURL, n.Telegram.BotToken, n.Telegram.ChatID, n.Timeout),
		notify.NewDiscord(n.Discord.WebhookURL, n.Timeout),
		fcm,
	}

	var mgr *notify.Manager
	if q != nil {
		queued := notify.NewQueued(q, remote...)
		for _, job := range queued.Jobs() {
			if err := q.Register(job); err != nil {
				return nil, fmt.Errorf("notify queue: %w", err)
			}
		}
		mgr = notify.NewManager(queued, hub)
	} else {
		mgr = notify.NewManager(append(remote, hub)...)
	}
	mgr.SetLogger(l)
	mgr.SetMetrics(m)
	l.Info("notifiers configured", applogger.Strings("enabled", mgr.Enabled()))
	return mgr, nil
}

func ProvideExporter(cfg *config.Config) *report.Exporter {
	return report.NewExporter(cfg.Report.Dir)
}

func ProvideScanner(
	cfg *config.Config,
	market repository.MarketData,
	analyzer *usecase.Analyzer,
	scorer *usecase.Scorer,
	signals repository.SignalStore,
	publisher repository.SignalPublisher,
	notifier *notify.Manager,
	executor repository.Executor,
	exporter *report.Exporter,
	settings repository.SettingsStore,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.Scanner {
	opts := []usecase.ScannerOption{
		usecase.WithNotifier(notifier),
		usecase.WithExecutor(executor),
		usecase.WithExporter(exporter),
		usecase.WithSettingsStore(settings),
		usecase.WithScanDefaults(models.AutomationSettings{
			Interval: cfg.Scheduler.Interval,
			TopN:     cfg.Scheduler.TopN,
		}),
	}
	if publisher != nil {
		opts = append(opts, usecase.WithPublisher(publisher))
		if cfg.Storage.Mode == "kafka" {
			opts = append(opts, usecase.WithArchivedPublishing())
		}
	}
	s := usecase.NewScanner(market, analyzer, scorer, signals, opts...)
	s.SetLogger(l)
	s.SetMetrics(m)
	return s
}

func ProvideRiskGuard(cfg *config.Config, trades repository.TradeStore) *usecase.RiskGuard {
	return usecase.NewRiskGuard(trades, models.RiskLimits{
		InitialCapital: cfg.Risk.InitialCapital,
		MaxDrawdownPct: cfg.Risk.MaxDrawdownPct,
		MaxDailyTrades: cfg.Risk.MaxDailyTrades,
	})
}

func ProvideScheduler(
	cfg *config.Config,
	scanner *usecase.Scanner,
	risk *usecase.RiskGuard,
	settings repository.SettingsStore,
	l *applogger.Logger,
) *usecase.Scheduler {
	s := usecase.NewScheduler(scanner, risk, settings, usecase.SchedulerConfig{
		CheckEvery:   cfg.Scheduler.CheckEvery,
		RiskCooldown: cfg.Scheduler.RiskCooldown,
		ErrorBackoff: cfg.Scheduler.ErrorBackoff,
	})
	s.SetLogger(l)
	return s
}

func ProvideTrainer(
	cfg *config.Config,
	signals repository.SignalStore,
	trades repository.TradeStore,
	store repository.ModelStore,
	scorer *usecase.Scorer,
	l *applogger.Logger,
) *usecase.Trainer {
	t := usecase.NewTrainer(signals, trades, store, scorer,
		usecase.WithMinSamples(cfg.Scorer.MinSamples),
		usecase.WithHistoryLimit(cfg.Scorer.HistoryLimit),
	)
	t.SetLogger(l)
	return t
}

// ProvideSignalArchiveHandler persists signals consumed from the publish
// topic. Only used in kafka storage mode.
func ProvideSignalArchiveHandler(cfg *config.Config, signals repository.SignalStore, m repository.Metrics) *usecase.SignalArchiveHandler {
	return usecase.NewSignalArchiveHandler(cfg.Kafka.Topic, signals, m)
}

// ProvideKafkaConsumer creates the archive consumer. Returns nil unless
// storage mode is kafka.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || cfg.Storage.Mode != "kafka" {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.SetLogger(l)
	return consumer, nil
}

// ProvideSignalsHandler builds the REST handler. In-process training is not
// offered when confidence comes from the remote model server.
func ProvideSignalsHandler(
	cfg *config.Config,
	analyzer *usecase.Analyzer,
	scorer *usecase.Scorer,
	scanner *usecase.Scanner,
	scheduler *usecase.Scheduler,
	trainer *usecase.Trainer,
	signals repository.SignalStore,
	c cache.Service,
	l *applogger.Logger,
) *api.SignalsHandler {
	if cfg.Scorer.ModelStore == "http" {
		trainer = nil
	}
	h := api.NewSignalsHandler(analyzer, scorer, scanner, scheduler, trainer, signals)
	h.SetCache(c)
	h.SetLogger(l)
	return h
}

// ProvideHTTPServer mounts the REST API and the websocket hub on one server.
func ProvideHTTPServer(cfg *config.Config, signals *api.SignalsHandler, hub *ws.Hub, l *applogger.Logger) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(xhttp.Handlers{signals, hub},
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithLogger(l),
	)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	httpServer *xhttp.Server,
	hub *ws.Hub,
	scheduler *usecase.Scheduler,
	consumer *pkgkafka.Consumer,
	archive *usecase.SignalArchiveHandler,
	notifyQueue *queue.RedisQueue,
	l *applogger.Logger,
) *server.App {
	app := server.New(cfg, l, httpServer, hub, scheduler, consumer, archive)
	if notifyQueue != nil {
		app.SetQueue(notifyQueue)
	}
	return app
}
