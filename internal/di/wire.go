//go:build wireinject
// +build wireinject

package di

import (
	"CoinPull/internal/domain/repository"
	"CoinPull/internal/usecase"
	"CoinPull/pkg/config"
	"CoinPull/pkg/metrics"
	"CoinPull/pkg/server"

	"github.com/google/wire"
)

var infraSet = wire.NewSet(
	ProvideKafkaProducer,
	ProvideLogger,
	ProvideMetrics,
	wire.Bind(new(repository.Metrics), new(*metrics.Recorder)),
	ProvideClickHouseClient,
	ProvidePostgresClient,
	ProvideRedisCache,
	ProvideCache,
)

var storeSet = wire.NewSet(
	ProvideSignalStore,
	ProvideTradeStore,
	ProvideModelStore,
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		infraSet,
		storeSet,

		// Market data
		ProvideBybitClient,
		ProvideMarketData,
		ProvideSettingsStore,

		// Output channels
		ProvideSignalPublisher,
		ProvideExecutor,
		ProvideHub,
		ProvideNotifyQueue,
		ProvideNotifier,
		ProvideExporter,

		// Use cases
		ProvideAnalyzer,
		ProvideScorer,
		ProvideScanner,
		ProvideRiskGuard,
		ProvideScheduler,
		ProvideTrainer,
		ProvideSignalArchiveHandler,
		ProvideKafkaConsumer,

		// Application server
		ProvideSignalsHandler,
		ProvideHTTPServer,
		ProvideApp,
	)
	return nil, nil, nil
}

// InitializeTrainer wires only what offline training needs.
func InitializeTrainer(cfg *config.Config) (*usecase.Trainer, func(), error) {
	wire.Build(
		infraSet,
		storeSet,
		ProvideScorer,
		ProvideTrainer,
	)
	return nil, nil, nil
}
