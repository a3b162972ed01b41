//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"StockPulse/pkg/config"
	"StockPulse/pkg/server"
)

// InitializeApp builds the full application graph from configuration.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideClock,
		ProvideClickHouseClient,
		ProvideBarStore,
		ProvidePredictionStore,
		ProvideBacktestStore,
		ProvideStockStore,
		ProvideCacheStore,
		ProvideMetrics,
		ProvideCalendar,
		ProvidePrimaryProvider,
		ProvideSecondaryProvider,
		ProvideFetchService,
		ProvideKafkaPublisher,
		ProvideSentimentProvider,
		ProvideResultCache,
		ProvidePredictor,
		ProvideBacktestEngine,
		ProvidePredictUsecase,
		ProvideUniverseUsecase,
		ProvideBacktestUsecase,
		ProvideScheduler,
		ProvideApp,
	)
	return nil, nil
}
