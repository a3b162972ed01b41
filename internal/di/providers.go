package di

import (
	"context"
	"fmt"
	"time"

	"StockPulse/internal/backtest"
	"StockPulse/internal/calendar"
	"StockPulse/internal/domain/models"
	domrepo "StockPulse/internal/domain/repository"
	"StockPulse/internal/predictor"
	internalrepo "StockPulse/internal/repository"
	"StockPulse/internal/service/fetch"
	"StockPulse/internal/service/provider"
	"StockPulse/internal/service/ratelimit"
	"StockPulse/internal/service/resultcache"
	"StockPulse/internal/service/sentiment"
	"StockPulse/internal/usecase"
	"StockPulse/pkg/cache"
	pkgch "StockPulse/pkg/clickhouse"
	"StockPulse/pkg/config"
	pkgkafka "StockPulse/pkg/kafka"
	applogger "StockPulse/pkg/logger"
	"StockPulse/pkg/metrics"
	"StockPulse/pkg/retry"
	"StockPulse/pkg/scheduler"
	"StockPulse/pkg/server"
	"StockPulse/pkg/util"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideClock supplies the system clock.
func ProvideClock() calendar.Clock {
	return calendar.RealClock()
}

// ProvideClickHouseClient creates a ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
		pkgch.WithFinalReads(true),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideBarStore creates the bar store and ensures its schema.
func ProvideBarStore(client *pkgch.Client, l *applogger.Logger) (domrepo.BarStore, error) {
	store := internalrepo.NewCHBarStore(client, l)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("bar store schema: %w", err)
	}
	return store, nil
}

// ProvidePredictionStore creates the prediction store.
func ProvidePredictionStore(client *pkgch.Client, l *applogger.Logger) domrepo.PredictionStore {
	return internalrepo.NewCHPredictionStore(client, l)
}

// ProvideBacktestStore creates the backtest result store.
func ProvideBacktestStore(client *pkgch.Client, l *applogger.Logger) domrepo.BacktestStore {
	return internalrepo.NewCHBacktestStore(client, l)
}

// ProvideStockStore creates the universe store.
func ProvideStockStore(client *pkgch.Client, l *applogger.Logger) domrepo.StockStore {
	return internalrepo.NewCHStockStore(client, l)
}

// ProvideCacheStore selects the durable cache backend.
func ProvideCacheStore(cfg *config.Config) (cache.Store, error) {
	switch cfg.Cache.Backend {
	case "redis":
		return cache.NewRedisStore(cfg.Cache.Redis.Addr, cfg.Cache.Redis.Password, cfg.Cache.Redis.DB)
	case "memory":
		return cache.NewMemoryStore(), nil
	default:
		return cache.NewFileStore(cfg.Cache.Dir)
	}
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideCalendar creates the trading calendar.
func ProvideCalendar(cfg *config.Config, store cache.Store, clock calendar.Clock, l *applogger.Logger) *calendar.Calendar {
	source := provider.NewHTTPCalendarSource(cfg.Calendar.SourceURL, 10*time.Second)
	return calendar.New(calendar.Config{
		StartYear:  cfg.Calendar.StartYear,
		EndYear:    cfg.Calendar.EndYear,
		RefreshTTL: cfg.Calendar.RefreshTTL,
	}, source, store, clock, l)
}

// ProvidePrimaryProvider creates the primary daily-bar feed client.
func ProvidePrimaryProvider(cfg *config.Config, l *applogger.Logger) *provider.PrimaryClient {
	return provider.NewPrimaryClient(provider.PrimaryConfig{
		BaseURL:    cfg.Primary.BaseURL,
		Timeout:    cfg.Primary.Timeout,
		RatePerSec: cfg.Primary.RatePerSec,
		RateBurst:  cfg.Primary.RateBurst,
	}, ratelimit.New(), l)
}

// ProvideSecondaryProvider creates the fallback feed gateway.
func ProvideSecondaryProvider(cfg *config.Config, l *applogger.Logger) *provider.SecondaryGateway {
	return provider.NewSecondaryGateway(provider.SecondaryConfig{
		GatewayURL:     cfg.Secondary.GatewayURL,
		User:           cfg.Secondary.User,
		Password:       cfg.Secondary.Password,
		ReconnectDelay: cfg.Secondary.ReconnectDelay,
	}, l)
}

// ProvideFetchService assembles the bar acquisition service.
func ProvideFetchService(
	cfg *config.Config,
	store domrepo.BarStore,
	primary *provider.PrimaryClient,
	secondary *provider.SecondaryGateway,
	cal *calendar.Calendar,
	clock calendar.Clock,
	m domrepo.Metrics,
	l *applogger.Logger,
) *fetch.Service {
	epoch := util.ParseDateDefault(cfg.Primary.EpochDate, time.Date(2010, 1, 1, 0, 0, 0, 0, time.Local))
	return fetch.New(fetch.Config{
		Epoch:         epoch,
		TrailingYears: cfg.Secondary.TrailingYears,
		Retry: retry.Policy{
			MaxAttempts:    cfg.Primary.MaxAttempts,
			Delay:          cfg.Primary.RetryDelay,
			AttemptTimeout: cfg.Primary.Timeout,
			Backoff:        2,
		},
	}, store, primary, secondary, cal, clock, m, l)
}

// ProvideKafkaPublisher creates the signal publisher, or a no-op one
// when Kafka is disabled.
func ProvideKafkaPublisher(cfg *config.Config) (domrepo.Publisher, error) {
	if !cfg.Kafka.Enabled || len(cfg.Kafka.Brokers) == 0 {
		return internalrepo.NopPublisher{}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers...),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithWriteTimeout(cfg.Kafka.WriteTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic), nil
}

// ProvideSentimentProvider creates the sentiment client.
func ProvideSentimentProvider(cfg *config.Config, l *applogger.Logger) domrepo.SentimentProvider {
	return sentiment.New(cfg.Sentiment.BaseURL, cfg.Sentiment.Timeout, l)
}

// ProvideResultCache creates the parameter-fingerprint result cache.
func ProvideResultCache(store cache.Store, clock calendar.Clock, m domrepo.Metrics, l *applogger.Logger) *resultcache.Service {
	return resultcache.New(store, clock, m, l)
}

// ProvidePredictor creates the per-request walk-forward predictor.
func ProvidePredictor(
	cfg *config.Config,
	fetcher *fetch.Service,
	cal *calendar.Calendar,
	sent domrepo.SentimentProvider,
	preds domrepo.PredictionStore,
	publisher domrepo.Publisher,
	m domrepo.Metrics,
	clock calendar.Clock,
	l *applogger.Logger,
) *predictor.Predictor {
	return predictor.New(predictor.Config{
		TrainWindow: cfg.Predict.TrainWindow,
	}, fetcher, cal, sent, preds, publisher, m, clock, l)
}

// ProvideBacktestEngine creates the backtest engine.
func ProvideBacktestEngine(
	cfg *config.Config,
	fetcher *fetch.Service,
	store domrepo.BacktestStore,
	m domrepo.Metrics,
	l *applogger.Logger,
) *backtest.Engine {
	return backtest.NewEngine(backtest.Config{
		InitialCapital:  cfg.Backtest.InitialCapital,
		TransactionCost: cfg.Backtest.TransactionCost,
	}, fetcher, store, m, l)
}

// ProvidePredictUsecase creates the cached prediction use case.
func ProvidePredictUsecase(
	cfg *config.Config,
	pred *predictor.Predictor,
	preds domrepo.PredictionStore,
	rc *resultcache.Service,
	cal *calendar.Calendar,
	clock calendar.Clock,
	l *applogger.Logger,
) *usecase.PredictUsecase {
	return usecase.NewPredictUsecase(pred, preds, rc, cal, clock, cfg.Cache.PredictionTTL, l)
}

// ProvideUniverseUsecase creates the universe use case.
func ProvideUniverseUsecase(
	cfg *config.Config,
	primary *provider.PrimaryClient,
	store domrepo.StockStore,
	rc *resultcache.Service,
	l *applogger.Logger,
) *usecase.UniverseUsecase {
	return usecase.NewUniverseUsecase(primary, store, rc, cfg.Cache.UniverseTTL, l)
}

// ProvideBacktestUsecase creates the cached backtest use case.
func ProvideBacktestUsecase(
	cfg *config.Config,
	engine *backtest.Engine,
	universe *usecase.UniverseUsecase,
	rc *resultcache.Service,
) *usecase.BacktestUsecase {
	return usecase.NewBacktestUsecase(engine, universe, rc, cfg.Cache.BacktestTTL)
}

// ProvideScheduler assembles the background scheduler with all jobs.
func ProvideScheduler(
	cfg *config.Config,
	universe *usecase.UniverseUsecase,
	predict *usecase.PredictUsecase,
	cal *calendar.Calendar,
	barStore domrepo.BarStore,
	clock calendar.Clock,
	l *applogger.Logger,
) *scheduler.Scheduler {
	watched := make([]models.Stock, 0, len(cfg.Predict.WatchList))
	for _, w := range cfg.Predict.WatchList {
		watched = append(watched, models.Stock{Symbol: w.Symbol, Name: w.Name})
	}

	s := scheduler.New(l, scheduler.RealClock())
	s.Register(
		usecase.NewCalendarRefreshJob(cal, cfg.Scheduler.CalendarInterval),
		usecase.NewUniverseRefreshJob(universe, cfg.Scheduler.UniverseInterval),
		usecase.NewWatchListPredictJob(predict, cal, clock, watched, cfg.Scheduler.PredictInterval, l),
		usecase.NewRetentionJob(barStore, clock, cfg.Retention.KeepDays, 24*time.Hour, l),
	)
	return s
}

// ProvideApp wires the application shell.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	sched *scheduler.Scheduler,
	predict *usecase.PredictUsecase,
	backtests *usecase.BacktestUsecase,
	client *pkgch.Client,
	publisher domrepo.Publisher,
	cacheStore cache.Store,
) *server.App {
	return server.New(cfg, l, sched, predict, backtests, client, publisher, cacheStore)
}
