package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"StockPulse/internal/backtest"
	"StockPulse/internal/domain/models"
	domrepo "StockPulse/internal/domain/repository"
	"StockPulse/internal/usecase"
	"StockPulse/pkg/cache"
	pkgch "StockPulse/pkg/clickhouse"
	"StockPulse/pkg/config"
	applogger "StockPulse/pkg/logger"
	"StockPulse/pkg/scheduler"
)

// App encapsulates the entire application lifecycle: the background
// job scheduler, the ops HTTP server and infrastructure clients. It
// also exposes the use cases for one-shot command runs.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	sched      *scheduler.Scheduler
	predict    *usecase.PredictUsecase
	backtests  *usecase.BacktestUsecase
	chClient   *pkgch.Client
	publisher  domrepo.Publisher
	cacheStore cache.Store
	echo       *echo.Echo
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	sched *scheduler.Scheduler,
	predict *usecase.PredictUsecase,
	backtests *usecase.BacktestUsecase,
	chClient *pkgch.Client,
	publisher domrepo.Publisher,
	cacheStore cache.Store,
) *App {
	return &App{
		cfg:        cfg,
		l:          l,
		sched:      sched,
		predict:    predict,
		backtests:  backtests,
		chClient:   chClient,
		publisher:  publisher,
		cacheStore: cacheStore,
	}
}

// PredictOnce trains and returns a prediction for one symbol, then
// releases infrastructure clients.
func (a *App) PredictOnce(ctx context.Context, symbol, name string) (*models.Prediction, error) {
	defer a.closeClients()
	return a.predict.Predict(ctx, symbol, name)
}

// BacktestOnce replays one symbol over a period.
func (a *App) BacktestOnce(ctx context.Context, symbol string, start, end time.Time) (*models.BacktestResult, error) {
	defer a.closeClients()
	return a.backtests.RunSingle(ctx, symbol, start, end)
}

// ScanOnce replays the cross-sectional rotation over a board.
func (a *App) ScanOnce(ctx context.Context, params backtest.ScanParams) (*models.ScanResult, error) {
	defer a.closeClients()
	return a.backtests.RunScan(ctx, params)
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.echo = a.buildOpsServer()
	go func() {
		addr := fmt.Sprintf(":%d", a.cfg.Server.Port)
		if err := a.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.l.Error("ops server error", applogger.Error(err))
		}
	}()
	a.l.Info("ops server started", applogger.Int("port", a.cfg.Server.Port))

	if err := a.predict.WarmStart(ctx); err != nil {
		a.l.Warn("prediction warm start skipped", applogger.Error(err))
	}

	a.sched.Start(ctx)
	a.l.Info("scheduler started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.l.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

func (a *App) buildOpsServer() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.GET("/healthz", func(c echo.Context) error {
		hctx, hcancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
		defer hcancel()
		if a.chClient != nil {
			if err := a.chClient.Health(hctx); err != nil {
				return c.JSON(http.StatusServiceUnavailable, map[string]string{
					"status": "degraded",
					"error":  err.Error(),
				})
			}
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	if a.cfg.Metrics.Enabled {
		e.GET(a.cfg.Metrics.Path, echo.WrapHandler(promhttp.Handler()))
	}
	return e
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	a.sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if a.echo != nil {
		if err := a.echo.Shutdown(shutdownCtx); err != nil {
			a.l.Warn("ops server shutdown error", applogger.Error(err))
		}
	}

	a.closeClients()
	a.l.Info("shutdown complete")
	return nil
}

func (a *App) closeClients() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.l.Warn("publisher close error", applogger.Error(err))
		}
	}
	if a.cacheStore != nil {
		if err := a.cacheStore.Close(); err != nil {
			a.l.Warn("cache close error", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.l.Warn("clickhouse close error", applogger.Error(err))
		}
	}
}
