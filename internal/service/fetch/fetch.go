package fetch

import (
	"context"
	"fmt"
	"time"

	"StockPulse/internal/calendar"
	"StockPulse/internal/domain/models"
	domrepo "StockPulse/internal/domain/repository"
	applogger "StockPulse/pkg/logger"
	"StockPulse/pkg/retry"
	"StockPulse/pkg/util"
)

// minHistoryRows is the smallest provider payload considered usable.
// Anything shorter is treated as a truncated response.
const minHistoryRows = 100

// sessionClose is the minute-of-day the trading session ends.
const sessionClose = 15 * 60

type state int

const (
	stateTryStore state = iota
	stateTryPrimary
	stateTrySecondary
	stateFailed
	stateDone
)

func (s state) String() string {
	switch s {
	case stateTryStore:
		return "try_store"
	case stateTryPrimary:
		return "try_primary"
	case stateTrySecondary:
		return "try_secondary"
	case stateFailed:
		return "failed"
	default:
		return "done"
	}
}

// Config holds fetch settings.
type Config struct {
	Epoch         time.Time // start of primary full-history pulls
	TrailingYears int       // secondary lookback window
	Retry         retry.Policy
}

// Service resolves daily bars for a symbol: the local store when it is
// current, otherwise the primary feed, otherwise the secondary feed.
// Every successful provider pull is written back to the store.
type Service struct {
	cfg       Config
	store     domrepo.BarStore
	primary   domrepo.BarProvider
	secondary domrepo.BarProvider
	cal       *calendar.Calendar
	clock     calendar.Clock
	metrics   domrepo.Metrics
	l         *applogger.Logger
}

// New creates a fetch Service. A nil clock defaults to the system clock.
func New(
	cfg Config,
	store domrepo.BarStore,
	primary, secondary domrepo.BarProvider,
	cal *calendar.Calendar,
	clock calendar.Clock,
	metrics domrepo.Metrics,
	l *applogger.Logger,
) *Service {
	if clock == nil {
		clock = calendar.RealClock()
	}
	return &Service{
		cfg:       cfg,
		store:     store,
		primary:   primary,
		secondary: secondary,
		cal:       cal,
		clock:     clock,
		metrics:   metrics,
		l:         l,
	}
}

// Bars resolves the daily history for symbol. Both providers failing
// yields an empty result with SourceNone rather than an error so
// batch callers can keep going.
func (s *Service) Bars(ctx context.Context, symbol string) (*models.FetchResult, error) {
	res := &models.FetchResult{Symbol: symbol, Source: models.SourceNone}

	st := stateTryStore
	for st != stateDone {
		switch st {
		case stateTryStore:
			bars, ok := s.tryStore(ctx, symbol)
			if ok {
				res.Bars, res.Source = bars, models.SourceStore
				s.metrics.RecordFetch("store", "hit")
				st = stateDone
				break
			}
			s.metrics.RecordFetch("store", "stale")
			st = stateTryPrimary

		case stateTryPrimary:
			bars, err := s.tryPrimary(ctx, symbol)
			if err == nil {
				res.Bars, res.Source = bars, models.SourcePrimary
				s.metrics.RecordFetch("primary", "ok")
				st = stateDone
				break
			}
			s.metrics.RecordFetch("primary", "error")
			s.l.Warn("primary fetch failed",
				applogger.String("symbol", symbol),
				applogger.Error(err),
			)
			st = stateTrySecondary

		case stateTrySecondary:
			bars, err := s.trySecondary(ctx, symbol)
			if err == nil {
				res.Bars, res.Source = bars, models.SourceSecondary
				s.metrics.RecordFetch("secondary", "ok")
				st = stateDone
				break
			}
			s.metrics.RecordFetch("secondary", "error")
			s.l.Warn("secondary fetch failed",
				applogger.String("symbol", symbol),
				applogger.Error(err),
			)
			st = stateFailed

		case stateFailed:
			s.l.Error("all bar sources exhausted", applogger.String("symbol", symbol))
			s.metrics.RecordError("fetch_exhausted")
			st = stateDone
		}
	}

	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}

// tryStore returns the stored history when it is current. During a
// trading session today's provisional bar is re-pulled and merged so
// intraday callers see a fresh close.
func (s *Service) tryStore(ctx context.Context, symbol string) ([]models.Bar, bool) {
	latest, found, err := s.store.Latest(ctx, symbol)
	if err != nil || !found {
		return nil, false
	}

	now := s.clock.Now()
	tradingDay, err := s.cal.CurrentTradingDay(ctx, now)
	if err != nil {
		return nil, false
	}
	if !util.SameDay(latest.Date, tradingDay) {
		return nil, false
	}

	switch {
	case s.cal.IsTradingTime(ctx, now):
		// replace today's provisional bar with the live close
		s.refreshToday(ctx, symbol, tradingDay)
	case !beforeClose(now, tradingDay) && latest.UpdateTime.Before(closeTime(tradingDay)):
		// the bar was written intraday and never finalized after
		// close; if it cannot be re-pulled the stored series is
		// incomplete and counts as a miss
		if !s.refreshToday(ctx, symbol, tradingDay) {
			return nil, false
		}
	}

	bars, err := s.store.Query(ctx, symbol, s.cfg.Epoch, tradingDay)
	if err != nil || len(bars) == 0 {
		return nil, false
	}
	return bars, true
}

// refreshToday re-pulls just the current trading day from the primary
// feed and upserts it, reporting whether the stored bar was replaced.
func (s *Service) refreshToday(ctx context.Context, symbol string, day time.Time) bool {
	bars, err := s.primary.FetchDaily(ctx, symbol, day, day)
	if err != nil || len(bars) == 0 {
		return false
	}
	if err := s.store.Upsert(ctx, bars); err != nil {
		s.l.Warn("intraday bar upsert failed",
			applogger.String("symbol", symbol),
			applogger.Error(err),
		)
		return false
	}
	return true
}

func (s *Service) tryPrimary(ctx context.Context, symbol string) ([]models.Bar, error) {
	now := s.clock.Now()
	var bars []models.Bar
	err := s.cfg.Retry.Do(ctx, func(ctx context.Context) error {
		got, err := s.primary.FetchDaily(ctx, symbol, s.cfg.Epoch, now)
		if err != nil {
			return err
		}
		if len(got) < minHistoryRows {
			return retry.Mark(errTruncated(symbol, len(got)))
		}
		bars = got
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.persist(ctx, symbol, bars)
	return bars, nil
}

func (s *Service) trySecondary(ctx context.Context, symbol string) ([]models.Bar, error) {
	now := s.clock.Now()
	from := now.AddDate(-s.cfg.TrailingYears, 0, 0)
	bars, err := s.secondary.FetchDaily(ctx, symbol, from, now)
	if err != nil {
		return nil, err
	}
	if len(bars) < minHistoryRows {
		return nil, errTruncated(symbol, len(bars))
	}
	s.persist(ctx, symbol, bars)
	return bars, nil
}

func (s *Service) persist(ctx context.Context, symbol string, bars []models.Bar) {
	if err := s.store.Upsert(ctx, bars); err != nil {
		s.l.Warn("bar upsert failed",
			applogger.String("symbol", symbol),
			applogger.Int("rows", len(bars)),
			applogger.Error(err),
		)
		s.metrics.RecordError("bar_upsert")
	}
}

func closeTime(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), sessionClose/60, sessionClose%60, 0, 0, day.Location())
}

func beforeClose(now, day time.Time) bool {
	return util.SameDay(now, day) && now.Before(closeTime(day))
}

func errTruncated(symbol string, rows int) error {
	return fmt.Errorf("truncated history for %s: %d rows, need %d", symbol, rows, minHistoryRows)
}
