package usecase

import (
	"context"
	"time"

	"StockPulse/internal/calendar"
	"StockPulse/internal/domain/models"
	domrepo "StockPulse/internal/domain/repository"
	applogger "StockPulse/pkg/logger"
)

// UniverseRefreshJob periodically re-pulls the tradable universe.
type UniverseRefreshJob struct {
	universe *UniverseUsecase
	interval time.Duration
}

func NewUniverseRefreshJob(universe *UniverseUsecase, interval time.Duration) *UniverseRefreshJob {
	return &UniverseRefreshJob{universe: universe, interval: interval}
}

func (j *UniverseRefreshJob) Name() string            { return "universe_refresh" }
func (j *UniverseRefreshJob) Interval() time.Duration { return j.interval }

func (j *UniverseRefreshJob) Run(ctx context.Context) error {
	return j.universe.Refresh(ctx)
}

// CalendarRefreshJob keeps the trading calendar warm. The calendar
// itself skips the upstream call while its cached list is fresh.
type CalendarRefreshJob struct {
	cal      *calendar.Calendar
	interval time.Duration
}

func NewCalendarRefreshJob(cal *calendar.Calendar, interval time.Duration) *CalendarRefreshJob {
	return &CalendarRefreshJob{cal: cal, interval: interval}
}

func (j *CalendarRefreshJob) Name() string            { return "calendar_refresh" }
func (j *CalendarRefreshJob) Interval() time.Duration { return j.interval }

func (j *CalendarRefreshJob) Run(ctx context.Context) error {
	return j.cal.Refresh(ctx)
}

// WatchListPredictJob trains predictions for the configured watch list
// in the window right after the close, on trading days only. The
// result cache makes repeated in-window runs free.
type WatchListPredictJob struct {
	predict  *PredictUsecase
	cal      *calendar.Calendar
	clock    calendar.Clock
	watched  []models.Stock
	interval time.Duration
	l        *applogger.Logger
}

func NewWatchListPredictJob(
	predict *PredictUsecase,
	cal *calendar.Calendar,
	clock calendar.Clock,
	watched []models.Stock,
	interval time.Duration,
	l *applogger.Logger,
) *WatchListPredictJob {
	if clock == nil {
		clock = calendar.RealClock()
	}
	return &WatchListPredictJob{
		predict:  predict,
		cal:      cal,
		clock:    clock,
		watched:  watched,
		interval: interval,
		l:        l,
	}
}

func (j *WatchListPredictJob) Name() string            { return "watch_list_predict" }
func (j *WatchListPredictJob) Interval() time.Duration { return j.interval }

func (j *WatchListPredictJob) Run(ctx context.Context) error {
	if len(j.watched) == 0 {
		return nil
	}
	now := j.clock.Now()
	if !j.inWindow(ctx, now) {
		if next, err := j.cal.NextTradingHoursStart(ctx, now); err == nil {
			j.l.Debug("outside prediction window", applogger.Any("next_session", next))
		}
		return nil
	}
	preds := j.predict.PredictBatch(ctx, j.watched)
	j.l.Info("watch list predictions refreshed",
		applogger.Int("requested", len(j.watched)),
		applogger.Int("produced", len(preds)),
	)
	return nil
}

// inWindow is true on trading days between 15:00 and 16:00 local time,
// after the close has finalized the daily bar.
func (j *WatchListPredictJob) inWindow(ctx context.Context, now time.Time) bool {
	if !j.cal.IsTradingDay(ctx, now) {
		return false
	}
	mins := now.Hour()*60 + now.Minute()
	return mins >= 15*60 && mins < 16*60
}

// RetentionJob prunes bars beyond the retention horizon.
type RetentionJob struct {
	store    domrepo.BarStore
	clock    calendar.Clock
	keepDays int
	interval time.Duration
	l        *applogger.Logger
}

func NewRetentionJob(store domrepo.BarStore, clock calendar.Clock, keepDays int, interval time.Duration, l *applogger.Logger) *RetentionJob {
	if clock == nil {
		clock = calendar.RealClock()
	}
	return &RetentionJob{store: store, clock: clock, keepDays: keepDays, interval: interval, l: l}
}

func (j *RetentionJob) Name() string            { return "bar_retention" }
func (j *RetentionJob) Interval() time.Duration { return j.interval }

func (j *RetentionJob) Run(ctx context.Context) error {
	cutoff := j.clock.Now().AddDate(0, 0, -j.keepDays)
	return j.store.DeleteOlderThan(ctx, cutoff)
}
