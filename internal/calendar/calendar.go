package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"StockPulse/pkg/cache"
	"StockPulse/pkg/logger"
	"StockPulse/pkg/util"
)

const cacheKey = "calendar:days"

// Clock abstracts the current time for deterministic tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// RealClock returns a Clock backed by the system time.
func RealClock() Clock { return realClock{} }

// Source fetches the official trading-day list for a year range.
type Source interface {
	FetchTradingDays(ctx context.Context, startYear, endYear int) ([]time.Time, error)
}

// Config holds calendar settings.
type Config struct {
	StartYear  int
	EndYear    int
	RefreshTTL time.Duration
}

// Calendar answers trading-day queries against a cached day list.
// When the source fails and no cached list exists it falls back to
// plain weekdays so the rest of the pipeline keeps working.
type Calendar struct {
	cfg    Config
	source Source
	store  cache.Store
	clock  Clock
	log    *logger.Logger

	mu        sync.RWMutex
	days      []time.Time
	daySet    map[string]struct{}
	fetchedAt time.Time
	fallback  bool
}

type persisted struct {
	Days      []string  `json:"days"`
	FetchedAt time.Time `json:"fetched_at"`
}

// New creates a Calendar. The store may be nil to disable persistence;
// a nil clock defaults to the system clock.
func New(cfg Config, source Source, store cache.Store, clock Clock, log *logger.Logger) *Calendar {
	if clock == nil {
		clock = RealClock()
	}
	return &Calendar{
		cfg:    cfg,
		source: source,
		store:  store,
		clock:  clock,
		log:    log,
	}
}

// Refresh loads the trading-day list, preferring a fresh cached copy,
// then the source, then plain weekdays.
func (c *Calendar) Refresh(ctx context.Context) error {
	if c.loadCached(ctx) {
		return nil
	}

	days, err := c.source.FetchTradingDays(ctx, c.cfg.StartYear, c.cfg.EndYear)
	if err == nil && len(days) > 0 {
		c.install(days, false)
		c.persist(ctx, days)
		return nil
	}
	if err != nil {
		c.log.Warn("trading calendar source failed, using weekday fallback", logger.Error(err))
	}

	c.install(c.weekdays(), true)
	return nil
}

func (c *Calendar) loadCached(ctx context.Context) bool {
	if c.store == nil {
		return false
	}
	raw, err := c.store.GetBytes(ctx, cacheKey)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			c.log.Warn("calendar cache read failed", logger.Error(err))
		}
		return false
	}
	var p persisted
	if err := json.Unmarshal(raw, &p); err != nil {
		return false
	}
	if c.clock.Now().Sub(p.FetchedAt) > c.cfg.RefreshTTL {
		return false
	}
	days := make([]time.Time, 0, len(p.Days))
	for _, s := range p.Days {
		if t, ok := util.ParseDate(s); ok {
			days = append(days, t)
		}
	}
	if len(days) == 0 {
		return false
	}
	c.installAt(days, false, p.FetchedAt)
	return true
}

func (c *Calendar) persist(ctx context.Context, days []time.Time) {
	if c.store == nil {
		return
	}
	p := persisted{FetchedAt: c.clock.Now(), Days: make([]string, len(days))}
	for i, d := range days {
		p.Days[i] = util.FormatDate(d)
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := c.store.SetBytes(ctx, cacheKey, raw, c.cfg.RefreshTTL); err != nil {
		c.log.Warn("calendar cache write failed", logger.Error(err))
	}
}

func (c *Calendar) install(days []time.Time, fallback bool) {
	c.installAt(days, fallback, c.clock.Now())
}

func (c *Calendar) installAt(days []time.Time, fallback bool, fetchedAt time.Time) {
	sorted := make([]time.Time, len(days))
	for i, d := range days {
		sorted[i] = util.TruncateToDay(d)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	set := make(map[string]struct{}, len(sorted))
	for _, d := range sorted {
		set[util.FormatDate(d)] = struct{}{}
	}

	c.mu.Lock()
	c.days = sorted
	c.daySet = set
	c.fetchedAt = fetchedAt
	c.fallback = fallback
	c.mu.Unlock()
}

func (c *Calendar) weekdays() []time.Time {
	var days []time.Time
	start := time.Date(c.cfg.StartYear, 1, 1, 0, 0, 0, 0, time.Local)
	end := time.Date(c.cfg.EndYear, 12, 31, 0, 0, 0, 0, time.Local)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			days = append(days, d)
		}
	}
	return days
}

// ensure refreshes the day list when it is missing or stale.
func (c *Calendar) ensure(ctx context.Context) {
	c.mu.RLock()
	empty := len(c.days) == 0
	stale := c.clock.Now().Sub(c.fetchedAt) > c.cfg.RefreshTTL
	c.mu.RUnlock()
	if empty || stale {
		_ = c.Refresh(ctx)
	}
}

// IsFallback reports whether the weekday approximation is in use.
func (c *Calendar) IsFallback() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fallback
}

// IsTradingDay reports whether t falls on a trading day.
func (c *Calendar) IsTradingDay(ctx context.Context, t time.Time) bool {
	c.ensure(ctx)
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.daySet[util.FormatDate(t)]
	return ok
}

// CurrentTradingDay returns t's day when it is a trading day, otherwise
// the nearest previous trading day.
func (c *Calendar) CurrentTradingDay(ctx context.Context, t time.Time) (time.Time, error) {
	c.ensure(ctx)
	day := util.TruncateToDay(t)
	if c.IsTradingDay(ctx, day) {
		return day, nil
	}
	return c.PreviousTradingDay(ctx, day, 1)
}

// NextTradingDay returns the n-th trading day strictly after t.
func (c *Calendar) NextTradingDay(ctx context.Context, t time.Time, n int) (time.Time, error) {
	c.ensure(ctx)
	day := util.TruncateToDay(t)

	c.mu.RLock()
	defer c.mu.RUnlock()
	idx := sort.Search(len(c.days), func(i int) bool { return c.days[i].After(day) })
	target := idx + n - 1
	if target < 0 || target >= len(c.days) {
		return time.Time{}, fmt.Errorf("no trading day %d steps after %s", n, util.FormatDate(day))
	}
	return c.days[target], nil
}

// PreviousTradingDay returns the n-th trading day strictly before t.
func (c *Calendar) PreviousTradingDay(ctx context.Context, t time.Time, n int) (time.Time, error) {
	c.ensure(ctx)
	day := util.TruncateToDay(t)

	c.mu.RLock()
	defer c.mu.RUnlock()
	idx := sort.Search(len(c.days), func(i int) bool { return !c.days[i].Before(day) })
	target := idx - n
	if target < 0 || target >= len(c.days) {
		return time.Time{}, fmt.Errorf("no trading day %d steps before %s", n, util.FormatDate(day))
	}
	return c.days[target], nil
}

// Range returns all trading days in [from, to] in ascending order.
func (c *Calendar) Range(ctx context.Context, from, to time.Time) []time.Time {
	c.ensure(ctx)
	from = util.TruncateToDay(from)
	to = util.TruncateToDay(to)

	c.mu.RLock()
	defer c.mu.RUnlock()
	lo := sort.Search(len(c.days), func(i int) bool { return !c.days[i].Before(from) })
	hi := sort.Search(len(c.days), func(i int) bool { return c.days[i].After(to) })
	out := make([]time.Time, hi-lo)
	copy(out, c.days[lo:hi])
	return out
}

// NextTradingHoursStart returns the next session open at or after t:
// 09:30 of t's day when that open is still ahead, otherwise 09:30 of
// the next trading day.
func (c *Calendar) NextTradingHoursStart(ctx context.Context, t time.Time) (time.Time, error) {
	mins := t.Hour()*60 + t.Minute()
	if c.IsTradingDay(ctx, t) && mins < 9*60+30 {
		return time.Date(t.Year(), t.Month(), t.Day(), 9, 30, 0, 0, t.Location()), nil
	}
	next, err := c.NextTradingDay(ctx, t, 1)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(next.Year(), next.Month(), next.Day(), 9, 30, 0, 0, next.Location()), nil
}

// IsTradingTime reports whether t is inside a trading session on a
// trading day. Sessions are 09:30-11:30 and 13:00-15:00 local time.
func (c *Calendar) IsTradingTime(ctx context.Context, t time.Time) bool {
	if !c.IsTradingDay(ctx, t) {
		return false
	}
	mins := t.Hour()*60 + t.Minute()
	morning := mins >= 9*60+30 && mins <= 11*60+30
	afternoon := mins >= 13*60 && mins <= 15*60
	return morning || afternoon
}
