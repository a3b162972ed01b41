package usecase

import (
	"context"
	"regexp"
	"strings"
	"time"

	"StockPulse/internal/domain/models"
	domrepo "StockPulse/internal/domain/repository"
	"StockPulse/internal/service/resultcache"
	applogger "StockPulse/pkg/logger"
)

// symbolPattern keeps exchange-listed common stock: Shanghai and
// Shenzhen six-digit codes starting with 0, 3 or 6.
var symbolPattern = regexp.MustCompile(`^[036]\d{5}$`)

// UniverseUsecase maintains the tradable stock universe.
type UniverseUsecase struct {
	provider domrepo.UniverseProvider
	store    domrepo.StockStore
	cache    *resultcache.Service
	ttl      time.Duration
	l        *applogger.Logger
}

func NewUniverseUsecase(
	provider domrepo.UniverseProvider,
	store domrepo.StockStore,
	cache *resultcache.Service,
	ttl time.Duration,
	l *applogger.Logger,
) *UniverseUsecase {
	return &UniverseUsecase{provider: provider, store: store, cache: cache, ttl: ttl, l: l}
}

// Refresh pulls the full listing from the provider, filters it down to
// investable names and replaces the stored universe.
func (u *UniverseUsecase) Refresh(ctx context.Context) error {
	raw, err := u.provider.FetchUniverse(ctx)
	if err != nil {
		return err
	}
	stocks := FilterUniverse(raw)
	if len(stocks) == 0 {
		u.l.Warn("universe refresh produced no symbols, keeping previous set")
		return nil
	}
	if err := u.store.Replace(ctx, stocks); err != nil {
		return err
	}
	u.l.Info("universe refreshed",
		applogger.Int("raw", len(raw)),
		applogger.Int("kept", len(stocks)),
	)
	return nil
}

type universeKey struct {
	Board string `json:"board"`
}

// List returns the stored universe for a board, cached briefly since
// listings change rarely.
func (u *UniverseUsecase) List(ctx context.Context, board models.Board) ([]models.Stock, error) {
	var out []models.Stock
	err := u.cache.GetOrCompute(ctx, "universe", universeKey{Board: string(board)}, u.ttl, &out,
		func(ctx context.Context) (interface{}, error) {
			return u.store.List(ctx, board)
		})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FilterUniverse drops special-treatment, delisting and B-share names
// and anything that is not a regular six-digit listing.
func FilterUniverse(raw []models.Stock) []models.Stock {
	out := make([]models.Stock, 0, len(raw))
	for _, st := range raw {
		if !symbolPattern.MatchString(st.Symbol) {
			continue
		}
		if excludedName(st.Name) {
			continue
		}
		st.Board = models.BoardFor(st.Symbol)
		out = append(out, st)
	}
	return out
}

func excludedName(name string) bool {
	if strings.Contains(name, "ST") {
		return true
	}
	if strings.Contains(name, "退") {
		return true
	}
	if strings.Contains(name, "B") {
		return true
	}
	return false
}
