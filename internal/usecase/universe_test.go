package usecase

import (
	"context"
	"testing"
	"time"

	"StockPulse/internal/domain/models"
	"StockPulse/internal/repository"
	"StockPulse/internal/service/resultcache"
	"StockPulse/pkg/cache"
	"StockPulse/pkg/logger"
)

type nopMetrics struct{}

func (nopMetrics) RecordFetch(string, string)        {}
func (nopMetrics) RecordCacheLookup(string, string)  {}
func (nopMetrics) RecordSignal(string)               {}
func (nopMetrics) RecordError(string)                {}
func (nopMetrics) RecordProbability(string, float64) {}
func (nopMetrics) RecordLatency(string, float64)     {}

func TestFilterUniverse(t *testing.T) {
	raw := []models.Stock{
		{Symbol: "600000", Name: "浦发银行"},
		{Symbol: "000001", Name: "平安银行"},
		{Symbol: "300750", Name: "宁德时代"},
		{Symbol: "688981", Name: "中芯国际"},
		{Symbol: "600001", Name: "ST某某"},      // special treatment
		{Symbol: "600002", Name: "某某退"},       // delisting
		{Symbol: "900901", Name: "云赛B股"},      // B share code range
		{Symbol: "600003", Name: "某某B"},       // B share name
		{Symbol: "12345", Name: "bad code"},   // five digits
		{Symbol: "1234567", Name: "bad code"}, // seven digits
	}
	got := FilterUniverse(raw)
	if len(got) != 4 {
		t.Fatalf("kept %d symbols, want 4: %+v", len(got), got)
	}

	boards := map[string]models.Board{}
	for _, st := range got {
		boards[st.Symbol] = st.Board
	}
	if boards["688981"] != models.BoardSTAR {
		t.Errorf("688981 board = %s, want star", boards["688981"])
	}
	if boards["300750"] != models.BoardChiNext {
		t.Errorf("300750 board = %s, want chinext", boards["300750"])
	}
	if boards["600000"] != models.BoardMain {
		t.Errorf("600000 board = %s, want main", boards["600000"])
	}
}

type fakeUniverseProvider struct {
	stocks []models.Stock
	calls  int
}

func (f *fakeUniverseProvider) FetchUniverse(ctx context.Context) ([]models.Stock, error) {
	f.calls++
	return f.stocks, nil
}

func TestUniverseRefreshAndList(t *testing.T) {
	ctx := context.Background()
	provider := &fakeUniverseProvider{stocks: []models.Stock{
		{Symbol: "600000", Name: "浦发银行"},
		{Symbol: "300750", Name: "宁德时代"},
		{Symbol: "600001", Name: "ST某某"},
	}}
	store := repository.NewMemoryStockStore()
	rc := resultcache.New(cache.NewMemoryStore(), nil, nopMetrics{}, logger.Nop())
	u := NewUniverseUsecase(provider, store, rc, time.Hour, logger.Nop())

	if err := u.Refresh(ctx); err != nil {
		t.Fatal(err)
	}

	all, err := u.List(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("universe size = %d, want 2 after filtering", len(all))
	}

	chinext, err := u.List(ctx, models.BoardChiNext)
	if err != nil {
		t.Fatal(err)
	}
	if len(chinext) != 1 || chinext[0].Symbol != "300750" {
		t.Errorf("chinext list = %+v, want just 300750", chinext)
	}
}

func TestUniverseRefreshKeepsOldSetOnEmptyPull(t *testing.T) {
	ctx := context.Background()
	provider := &fakeUniverseProvider{stocks: []models.Stock{
		{Symbol: "600000", Name: "浦发银行"},
	}}
	store := repository.NewMemoryStockStore()
	rc := resultcache.New(cache.NewMemoryStore(), nil, nopMetrics{}, logger.Nop())
	u := NewUniverseUsecase(provider, store, rc, time.Hour, logger.Nop())

	if err := u.Refresh(ctx); err != nil {
		t.Fatal(err)
	}

	// a later pull that filters down to nothing must not wipe the store
	provider.stocks = []models.Stock{{Symbol: "600001", Name: "ST某某"}}
	if err := u.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	kept, err := store.List(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(kept) != 1 || kept[0].Symbol != "600000" {
		t.Errorf("store after empty refresh = %+v, want previous set", kept)
	}
}
