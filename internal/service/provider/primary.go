package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"time"

	"StockPulse/internal/domain/models"
	"StockPulse/internal/service/ratelimit"
	xhttp "StockPulse/pkg/http"
	applogger "StockPulse/pkg/logger"
	"StockPulse/pkg/retry"
	"StockPulse/pkg/util"
)

// sharesPerLot converts upstream lot counts to share counts.
const sharesPerLot = 100

// PrimaryClient fetches daily bars and the listing universe from the
// primary REST feed.
type PrimaryClient struct {
	baseURL string
	http    *xhttp.Client
	limiter *ratelimit.Limiter
	rate    float64
	burst   float64
	l       *applogger.Logger
}

// PrimaryConfig holds primary feed settings.
type PrimaryConfig struct {
	BaseURL    string
	Timeout    time.Duration
	RatePerSec float64
	RateBurst  float64
}

// NewPrimaryClient creates a primary feed client.
func NewPrimaryClient(cfg PrimaryConfig, limiter *ratelimit.Limiter, l *applogger.Logger) *PrimaryClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &PrimaryClient{
		baseURL: cfg.BaseURL,
		http: xhttp.NewClient(
			xhttp.WithTimeout(timeout),
			xhttp.WithUserAgent("stockpulse/1.0"),
		),
		limiter: limiter,
		rate:    cfg.RatePerSec,
		burst:   cfg.RateBurst,
		l:       l,
	}
}

func (c *PrimaryClient) Name() string { return "primary" }

type klineEnvelope struct {
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Data    []klineRow `json:"data"`
}

type klineRow struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"` // lots
}

// FetchDaily pulls daily bars for [from, to]. Volumes arrive in lots
// and are converted to shares; invalid rows are dropped.
func (c *PrimaryClient) FetchDaily(ctx context.Context, symbol string, from, to time.Time) ([]models.Bar, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	var env klineEnvelope
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + "/api/kline/daily",
		QueryParams: map[string][]string{
			"symbol": {symbol},
			"start":  {from.Format(util.CompactDateLayout)},
			"end":    {to.Format(util.CompactDateLayout)},
		},
	}, &env)
	if err != nil {
		return nil, markTransport(fmt.Errorf("primary kline %s: %w", symbol, err))
	}
	if env.Code != 0 {
		return nil, fmt.Errorf("primary kline %s: upstream code %d: %s", symbol, env.Code, env.Message)
	}

	now := time.Now()
	bars := make([]models.Bar, 0, len(env.Data))
	for _, r := range env.Data {
		d, ok := util.ParseDate(r.Date)
		if !ok {
			continue
		}
		bars = append(bars, models.Bar{
			Symbol:     symbol,
			Date:       d,
			Open:       r.Open,
			High:       r.High,
			Low:        r.Low,
			Close:      r.Close,
			Volume:     r.Volume * sharesPerLot,
			UpdateTime: now,
		})
	}
	bars = filterValid(bars)
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })

	c.l.Debug("primary kline fetched",
		applogger.String("symbol", symbol),
		applogger.Int("rows", len(bars)),
	)
	return bars, nil
}

type universeEnvelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    []struct {
		Code string `json:"code"`
		Name string `json:"name"`
	} `json:"data"`
}

// FetchUniverse lists all symbols known to the primary feed.
func (c *PrimaryClient) FetchUniverse(ctx context.Context) ([]models.Stock, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	var env universeEnvelope
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + "/api/stock/list",
	}, &env)
	if err != nil {
		return nil, markTransport(fmt.Errorf("primary universe: %w", err))
	}
	if env.Code != 0 {
		return nil, fmt.Errorf("primary universe: upstream code %d: %s", env.Code, env.Message)
	}

	stocks := make([]models.Stock, 0, len(env.Data))
	for _, r := range env.Data {
		stocks = append(stocks, models.Stock{
			Symbol: r.Code,
			Name:   r.Name,
			Board:  models.BoardFor(r.Code),
		})
	}
	return stocks, nil
}

func (c *PrimaryClient) wait(ctx context.Context) error {
	if c.limiter == nil || c.rate <= 0 {
		return nil
	}
	return c.limiter.Wait(ctx, "primary", c.burst, c.rate)
}

// markTransport wraps network failures and retryable HTTP statuses so
// the retry policy only re-attempts what can plausibly succeed.
func markTransport(err error) error {
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		if se.Retryable() {
			return retry.Mark(err)
		}
		return err
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return retry.Mark(err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return retry.Mark(err)
	}
	return err
}
