package provider

import (
	"context"
	"fmt"
	"strconv"
	"time"

	xhttp "StockPulse/pkg/http"
	"StockPulse/pkg/util"
)

// HTTPCalendarSource fetches the official trading-day list from the
// primary feed.
type HTTPCalendarSource struct {
	baseURL string
	http    *xhttp.Client
}

func NewHTTPCalendarSource(baseURL string, timeout time.Duration) *HTTPCalendarSource {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HTTPCalendarSource{
		baseURL: baseURL,
		http:    xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

type calendarEnvelope struct {
	Code    int      `json:"code"`
	Message string   `json:"message"`
	Data    []string `json:"data"`
}

func (s *HTTPCalendarSource) FetchTradingDays(ctx context.Context, startYear, endYear int) ([]time.Time, error) {
	var env calendarEnvelope
	err := s.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    s.baseURL + "/api/calendar",
		QueryParams: map[string][]string{
			"start": {strconv.Itoa(startYear)},
			"end":   {strconv.Itoa(endYear)},
		},
	}, &env)
	if err != nil {
		return nil, fmt.Errorf("calendar fetch: %w", err)
	}
	if env.Code != 0 {
		return nil, fmt.Errorf("calendar fetch: upstream code %d: %s", env.Code, env.Message)
	}

	days := make([]time.Time, 0, len(env.Data))
	for _, s := range env.Data {
		if t, ok := util.ParseDate(s); ok {
			days = append(days, t)
		}
	}
	return days, nil
}
