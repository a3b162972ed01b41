package sentiment

import (
	"context"
	"time"

	"StockPulse/internal/domain/models"
	xhttp "StockPulse/pkg/http"
	applogger "StockPulse/pkg/logger"
)

// Client scores market mood per symbol through an external service.
// Sentiment only flavors the prediction rationale, so any failure
// degrades to an unknown score instead of failing the prediction.
type Client struct {
	baseURL string
	http    *xhttp.Client
	l       *applogger.Logger
}

func New(baseURL string, timeout time.Duration, l *applogger.Logger) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    xhttp.NewClient(xhttp.WithTimeout(timeout)),
		l:       l,
	}
}

type scoreResponse struct {
	Score float64 `json:"score"`
	Label string  `json:"label"`
}

func (c *Client) Score(ctx context.Context, symbol string) (models.Sentiment, error) {
	unknown := models.Sentiment{Symbol: symbol, Score: 0, Label: "unknown"}
	if c.baseURL == "" {
		return unknown, nil
	}

	var resp scoreResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         c.baseURL + "/api/sentiment",
		QueryParams: map[string][]string{"symbol": {symbol}},
	}, &resp)
	if err != nil {
		c.l.Debug("sentiment lookup failed, using unknown",
			applogger.String("symbol", symbol),
			applogger.Error(err),
		)
		return unknown, nil
	}

	label := resp.Label
	if label == "" {
		switch {
		case resp.Score > 0.2:
			label = "bullish"
		case resp.Score < -0.2:
			label = "bearish"
		default:
			label = "neutral"
		}
	}
	return models.Sentiment{Symbol: symbol, Score: resp.Score, Label: label}, nil
}
