package provider

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"StockPulse/internal/domain/models"
	applogger "StockPulse/pkg/logger"
	"StockPulse/pkg/retry"
	"StockPulse/pkg/util"
)

// SecondaryGateway fetches daily bars over the fallback feed's
// session-based WebSocket protocol. Every call logs in, issues the
// request and logs out; the connection is never shared across calls
// because the upstream invalidates sessions aggressively.
type SecondaryGateway struct {
	url            string
	user           string
	password       string
	reconnectDelay time.Duration
	l              *applogger.Logger

	mu sync.Mutex // one request in flight at a time
}

// SecondaryConfig holds fallback feed settings.
type SecondaryConfig struct {
	GatewayURL     string
	User           string
	Password       string
	ReconnectDelay time.Duration
}

// NewSecondaryGateway creates a fallback feed gateway.
func NewSecondaryGateway(cfg SecondaryConfig, l *applogger.Logger) *SecondaryGateway {
	delay := cfg.ReconnectDelay
	if delay == 0 {
		delay = 2 * time.Second
	}
	return &SecondaryGateway{
		url:            cfg.GatewayURL,
		user:           cfg.User,
		password:       cfg.Password,
		reconnectDelay: delay,
		l:              l,
	}
}

func (g *SecondaryGateway) Name() string { return "secondary" }

type wsFrame struct {
	Op      string     `json:"op"`
	ID      int        `json:"id,omitempty"`
	Code    int        `json:"code"`
	Message string     `json:"message,omitempty"`
	User    string     `json:"user,omitempty"`
	Token   string     `json:"token,omitempty"`
	Symbol  string     `json:"symbol,omitempty"`
	Start   string     `json:"start,omitempty"`
	End     string     `json:"end,omitempty"`
	Data    []klineRow `json:"data,omitempty"`
}

// FetchDaily pulls daily bars for [from, to] through a fresh session.
// A failed session is retried once after a short delay with a new
// connection before giving up.
func (g *SecondaryGateway) FetchDaily(ctx context.Context, symbol string, from, to time.Time) ([]models.Bar, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	bars, err := g.fetchOnce(ctx, symbol, from, to)
	if err == nil {
		return bars, nil
	}
	if !retry.IsTransient(err) {
		return nil, err
	}

	g.l.Warn("secondary session failed, reconnecting",
		applogger.String("symbol", symbol),
		applogger.Error(err),
	)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(g.reconnectDelay):
	}
	return g.fetchOnce(ctx, symbol, from, to)
}

func (g *SecondaryGateway) fetchOnce(ctx context.Context, symbol string, from, to time.Time) ([]models.Bar, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, g.url, nil)
	if err != nil {
		return nil, retry.Mark(fmt.Errorf("secondary dial: %w", err))
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
		_ = conn.SetWriteDeadline(deadline)
	}

	if err := g.login(conn); err != nil {
		return nil, err
	}
	defer g.logout(conn)

	req := wsFrame{
		Op:     "kline.daily",
		ID:     1,
		Symbol: symbol,
		Start:  util.FormatDate(from),
		End:    util.FormatDate(to),
	}
	if err := conn.WriteJSON(req); err != nil {
		return nil, retry.Mark(fmt.Errorf("secondary request: %w", err))
	}

	var resp wsFrame
	for {
		if err := conn.ReadJSON(&resp); err != nil {
			return nil, retry.Mark(fmt.Errorf("secondary read: %w", err))
		}
		if resp.Op == req.Op && resp.ID == req.ID {
			break
		}
		// skip unrelated frames (heartbeats, notices)
	}
	if resp.Code != 0 {
		return nil, fmt.Errorf("secondary kline %s: upstream code %d: %s", symbol, resp.Code, resp.Message)
	}

	now := time.Now()
	bars := make([]models.Bar, 0, len(resp.Data))
	for _, r := range resp.Data {
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

	g.l.Debug("secondary kline fetched",
		applogger.String("symbol", symbol),
		applogger.Int("rows", len(bars)),
	)
	return bars, nil
}

func (g *SecondaryGateway) login(conn *websocket.Conn) error {
	if err := conn.WriteJSON(wsFrame{Op: "login", User: g.user, Token: g.password}); err != nil {
		return retry.Mark(fmt.Errorf("secondary login write: %w", err))
	}
	var resp wsFrame
	for {
		if err := conn.ReadJSON(&resp); err != nil {
			return retry.Mark(fmt.Errorf("secondary login read: %w", err))
		}
		if resp.Op == "login" {
			break
		}
	}
	if resp.Code != 0 {
		return fmt.Errorf("secondary login rejected: code %d: %s", resp.Code, resp.Message)
	}
	return nil
}

func (g *SecondaryGateway) logout(conn *websocket.Conn) {
	_ = conn.WriteJSON(wsFrame{Op: "logout"})
}
