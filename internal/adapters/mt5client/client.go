package mt5client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"mt5gateway/internal/domain"
	"mt5gateway/internal/ports"
)

// Native MetaTrader 5 integer codes. The rest of the gateway never sees
// these; everything crossing the port boundary is expressed in domain terms.
const (
	tradeActionDeal = 1     // TRADE_ACTION_DEAL: immediate market execution
	orderTypeBuy    = 0     // ORDER_TYPE_BUY
	orderTypeSell   = 1     // ORDER_TYPE_SELL
	orderTimeGTC    = 0     // ORDER_TIME_GTC
	orderFillingIOC = 1     // ORDER_FILLING_IOC
	positionTypeBuy = 0     // POSITION_TYPE_BUY; anything else reads as SELL
	retcodeDone     = 10009 // TRADE_RETCODE_DONE: order fully executed
)

const (
	defaultDialTimeout = 10 * time.Second
	defaultCallTimeout = 30 * time.Second
)

// Client implements ports.TerminalClient against the MT5 terminal bridge.
// The bridge exposes the terminal's native API as newline-delimited JSON
// request/response pairs over a single long-lived TCP connection.
type Client struct {
	addr        string
	logger      ports.Logger
	dialTimeout time.Duration
	callTimeout time.Duration

	// The bridge answers one request at a time on one socket, so every call
	// holds the mutex for its full write/read round trip.
	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
	nextID uint64
}

// Config holds configuration specific to the MT5 bridge adapter.
type Config struct {
	Addr        string // Bridge address, e.g. "127.0.0.1:18812"
	Logger      ports.Logger
	DialTimeout time.Duration
	CallTimeout time.Duration // Per-call deadline; order_send can be slow on a busy terminal
}

// New creates an MT5 bridge client. The connection is established by Connect,
// not here, so the gateway can report a clean startup failure.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for MT5 client")
	}
	if cfg.Addr == "" {
		return nil, fmt.Errorf("bridge address is required for MT5 client")
	}
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}
	callTimeout := cfg.CallTimeout
	if callTimeout <= 0 {
		callTimeout = defaultCallTimeout
	}
	return &Client{
		addr:        cfg.Addr,
		logger:      cfg.Logger,
		dialTimeout: dialTimeout,
		callTimeout: callTimeout,
	}, nil
}

// --- wire format ---

type request struct {
	ID     uint64      `json:"id"`
	Method string      `json:"method"`
	Params interface{} `json:"params,omitempty"`
}

type response struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error,omitempty"`
}

type accountPayload struct {
	Login      int64   `json:"login"`
	Balance    float64 `json:"balance"`
	Equity     float64 `json:"equity"`
	Margin     float64 `json:"margin"`
	MarginFree float64 `json:"margin_free"`
	Profit     float64 `json:"profit"`
	Server     string  `json:"server"`
}

type symbolPayload struct {
	Name    string  `json:"name"`
	Visible bool    `json:"visible"`
	Digits  int     `json:"digits"`
	Point   float64 `json:"point"`
}

type tickPayload struct {
	Bid  float64 `json:"bid"`
	Ask  float64 `json:"ask"`
	Time int64   `json:"time"`
}

type positionPayload struct {
	Ticket    int64   `json:"ticket"`
	Symbol    string  `json:"symbol"`
	Type      int     `json:"type"`
	Volume    float64 `json:"volume"`
	PriceOpen float64 `json:"price_open"`
	SL        float64 `json:"sl"`
	TP        float64 `json:"tp"`
	Profit    float64 `json:"profit"`
	Comment   string  `json:"comment"`
}

// orderPayload mirrors the terminal's native trade request dictionary.
type orderPayload struct {
	Action      int     `json:"action"`
	Symbol      string  `json:"symbol"`
	Volume      float64 `json:"volume"`
	Type        int     `json:"type"`
	Price       float64 `json:"price"`
	SL          float64 `json:"sl"`
	TP          float64 `json:"tp"`
	Deviation   int     `json:"deviation"`
	Magic       int64   `json:"magic"`
	Comment     string  `json:"comment"`
	TypeTime    int     `json:"type_time"`
	TypeFilling int     `json:"type_filling"`
	Position    int64   `json:"position,omitempty"`
}

type orderResultPayload struct {
	Retcode int     `json:"retcode"`
	Order   int64   `json:"order"`
	Price   float64 `json:"price"`
	Volume  float64 `json:"volume"`
	Comment string  `json:"comment"`
}

// --- transport ---

// call performs one request/response round trip on the bridge socket.
// A null result decodes out to nil/zero; method implementations decide what
// that means for their operation.
func (c *Client) call(ctx context.Context, method string, params interface{}, out interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("%s: bridge not connected: %w", method, ports.ErrConnectionFailed)
	}

	deadline := time.Now().Add(c.callTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("%s: set deadline: %w", method, err)
	}

	c.nextID++
	req := request{ID: c.nextID, Method: method, Params: params}
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", method, err)
	}
	payload = append(payload, '\n')
	if _, err := c.conn.Write(payload); err != nil {
		return c.transportError(ctx, err, method)
	}

	line, err := c.reader.ReadBytes('\n')
	if err != nil {
		return c.transportError(ctx, err, method)
	}

	var resp response
	if err := json.Unmarshal(line, &resp); err != nil {
		return fmt.Errorf("%s: decode response: %w", method, err)
	}
	if resp.ID != req.ID {
		return fmt.Errorf("%s: response id %d does not match request id %d", method, resp.ID, req.ID)
	}
	if resp.Error != "" {
		return fmt.Errorf("%s: bridge error: %s: %w", method, resp.Error, ports.ErrUpstreamUnavailable)
	}
	if out != nil && len(resp.Result) > 0 && string(resp.Result) != "null" {
		if err := json.Unmarshal(resp.Result, out); err != nil {
			return fmt.Errorf("%s: decode result: %w", method, err)
		}
	}
	return nil
}

// transportError translates socket-level failures into standardized ports
// errors, following the same mapping discipline as the rest of the adapters.
func (c *Client) transportError(ctx context.Context, err error, op string) error {
	fields := map[string]interface{}{"operation": op, "originalError": err.Error()}

	var finalErr error
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		finalErr = fmt.Errorf("%s failed: %w: %w", op, ports.ErrTimeout, err)
	case errors.Is(ctx.Err(), context.Canceled):
		finalErr = fmt.Errorf("%s canceled: %w: %w", op, ports.ErrContextCanceled, err)
	default:
		if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
			finalErr = fmt.Errorf("%s failed: %w: %w", op, ports.ErrTimeout, err)
		} else {
			finalErr = fmt.Errorf("%s failed: %w: %w", op, ports.ErrConnectionFailed, err)
		}
	}

	c.logger.Error(ctx, err, op+" failed", fields)
	return finalErr
}

// --- ports.TerminalClient ---

// Connect dials the bridge, initializes the terminal session and returns the
// account the terminal is logged into. The connection is held for the process
// lifetime; there is no reconnection logic.
func (c *Client) Connect(ctx context.Context) (*domain.Account, error) {
	op := "Connect"

	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("%s: already connected", op)
	}
	conn, err := net.DialTimeout("tcp", c.addr, c.dialTimeout)
	if err != nil {
		c.mu.Unlock()
		c.logger.Error(ctx, err, "Failed to dial MT5 bridge", map[string]interface{}{"addr": c.addr})
		return nil, fmt.Errorf("%s failed: %w: %w", op, ports.ErrConnectionFailed, err)
	}
	c.conn = conn
	c.reader = bufio.NewReader(conn)
	c.mu.Unlock()

	var initialized bool
	if err := c.call(ctx, "initialize", nil, &initialized); err != nil {
		_ = c.Close()
		return nil, err
	}
	if !initialized {
		_ = c.Close()
		return nil, fmt.Errorf("%s: terminal initialization failed: %w", op, ports.ErrUpstreamUnavailable)
	}

	account, err := c.AccountInfo(ctx)
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	c.logger.Info(ctx, "Connected to trading terminal", map[string]interface{}{
		"addr":    c.addr,
		"login":   account.Login,
		"balance": account.Balance,
		"server":  account.Server,
	})
	return account, nil
}

// IsConnected probes the terminal via terminal_info. Any failure, including a
// dead socket, reads as not connected; this method never errors.
func (c *Client) IsConnected(ctx context.Context) bool {
	var info map[string]interface{}
	if err := c.call(ctx, "terminal_info", nil, &info); err != nil {
		c.logger.Debug(ctx, "terminal_info probe failed", map[string]interface{}{"error": err.Error()})
		return false
	}
	return info != nil
}

// AccountInfo retrieves a fresh account snapshot from the terminal.
func (c *Client) AccountInfo(ctx context.Context) (*domain.Account, error) {
	op := "AccountInfo"
	var payload *accountPayload
	if err := c.call(ctx, "account_info", nil, &payload); err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, fmt.Errorf("%s: terminal returned no account data: %w", op, ports.ErrUpstreamUnavailable)
	}
	return &domain.Account{
		Login:      payload.Login,
		Balance:    payload.Balance,
		Equity:     payload.Equity,
		Margin:     payload.Margin,
		FreeMargin: payload.MarginFree,
		Profit:     payload.Profit,
		Server:     payload.Server,
	}, nil
}

// SymbolInfo retrieves instrument metadata.
func (c *Client) SymbolInfo(ctx context.Context, symbol string) (*ports.SymbolInfo, error) {
	op := "SymbolInfo"
	var payload *symbolPayload
	if err := c.call(ctx, "symbol_info", map[string]interface{}{"symbol": symbol}, &payload); err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, fmt.Errorf("%s: symbol %s: %w", op, symbol, ports.ErrUnknownSymbol)
	}
	return &ports.SymbolInfo{
		Name:    payload.Name,
		Visible: payload.Visible,
		Digits:  payload.Digits,
		Point:   payload.Point,
	}, nil
}

// SelectSymbol toggles an instrument's visibility in the terminal's Market Watch.
func (c *Client) SelectSymbol(ctx context.Context, symbol string, enable bool) error {
	op := "SelectSymbol"
	var ok bool
	params := map[string]interface{}{"symbol": symbol, "enable": enable}
	if err := c.call(ctx, "symbol_select", params, &ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: terminal refused to select symbol %s: %w", op, symbol, ports.ErrUnknownSymbol)
	}
	c.logger.Info(ctx, "Symbol selected", map[string]interface{}{"symbol": symbol, "enable": enable})
	return nil
}

// SymbolTick fetches the latest bid/ask pair for an instrument.
func (c *Client) SymbolTick(ctx context.Context, symbol string) (*domain.Tick, error) {
	op := "SymbolTick"
	var payload *tickPayload
	if err := c.call(ctx, "symbol_info_tick", map[string]interface{}{"symbol": symbol}, &payload); err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, fmt.Errorf("%s: no tick for symbol %s: %w", op, symbol, ports.ErrPriceUnavailable)
	}
	return &domain.Tick{
		Bid:  payload.Bid,
		Ask:  payload.Ask,
		Time: time.Unix(payload.Time, 0),
	}, nil
}

// Positions enumerates all open positions. A terminal with none open yields
// an empty slice, never an error.
func (c *Client) Positions(ctx context.Context) ([]domain.Position, error) {
	var payload []positionPayload
	if err := c.call(ctx, "positions_get", nil, &payload); err != nil {
		return nil, err
	}
	positions := make([]domain.Position, 0, len(payload))
	for _, p := range payload {
		positions = append(positions, translatePosition(p))
	}
	return positions, nil
}

// PositionByTicket looks up one open position by its ticket.
func (c *Client) PositionByTicket(ctx context.Context, ticket int64) (*domain.Position, error) {
	op := "PositionByTicket"
	var payload []positionPayload
	if err := c.call(ctx, "positions_get", map[string]interface{}{"ticket": ticket}, &payload); err != nil {
		return nil, err
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("%s: ticket %d: %w", op, ticket, ports.ErrPositionNotFound)
	}
	pos := translatePosition(payload[0])
	return &pos, nil
}

// SendOrder submits a market order through the terminal's order path. The
// native request is always a DEAL with GTC duration and IOC filling; only the
// fields in req vary between calls.
func (c *Client) SendOrder(ctx context.Context, req ports.OrderRequest) (*ports.OrderResult, error) {
	op := "SendOrder"

	orderType := orderTypeBuy
	if req.Side == domain.Sell {
		orderType = orderTypeSell
	}
	payload := orderPayload{
		Action:      tradeActionDeal,
		Symbol:      req.Symbol,
		Volume:      req.Volume,
		Type:        orderType,
		Price:       req.Price,
		SL:          req.StopLoss,
		TP:          req.TakeProfit,
		Deviation:   req.Deviation,
		Magic:       req.Magic,
		Comment:     req.Comment,
		TypeTime:    orderTimeGTC,
		TypeFilling: orderFillingIOC,
		Position:    req.Position,
	}

	var result *orderResultPayload
	if err := c.call(ctx, "order_send", payload, &result); err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("%s: terminal returned no result: %w", op, ports.ErrUpstreamUnavailable)
	}

	res := &ports.OrderResult{
		Done:    result.Retcode == retcodeDone,
		Retcode: result.Retcode,
		Ticket:  result.Order,
		Price:   result.Price,
		Volume:  result.Volume,
		Comment: result.Comment,
	}
	if res.Done {
		c.logger.Info(ctx, op+" successful", map[string]interface{}{
			"symbol": req.Symbol, "side": req.Side, "volume": res.Volume,
			"ticket": res.Ticket, "price": res.Price,
		})
	} else {
		c.logger.Warn(ctx, op+" not done", map[string]interface{}{
			"symbol": req.Symbol, "side": req.Side,
			"retcode": res.Retcode, "comment": res.Comment,
		})
	}
	return res, nil
}

// Close tears down the bridge connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.reader = nil
	return err
}

func translatePosition(p positionPayload) domain.Position {
	side := domain.Buy
	if p.Type != positionTypeBuy {
		side = domain.Sell
	}
	return domain.Position{
		Ticket:     p.Ticket,
		Symbol:     p.Symbol,
		Side:       side,
		Volume:     p.Volume,
		OpenPrice:  p.PriceOpen,
		StopLoss:   p.SL,
		TakeProfit: p.TP,
		Profit:     p.Profit,
		Comment:    strings.TrimSpace(p.Comment),
	}
}
