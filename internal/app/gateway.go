package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"mt5gateway/config"
	"mt5gateway/internal/domain"
	"mt5gateway/internal/ports"
)

// Fixed execution parameters for every order this gateway submits.
const (
	priceDeviationPoints = 20     // Allowed slippage in points
	magicNumber          = 123456 // Identifies orders placed by this gateway
	defaultTradeComment  = "Signal Agent"
	closeComment         = "Close by Signal Agent"
)

// TradeParams are the validated, defaulted inputs for placing a market order.
type TradeParams struct {
	Symbol     string
	Side       domain.OrderSide
	LotSize    float64
	StopLoss   float64
	TakeProfit float64
	Comment    string
}

// Gateway maps the public operations onto the terminal client. It holds
// no state beyond the terminal handle; every operation is a linear sequence
// of validate, query terminal, submit, map result. No retries anywhere.
type Gateway struct {
	cfg      *config.Config
	logger   ports.Logger
	terminal ports.TerminalClient

	// The vendor API is not documented as safe for concurrent invocation, so
	// every call into the terminal is serialized here while HTTP handlers stay
	// concurrent.
	mu sync.Mutex
}

// New creates the gateway service.
func New(cfg *config.Config, logger ports.Logger, terminal ports.TerminalClient) (*Gateway, error) {
	if cfg == nil || logger == nil || terminal == nil {
		return nil, fmt.Errorf("missing required dependencies for Gateway")
	}
	if cfg.DefaultSymbol == "" {
		return nil, fmt.Errorf("configuration DefaultSymbol must be set")
	}
	if cfg.DefaultLotSize <= 0 {
		return nil, fmt.Errorf("configuration DefaultLotSize must be positive")
	}
	return &Gateway{cfg: cfg, logger: logger, terminal: terminal}, nil
}

// Health reports live terminal connectivity. It never fails; an unreachable
// terminal reads as false.
func (g *Gateway) Health(ctx context.Context) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.terminal.IsConnected(ctx)
}

// Account returns a fresh account snapshot from the terminal.
func (g *Gateway) Account(ctx context.Context) (*domain.Account, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.terminal.AccountInfo(ctx)
}

// Positions enumerates all open positions, in terminal order. No open
// positions yields an empty slice, not an error.
func (g *Gateway) Positions(ctx context.Context) ([]domain.Position, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.terminal.Positions(ctx)
}

// NormalizeTrade applies the gateway's defaulting policy: missing symbol and
// lot size fall back to the configured defaults, missing side to BUY, missing
// comment to the gateway's fixed tag. Idempotent.
func (g *Gateway) NormalizeTrade(params TradeParams) TradeParams {
	if params.Symbol == "" {
		params.Symbol = g.cfg.DefaultSymbol
	}
	if params.Side == "" {
		params.Side = domain.Buy
	}
	if params.LotSize == 0 {
		params.LotSize = g.cfg.DefaultLotSize
	}
	if params.Comment == "" {
		params.Comment = defaultTradeComment
	}
	return params
}

// PlaceTrade validates and defaults the request, resolves the instrument,
// fetches a fresh tick and submits a market order at ask (BUY) or bid (SELL).
func (g *Gateway) PlaceTrade(ctx context.Context, params TradeParams) (*domain.TradeResult, error) {
	params = g.NormalizeTrade(params)
	if params.LotSize < 0 {
		return nil, fmt.Errorf("lot size must be positive: %w", ports.ErrInvalidArgument)
	}
	if params.StopLoss < 0 || params.TakeProfit < 0 {
		return nil, fmt.Errorf("stop loss and take profit cannot be negative: %w", ports.ErrInvalidArgument)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	info, err := g.terminal.SymbolInfo(ctx, params.Symbol)
	if err != nil {
		return nil, err
	}
	if !info.Visible {
		// Enable the instrument for trading before submitting; a refusal here
		// still surfaces on the order itself, matching the terminal's behavior.
		if err := g.terminal.SelectSymbol(ctx, params.Symbol, true); err != nil {
			g.logger.Warn(ctx, "Failed to enable symbol for trading", map[string]interface{}{
				"symbol": params.Symbol, "error": err.Error(),
			})
		}
	}

	tick, err := g.terminal.SymbolTick(ctx, params.Symbol)
	if err != nil {
		return nil, err
	}
	price := tick.Ask
	if params.Side == domain.Sell {
		price = tick.Bid
	}

	result, err := g.terminal.SendOrder(ctx, ports.OrderRequest{
		Symbol:     params.Symbol,
		Side:       params.Side,
		Volume:     params.LotSize,
		Price:      price,
		StopLoss:   params.StopLoss,
		TakeProfit: params.TakeProfit,
		Deviation:  priceDeviationPoints,
		Magic:      magicNumber,
		Comment:    params.Comment,
	})
	if err != nil {
		return nil, err
	}
	if !result.Done {
		return nil, &ports.RejectionError{
			Err:     ports.ErrOrderRejected,
			Retcode: result.Retcode,
			Comment: result.Comment,
		}
	}

	g.logger.Info(ctx, "Trade executed", map[string]interface{}{
		"symbol": params.Symbol, "side": params.Side,
		"ticket": result.Ticket, "price": result.Price, "volume": result.Volume,
	})
	return &domain.TradeResult{
		Ticket: result.Ticket,
		Price:  result.Price,
		Volume: result.Volume,
		Symbol: params.Symbol,
		Side:   params.Side,
	}, nil
}

// ClosePosition closes the open position identified by ticket with an
// opposite-side market order for the same volume.
func (g *Gateway) ClosePosition(ctx context.Context, ticket int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	position, err := g.terminal.PositionByTicket(ctx, ticket)
	if err != nil {
		return err
	}

	tick, err := g.terminal.SymbolTick(ctx, position.Symbol)
	if err != nil {
		return err
	}
	// A BUY closes at bid, a SELL at ask.
	price := tick.Bid
	if position.Side == domain.Sell {
		price = tick.Ask
	}

	result, err := g.terminal.SendOrder(ctx, ports.OrderRequest{
		Symbol:    position.Symbol,
		Side:      position.Side.Opposite(),
		Volume:    position.Volume,
		Price:     price,
		Deviation: priceDeviationPoints,
		Magic:     magicNumber,
		Comment:   closeComment,
		Position:  ticket,
	})
	if err != nil {
		return err
	}
	if !result.Done {
		return &ports.RejectionError{
			Err:     ports.ErrCloseRejected,
			Retcode: result.Retcode,
			Comment: result.Comment,
		}
	}

	g.logger.Info(ctx, "Position closed", map[string]interface{}{
		"ticket": ticket, "symbol": position.Symbol, "volume": position.Volume,
	})
	return nil
}

// IsRejection reports whether err is a terminal rejection and returns its
// native details when it is.
func IsRejection(err error) (*ports.RejectionError, bool) {
	var rej *ports.RejectionError
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}
