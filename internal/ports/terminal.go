package ports

import (
	"context"

	"mt5gateway/internal/domain"
)

// SymbolInfo carries the per-instrument metadata the gateway needs.
type SymbolInfo struct {
	Name    string  // Instrument name as known to the terminal
	Visible bool    // Whether the instrument is enabled for trading
	Digits  int     // Price precision
	Point   float64 // Smallest price increment
}

// OrderRequest is a vendor-neutral market order. The adapter translates it
// into the terminal's native request structure and integer codes.
type OrderRequest struct {
	Symbol     string           // Instrument to trade
	Side       domain.OrderSide // BUY or SELL
	Volume     float64          // Lots
	Price      float64          // Execution price (ask for BUY, bid for SELL)
	StopLoss   float64          // 0 = none
	TakeProfit float64          // 0 = none
	Deviation  int              // Allowed price deviation in points
	Magic      int64            // Identifying tag for orders placed by this gateway
	Comment    string           // Order comment
	Position   int64            // Ticket of the position being closed (0 for a new trade)
}

// OrderResult is the terminal's answer to an order submission. Done is true
// only when the terminal reports the order as fully executed; Retcode and
// Comment hold the native diagnostics either way.
type OrderResult struct {
	Done    bool    // True when the terminal return code means "fully done"
	Retcode int     // Native return code
	Ticket  int64   // Ticket of the executed order (when Done)
	Price   float64 // Fill price
	Volume  float64 // Filled volume
	Comment string  // Terminal's comment text
}

// TerminalClient defines the interface for the desktop trading terminal.
// All methods are blocking synchronous calls with no concurrency guarantee;
// callers must serialize access themselves.
type TerminalClient interface {
	// Connect establishes the terminal session and returns the account it is
	// logged into. Fails when the terminal is unreachable or reports no account.
	Connect(ctx context.Context) (*domain.Account, error)

	// IsConnected probes live terminal connectivity. It never returns an
	// error; any failure reads as "not connected".
	IsConnected(ctx context.Context) bool

	// AccountInfo retrieves a fresh account snapshot.
	AccountInfo(ctx context.Context) (*domain.Account, error)

	// SymbolInfo retrieves metadata for one instrument.
	// Returns ErrUnknownSymbol when the terminal does not know it.
	SymbolInfo(ctx context.Context, symbol string) (*SymbolInfo, error)

	// SelectSymbol toggles an instrument's trading visibility.
	SelectSymbol(ctx context.Context, symbol string, enable bool) error

	// SymbolTick fetches the latest bid/ask for an instrument.
	// Returns ErrPriceUnavailable when no tick is available.
	SymbolTick(ctx context.Context, symbol string) (*domain.Tick, error)

	// Positions enumerates all open positions. An empty slice is not an error.
	Positions(ctx context.Context) ([]domain.Position, error)

	// PositionByTicket looks up one open position.
	// Returns ErrPositionNotFound when no open position matches.
	PositionByTicket(ctx context.Context, ticket int64) (*domain.Position, error)

	// SendOrder submits a market order and returns the terminal's result.
	// A non-success return code is reported through OrderResult.Done, not an
	// error; errors mean the submission itself failed.
	SendOrder(ctx context.Context, req OrderRequest) (*OrderResult, error)

	// Close tears down the terminal session.
	Close() error
}
