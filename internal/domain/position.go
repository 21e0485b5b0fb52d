package domain

import "time"

// Position represents one open position as reported by the terminal.
// Positions are enumerated fresh on each query and never stored.
type Position struct {
	Ticket     int64     // Terminal's unique position identifier
	Symbol     string    // Instrument the position is held in
	Side       OrderSide // BUY or SELL
	Volume     float64   // Position size in lots
	OpenPrice  float64   // Price at which the position was opened
	StopLoss   float64   // Stop-loss level (0 if none)
	TakeProfit float64   // Take-profit level (0 if none)
	Profit     float64   // Current floating profit/loss
	Comment    string    // Comment attached when the position was opened
}

// Tick is the latest bid/ask pair for an instrument.
type Tick struct {
	Bid  float64
	Ask  float64
	Time time.Time
}

// TradeResult describes a successfully executed market order.
type TradeResult struct {
	Ticket int64     // Ticket of the resulting order
	Price  float64   // Fill price reported by the terminal
	Volume float64   // Volume actually filled
	Symbol string    // Instrument traded
	Side   OrderSide // Direction of the executed order
}
