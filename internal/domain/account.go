package domain

// Account is a read-only projection of the terminal's account state at call
// time. It is never cached; every query hits the terminal again.
type Account struct {
	Login      int64   // Account login id
	Balance    float64 // Account balance
	Equity     float64 // Balance plus floating profit/loss
	Margin     float64 // Margin currently in use
	FreeMargin float64 // Margin available for new positions
	Profit     float64 // Floating profit/loss across open positions
	Server     string  // Broker server name (diagnostic only)
}
