package app

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mt5gateway/config"
	"mt5gateway/internal/domain"
	"mt5gateway/internal/ports"
)

// Mock implementations

type mockLogger struct {
	debugMsgs []string
	infoMsgs  []string
	warnMsgs  []string
	errorMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.debugMsgs = append(m.debugMsgs, msg)
}

func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.infoMsgs = append(m.infoMsgs, msg)
}

func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.warnMsgs = append(m.warnMsgs, msg)
}

func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.errorMsgs = append(m.errorMsgs, msg)
}

type mockTerminal struct {
	connected   bool
	account     *domain.Account
	accountErr  error
	symbols     map[string]*ports.SymbolInfo
	selectErr   error
	selectCalls []string
	ticks       map[string]*domain.Tick
	positions   []domain.Position
	posErr      error
	orderResult *ports.OrderResult
	orderErr    error
	sentOrders  []ports.OrderRequest
}

func (m *mockTerminal) Connect(ctx context.Context) (*domain.Account, error) {
	return m.account, m.accountErr
}

func (m *mockTerminal) IsConnected(ctx context.Context) bool {
	return m.connected
}

func (m *mockTerminal) AccountInfo(ctx context.Context) (*domain.Account, error) {
	if m.accountErr != nil {
		return nil, m.accountErr
	}
	return m.account, nil
}

func (m *mockTerminal) SymbolInfo(ctx context.Context, symbol string) (*ports.SymbolInfo, error) {
	info, ok := m.symbols[symbol]
	if !ok {
		return nil, fmt.Errorf("symbol %s: %w", symbol, ports.ErrUnknownSymbol)
	}
	return info, nil
}

func (m *mockTerminal) SelectSymbol(ctx context.Context, symbol string, enable bool) error {
	m.selectCalls = append(m.selectCalls, symbol)
	return m.selectErr
}

func (m *mockTerminal) SymbolTick(ctx context.Context, symbol string) (*domain.Tick, error) {
	tick, ok := m.ticks[symbol]
	if !ok {
		return nil, fmt.Errorf("no tick for %s: %w", symbol, ports.ErrPriceUnavailable)
	}
	return tick, nil
}

func (m *mockTerminal) Positions(ctx context.Context) ([]domain.Position, error) {
	if m.posErr != nil {
		return nil, m.posErr
	}
	return m.positions, nil
}

func (m *mockTerminal) PositionByTicket(ctx context.Context, ticket int64) (*domain.Position, error) {
	for i := range m.positions {
		if m.positions[i].Ticket == ticket {
			return &m.positions[i], nil
		}
	}
	return nil, fmt.Errorf("ticket %d: %w", ticket, ports.ErrPositionNotFound)
}

func (m *mockTerminal) SendOrder(ctx context.Context, req ports.OrderRequest) (*ports.OrderResult, error) {
	m.sentOrders = append(m.sentOrders, req)
	if m.orderErr != nil {
		return nil, m.orderErr
	}
	return m.orderResult, nil
}

func (m *mockTerminal) Close() error { return nil }

func testConfig() *config.Config {
	return &config.Config{
		DefaultSymbol:  "EURUSD",
		DefaultLotSize: 0.01,
	}
}

func filledOrder(ticket int64, price, volume float64) *ports.OrderResult {
	return &ports.OrderResult{Done: true, Retcode: 10009, Ticket: ticket, Price: price, Volume: volume}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *config.Config
		logger   ports.Logger
		terminal ports.TerminalClient
		wantErr  bool
	}{
		{
			name:     "valid dependencies",
			cfg:      testConfig(),
			logger:   &mockLogger{},
			terminal: &mockTerminal{},
			wantErr:  false,
		},
		{
			name:     "nil config",
			cfg:      nil,
			logger:   &mockLogger{},
			terminal: &mockTerminal{},
			wantErr:  true,
		},
		{
			name:     "nil terminal",
			cfg:      testConfig(),
			logger:   &mockLogger{},
			terminal: nil,
			wantErr:  true,
		},
		{
			name:     "missing default symbol",
			cfg:      &config.Config{DefaultLotSize: 0.01},
			logger:   &mockLogger{},
			terminal: &mockTerminal{},
			wantErr:  true,
		},
		{
			name:     "non-positive default lot size",
			cfg:      &config.Config{DefaultSymbol: "EURUSD"},
			logger:   &mockLogger{},
			terminal: &mockTerminal{},
			wantErr:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg, tt.logger, tt.terminal)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	for _, connected := range []bool{true, false} {
		terminal := &mockTerminal{connected: connected}
		gw, err := New(testConfig(), &mockLogger{}, terminal)
		require.NoError(t, err)
		assert.Equal(t, connected, gw.Health(context.Background()))
	}
}

func TestAccount(t *testing.T) {
	t.Run("snapshot returned", func(t *testing.T) {
		terminal := &mockTerminal{account: &domain.Account{Login: 12345, Balance: 1000.50, Equity: 1010.25}}
		gw, err := New(testConfig(), &mockLogger{}, terminal)
		require.NoError(t, err)

		account, err := gw.Account(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(12345), account.Login)
		assert.Equal(t, 1000.50, account.Balance)
	})

	t.Run("terminal unavailable", func(t *testing.T) {
		terminal := &mockTerminal{accountErr: ports.ErrUpstreamUnavailable}
		gw, err := New(testConfig(), &mockLogger{}, terminal)
		require.NoError(t, err)

		_, err = gw.Account(context.Background())
		assert.ErrorIs(t, err, ports.ErrUpstreamUnavailable)
	})
}

func TestPlaceTrade(t *testing.T) {
	knownSymbols := map[string]*ports.SymbolInfo{
		"EURUSD": {Name: "EURUSD", Visible: true},
		"GBPUSD": {Name: "GBPUSD", Visible: false},
	}
	ticks := map[string]*domain.Tick{
		"EURUSD": {Bid: 1.10480, Ask: 1.10500},
		"GBPUSD": {Bid: 1.26450, Ask: 1.26470},
	}

	t.Run("buy executes at ask", func(t *testing.T) {
		terminal := &mockTerminal{symbols: knownSymbols, ticks: ticks, orderResult: filledOrder(777, 1.10500, 0.01)}
		gw, err := New(testConfig(), &mockLogger{}, terminal)
		require.NoError(t, err)

		result, err := gw.PlaceTrade(context.Background(), TradeParams{Symbol: "EURUSD", Side: domain.Buy, LotSize: 0.01})
		require.NoError(t, err)
		assert.Equal(t, int64(777), result.Ticket)
		assert.Equal(t, 1.10500, result.Price)
		assert.Equal(t, 0.01, result.Volume)
		assert.Equal(t, "EURUSD", result.Symbol)
		assert.Equal(t, domain.Buy, result.Side)

		require.Len(t, terminal.sentOrders, 1)
		sent := terminal.sentOrders[0]
		assert.Equal(t, 1.10500, sent.Price) // ask
		assert.Equal(t, 20, sent.Deviation)
		assert.Equal(t, int64(123456), sent.Magic)
		assert.Equal(t, "Signal Agent", sent.Comment)
		assert.Zero(t, sent.Position)
	})

	t.Run("sell executes at bid", func(t *testing.T) {
		terminal := &mockTerminal{symbols: knownSymbols, ticks: ticks, orderResult: filledOrder(778, 1.10480, 0.05)}
		gw, err := New(testConfig(), &mockLogger{}, terminal)
		require.NoError(t, err)

		_, err = gw.PlaceTrade(context.Background(), TradeParams{Symbol: "EURUSD", Side: domain.Sell, LotSize: 0.05})
		require.NoError(t, err)
		require.Len(t, terminal.sentOrders, 1)
		assert.Equal(t, 1.10480, terminal.sentOrders[0].Price) // bid
		assert.Equal(t, domain.Sell, terminal.sentOrders[0].Side)
	})

	t.Run("defaults applied when fields omitted", func(t *testing.T) {
		terminal := &mockTerminal{symbols: knownSymbols, ticks: ticks, orderResult: filledOrder(779, 1.10500, 0.01)}
		gw, err := New(testConfig(), &mockLogger{}, terminal)
		require.NoError(t, err)

		result, err := gw.PlaceTrade(context.Background(), TradeParams{})
		require.NoError(t, err)
		assert.Equal(t, "EURUSD", result.Symbol)
		assert.Equal(t, domain.Buy, result.Side)

		require.Len(t, terminal.sentOrders, 1)
		sent := terminal.sentOrders[0]
		assert.Equal(t, "EURUSD", sent.Symbol)
		assert.Equal(t, 0.01, sent.Volume)
		assert.Equal(t, domain.Buy, sent.Side)
		assert.Zero(t, sent.StopLoss)
		assert.Zero(t, sent.TakeProfit)
	})

	t.Run("invisible symbol is enabled first", func(t *testing.T) {
		terminal := &mockTerminal{symbols: knownSymbols, ticks: ticks, orderResult: filledOrder(780, 1.26470, 0.01)}
		gw, err := New(testConfig(), &mockLogger{}, terminal)
		require.NoError(t, err)

		_, err = gw.PlaceTrade(context.Background(), TradeParams{Symbol: "GBPUSD"})
		require.NoError(t, err)
		assert.Equal(t, []string{"GBPUSD"}, terminal.selectCalls)
	})

	t.Run("unknown symbol submits nothing", func(t *testing.T) {
		terminal := &mockTerminal{symbols: knownSymbols, ticks: ticks}
		gw, err := New(testConfig(), &mockLogger{}, terminal)
		require.NoError(t, err)

		_, err = gw.PlaceTrade(context.Background(), TradeParams{Symbol: "XXXYYY"})
		assert.ErrorIs(t, err, ports.ErrUnknownSymbol)
		assert.Empty(t, terminal.sentOrders)
	})

	t.Run("missing tick submits nothing", func(t *testing.T) {
		terminal := &mockTerminal{
			symbols: map[string]*ports.SymbolInfo{"USDJPY": {Name: "USDJPY", Visible: true}},
			ticks:   map[string]*domain.Tick{},
		}
		gw, err := New(testConfig(), &mockLogger{}, terminal)
		require.NoError(t, err)

		_, err = gw.PlaceTrade(context.Background(), TradeParams{Symbol: "USDJPY"})
		assert.ErrorIs(t, err, ports.ErrPriceUnavailable)
		assert.Empty(t, terminal.sentOrders)
	})

	t.Run("negative lot size rejected", func(t *testing.T) {
		terminal := &mockTerminal{symbols: knownSymbols, ticks: ticks}
		gw, err := New(testConfig(), &mockLogger{}, terminal)
		require.NoError(t, err)

		_, err = gw.PlaceTrade(context.Background(), TradeParams{Symbol: "EURUSD", LotSize: -1})
		assert.ErrorIs(t, err, ports.ErrInvalidArgument)
		assert.Empty(t, terminal.sentOrders)
	})

	t.Run("terminal rejection carries retcode and comment", func(t *testing.T) {
		terminal := &mockTerminal{
			symbols:     knownSymbols,
			ticks:       ticks,
			orderResult: &ports.OrderResult{Done: false, Retcode: 10019, Comment: "No money"},
		}
		gw, err := New(testConfig(), &mockLogger{}, terminal)
		require.NoError(t, err)

		_, err = gw.PlaceTrade(context.Background(), TradeParams{Symbol: "EURUSD"})
		assert.ErrorIs(t, err, ports.ErrOrderRejected)

		rej, ok := IsRejection(err)
		require.True(t, ok)
		assert.Equal(t, 10019, rej.Retcode)
		assert.Equal(t, "No money", rej.Comment)
	})
}

func TestClosePosition(t *testing.T) {
	ticks := map[string]*domain.Tick{
		"EURUSD": {Bid: 1.10480, Ask: 1.10500},
	}
	buyPosition := domain.Position{Ticket: 42, Symbol: "EURUSD", Side: domain.Buy, Volume: 0.30}
	sellPosition := domain.Position{Ticket: 43, Symbol: "EURUSD", Side: domain.Sell, Volume: 0.70}

	t.Run("unknown ticket", func(t *testing.T) {
		terminal := &mockTerminal{ticks: ticks}
		gw, err := New(testConfig(), &mockLogger{}, terminal)
		require.NoError(t, err)

		err = gw.ClosePosition(context.Background(), 999)
		assert.ErrorIs(t, err, ports.ErrPositionNotFound)
		assert.Empty(t, terminal.sentOrders)
	})

	t.Run("buy closes with sell at bid", func(t *testing.T) {
		terminal := &mockTerminal{
			ticks:       ticks,
			positions:   []domain.Position{buyPosition},
			orderResult: filledOrder(900, 1.10480, 0.30),
		}
		gw, err := New(testConfig(), &mockLogger{}, terminal)
		require.NoError(t, err)

		require.NoError(t, gw.ClosePosition(context.Background(), 42))
		require.Len(t, terminal.sentOrders, 1)
		sent := terminal.sentOrders[0]
		assert.Equal(t, domain.Sell, sent.Side)
		assert.Equal(t, 1.10480, sent.Price) // bid
		assert.Equal(t, 0.30, sent.Volume)
		assert.Equal(t, int64(42), sent.Position)
		assert.Equal(t, "Close by Signal Agent", sent.Comment)
	})

	t.Run("sell closes with buy at ask", func(t *testing.T) {
		terminal := &mockTerminal{
			ticks:       ticks,
			positions:   []domain.Position{sellPosition},
			orderResult: filledOrder(901, 1.10500, 0.70),
		}
		gw, err := New(testConfig(), &mockLogger{}, terminal)
		require.NoError(t, err)

		require.NoError(t, gw.ClosePosition(context.Background(), 43))
		require.Len(t, terminal.sentOrders, 1)
		sent := terminal.sentOrders[0]
		assert.Equal(t, domain.Buy, sent.Side)
		assert.Equal(t, 1.10500, sent.Price) // ask
		assert.Equal(t, 0.70, sent.Volume)
	})

	t.Run("terminal rejection maps to close rejected", func(t *testing.T) {
		terminal := &mockTerminal{
			ticks:       ticks,
			positions:   []domain.Position{buyPosition},
			orderResult: &ports.OrderResult{Done: false, Retcode: 10013, Comment: "Invalid request"},
		}
		gw, err := New(testConfig(), &mockLogger{}, terminal)
		require.NoError(t, err)

		err = gw.ClosePosition(context.Background(), 42)
		assert.ErrorIs(t, err, ports.ErrCloseRejected)
		assert.NotErrorIs(t, err, ports.ErrOrderRejected)

		rej, ok := IsRejection(err)
		require.True(t, ok)
		assert.Equal(t, "Invalid request", rej.Comment)
	})
}

func TestPositions(t *testing.T) {
	t.Run("no open positions yields empty slice", func(t *testing.T) {
		gw, err := New(testConfig(), &mockLogger{}, &mockTerminal{positions: []domain.Position{}})
		require.NoError(t, err)

		positions, err := gw.Positions(context.Background())
		require.NoError(t, err)
		assert.Empty(t, positions)
	})

	t.Run("terminal order preserved", func(t *testing.T) {
		terminal := &mockTerminal{positions: []domain.Position{
			{Ticket: 2, Symbol: "GBPUSD", Side: domain.Sell},
			{Ticket: 1, Symbol: "EURUSD", Side: domain.Buy},
		}}
		gw, err := New(testConfig(), &mockLogger{}, terminal)
		require.NoError(t, err)

		positions, err := gw.Positions(context.Background())
		require.NoError(t, err)
		require.Len(t, positions, 2)
		assert.Equal(t, int64(2), positions[0].Ticket)
		assert.Equal(t, int64(1), positions[1].Ticket)
	})

	t.Run("terminal error surfaces", func(t *testing.T) {
		gw, err := New(testConfig(), &mockLogger{}, &mockTerminal{posErr: errors.New("socket gone")})
		require.NoError(t, err)

		_, err = gw.Positions(context.Background())
		assert.Error(t, err)
	})
}
