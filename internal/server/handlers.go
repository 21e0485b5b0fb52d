package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"mt5gateway/internal/app"
	"mt5gateway/internal/domain"
	"mt5gateway/internal/ports"
)

// tradeRequest is the /trade body. Numeric fields go through decimal so both
// JSON numbers and numeric strings parse; anything else is a 400. Pointers
// distinguish "absent" from "zero" for the defaulting policy.
type tradeRequest struct {
	Symbol     string           `json:"symbol"`
	Action     string           `json:"action"`
	LotSize    *decimal.Decimal `json:"lotSize"`
	StopLoss   *decimal.Decimal `json:"stopLoss"`
	TakeProfit *decimal.Decimal `json:"takeProfit"`
	Comment    string           `json:"comment"`
}

type closeRequest struct {
	Ticket int64 `json:"ticket"`
}

type positionResponse struct {
	Ticket    int64   `json:"ticket"`
	Symbol    string  `json:"symbol"`
	Type      string  `json:"type"`
	Volume    float64 `json:"volume"`
	PriceOpen float64 `json:"price_open"`
	SL        float64 `json:"sl"`
	TP        float64 `json:"tp"`
	Profit    float64 `json:"profit"`
	Comment   string  `json:"comment"`
}

// GET /health. Never fails; reports live terminal connectivity.
func (s *Server) handleHealth(c *gin.Context) {
	connected := s.gw.Health(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"status":        "running",
		"mt5_connected": connected,
		"timestamp":     time.Now().Format(time.RFC3339),
	})
}

// GET /account
func (s *Server) handleAccount(c *gin.Context) {
	account, err := s.gw.Account(c.Request.Context())
	if err != nil {
		s.logger.Error(c.Request.Context(), err, "Account query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Not connected"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"login":       account.Login,
		"balance":     account.Balance,
		"equity":      account.Equity,
		"margin":      account.Margin,
		"free_margin": account.FreeMargin,
		"profit":      account.Profit,
	})
}

// POST /trade
func (s *Server) handleTrade(c *gin.Context) {
	var req tradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}

	side, err := domain.ParseSide(req.Action)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	params := app.TradeParams{
		Symbol:  req.Symbol,
		Side:    side,
		Comment: req.Comment,
	}
	if req.LotSize != nil {
		// An explicit lot size must be positive; only an absent field falls
		// back to the configured default.
		v, _ := req.LotSize.Float64()
		if v <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "lot size must be positive"})
			return
		}
		params.LotSize = v
	}
	if req.StopLoss != nil {
		params.StopLoss, _ = req.StopLoss.Float64()
	}
	if req.TakeProfit != nil {
		params.TakeProfit, _ = req.TakeProfit.Float64()
	}
	params = s.gw.NormalizeTrade(params)

	result, err := s.gw.PlaceTrade(c.Request.Context(), params)
	if err != nil {
		s.writeTradeError(c, params.Symbol, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"ticket":  result.Ticket,
		"price":   result.Price,
		"volume":  result.Volume,
		"symbol":  result.Symbol,
		"type":    string(result.Side),
	})
}

// GET /positions. Never fails; no open positions yields an empty list.
func (s *Server) handlePositions(c *gin.Context) {
	positions, err := s.gw.Positions(c.Request.Context())
	if err != nil {
		s.logger.Error(c.Request.Context(), err, "Position enumeration failed")
		positions = nil
	}

	out := make([]positionResponse, 0, len(positions))
	for _, p := range positions {
		out = append(out, positionResponse{
			Ticket:    p.Ticket,
			Symbol:    p.Symbol,
			Type:      string(p.Side),
			Volume:    p.Volume,
			PriceOpen: p.OpenPrice,
			SL:        p.StopLoss,
			TP:        p.TakeProfit,
			Profit:    p.Profit,
			Comment:   p.Comment,
		})
	}
	c.JSON(http.StatusOK, gin.H{"positions": out})
}

// POST /close
func (s *Server) handleClose(c *gin.Context) {
	var req closeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}

	if err := s.gw.ClosePosition(c.Request.Context(), req.Ticket); err != nil {
		s.writeCloseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "ticket": req.Ticket})
}

// writeTradeError maps the error taxonomy onto the /trade failure responses.
func (s *Server) writeTradeError(c *gin.Context, symbol string, err error) {
	if rej, ok := app.IsRejection(err); ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   fmt.Sprintf("Order failed: %s", rej.Comment),
			"retcode": rej.Retcode,
		})
		return
	}
	switch {
	case errors.Is(err, ports.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
	case errors.Is(err, ports.ErrUnknownSymbol):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": fmt.Sprintf("Symbol %s not found", symbol)})
	case errors.Is(err, ports.ErrPriceUnavailable):
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to get price"})
	default:
		s.logger.Error(c.Request.Context(), err, "Trade failed", map[string]interface{}{"symbol": symbol})
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
	}
}

// writeCloseError maps the error taxonomy onto the /close failure responses.
func (s *Server) writeCloseError(c *gin.Context, err error) {
	if rej, ok := app.IsRejection(err); ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   fmt.Sprintf("Close failed: %s", rej.Comment),
		})
		return
	}
	if errors.Is(err, ports.ErrPositionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Position not found"})
		return
	}
	s.logger.Error(c.Request.Context(), err, "Close failed")
	c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
}
