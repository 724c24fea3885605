package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thanosan23/StockSim/internal/auth"
	"github.com/thanosan23/StockSim/internal/engine"
	"github.com/thanosan23/StockSim/internal/leaderboard"
	"github.com/thanosan23/StockSim/internal/logger"
	"github.com/thanosan23/StockSim/internal/models"
	"github.com/thanosan23/StockSim/internal/quotes"
)

// Handler wires the HTTP surface to the engine. All money decisions live in
// the engine; this layer only binds requests, resolves identity and maps
// errors to statuses.
type Handler struct {
	engine      *engine.Engine
	processor   *OrderProcessor
	auth        *auth.Service
	leaderboard *leaderboard.Service
	quoter      engine.Quoter
	logger      logger.Logger
}

func New(eng *engine.Engine, processor *OrderProcessor, authSvc *auth.Service,
	lb *leaderboard.Service, quoter engine.Quoter, logger logger.Logger) *Handler {
	return &Handler{
		engine:      eng,
		processor:   processor,
		auth:        authSvc,
		leaderboard: lb,
		quoter:      quoter,
		logger:      logger,
	}
}

// BuyStock handles POST /api/trades/buy
func (h *Handler) BuyStock(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": auth.ErrUnauthenticated.Error()})
		return
	}

	var req models.BuyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := h.processor.Submit(c.Request.Context(), Order{
		Type:   OrderBuy,
		UserID: userID,
		Buy:    req,
	})
	if result.Err != nil {
		h.fail(c, result.Err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Position opened",
		"position": result.Position,
	})
}

// SellStock handles POST /api/trades/sell
func (h *Handler) SellStock(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": auth.ErrUnauthenticated.Error()})
		return
	}

	var req models.SellRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := h.processor.Submit(c.Request.Context(), Order{
		Type:   OrderSell,
		UserID: userID,
		Sell:   req,
	})
	if result.Err != nil {
		h.fail(c, result.Err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Position closed",
		"realized": result.Realized,
	})
}

// GetPortfolio handles GET /api/portfolio
func (h *Handler) GetPortfolio(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": auth.ErrUnauthenticated.Error()})
		return
	}

	resp, err := h.engine.Portfolio(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetTradeHistory handles GET /api/trades
func (h *Handler) GetTradeHistory(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": auth.ErrUnauthenticated.Error()})
		return
	}

	trades, err := h.engine.Trades(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"trades": trades,
		"count":  len(trades),
	})
}

// GetQuote handles GET /api/quote/:symbol
func (h *Handler) GetQuote(c *gin.Context) {
	symbol := c.Param("symbol")

	price, err := h.quoter.Quote(c.Request.Context(), symbol)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol": symbol,
		"price":  price,
	})
}

// GetLeaderboard handles GET /api/leaderboard
func (h *Handler) GetLeaderboard(c *gin.Context) {
	entries, err := h.leaderboard.Top(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"leaderboard": entries,
		"count":       len(entries),
	})
}

// fail maps ledger errors to HTTP statuses. Anything unexpected is logged
// and hidden behind a 500.
func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated), errors.Is(err, auth.ErrInvalidCredential):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, auth.ErrDuplicateUsername), errors.Is(err, engine.ErrDuplicateRequest):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, engine.ErrLotNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, quotes.ErrQuoteUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		h.logger.Errorf("request failed: %s", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
