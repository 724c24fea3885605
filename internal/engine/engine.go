package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/thanosan23/StockSim/internal/logger"
	"github.com/thanosan23/StockSim/internal/models"
)

var (
	// ErrLotNotFound is returned when a sell references a lot the user
	// does not hold.
	ErrLotNotFound = errors.New("lot not found")
	// ErrDuplicateRequest is returned when a sell replays an idempotency
	// key that already settled.
	ErrDuplicateRequest = errors.New("duplicate request")
)

const uniqueViolation = "23505"

// Quoter is the price oracle as the engine sees it. Implementations must
// honor the context deadline and fail instead of hanging.
type Quoter interface {
	Quote(ctx context.Context, symbol string) (float64, error)
}

// RealizedDelta reports how a sell settled.
type RealizedDelta struct {
	Delta       float64 `json:"delta"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
	FullyClosed bool    `json:"fully_closed"`
	TradeID     int     `json:"trade_id"`
}

// Engine is the portfolio ledger core. Every mutating operation runs as one
// database transaction; concurrent sells of the same lot are serialized by
// row locks, so decrements never start from a stale share count.
type Engine struct {
	db     *sqlx.DB
	quoter Quoter
	now    func() time.Time
	logger logger.Logger
}

func New(db *sqlx.DB, quoter Quoter, logger logger.Logger) *Engine {
	return &Engine{
		db:     db,
		quoter: quoter,
		now:    time.Now,
		logger: logger,
	}
}

// OpenPosition buys shares of symbol at the current quote and stores them as
// a new lot. Buys never merge with an existing lot of the same symbol: each
// purchase keeps its own price and timestamp so it can be valued and closed
// on its own. Profit is untouched; it is realized only at sell.
func (e *Engine) OpenPosition(ctx context.Context, userID int, symbol string, shares int) (models.Position, error) {
	if symbol == "" {
		return models.Position{}, fmt.Errorf("empty symbol")
	}
	if shares < 1 {
		return models.Position{}, fmt.Errorf("shares must be positive, got %d", shares)
	}

	price, err := e.quoter.Quote(ctx, symbol)
	if err != nil {
		return models.Position{}, fmt.Errorf("can't quote %s: %w", symbol, err)
	}

	// Microsecond precision survives the round trip through timestamptz,
	// and is fine-grained enough to tell apart lots opened back to back.
	purchasedAt := e.now().UTC().Truncate(time.Microsecond)

	tx, err := e.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Position{}, fmt.Errorf("can't begin transaction: %w", err)
	}
	defer tx.Rollback()

	pos := models.Position{
		UserID:        userID,
		Symbol:        symbol,
		Shares:        shares,
		PurchasePrice: price,
		PurchasedAt:   purchasedAt,
	}

	// Two buys of the same symbol can land in the same microsecond; bump
	// the timestamp until the lot key is free.
	for {
		err = tx.QueryRowContext(ctx, `
            INSERT INTO positions (user_id, symbol, shares, purchase_price, purchased_at)
            VALUES ($1, $2, $3, $4, $5)
            ON CONFLICT (user_id, symbol, purchased_at) DO NOTHING
            RETURNING id
        `, userID, symbol, shares, price, pos.PurchasedAt).Scan(&pos.ID)
		if errors.Is(err, sql.ErrNoRows) {
			pos.PurchasedAt = pos.PurchasedAt.Add(time.Microsecond)
			continue
		}
		if err != nil {
			return models.Position{}, fmt.Errorf("can't insert position: %w", err)
		}
		break
	}

	_, err = tx.ExecContext(ctx, `
        INSERT INTO trades (user_id, symbol, trade_type, quantity, price)
        VALUES ($1, $2, 'BUY', $3, $4)
    `, userID, symbol, shares, price)
	if err != nil {
		return models.Position{}, fmt.Errorf("can't record trade: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return models.Position{}, fmt.Errorf("can't commit: %w", err)
	}

	e.logger.Infof("user %d bought %d %s at %.2f", userID, shares, symbol, price)
	return pos, nil
}

// ClosePosition sells quantity shares out of the lot identified by key and
// realizes (current − purchase) × quantity into the user's profit. Quantity
// is clamped to the lot size; a lot left with no shares is deleted rather
// than kept as a zero row. The profit update and the lot mutation commit
// together or not at all.
func (e *Engine) ClosePosition(ctx context.Context, userID int, key models.LotKey, quantity int, requestID string) (RealizedDelta, error) {
	if quantity < 1 {
		return RealizedDelta{}, fmt.Errorf("quantity must be positive, got %d", quantity)
	}

	// Quote before taking the row lock; the oracle call is the only
	// network suspension point and must not hold the lot locked.
	price, err := e.quoter.Quote(ctx, key.Symbol)
	if err != nil {
		return RealizedDelta{}, fmt.Errorf("can't quote %s: %w", key.Symbol, err)
	}

	tx, err := e.db.BeginTxx(ctx, nil)
	if err != nil {
		return RealizedDelta{}, fmt.Errorf("can't begin transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		shares        int
		purchasePrice float64
	)
	err = tx.QueryRowContext(ctx, `
        SELECT shares, purchase_price FROM positions
        WHERE user_id = $1 AND symbol = $2 AND purchased_at = $3
        FOR UPDATE
    `, userID, key.Symbol, key.PurchasedAt).Scan(&shares, &purchasePrice)
	if errors.Is(err, sql.ErrNoRows) {
		return RealizedDelta{}, ErrLotNotFound
	}
	if err != nil {
		return RealizedDelta{}, fmt.Errorf("can't read lot: %w", err)
	}

	if quantity > shares {
		quantity = shares
	}
	delta := (price - purchasePrice) * float64(quantity)

	_, err = tx.ExecContext(ctx,
		"UPDATE users SET profit = profit + $1 WHERE id = $2",
		delta, userID,
	)
	if err != nil {
		return RealizedDelta{}, fmt.Errorf("can't update profit: %w", err)
	}

	remaining := shares - quantity
	if remaining <= 0 {
		_, err = tx.ExecContext(ctx, `
            DELETE FROM positions
            WHERE user_id = $1 AND symbol = $2 AND purchased_at = $3
        `, userID, key.Symbol, key.PurchasedAt)
	} else {
		_, err = tx.ExecContext(ctx, `
            UPDATE positions SET shares = $1
            WHERE user_id = $2 AND symbol = $3 AND purchased_at = $4
        `, remaining, userID, key.Symbol, key.PurchasedAt)
	}
	if err != nil {
		return RealizedDelta{}, fmt.Errorf("can't update lot: %w", err)
	}

	var reqID any
	if requestID != "" {
		reqID = requestID
	}

	var tradeID int
	err = tx.QueryRowContext(ctx, `
        INSERT INTO trades (user_id, symbol, trade_type, quantity, price, realized_delta, request_id)
        VALUES ($1, $2, 'SELL', $3, $4, $5, $6)
        RETURNING id
    `, userID, key.Symbol, quantity, price, delta, reqID).Scan(&tradeID)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return RealizedDelta{}, ErrDuplicateRequest
	}
	if err != nil {
		return RealizedDelta{}, fmt.Errorf("can't record trade: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return RealizedDelta{}, fmt.Errorf("can't commit: %w", err)
	}

	e.logger.Infof("user %d sold %d %s at %.2f, realized %.2f", userID, quantity, key.Symbol, price, delta)
	return RealizedDelta{
		Delta:       delta,
		Quantity:    quantity,
		Price:       price,
		FullyClosed: remaining <= 0,
		TradeID:     tradeID,
	}, nil
}

// ValuePosition marks one lot to market. Pure computation, used for the
// portfolio view, never for settlement.
func ValuePosition(lot models.Position, price float64) models.Valuation {
	marketValue := price * float64(lot.Shares)
	costBasis := lot.PurchasePrice * float64(lot.Shares)
	return models.Valuation{
		MarketValue:     marketValue,
		CostBasis:       costBasis,
		UnrealizedDelta: marketValue - costBasis,
	}
}

// Portfolio returns the user's open lots valued at current quotes, plus
// realized profit and the total unrealized delta.
func (e *Engine) Portfolio(ctx context.Context, userID int) (models.PortfolioResponse, error) {
	var profit float64
	err := e.db.GetContext(ctx, &profit, "SELECT profit FROM users WHERE id = $1", userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PortfolioResponse{}, fmt.Errorf("user %d not found", userID)
	}
	if err != nil {
		return models.PortfolioResponse{}, fmt.Errorf("can't read profit: %w", err)
	}

	var lots []models.Position
	err = e.db.SelectContext(ctx, &lots, `
        SELECT id, user_id, symbol, shares, purchase_price, purchased_at
        FROM positions
        WHERE user_id = $1
        ORDER BY symbol, purchased_at
    `, userID)
	if err != nil {
		return models.PortfolioResponse{}, fmt.Errorf("can't read positions: %w", err)
	}

	resp := models.PortfolioResponse{
		Positions:      make([]models.PositionView, 0, len(lots)),
		RealizedProfit: profit,
	}

	for _, lot := range lots {
		price, err := e.quoter.Quote(ctx, lot.Symbol)
		if err != nil {
			return models.PortfolioResponse{}, fmt.Errorf("can't quote %s: %w", lot.Symbol, err)
		}
		v := ValuePosition(lot, price)
		resp.Positions = append(resp.Positions, models.PositionView{Position: lot, Valuation: v})
		resp.UnrealizedDelta += v.UnrealizedDelta
	}

	return resp, nil
}

// Trades returns the user's most recent ledger rows, newest first.
func (e *Engine) Trades(ctx context.Context, userID int) ([]models.Trade, error) {
	trades := make([]models.Trade, 0)
	err := e.db.SelectContext(ctx, &trades, `
        SELECT id, user_id, symbol, trade_type, quantity, price, realized_delta, request_id, created_at
        FROM trades
        WHERE user_id = $1
        ORDER BY created_at DESC
        LIMIT 50
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("can't read trades: %w", err)
	}
	return trades, nil
}
