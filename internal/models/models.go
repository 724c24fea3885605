package models

import "time"

// User represents a registered account. Profit is cumulative realized profit,
// only ever adjusted by the exact delta of a sell.
type User struct {
	ID           int       `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Profit       float64   `db:"profit" json:"profit"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Position is a single lot. A user may hold several lots of the same symbol
// from different purchases; (user_id, symbol, purchased_at) identifies one.
type Position struct {
	ID            int       `db:"id" json:"id"`
	UserID        int       `db:"user_id" json:"user_id"`
	Symbol        string    `db:"symbol" json:"symbol"`
	Shares        int       `db:"shares" json:"shares"`
	PurchasePrice float64   `db:"purchase_price" json:"purchase_price"`
	PurchasedAt   time.Time `db:"purchased_at" json:"purchased_at"`
}

// LotKey identifies one of a user's lots.
type LotKey struct {
	Symbol      string    `json:"symbol"`
	PurchasedAt time.Time `json:"purchased_at"`
}

// Trade is one ledger row: a buy or a sell as it settled.
type Trade struct {
	ID            int       `db:"id" json:"id"`
	UserID        int       `db:"user_id" json:"user_id"`
	Symbol        string    `db:"symbol" json:"symbol"`
	TradeType     string    `db:"trade_type" json:"trade_type"` // "BUY" or "SELL"
	Quantity      int       `db:"quantity" json:"quantity"`
	Price         float64   `db:"price" json:"price"`
	RealizedDelta float64   `db:"realized_delta" json:"realized_delta"`
	RequestID     *string   `db:"request_id" json:"request_id,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// BuyRequest - what the client sends to open a lot
type BuyRequest struct {
	Symbol string `json:"symbol" binding:"required"`
	Shares int    `json:"shares" binding:"required,min=1"`
}

// SellRequest - closes (part of) one lot. RequestID is an optional client
// idempotency key; a replayed id is rejected instead of settling twice.
type SellRequest struct {
	Symbol      string    `json:"symbol" binding:"required"`
	PurchasedAt time.Time `json:"purchased_at" binding:"required"`
	Quantity    int       `json:"quantity" binding:"required,min=1"`
	RequestID   string    `json:"request_id" binding:"omitempty,uuid"`
}

// Valuation is the mark-to-market view of one lot.
type Valuation struct {
	MarketValue     float64 `json:"market_value"`
	CostBasis       float64 `json:"cost_basis"`
	UnrealizedDelta float64 `json:"unrealized_delta"`
}

// PositionView is a lot plus its valuation at current quotes.
type PositionView struct {
	Position
	Valuation
}

// PortfolioResponse - what we send back for the portfolio page
type PortfolioResponse struct {
	Positions       []PositionView `json:"positions"`
	RealizedProfit  float64        `json:"realized_profit"`
	UnrealizedDelta float64        `json:"unrealized_delta"`
}

// LeaderboardEntry pairs a username with its cumulative realized profit.
type LeaderboardEntry struct {
	Username string  `db:"username" json:"username"`
	Profit   float64 `db:"profit" json:"profit"`
}
