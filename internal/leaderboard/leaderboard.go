package leaderboard

import (
	"context"
	"fmt"
	"sort"

	"github.com/jmoiron/sqlx"

	"github.com/thanosan23/StockSim/internal/models"
)

// Limit caps how many entries the leaderboard returns.
const Limit = 50

// Rank orders users ascending by cumulative realized profit (lowest first)
// and truncates to Limit. Callers wanting best performers first must reverse.
// The sort is stable, so ties keep their input order.
func Rank(users []models.LeaderboardEntry) []models.LeaderboardEntry {
	ranked := make([]models.LeaderboardEntry, len(users))
	copy(ranked, users)

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Profit < ranked[j].Profit
	})

	if len(ranked) > Limit {
		ranked = ranked[:Limit]
	}
	return ranked
}

// Service loads users from the ledger and ranks them.
type Service struct {
	db *sqlx.DB
}

func NewService(db *sqlx.DB) *Service {
	return &Service{db: db}
}

// Top returns the ranked leaderboard.
func (s *Service) Top(ctx context.Context) ([]models.LeaderboardEntry, error) {
	users := make([]models.LeaderboardEntry, 0)
	err := s.db.SelectContext(ctx, &users, "SELECT username, profit FROM users")
	if err != nil {
		return nil, fmt.Errorf("can't read users: %w", err)
	}
	return Rank(users), nil
}
