package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"

	"github.com/thanosan23/StockSim/internal/models"
)

var (
	// ErrDuplicateUsername is returned when signup collides with an
	// existing username.
	ErrDuplicateUsername = errors.New("username already taken")
	// ErrInvalidCredential covers both unknown username and wrong
	// password, so login doesn't leak which one it was.
	ErrInvalidCredential = errors.New("invalid username or password")
	// ErrUnauthenticated is returned when a request carries no valid
	// identity.
	ErrUnauthenticated = errors.New("not authenticated")
)

const uniqueViolation = "23505"

// Claims is the JWT payload for a logged-in session.
type Claims struct {
	UserID    int    `json:"uid"`
	Username  string `json:"username"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Service owns signup, login and token validation.
type Service struct {
	db        *sqlx.DB
	jwtSecret []byte
	tokenTTL  time.Duration
}

func NewService(db *sqlx.DB, jwtSecret string, tokenTTL time.Duration) *Service {
	return &Service{
		db:        db,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
	}
}

// Signup creates a user with a bcrypt-hashed password and returns its id.
func (s *Service) Signup(ctx context.Context, username, password string) (int, error) {
	if username == "" || password == "" {
		return 0, fmt.Errorf("%w: empty username or password", ErrInvalidCredential)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("can't hash password: %w", err)
	}

	var userID int
	err = s.db.QueryRowContext(ctx,
		"INSERT INTO users (username, password_hash) VALUES ($1, $2) RETURNING id",
		username, string(hash),
	).Scan(&userID)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return 0, ErrDuplicateUsername
	}
	if err != nil {
		return 0, fmt.Errorf("can't insert user: %w", err)
	}

	return userID, nil
}

// Login verifies the password and issues a signed session token.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user,
		"SELECT id, username, password_hash, profit, created_at FROM users WHERE username = $1",
		username,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrInvalidCredential
	}
	if err != nil {
		return "", fmt.Errorf("can't query user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredential
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:    user.ID,
		Username:  user.Username,
		SessionID: uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	})

	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("can't sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses a session token and returns its claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnauthenticated, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrUnauthenticated
	}
	return claims, nil
}
