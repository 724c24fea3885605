package auth

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/thanosan23/StockSim/internal/db"
)

func TestSignupAndLogin(t *testing.T) {
	database := db.SetupTestDB(t)
	defer database.Close()
	defer db.CleanupTestDB(t, database)

	svc := NewService(database, "test-secret", time.Hour)
	username := fmt.Sprintf("alice_%d", time.Now().UnixNano())

	userID, err := svc.Signup(context.Background(), username, "hunter2")
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	if userID == 0 {
		t.Fatal("Expected a user id")
	}

	token, err := svc.Login(context.Background(), username, "hunter2")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.UserID != userID {
		t.Errorf("Expected user id %d in claims, got %d", userID, claims.UserID)
	}
	if claims.Username != username {
		t.Errorf("Expected username %s in claims, got %s", username, claims.Username)
	}
	if claims.SessionID == "" {
		t.Error("Expected a session id in claims")
	}
}

func TestSignup_DuplicateUsername(t *testing.T) {
	database := db.SetupTestDB(t)
	defer database.Close()
	defer db.CleanupTestDB(t, database)

	svc := NewService(database, "test-secret", time.Hour)
	username := fmt.Sprintf("bob_%d", time.Now().UnixNano())

	if _, err := svc.Signup(context.Background(), username, "pw1"); err != nil {
		t.Fatalf("First signup failed: %v", err)
	}

	_, err := svc.Signup(context.Background(), username, "pw2")
	if !errors.Is(err, ErrDuplicateUsername) {
		t.Errorf("Expected ErrDuplicateUsername, got %v", err)
	}
}

func TestLogin_InvalidCredential(t *testing.T) {
	database := db.SetupTestDB(t)
	defer database.Close()
	defer db.CleanupTestDB(t, database)

	svc := NewService(database, "test-secret", time.Hour)
	username := fmt.Sprintf("carol_%d", time.Now().UnixNano())

	if _, err := svc.Signup(context.Background(), username, "correct"); err != nil {
		t.Fatalf("Signup failed: %v", err)
	}

	// Wrong password and unknown user come back indistinguishable
	if _, err := svc.Login(context.Background(), username, "wrong"); !errors.Is(err, ErrInvalidCredential) {
		t.Errorf("Expected ErrInvalidCredential for bad password, got %v", err)
	}
	if _, err := svc.Login(context.Background(), "nobody_here", "x"); !errors.Is(err, ErrInvalidCredential) {
		t.Errorf("Expected ErrInvalidCredential for unknown user, got %v", err)
	}
}

func TestValidateToken_Invalid(t *testing.T) {
	svc := NewService(nil, "test-secret", time.Hour)

	if _, err := svc.ValidateToken("not-a-token"); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("Expected ErrUnauthenticated for garbage token, got %v", err)
	}

	// Token signed with a different secret must be rejected
	wrongKey := signed(t, "other-secret", time.Now().Add(time.Hour))
	if _, err := svc.ValidateToken(wrongKey); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("Expected ErrUnauthenticated for wrong key, got %v", err)
	}

	// Expired token must be rejected
	stale := signed(t, "test-secret", time.Now().Add(-time.Hour))
	if _, err := svc.ValidateToken(stale); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("Expected ErrUnauthenticated for expired token, got %v", err)
	}
}

func signed(t *testing.T, secret string, expiry time.Time) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:   1,
		Username: "x",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiry),
		},
	})
	s, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("Failed to sign test token: %v", err)
	}
	return s
}
