package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/roomvision/roomvision/internal/clock"
	sessiondomain "github.com/roomvision/roomvision/internal/session/domain"
	sessionrepo "github.com/roomvision/roomvision/internal/session/repository"
	sessionservice "github.com/roomvision/roomvision/internal/session/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newSessionService(t *testing.T, db *gorm.DB, clk clock.Clock) sessiondomain.Service {
	t.Helper()

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}

	return sessionservice.NewService(sessionservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  sessionrepo.Provide(),
	})
}

func TestIssueAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := newSessionService(t, db, clock.NewSystemClock())

	issued, err := svc.Issue(ctx, "user_1", "test-agent", "203.0.113.9")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if issued.RawToken == "" {
		t.Fatalf("expected raw token")
	}

	session, err := svc.Authenticate(ctx, issued.RawToken)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if session.UserID != "user_1" {
		t.Fatalf("expected user_1, got %s", session.UserID)
	}

	// The raw token never hits the database.
	var count int64
	if err := db.Raw("SELECT COUNT(1) FROM sessions WHERE session_token_hash = ?", issued.RawToken).Scan(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("raw token stored unhashed")
	}
}

func TestAuthenticateRejectsUnknownToken(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := newSessionService(t, db, clock.NewSystemClock())

	_, err := svc.Authenticate(ctx, "not-a-token")
	if !errors.Is(err, sessiondomain.ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession, got %v", err)
	}
}

func TestAuthenticateRejectsExpiredSession(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	svc := newSessionService(t, db, clk)

	issued, err := svc.Issue(ctx, "user_1", "", "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	clk.Advance(31 * 24 * time.Hour)

	_, err = svc.Authenticate(ctx, issued.RawToken)
	if !errors.Is(err, sessiondomain.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}

func TestRevokeInvalidatesSession(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := newSessionService(t, db, clock.NewSystemClock())

	issued, err := svc.Issue(ctx, "user_1", "", "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if err := svc.Revoke(ctx, issued.RawToken); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	_, err = svc.Authenticate(ctx, issued.RawToken)
	if !errors.Is(err, sessiondomain.ErrSessionRevoked) {
		t.Fatalf("expected ErrSessionRevoked, got %v", err)
	}
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	schema := `CREATE TABLE sessions (
		id BIGINT PRIMARY KEY,
		user_id TEXT NOT NULL,
		session_token_hash TEXT NOT NULL UNIQUE,
		user_agent TEXT NOT NULL DEFAULT '',
		ip_address TEXT NOT NULL DEFAULT '',
		expires_at TIMESTAMP NOT NULL,
		revoked_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		last_seen_at TIMESTAMP NOT NULL
	)`

	if err := db.Exec(schema).Error; err != nil {
		t.Fatalf("schema exec failed: %v", err)
	}

	return db
}
