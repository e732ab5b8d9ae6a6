package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrInvalidSession  = errors.New("invalid_session")
	ErrSessionExpired  = errors.New("session_expired")
	ErrSessionRevoked  = errors.New("session_revoked")
	ErrSessionNotFound = errors.New("session_not_found")
)

// IssueResult carries the raw token back to the caller exactly once.
type IssueResult struct {
	RawToken  string
	SessionID snowflake.ID
	ExpiresAt time.Time
}

type Service interface {
	Issue(ctx context.Context, userID, userAgent, ipAddress string) (*IssueResult, error)
	Authenticate(ctx context.Context, rawToken string) (*Session, error)
	Revoke(ctx context.Context, rawToken string) error
}

type Repository interface {
	CreateSession(ctx context.Context, db *gorm.DB, session *Session) error
	FindSessionByTokenHash(ctx context.Context, db *gorm.DB, tokenHash string) (*Session, error)
	RevokeSession(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error
	TouchSession(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error
}
