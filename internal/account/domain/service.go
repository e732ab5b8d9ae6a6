package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/roomvision/roomvision/pkg/db/pagination"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound        = errors.New("user_not_found")
	ErrInvalidUser         = errors.New("invalid_user")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInsufficientCredits = errors.New("insufficient_credits")
	ErrDuplicateGrant      = errors.New("duplicate_grant")
	ErrInvalidPageToken    = errors.New("invalid_page_token")
	ErrTransactionNotFound = errors.New("transaction_not_found")
)

// GrantRequest credits a user balance for a settled payment. ProviderRef is
// the provider-side payment reference and deduplicates retried grants.
type GrantRequest struct {
	UserID      string
	Credits     int64
	AmountCents int64
	Currency    string
	Description string
	ProviderRef string
}

type ListTransactionsRequest struct {
	pagination.Pagination
	UserID string
}

type ListTransactionsResponse struct {
	pagination.PageInfo
	Transactions []Transaction `json:"transactions"`
}

type Service interface {
	GetUser(ctx context.Context, userID string) (*User, error)
	EnsureUser(ctx context.Context, user *User) error
	AttachStripeCustomer(ctx context.Context, userID, customerID string) error
	Balance(ctx context.Context, userID string) (int64, error)
	Debit(ctx context.Context, userID string, credits int64, description string) error
	Grant(ctx context.Context, req GrantRequest) error
	ListTransactions(ctx context.Context, req ListTransactionsRequest) (ListTransactionsResponse, error)
	GetTransaction(ctx context.Context, userID string, id snowflake.ID) (*Transaction, error)
}

type TransactionCursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type ListFilter struct {
	UserID string
	Cursor *TransactionCursor
	Limit  int
}

type Repository interface {
	FindUser(ctx context.Context, db *gorm.DB, userID string) (*User, error)
	UpsertUser(ctx context.Context, db *gorm.DB, user *User) error
	SetStripeCustomer(ctx context.Context, db *gorm.DB, userID, customerID string, now time.Time) error
	DecrementCredits(ctx context.Context, db *gorm.DB, userID string, credits int64, now time.Time) (bool, error)
	IncrementCredits(ctx context.Context, db *gorm.DB, userID string, credits int64, now time.Time) error
	InsertTransaction(ctx context.Context, db *gorm.DB, txn *Transaction) (bool, error)
	FindTransaction(ctx context.Context, db *gorm.DB, userID string, id snowflake.ID) (*Transaction, error)
	ListTransactions(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Transaction, error)
}
