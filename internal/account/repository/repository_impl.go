package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/roomvision/roomvision/internal/account/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindUser(ctx context.Context, db *gorm.DB, userID string) (*domain.User, error) {
	var item domain.User
	err := db.WithContext(ctx).Raw(
		`SELECT id, email, name, credits, stripe_customer_id, created_at, updated_at
		 FROM users
		 WHERE id = ?
		 LIMIT 1`,
		userID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == "" {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) UpsertUser(ctx context.Context, db *gorm.DB, user *domain.User) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO users (id, email, name, credits, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		user.ID,
		user.Email,
		user.Name,
		user.Credits,
		user.CreatedAt,
		user.UpdatedAt,
	).Error
}

func (r *repo) SetStripeCustomer(ctx context.Context, db *gorm.DB, userID, customerID string, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE users
		 SET stripe_customer_id = ?, updated_at = ?
		 WHERE id = ?`,
		customerID,
		now,
		userID,
	).Error
}

// DecrementCredits is the sole balance guard: the WHERE clause refuses to
// take the balance below zero, even under concurrent debits.
func (r *repo) DecrementCredits(ctx context.Context, db *gorm.DB, userID string, credits int64, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE users
		 SET credits = credits - ?, updated_at = ?
		 WHERE id = ? AND credits >= ?`,
		credits,
		now,
		userID,
		credits,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) IncrementCredits(ctx context.Context, db *gorm.DB, userID string, credits int64, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE users
		 SET credits = credits + ?, updated_at = ?
		 WHERE id = ?`,
		credits,
		now,
		userID,
	).Error
}

func (r *repo) InsertTransaction(ctx context.Context, db *gorm.DB, txn *domain.Transaction) (bool, error) {
	if txn.ProviderPaymentRef != nil {
		res := db.WithContext(ctx).Exec(
			`INSERT INTO transactions (
				id, user_id, type, credits, amount_cents, currency, description,
				provider_payment_ref, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (provider_payment_ref) DO NOTHING`,
			txn.ID,
			txn.UserID,
			txn.Type,
			txn.Credits,
			txn.AmountCents,
			txn.Currency,
			txn.Description,
			*txn.ProviderPaymentRef,
			txn.CreatedAt,
		)
		if res.Error != nil {
			return false, res.Error
		}
		return res.RowsAffected > 0, nil
	}

	res := db.WithContext(ctx).Exec(
		`INSERT INTO transactions (
			id, user_id, type, credits, amount_cents, currency, description, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.ID,
		txn.UserID,
		txn.Type,
		txn.Credits,
		txn.AmountCents,
		txn.Currency,
		txn.Description,
		txn.CreatedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindTransaction(ctx context.Context, db *gorm.DB, userID string, id snowflake.ID) (*domain.Transaction, error) {
	var item domain.Transaction
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, type, credits, amount_cents, currency, description,
			provider_payment_ref, created_at
		 FROM transactions
		 WHERE id = ? AND user_id = ?
		 LIMIT 1`,
		id,
		userID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) ListTransactions(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.Transaction, error) {
	query := `SELECT id, user_id, type, credits, amount_cents, currency, description,
			provider_payment_ref, created_at
		 FROM transactions
		 WHERE user_id = ?`
	args := []any{filter.UserID}

	if filter.Cursor != nil {
		query += ` AND (created_at < ? OR (created_at = ? AND id < ?))`
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.CreatedAt, filter.Cursor.ID)
	}

	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, filter.Limit+1)

	var items []*domain.Transaction
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
