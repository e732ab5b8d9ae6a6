package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// User is an account holder with a spendable credit balance.
type User struct {
	ID               string    `json:"id" gorm:"primaryKey;type:text"`
	Email            string    `json:"email" gorm:"type:text;not null;uniqueIndex"`
	Name             string    `json:"name" gorm:"type:text;not null"`
	Credits          int64     `json:"credits" gorm:"not null;default:0"`
	StripeCustomerID *string   `json:"stripe_customer_id,omitempty" gorm:"type:text"`
	CreatedAt        time.Time `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }

type TransactionType string

const (
	TransactionTypePurchase TransactionType = "purchase"
	TransactionTypeUsage    TransactionType = "usage"
	TransactionTypeSeed     TransactionType = "seed"
)

type TransactionStatus string

// Transactions are only written once their credit movement has been
// applied, so completed is currently the only status recorded.
const TransactionStatusCompleted TransactionStatus = "completed"

// Transaction is an immutable credit movement. Credits is signed: positive
// for grants, negative for usage.
type Transaction struct {
	ID                 snowflake.ID      `json:"id" gorm:"primaryKey"`
	UserID             string            `json:"user_id" gorm:"type:text;not null;index"`
	Type               TransactionType   `json:"type" gorm:"type:text;not null"`
	Status             TransactionStatus `json:"status" gorm:"type:text;not null;default:completed"`
	Credits            int64             `json:"credits" gorm:"not null"`
	AmountCents        int64             `json:"amount_cents" gorm:"not null;default:0"`
	Currency           string            `json:"currency" gorm:"type:text;not null;default:USD"`
	Description        string            `json:"description" gorm:"type:text;not null"`
	ProviderPaymentRef *string           `json:"provider_payment_ref,omitempty" gorm:"type:text;uniqueIndex"`
	CreatedAt          time.Time         `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Transaction) TableName() string { return "transactions" }
