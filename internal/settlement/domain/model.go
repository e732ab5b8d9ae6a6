package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// EventRecord stores every webhook event we accepted, keyed by the
// provider's own event id. ProcessedAt is set only after the grant landed.
type EventRecord struct {
	ID              snowflake.ID   `json:"id" gorm:"primaryKey"`
	Provider        string         `json:"provider" gorm:"type:text;not null"`
	ProviderEventID string         `json:"provider_event_id" gorm:"type:text;not null"`
	EventType       string         `json:"event_type" gorm:"type:text;not null"`
	UserID          string         `json:"user_id" gorm:"type:text;not null;index"`
	Payload         datatypes.JSON `json:"payload" gorm:"type:jsonb;not null"`
	ReceivedAt      time.Time      `json:"received_at" gorm:"not null"`
	ProcessedAt     *time.Time     `json:"processed_at"`
}

func (EventRecord) TableName() string { return "payment_events" }

const (
	EventTypeCheckoutCompleted = "checkout_completed"
)

// SettlementEvent is the canonical purchase event parsed by adapters.
type SettlementEvent struct {
	Provider          string
	ProviderEventID   string
	ProviderPaymentID string
	Type              string
	UserID            string
	Credits           int64
	AmountCents       int64
	Currency          string
	OccurredAt        time.Time
	RawPayload        []byte
}
