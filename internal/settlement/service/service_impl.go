package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/roomvision/roomvision/internal/account/domain"
	auditdomain "github.com/roomvision/roomvision/internal/audit/domain"
	"github.com/roomvision/roomvision/internal/clock"
	obsmetrics "github.com/roomvision/roomvision/internal/observability/metrics"
	"github.com/roomvision/roomvision/internal/providers/email"
	"github.com/roomvision/roomvision/internal/settlement/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	AccountSvc accountdomain.Service
	AuditSvc   auditdomain.Service
	Repo       domain.Repository
	Email      email.Provider      `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	accountSvc accountdomain.Service
	auditSvc   auditdomain.Service
	repo       domain.Repository
	email      email.Provider
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) *Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("settlement.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		accountSvc: p.AccountSvc,
		auditSvc:   p.AuditSvc,
		repo:       p.Repo,
		email:      p.Email,
		obsMetrics: p.ObsMetrics,
	}
}

// ProcessEvent settles a parsed purchase event. The event record insert
// dedupes replayed deliveries, and the credit grant itself is keyed by the
// payment reference, so the user is credited exactly once no matter how
// many times the provider retries.
func (s *Service) ProcessEvent(ctx context.Context, event *domain.SettlementEvent, payload []byte) error {
	if event == nil {
		return domain.ErrInvalidEvent
	}
	event.Provider = strings.ToLower(strings.TrimSpace(event.Provider))
	if event.Provider == "" {
		return domain.ErrInvalidProvider
	}
	if !json.Valid(payload) {
		return domain.ErrInvalidPayload
	}
	if err := validateEvent(event); err != nil {
		return err
	}

	now := s.clock.Now().UTC()
	received := domain.EventRecord{
		ID:              s.genID.Generate(),
		Provider:        event.Provider,
		ProviderEventID: event.ProviderEventID,
		EventType:       event.Type,
		UserID:          event.UserID,
		Payload:         datatypes.JSON(payload),
		ReceivedAt:      now,
	}

	inserted, err := s.repo.InsertEvent(ctx, s.db, &received)
	if err != nil {
		return err
	}
	stored := &received
	if !inserted {
		stored, err = s.repo.FindEvent(ctx, s.db, event.Provider, event.ProviderEventID)
		if err != nil {
			return err
		}
		if stored == nil {
			return domain.ErrInvalidEvent
		}
		if stored.ProcessedAt != nil {
			return domain.ErrEventAlreadyProcessed
		}
	}

	if err := s.settle(ctx, stored, event); err != nil {
		return err
	}

	if err := s.repo.MarkProcessed(ctx, s.db, stored.ID, now); err != nil {
		return err
	}

	if inserted && s.obsMetrics != nil {
		s.obsMetrics.RecordPaymentEvent(ctx, event.Provider, event.Type)
	}

	s.sendReceiptEmail(ctx, event)

	return nil
}

// sendReceiptEmail is best effort; the settlement already committed.
func (s *Service) sendReceiptEmail(ctx context.Context, event *domain.SettlementEvent) {
	if s.email == nil {
		return
	}
	user, err := s.accountSvc.GetUser(ctx, event.UserID)
	if err != nil || strings.TrimSpace(user.Email) == "" {
		return
	}
	receipt := email.CreditReceipt{
		Name:    user.Name,
		Credits: event.Credits,
		Amount:  fmt.Sprintf("%.2f %s", float64(event.AmountCents)/100, event.Currency),
	}
	if err := s.email.SendCreditReceipt(ctx, user.Email, receipt); err != nil {
		s.log.Warn("credit receipt email failed",
			zap.String("user_id", event.UserID),
			zap.Error(err),
		)
	}
}

func validateEvent(event *domain.SettlementEvent) error {
	if event == nil {
		return domain.ErrInvalidEvent
	}
	event.ProviderEventID = strings.TrimSpace(event.ProviderEventID)
	if event.ProviderEventID == "" {
		return domain.ErrInvalidEvent
	}
	event.Type = strings.TrimSpace(event.Type)
	if event.Type != domain.EventTypeCheckoutCompleted {
		return domain.ErrInvalidEvent
	}
	event.UserID = strings.TrimSpace(event.UserID)
	if event.UserID == "" {
		return domain.ErrInvalidUser
	}
	event.ProviderPaymentID = strings.TrimSpace(event.ProviderPaymentID)
	if event.ProviderPaymentID == "" {
		return domain.ErrInvalidEvent
	}
	if event.Credits <= 0 {
		return domain.ErrInvalidCredits
	}
	currency := strings.TrimSpace(event.Currency)
	if currency == "" {
		return domain.ErrInvalidCurrency
	}
	event.Currency = strings.ToUpper(currency)
	if event.OccurredAt.IsZero() {
		return domain.ErrInvalidEvent
	}
	return nil
}

func (s *Service) settle(ctx context.Context, stored *domain.EventRecord, event *domain.SettlementEvent) error {
	err := s.accountSvc.Grant(ctx, accountdomain.GrantRequest{
		UserID:      event.UserID,
		Credits:     event.Credits,
		AmountCents: event.AmountCents,
		Currency:    event.Currency,
		Description: "credit purchase",
		ProviderRef: event.ProviderPaymentID,
	})
	switch {
	case err == nil:
	case errors.Is(err, accountdomain.ErrDuplicateGrant):
		// A prior delivery granted but crashed before marking the event
		// processed. The grant stands; finish the bookkeeping.
		s.log.Info("settlement grant already recorded",
			zap.String("provider", event.Provider),
			zap.String("provider_event_id", event.ProviderEventID),
		)
	default:
		return err
	}

	return s.writeAuditLog(ctx, "settlement.credited", stored, event)
}

func (s *Service) writeAuditLog(ctx context.Context, action string, stored *domain.EventRecord, event *domain.SettlementEvent) error {
	if s.auditSvc == nil {
		s.log.Warn("audit service unavailable for settlement event", zap.String("action", action))
		return nil
	}
	metadata := map[string]any{
		"provider":          stored.Provider,
		"provider_event_id": stored.ProviderEventID,
		"payment_ref":       event.ProviderPaymentID,
		"credits":           event.Credits,
		"amount_cents":      event.AmountCents,
		"currency":          event.Currency,
		"occurred_at":       event.OccurredAt.UTC().Format(time.RFC3339),
		"received_at":       stored.ReceivedAt.UTC().Format(time.RFC3339),
	}

	targetID := stored.ID.String()
	userID := stored.UserID
	if err := s.auditSvc.AuditLog(ctx, &userID, action, "payment_event", &targetID, metadata); err != nil {
		s.log.Warn("failed to write settlement audit log", zap.String("action", action), zap.Error(err))
	}
	return nil
}
