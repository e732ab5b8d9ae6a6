package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/roomvision/roomvision/internal/config"
	"github.com/roomvision/roomvision/internal/settlement/adapters"
	"github.com/roomvision/roomvision/internal/settlement/domain"
	settlementservice "github.com/roomvision/roomvision/internal/settlement/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	SettlementSvc *settlementservice.Service
	Adapters      *adapters.Registry
	Cfg           config.Config
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	settlementSvc *settlementservice.Service
	adapters      *adapters.Registry
	cfg           config.Config
}

func NewService(p Params) domain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("settlement.webhook"),
		settlementSvc: p.SettlementSvc,
		adapters:      p.Adapters,
		cfg:           p.Cfg,
	}
}

func (s *Service) IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return domain.ErrInvalidProvider
	}
	if s.adapters == nil || !s.adapters.ProviderExists(provider) {
		return domain.ErrProviderNotFound
	}
	if !json.Valid(payload) {
		return domain.ErrInvalidPayload
	}

	adapter, err := s.adapters.NewAdapter(provider, s.adapterConfig(provider))
	if err != nil {
		return err
	}

	if err := adapter.Verify(ctx, payload, headers); err != nil {
		return err
	}

	event, err := adapter.Parse(ctx, payload)
	if err != nil {
		if errors.Is(err, domain.ErrEventIgnored) {
			return nil
		}
		if errors.Is(err, domain.ErrInvalidUser) {
			s.log.Warn("settlement webhook missing user metadata", zap.String("provider", provider))
		}
		return err
	}
	if event == nil {
		return domain.ErrInvalidEvent
	}
	event.Provider = provider
	if event.RawPayload == nil {
		event.RawPayload = payload
	}

	if s.settlementSvc == nil {
		return errors.New("settlement_service_unavailable")
	}
	err = s.settlementSvc.ProcessEvent(ctx, event, payload)
	if errors.Is(err, domain.ErrEventAlreadyProcessed) {
		// Replayed delivery of a settled event; acknowledge it.
		return nil
	}
	return err
}

func (s *Service) adapterConfig(provider string) domain.AdapterConfig {
	cfg := domain.AdapterConfig{Provider: provider}
	if provider == "stripe" {
		cfg.WebhookSecret = s.cfg.Stripe.WebhookSecret
	}
	return cfg
}
