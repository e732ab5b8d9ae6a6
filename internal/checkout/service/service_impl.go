package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"
	accountdomain "github.com/roomvision/roomvision/internal/account/domain"
	auditdomain "github.com/roomvision/roomvision/internal/audit/domain"
	"github.com/roomvision/roomvision/internal/audit/masking"
	"github.com/roomvision/roomvision/internal/checkout/domain"
	"github.com/roomvision/roomvision/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log        *zap.Logger
	Cfg        config.Config
	Catalog    *config.PackageCatalogHolder
	Stripe     domain.StripeAPI
	AccountSvc accountdomain.Service
	AuditSvc   auditdomain.Service
}

type Service struct {
	log        *zap.Logger
	cfg        config.Config
	catalog    *config.PackageCatalogHolder
	stripe     domain.StripeAPI
	accountSvc accountdomain.Service
	auditSvc   auditdomain.Service
}

func NewService(p Params) domain.Service {
	return &Service{
		log:        p.Log.Named("checkout.service"),
		cfg:        p.Cfg,
		catalog:    p.Catalog,
		stripe:     p.Stripe,
		accountSvc: p.AccountSvc,
		auditSvc:   p.AuditSvc,
	}
}

func (s *Service) ListPackages() []config.CreditPackage {
	return s.catalog.List()
}

// CreateCheckoutSession opens a hosted payment page for one credit
// package. The session metadata carries the user id and credit amount
// that the settlement webhook reads back after payment.
func (s *Service) CreateCheckoutSession(ctx context.Context, userID, packageKey string) (*domain.CheckoutSession, error) {
	user, err := s.accountSvc.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	pkg, ok := s.catalog.Find(packageKey)
	if !ok {
		return nil, domain.ErrInvalidPackage
	}

	params := domain.CheckoutParams{
		UserID:         user.ID,
		CustomerEmail:  user.Email,
		PackageKey:     pkg.Key,
		Credits:        pkg.Credits,
		AmountCents:    pkg.Price,
		ProductName:    fmt.Sprintf("%d Credits", pkg.Credits),
		Description:    fmt.Sprintf("%d video generation credits for RoomVision", pkg.Credits),
		SuccessURL:     s.cfg.Stripe.SuccessURL,
		CancelURL:      s.cfg.Stripe.CancelURL,
		IdempotencyKey: ulid.Make().String(),
	}
	if user.StripeCustomerID != nil && *user.StripeCustomerID != "" {
		params.CustomerID = *user.StripeCustomerID
		params.CustomerEmail = ""
	}

	session, err := s.stripe.CreateCheckoutSession(ctx, params)
	if err != nil {
		s.log.Error("create checkout session failed",
			zap.String("user_id", user.ID),
			zap.String("package", pkg.Key),
			zap.Error(err),
		)
		return nil, err
	}

	if err := s.auditSvc.AuditLog(ctx, &user.ID, "checkout.session_created", "checkout_session", &session.ID, map[string]any{
		"package":      pkg.Key,
		"credits":      pkg.Credits,
		"amount_cents": pkg.Price,
		"session_id":   masking.MaskSecret(session.ID),
	}); err != nil {
		s.log.Warn("audit log failed", zap.Error(err))
	}

	return session, nil
}

// CreatePortalSession opens the Stripe billing portal for the user,
// creating and attaching a Stripe customer on first use.
func (s *Service) CreatePortalSession(ctx context.Context, userID string) (*domain.PortalSession, error) {
	user, err := s.accountSvc.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(user.Email) == "" {
		return nil, domain.ErrInvalidUser
	}

	customerID := ""
	if user.StripeCustomerID != nil {
		customerID = strings.TrimSpace(*user.StripeCustomerID)
	}

	if customerID == "" {
		customer, err := s.stripe.FindCustomerByEmail(ctx, user.Email)
		if err != nil {
			return nil, err
		}
		if customer == nil {
			customer, err = s.stripe.CreateCustomer(ctx, user.Email, user.Name)
			if err != nil {
				return nil, err
			}
		}
		customerID = customer.ID

		if err := s.accountSvc.AttachStripeCustomer(ctx, user.ID, customerID); err != nil {
			return nil, err
		}
	}

	return s.stripe.CreatePortalSession(ctx, customerID, s.cfg.Stripe.PortalReturn)
}
