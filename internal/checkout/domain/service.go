package domain

import (
	"context"
	"errors"

	"github.com/roomvision/roomvision/internal/config"
)

var (
	ErrInvalidPackage = errors.New("invalid_package")
	ErrInvalidUser    = errors.New("invalid_user")
	ErrNotConfigured  = errors.New("stripe_not_configured")
	ErrCheckoutFailed = errors.New("checkout_failed")
)

// CheckoutSession points the user at Stripe-hosted payment collection.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type PortalSession struct {
	URL string `json:"url"`
}

type Customer struct {
	ID    string
	Email string
}

// CheckoutParams carries everything the provider needs to build one
// hosted checkout. Metadata on the session is what the settlement
// webhook later reads back.
type CheckoutParams struct {
	UserID         string
	CustomerID     string
	CustomerEmail  string
	PackageKey     string
	Credits        int64
	AmountCents    int64
	ProductName    string
	Description    string
	SuccessURL     string
	CancelURL      string
	IdempotencyKey string
}

type Service interface {
	ListPackages() []config.CreditPackage
	CreateCheckoutSession(ctx context.Context, userID, packageKey string) (*CheckoutSession, error)
	CreatePortalSession(ctx context.Context, userID string) (*PortalSession, error)
}

// StripeAPI is the slice of the Stripe REST surface checkout needs.
type StripeAPI interface {
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (*PortalSession, error)
	FindCustomerByEmail(ctx context.Context, email string) (*Customer, error)
	CreateCustomer(ctx context.Context, email, name string) (*Customer, error)
}
