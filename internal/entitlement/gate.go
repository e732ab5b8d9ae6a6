// Package entitlement answers whether a user can start a paid operation.
// The answer is advisory: the conditional debit in the account service is
// what actually prevents overspending.
package entitlement

import (
	"context"

	accountdomain "github.com/roomvision/roomvision/internal/account/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// GenerationCost is the credit price of one video generation.
const GenerationCost int64 = 1

type Params struct {
	fx.In

	Log        *zap.Logger
	AccountSvc accountdomain.Service
}

type Gate struct {
	log        *zap.Logger
	accountSvc accountdomain.Service
}

func NewGate(p Params) *Gate {
	return &Gate{
		log:        p.Log.Named("entitlement.gate"),
		accountSvc: p.AccountSvc,
	}
}

// Check reports whether the user currently holds enough credits for one
// generation. A stale positive here is fine; the debit settles the truth.
func (g *Gate) Check(ctx context.Context, userID string) error {
	balance, err := g.accountSvc.Balance(ctx, userID)
	if err != nil {
		return err
	}
	if balance < GenerationCost {
		return accountdomain.ErrInsufficientCredits
	}
	return nil
}

var Module = fx.Module("entitlement",
	fx.Provide(NewGate),
)
