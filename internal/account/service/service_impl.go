package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/roomvision/roomvision/internal/account/domain"
	"github.com/roomvision/roomvision/internal/clock"
	obsmetrics "github.com/roomvision/roomvision/internal/observability/metrics"
	"github.com/roomvision/roomvision/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       domain.Repository
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("account.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.ErrInvalidUser
	}
	user, err := s.repo.FindUser(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}
	return user, nil
}

func (s *Service) EnsureUser(ctx context.Context, user *domain.User) error {
	if user == nil || strings.TrimSpace(user.ID) == "" {
		return domain.ErrInvalidUser
	}
	now := s.clock.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = now
	}
	return s.repo.UpsertUser(ctx, s.db, user)
}

func (s *Service) AttachStripeCustomer(ctx context.Context, userID, customerID string) error {
	userID = strings.TrimSpace(userID)
	customerID = strings.TrimSpace(customerID)
	if userID == "" || customerID == "" {
		return domain.ErrInvalidUser
	}
	return s.repo.SetStripeCustomer(ctx, s.db, userID, customerID, s.clock.Now())
}

func (s *Service) Balance(ctx context.Context, userID string) (int64, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return user.Credits, nil
}

// Debit atomically spends credits. The conditional decrement refuses
// overdrafts, so two concurrent debits against a balance of one credit
// settle as exactly one success.
func (s *Service) Debit(ctx context.Context, userID string, credits int64, description string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.ErrInvalidUser
	}
	if credits <= 0 {
		return domain.ErrInvalidAmount
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now()
		ok, err := s.repo.DecrementCredits(ctx, tx, userID, credits, now)
		if err != nil {
			return err
		}
		if !ok {
			user, findErr := s.repo.FindUser(ctx, tx, userID)
			if findErr != nil {
				return findErr
			}
			if user == nil {
				return domain.ErrUserNotFound
			}
			return domain.ErrInsufficientCredits
		}

		_, err = s.repo.InsertTransaction(ctx, tx, &domain.Transaction{
			ID:          s.genID.Generate(),
			UserID:      userID,
			Type:        domain.TransactionTypeUsage,
			Status:      domain.TransactionStatusCompleted,
			Credits:     -credits,
			Currency:    "USD",
			Description: strings.TrimSpace(description),
			CreatedAt:   now,
		})
		return err
	})
	if err != nil {
		return err
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordCreditDebit(ctx, "generation")
	}
	return nil
}

// Grant credits a settled purchase. The transaction row and the balance
// increment commit together, and the provider payment reference keeps
// replayed settlements from granting twice.
func (s *Service) Grant(ctx context.Context, req domain.GrantRequest) error {
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		return domain.ErrInvalidUser
	}
	if req.Credits <= 0 {
		return domain.ErrInvalidAmount
	}
	req.ProviderRef = strings.TrimSpace(req.ProviderRef)
	if req.ProviderRef == "" {
		return domain.ErrInvalidAmount
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "USD"
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := s.repo.FindUser(ctx, tx, req.UserID)
		if err != nil {
			return err
		}
		if user == nil {
			return domain.ErrUserNotFound
		}

		now := s.clock.Now()
		ref := req.ProviderRef
		inserted, err := s.repo.InsertTransaction(ctx, tx, &domain.Transaction{
			ID:                 s.genID.Generate(),
			UserID:             req.UserID,
			Type:               domain.TransactionTypePurchase,
			Status:             domain.TransactionStatusCompleted,
			Credits:            req.Credits,
			AmountCents:        req.AmountCents,
			Currency:           currency,
			Description:        strings.TrimSpace(req.Description),
			ProviderPaymentRef: &ref,
			CreatedAt:          now,
		})
		if err != nil {
			return err
		}
		if !inserted {
			return domain.ErrDuplicateGrant
		}

		return s.repo.IncrementCredits(ctx, tx, req.UserID, req.Credits, now)
	})
	if err != nil {
		return err
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordCreditGrant(ctx, "stripe", req.Credits)
	}
	return nil
}

func (s *Service) ListTransactions(ctx context.Context, req domain.ListTransactionsRequest) (domain.ListTransactionsResponse, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return domain.ListTransactionsResponse{}, domain.ErrInvalidUser
	}

	var cursor *domain.TransactionCursor
	if strings.TrimSpace(req.PageToken) != "" {
		decoded, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return domain.ListTransactionsResponse{}, domain.ErrInvalidPageToken
		}
		createdAt, err := time.Parse(time.RFC3339Nano, decoded.CreatedAt)
		if err != nil {
			return domain.ListTransactionsResponse{}, domain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
		if err != nil || id == 0 {
			return domain.ListTransactionsResponse{}, domain.ErrInvalidPageToken
		}
		cursor = &domain.TransactionCursor{ID: id, CreatedAt: createdAt}
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	items, err := s.repo.ListTransactions(ctx, s.db, domain.ListFilter{
		UserID: userID,
		Cursor: cursor,
		Limit:  pageSize,
	})
	if err != nil {
		return domain.ListTransactionsResponse{}, err
	}

	items, pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(item *domain.Transaction) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        item.ID.String(),
			CreatedAt: item.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})

	txns := make([]domain.Transaction, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		txns = append(txns, *item)
	}

	resp := domain.ListTransactionsResponse{Transactions: txns}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) GetTransaction(ctx context.Context, userID string, id snowflake.ID) (*domain.Transaction, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.ErrInvalidUser
	}
	if id == 0 {
		return nil, domain.ErrTransactionNotFound
	}
	txn, err := s.repo.FindTransaction(ctx, s.db, userID, id)
	if err != nil {
		return nil, err
	}
	if txn == nil {
		return nil, domain.ErrTransactionNotFound
	}
	return txn, nil
}
