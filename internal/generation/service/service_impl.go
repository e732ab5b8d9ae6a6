package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/roomvision/roomvision/internal/account/domain"
	"github.com/roomvision/roomvision/internal/cache"
	"github.com/roomvision/roomvision/internal/clock"
	"github.com/roomvision/roomvision/internal/entitlement"
	"github.com/roomvision/roomvision/internal/generation/domain"
	obsmetrics "github.com/roomvision/roomvision/internal/observability/metrics"
	"github.com/roomvision/roomvision/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        domain.Repository
	Generator   domain.Generator
	Gate        *entitlement.Gate
	AccountSvc  accountdomain.Service
	EffectCache cache.EffectCache
	ObsMetrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	generator   domain.Generator
	gate        *entitlement.Gate
	accountSvc  accountdomain.Service
	effectCache cache.EffectCache
	obsMetrics  *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("generation.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		generator:   p.Generator,
		gate:        p.Gate,
		accountSvc:  p.AccountSvc,
		effectCache: p.EffectCache,
		obsMetrics:  p.ObsMetrics,
	}
}

// Generate produces one staging video and spends one credit. The credit
// check up front is advisory; the debit after the provider call is the
// binding one. A failed debit after a successful generation is recorded
// as an anomaly and the video stands.
func (s *Service) Generate(ctx context.Context, req domain.GenerateRequest) (*domain.Video, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	req.ImageURL = strings.TrimSpace(req.ImageURL)
	req.Effect = strings.TrimSpace(req.Effect)
	if req.UserID == "" {
		return nil, accountdomain.ErrInvalidUser
	}
	if req.ImageURL == "" {
		return nil, domain.ErrInvalidRequest
	}
	if !req.Mode.Valid() {
		return nil, domain.ErrInvalidMode
	}
	if req.Effect == "" {
		return nil, domain.ErrInvalidEffect
	}

	if err := s.gate.Check(ctx, req.UserID); err != nil {
		return nil, err
	}

	result, err := s.generator.Generate(ctx, domain.GenerationJob{
		ImageURL: req.ImageURL,
		Mode:     req.Mode,
		RoomType: req.RoomType,
		Style:    req.Style,
		Effect:   req.Effect,
	})
	if err != nil {
		if s.obsMetrics != nil {
			s.obsMetrics.RecordGeneration(ctx, req.Effect, "error")
		}
		return nil, err
	}

	now := s.clock.Now()
	video := &domain.Video{
		ID:             s.genID.Generate(),
		UserID:         req.UserID,
		Mode:           req.Mode,
		RoomType:       strings.TrimSpace(req.RoomType),
		Style:          strings.TrimSpace(req.Style),
		Effect:         req.Effect,
		SourceImageURL: req.ImageURL,
		ProviderJobID:  result.JobID,
		Status:         result.Status,
		VideoURL:       result.VideoURL,
		ThumbnailURL:   result.ThumbnailURL,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.InsertVideo(ctx, s.db, video); err != nil {
		return nil, err
	}

	if err := s.accountSvc.Debit(ctx, req.UserID, entitlement.GenerationCost, "video generation "+video.ID.String()); err != nil {
		// The provider already did the work, so the video is kept and
		// the missed debit is surfaced for reconciliation.
		s.log.Error("debit failed after generation",
			zap.String("user_id", req.UserID),
			zap.String("video_id", video.ID.String()),
			zap.Error(err),
		)
		if s.obsMetrics != nil {
			s.obsMetrics.RecordDebitAnomaly(ctx, debitAnomalyReason(err))
		}
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordGeneration(ctx, req.Effect, string(video.Status))
	}
	return video, nil
}

// RefreshStatus re-reads a pending job from the provider and persists any
// change. Terminal videos are returned as stored.
func (s *Service) RefreshStatus(ctx context.Context, userID string, videoID snowflake.ID) (*domain.Video, error) {
	video, err := s.GetVideo(ctx, userID, videoID)
	if err != nil {
		return nil, err
	}
	if video.Status.Terminal() || video.ProviderJobID == "" {
		return video, nil
	}

	result, err := s.generator.Status(ctx, video.ProviderJobID)
	if err != nil {
		return nil, err
	}
	if result.Status == video.Status && result.VideoURL == video.VideoURL {
		return video, nil
	}

	video.Status = result.Status
	if result.VideoURL != "" {
		video.VideoURL = result.VideoURL
	}
	if result.ThumbnailURL != "" {
		video.ThumbnailURL = result.ThumbnailURL
	}
	video.UpdatedAt = s.clock.Now()

	if err := s.repo.UpdateVideoResult(ctx, s.db, video); err != nil {
		return nil, err
	}
	return video, nil
}

func (s *Service) GetVideo(ctx context.Context, userID string, videoID snowflake.ID) (*domain.Video, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, accountdomain.ErrInvalidUser
	}
	if videoID == 0 {
		return nil, domain.ErrVideoNotFound
	}
	video, err := s.repo.FindVideo(ctx, s.db, userID, videoID)
	if err != nil {
		return nil, err
	}
	if video == nil {
		return nil, domain.ErrVideoNotFound
	}
	return video, nil
}

func (s *Service) ListVideos(ctx context.Context, req domain.ListVideosRequest) (*domain.ListVideosResponse, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, accountdomain.ErrInvalidUser
	}

	var cursor *domain.VideoCursor
	if strings.TrimSpace(req.PageToken) != "" {
		decoded, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return nil, domain.ErrInvalidPageToken
		}
		createdAt, err := time.Parse(time.RFC3339Nano, decoded.CreatedAt)
		if err != nil {
			return nil, domain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
		if err != nil || id == 0 {
			return nil, domain.ErrInvalidPageToken
		}
		cursor = &domain.VideoCursor{ID: id, CreatedAt: createdAt}
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	items, err := s.repo.ListVideos(ctx, s.db, domain.ListFilter{
		UserID: userID,
		Cursor: cursor,
		Limit:  pageSize,
	})
	if err != nil {
		return nil, err
	}

	items, pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(item *domain.Video) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        item.ID.String(),
			CreatedAt: item.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})

	return &domain.ListVideosResponse{Videos: items, PageInfo: pageInfo}, nil
}

func (s *Service) ListEffects(ctx context.Context) ([]domain.Effect, error) {
	if effects, ok := s.effectCache.GetEffects(); ok {
		return effects, nil
	}

	effects, err := s.generator.ListEffects(ctx)
	if err != nil {
		return nil, err
	}
	s.effectCache.SetEffects(effects)
	return effects, nil
}

func debitAnomalyReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, accountdomain.ErrInsufficientCredits):
		return "insufficient_credits"
	case errors.Is(err, accountdomain.ErrUserNotFound):
		return "user_not_found"
	default:
		return "debit_error"
	}
}
