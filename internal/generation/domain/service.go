package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/roomvision/roomvision/pkg/db/pagination"
)

var (
	ErrInvalidRequest   = errors.New("invalid_request")
	ErrInvalidMode      = errors.New("invalid_mode")
	ErrInvalidEffect    = errors.New("invalid_effect")
	ErrVideoNotFound    = errors.New("video_not_found")
	ErrGenerationFailed = errors.New("generation_failed")
	ErrInvalidPageToken = errors.New("invalid_page_token")
)

// GenerateRequest describes one staging video the user wants produced.
type GenerateRequest struct {
	UserID   string
	ImageURL string
	Mode     GenerationMode
	RoomType string
	Style    string
	Effect   string
}

type ListVideosRequest struct {
	pagination.Pagination
	UserID string
}

type ListVideosResponse struct {
	Videos   []*Video             `json:"videos"`
	PageInfo *pagination.PageInfo `json:"page_info,omitempty"`
}

type Service interface {
	Generate(ctx context.Context, req GenerateRequest) (*Video, error)
	RefreshStatus(ctx context.Context, userID string, videoID snowflake.ID) (*Video, error)
	GetVideo(ctx context.Context, userID string, videoID snowflake.ID) (*Video, error)
	ListVideos(ctx context.Context, req ListVideosRequest) (*ListVideosResponse, error)
	ListEffects(ctx context.Context) ([]Effect, error)
}

// GenerationJob is the provider-facing slice of a generate request.
type GenerationJob struct {
	ImageURL string
	Mode     GenerationMode
	RoomType string
	Style    string
	Effect   string
}

// GenerationResult is the provider's view of a job.
type GenerationResult struct {
	JobID        string
	Status       VideoStatus
	VideoURL     string
	ThumbnailURL string
}

// Generator talks to the external video generation provider.
type Generator interface {
	ListEffects(ctx context.Context) ([]Effect, error)
	Generate(ctx context.Context, job GenerationJob) (*GenerationResult, error)
	Status(ctx context.Context, jobID string) (*GenerationResult, error)
}

type VideoCursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type ListFilter struct {
	UserID string
	Limit  int
	Cursor *VideoCursor
}

type Repository interface {
	InsertVideo(ctx context.Context, db *gorm.DB, video *Video) error
	FindVideo(ctx context.Context, db *gorm.DB, userID string, id snowflake.ID) (*Video, error)
	UpdateVideoResult(ctx context.Context, db *gorm.DB, video *Video) error
	ListVideos(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Video, error)
}
