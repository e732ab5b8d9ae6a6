package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/roomvision/roomvision/internal/generation/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertVideo(ctx context.Context, db *gorm.DB, video *domain.Video) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO videos (
			id, user_id, mode, room_type, style, effect, source_image_url,
			provider_job_id, status, video_url, thumbnail_url, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		video.ID,
		video.UserID,
		video.Mode,
		video.RoomType,
		video.Style,
		video.Effect,
		video.SourceImageURL,
		video.ProviderJobID,
		video.Status,
		video.VideoURL,
		video.ThumbnailURL,
		video.CreatedAt,
		video.UpdatedAt,
	).Error
}

func (r *repo) FindVideo(ctx context.Context, db *gorm.DB, userID string, id snowflake.ID) (*domain.Video, error) {
	var item domain.Video
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, mode, room_type, style, effect, source_image_url,
			provider_job_id, status, video_url, thumbnail_url, created_at, updated_at
		 FROM videos
		 WHERE id = ? AND user_id = ?
		 LIMIT 1`,
		id,
		userID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) UpdateVideoResult(ctx context.Context, db *gorm.DB, video *domain.Video) error {
	return db.WithContext(ctx).Exec(
		`UPDATE videos
		 SET status = ?, video_url = ?, thumbnail_url = ?, updated_at = ?
		 WHERE id = ?`,
		video.Status,
		video.VideoURL,
		video.ThumbnailURL,
		video.UpdatedAt,
		video.ID,
	).Error
}

func (r *repo) ListVideos(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.Video, error) {
	query := `SELECT id, user_id, mode, room_type, style, effect, source_image_url,
			provider_job_id, status, video_url, thumbnail_url, created_at, updated_at
		 FROM videos
		 WHERE user_id = ?`
	args := []any{filter.UserID}

	if filter.Cursor != nil {
		query += ` AND (created_at < ? OR (created_at = ? AND id < ?))`
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.CreatedAt, filter.Cursor.ID)
	}

	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, filter.Limit+1)

	var items []*domain.Video
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
