package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// GenerationMode selects the direction of the staging transformation.
type GenerationMode string

const (
	ModeRoomToFurniture GenerationMode = "room-to-furniture"
	ModeFurnitureToRoom GenerationMode = "furniture-to-room"
)

func (m GenerationMode) Valid() bool {
	switch m {
	case ModeRoomToFurniture, ModeFurnitureToRoom:
		return true
	default:
		return false
	}
}

type VideoStatus string

const (
	VideoStatusPending    VideoStatus = "pending"
	VideoStatusProcessing VideoStatus = "processing"
	VideoStatusCompleted  VideoStatus = "completed"
	VideoStatusFailed     VideoStatus = "failed"
)

// Terminal reports whether the status can no longer change.
func (s VideoStatus) Terminal() bool {
	return s == VideoStatusCompleted || s == VideoStatusFailed
}

// Effect is one style preset offered by the generation provider.
type Effect struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	PreviewURL  string `json:"preview_url,omitempty"`
	Category    string `json:"category,omitempty"`
}

// Video is one generation request together with its outcome.
type Video struct {
	ID             snowflake.ID   `json:"id" gorm:"primaryKey"`
	UserID         string         `json:"user_id" gorm:"type:text;index"`
	Mode           GenerationMode `json:"mode"`
	RoomType       string         `json:"room_type"`
	Style          string         `json:"style"`
	Effect         string         `json:"effect"`
	SourceImageURL string         `json:"source_image_url"`
	ProviderJobID  string         `json:"provider_job_id" gorm:"index"`
	Status         VideoStatus    `json:"status"`
	VideoURL       string         `json:"video_url"`
	ThumbnailURL   string         `json:"thumbnail_url"`
	CreatedAt      time.Time      `json:"created_at" gorm:"index"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func (Video) TableName() string {
	return "videos"
}
