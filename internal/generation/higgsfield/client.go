// Package higgsfield is the REST client for the Higgsfield video
// generation API. With no API key configured the client runs in
// placeholder mode and serves deterministic development fixtures.
package higgsfield

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"github.com/roomvision/roomvision/internal/clock"
	"github.com/roomvision/roomvision/internal/config"
	generationdomain "github.com/roomvision/roomvision/internal/generation/domain"
)

const (
	placeholderVideoURL     = "https://sample-videos.com/zip/10/mp4/SampleVideo_1280x720_1mb.mp4"
	placeholderThumbnailURL = "https://images.pexels.com/photos/1571460/pexels-photo-1571460.jpeg?auto=compress&cs=tinysrgb&w=300"
)

type generationResponse struct {
	ID           string `json:"id"`
	VideoURL     string `json:"videoUrl"`
	ThumbnailURL string `json:"thumbnailUrl"`
	Status       string `json:"status"`
}

type generationPayload struct {
	ImageURL string `json:"imageUrl"`
	Mode     string `json:"mode"`
	RoomType string `json:"roomType"`
	Style    string `json:"style"`
	Effect   string `json:"effect"`
}

type effectPayload struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	PreviewURL  string `json:"previewUrl"`
	Category    string `json:"category"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Client implements generationdomain.Generator against the Higgsfield API.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
	clock   clock.Clock
	log     *zap.Logger
}

func NewClient(cfg config.Config, clk clock.Clock, log *zap.Logger) generationdomain.Generator {
	c := &Client{
		apiKey:  strings.TrimSpace(cfg.Generator.APIKey),
		baseURL: strings.TrimRight(cfg.Generator.BaseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
		clock:   clk,
		log:     log.Named("generation.higgsfield"),
	}
	if c.apiKey == "" {
		c.log.Warn("api key not configured, running in placeholder mode")
	}
	return c
}

func (c *Client) ListEffects(ctx context.Context) ([]generationdomain.Effect, error) {
	if c.apiKey == "" {
		return placeholderEffects(), nil
	}

	var payload []effectPayload
	if err := c.doRequest(ctx, http.MethodGet, "/effects", nil, &payload); err != nil {
		return nil, err
	}

	effects := make([]generationdomain.Effect, 0, len(payload))
	for _, e := range payload {
		effects = append(effects, generationdomain.Effect{
			ID:          e.ID,
			Name:        e.Name,
			Description: e.Description,
			PreviewURL:  e.PreviewURL,
			Category:    e.Category,
		})
	}
	return effects, nil
}

func (c *Client) Generate(ctx context.Context, job generationdomain.GenerationJob) (*generationdomain.GenerationResult, error) {
	if c.apiKey == "" {
		return &generationdomain.GenerationResult{
			JobID:        fmt.Sprintf("mock_%d", c.clock.Now().UnixMilli()),
			Status:       generationdomain.VideoStatusCompleted,
			VideoURL:     placeholderVideoURL,
			ThumbnailURL: placeholderThumbnailURL,
		}, nil
	}

	body := generationPayload{
		ImageURL: job.ImageURL,
		Mode:     string(job.Mode),
		RoomType: job.RoomType,
		Style:    job.Style,
		Effect:   job.Effect,
	}

	var payload generationResponse
	if err := c.doRequest(ctx, http.MethodPost, "/generate", body, &payload); err != nil {
		return nil, err
	}
	return toResult(payload)
}

func (c *Client) Status(ctx context.Context, jobID string) (*generationdomain.GenerationResult, error) {
	if c.apiKey == "" {
		return &generationdomain.GenerationResult{
			JobID:        jobID,
			Status:       generationdomain.VideoStatusCompleted,
			VideoURL:     placeholderVideoURL,
			ThumbnailURL: placeholderThumbnailURL,
		}, nil
	}

	var payload generationResponse
	if err := c.doRequest(ctx, http.MethodGet, "/generate/"+jobID, nil, &payload); err != nil {
		return nil, err
	}
	return toResult(payload)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any, out any) error {
	var bodyReader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(encoded)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", generationdomain.ErrGenerationFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil {
			return fmt.Errorf("%w: status %d", generationdomain.ErrGenerationFailed, resp.StatusCode)
		}
		message := strings.TrimSpace(apiErr.Error.Message)
		if message == "" {
			return fmt.Errorf("%w: status %d", generationdomain.ErrGenerationFailed, resp.StatusCode)
		}
		return fmt.Errorf("%w: %s", generationdomain.ErrGenerationFailed, message)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding response: %v", generationdomain.ErrGenerationFailed, err)
	}
	return nil
}

func toResult(payload generationResponse) (*generationdomain.GenerationResult, error) {
	if payload.ID == "" {
		return nil, generationdomain.ErrGenerationFailed
	}
	status := generationdomain.VideoStatus(payload.Status)
	switch status {
	case generationdomain.VideoStatusProcessing, generationdomain.VideoStatusCompleted, generationdomain.VideoStatusFailed:
	default:
		status = generationdomain.VideoStatusProcessing
	}
	return &generationdomain.GenerationResult{
		JobID:        payload.ID,
		Status:       status,
		VideoURL:     payload.VideoURL,
		ThumbnailURL: payload.ThumbnailURL,
	}, nil
}

func placeholderEffects() []generationdomain.Effect {
	names := []struct {
		name        string
		description string
		category    string
	}{
		{"Classic Warm", "Warm, classic styling", "classic"},
		{"Modern Minimal", "Clean, minimal modern look", "modern"},
		{"Futuristic Neon", "High-tech futuristic styling", "futuristic"},
		{"Bohemian Cozy", "Warm, eclectic bohemian style", "bohemian"},
		{"Industrial Raw", "Raw industrial aesthetic", "industrial"},
		{"Scandinavian Light", "Light, airy Scandinavian design", "scandinavian"},
	}

	effects := make([]generationdomain.Effect, 0, len(names))
	for _, n := range names {
		effects = append(effects, generationdomain.Effect{
			ID:          slug.Make(n.name),
			Name:        n.name,
			Description: n.description,
			Category:    n.category,
		})
	}
	return effects
}
