package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	accountdomain "github.com/roomvision/roomvision/internal/account/domain"
	accountrepo "github.com/roomvision/roomvision/internal/account/repository"
	accountservice "github.com/roomvision/roomvision/internal/account/service"
	"github.com/roomvision/roomvision/internal/cache"
	"github.com/roomvision/roomvision/internal/clock"
	"github.com/roomvision/roomvision/internal/entitlement"
	generationdomain "github.com/roomvision/roomvision/internal/generation/domain"
	generationrepo "github.com/roomvision/roomvision/internal/generation/repository"
	generationservice "github.com/roomvision/roomvision/internal/generation/service"
	"github.com/roomvision/roomvision/pkg/db/pagination"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeGenerator struct {
	generateResult *generationdomain.GenerationResult
	generateErr    error
	statusResult   *generationdomain.GenerationResult
	statusErr      error
	effects        []generationdomain.Effect

	generateCalls int
	statusCalls   int
	effectsCalls  int

	onGenerate func()
}

func (f *fakeGenerator) ListEffects(ctx context.Context) ([]generationdomain.Effect, error) {
	f.effectsCalls++
	return f.effects, nil
}

func (f *fakeGenerator) Generate(ctx context.Context, job generationdomain.GenerationJob) (*generationdomain.GenerationResult, error) {
	f.generateCalls++
	if f.onGenerate != nil {
		f.onGenerate()
	}
	if f.generateErr != nil {
		return nil, f.generateErr
	}
	return f.generateResult, nil
}

func (f *fakeGenerator) Status(ctx context.Context, jobID string) (*generationdomain.GenerationResult, error) {
	f.statusCalls++
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return f.statusResult, nil
}

func completedResult(jobID string) *generationdomain.GenerationResult {
	return &generationdomain.GenerationResult{
		JobID:        jobID,
		Status:       generationdomain.VideoStatusCompleted,
		VideoURL:     "https://cdn.example.com/videos/" + jobID + ".mp4",
		ThumbnailURL: "https://cdn.example.com/thumbs/" + jobID + ".jpg",
	}
}

func newGenerationService(t *testing.T, db *gorm.DB, gen generationdomain.Generator) generationdomain.Service {
	t.Helper()

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}

	accountSvc := accountservice.NewService(accountservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewSystemClock(),
		Repo:  accountrepo.Provide(),
	})
	gate := entitlement.NewGate(entitlement.Params{
		Log:        zap.NewNop(),
		AccountSvc: accountSvc,
	})

	return generationservice.NewService(generationservice.Params{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       clock.NewSystemClock(),
		Repo:        generationrepo.Provide(),
		Generator:   gen,
		Gate:        gate,
		AccountSvc:  accountSvc,
		EffectCache: cache.NewEffectCache(),
	})
}

func generateRequest(userID string) generationdomain.GenerateRequest {
	return generationdomain.GenerateRequest{
		UserID:   userID,
		ImageURL: "https://cdn.example.com/uploads/room.jpg",
		Mode:     generationdomain.ModeRoomToFurniture,
		RoomType: "living-room",
		Style:    "modern",
		Effect:   "modern-minimal",
	}
}

func TestGenerateSpendsOneCredit(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	gen := &fakeGenerator{generateResult: completedResult("job_1")}
	svc := newGenerationService(t, db, gen)

	seedUser(t, db, "user_1", 3)

	video, err := svc.Generate(ctx, generateRequest("user_1"))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if video.Status != generationdomain.VideoStatusCompleted {
		t.Fatalf("expected completed video, got %s", video.Status)
	}
	if video.ProviderJobID != "job_1" {
		t.Fatalf("expected provider job id job_1, got %s", video.ProviderJobID)
	}
	if video.VideoURL == "" || video.ThumbnailURL == "" {
		t.Fatalf("expected video and thumbnail urls, got %q %q", video.VideoURL, video.ThumbnailURL)
	}

	var credits int64
	if err := db.Raw("SELECT credits FROM users WHERE id = 'user_1'").Scan(&credits).Error; err != nil {
		t.Fatalf("scan credits: %v", err)
	}
	if credits != 2 {
		t.Fatalf("expected balance 2 after generation, got %d", credits)
	}
	assertCount(t, db, "SELECT COUNT(1) FROM videos WHERE user_id = 'user_1'", 1)
	assertCount(t, db, "SELECT COUNT(1) FROM transactions WHERE user_id = 'user_1' AND type = 'usage'", 1)
}

func TestGenerateRejectsWithoutCredits(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	gen := &fakeGenerator{generateResult: completedResult("job_1")}
	svc := newGenerationService(t, db, gen)

	seedUser(t, db, "user_1", 0)

	_, err := svc.Generate(ctx, generateRequest("user_1"))
	if !errors.Is(err, accountdomain.ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}
	if gen.generateCalls != 0 {
		t.Fatalf("expected no provider call, got %d", gen.generateCalls)
	}
	assertCount(t, db, "SELECT COUNT(1) FROM videos", 0)
}

func TestGenerateUpstreamFailureLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	gen := &fakeGenerator{generateErr: generationdomain.ErrGenerationFailed}
	svc := newGenerationService(t, db, gen)

	seedUser(t, db, "user_1", 3)

	_, err := svc.Generate(ctx, generateRequest("user_1"))
	if !errors.Is(err, generationdomain.ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}

	var credits int64
	if err := db.Raw("SELECT credits FROM users WHERE id = 'user_1'").Scan(&credits).Error; err != nil {
		t.Fatalf("scan credits: %v", err)
	}
	if credits != 3 {
		t.Fatalf("expected balance untouched at 3, got %d", credits)
	}
	assertCount(t, db, "SELECT COUNT(1) FROM videos", 0)
	assertCount(t, db, "SELECT COUNT(1) FROM transactions", 0)
}

func TestGenerateKeepsVideoWhenDebitFails(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	gen := &fakeGenerator{generateResult: completedResult("job_1")}
	svc := newGenerationService(t, db, gen)

	seedUser(t, db, "user_1", 1)

	// Drain the balance between the advisory check and the debit.
	gen.onGenerate = func() {
		if err := db.Exec("UPDATE users SET credits = 0 WHERE id = 'user_1'").Error; err != nil {
			t.Fatalf("drain credits: %v", err)
		}
	}

	video, err := svc.Generate(ctx, generateRequest("user_1"))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if video.Status != generationdomain.VideoStatusCompleted {
		t.Fatalf("expected completed video, got %s", video.Status)
	}

	assertCount(t, db, "SELECT COUNT(1) FROM videos WHERE user_id = 'user_1'", 1)
	assertCount(t, db, "SELECT COUNT(1) FROM transactions WHERE type = 'usage'", 0)
}

func TestGenerateValidatesRequest(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	gen := &fakeGenerator{generateResult: completedResult("job_1")}
	svc := newGenerationService(t, db, gen)

	seedUser(t, db, "user_1", 3)

	req := generateRequest("user_1")
	req.Mode = "sideways"
	if _, err := svc.Generate(ctx, req); !errors.Is(err, generationdomain.ErrInvalidMode) {
		t.Fatalf("expected ErrInvalidMode, got %v", err)
	}

	req = generateRequest("user_1")
	req.Effect = ""
	if _, err := svc.Generate(ctx, req); !errors.Is(err, generationdomain.ErrInvalidEffect) {
		t.Fatalf("expected ErrInvalidEffect, got %v", err)
	}

	req = generateRequest("user_1")
	req.ImageURL = ""
	if _, err := svc.Generate(ctx, req); !errors.Is(err, generationdomain.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	if gen.generateCalls != 0 {
		t.Fatalf("expected no provider calls, got %d", gen.generateCalls)
	}
}

func TestRefreshStatusPersistsProviderResult(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	gen := &fakeGenerator{
		generateResult: &generationdomain.GenerationResult{
			JobID:  "job_1",
			Status: generationdomain.VideoStatusProcessing,
		},
		statusResult: completedResult("job_1"),
	}
	svc := newGenerationService(t, db, gen)

	seedUser(t, db, "user_1", 3)

	video, err := svc.Generate(ctx, generateRequest("user_1"))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if video.Status != generationdomain.VideoStatusProcessing {
		t.Fatalf("expected processing video, got %s", video.Status)
	}

	refreshed, err := svc.RefreshStatus(ctx, "user_1", video.ID)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if refreshed.Status != generationdomain.VideoStatusCompleted {
		t.Fatalf("expected completed after refresh, got %s", refreshed.Status)
	}
	if refreshed.VideoURL == "" {
		t.Fatalf("expected video url after refresh")
	}

	stored, err := svc.GetVideo(ctx, "user_1", video.ID)
	if err != nil {
		t.Fatalf("get video: %v", err)
	}
	if stored.Status != generationdomain.VideoStatusCompleted {
		t.Fatalf("expected persisted completed status, got %s", stored.Status)
	}
}

func TestRefreshStatusSkipsTerminalVideos(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	gen := &fakeGenerator{generateResult: completedResult("job_1")}
	svc := newGenerationService(t, db, gen)

	seedUser(t, db, "user_1", 3)

	video, err := svc.Generate(ctx, generateRequest("user_1"))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := svc.RefreshStatus(ctx, "user_1", video.ID); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if gen.statusCalls != 0 {
		t.Fatalf("expected no status call for terminal video, got %d", gen.statusCalls)
	}
}

func TestListVideosPaginates(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	gen := &fakeGenerator{generateResult: completedResult("job_1")}
	svc := newGenerationService(t, db, gen)

	seedUser(t, db, "user_1", 10)

	for i := 0; i < 5; i++ {
		if _, err := svc.Generate(ctx, generateRequest("user_1")); err != nil {
			t.Fatalf("generate %d: %v", i, err)
		}
	}

	first, err := svc.ListVideos(ctx, generationdomain.ListVideosRequest{
		UserID:     "user_1",
		Pagination: pagination.Pagination{PageSize: 2},
	})
	if err != nil {
		t.Fatalf("list page 1: %v", err)
	}
	if len(first.Videos) != 2 || first.PageInfo == nil || !first.PageInfo.HasMore {
		t.Fatalf("expected a full first page with more, got %d items", len(first.Videos))
	}

	rest, err := svc.ListVideos(ctx, generationdomain.ListVideosRequest{
		UserID: "user_1",
		Pagination: pagination.Pagination{
			PageToken: first.PageInfo.NextPageToken,
			PageSize:  10,
		},
	})
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	if len(rest.Videos) != 3 {
		t.Fatalf("expected 3 remaining videos, got %d", len(rest.Videos))
	}
}

func TestListVideosScopedToUser(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	gen := &fakeGenerator{generateResult: completedResult("job_1")}
	svc := newGenerationService(t, db, gen)

	seedUser(t, db, "user_1", 3)
	seedUser(t, db, "user_2", 3)

	video, err := svc.Generate(ctx, generateRequest("user_1"))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := svc.GetVideo(ctx, "user_2", video.ID); !errors.Is(err, generationdomain.ErrVideoNotFound) {
		t.Fatalf("expected ErrVideoNotFound for other user, got %v", err)
	}

	resp, err := svc.ListVideos(ctx, generationdomain.ListVideosRequest{UserID: "user_2"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(resp.Videos) != 0 {
		t.Fatalf("expected no videos for user_2, got %d", len(resp.Videos))
	}
}

func TestListEffectsUsesCache(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	gen := &fakeGenerator{
		generateResult: completedResult("job_1"),
		effects: []generationdomain.Effect{
			{ID: "modern-minimal", Name: "Modern Minimal", Category: "modern"},
		},
	}
	svc := newGenerationService(t, db, gen)

	for i := 0; i < 3; i++ {
		effects, err := svc.ListEffects(ctx)
		if err != nil {
			t.Fatalf("list effects %d: %v", i, err)
		}
		if len(effects) != 1 {
			t.Fatalf("expected 1 effect, got %d", len(effects))
		}
	}
	if gen.effectsCalls != 1 {
		t.Fatalf("expected a single provider call, got %d", gen.effectsCalls)
	}
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	schema := []string{
		`CREATE TABLE users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL DEFAULT '',
			credits BIGINT NOT NULL DEFAULT 0,
			stripe_customer_id TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE transactions (
			id BIGINT PRIMARY KEY,
			user_id TEXT NOT NULL,
			type TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'completed',
			credits BIGINT NOT NULL,
			amount_cents BIGINT NOT NULL DEFAULT 0,
			currency TEXT NOT NULL DEFAULT 'USD',
			description TEXT NOT NULL DEFAULT '',
			provider_payment_ref TEXT,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_transactions_provider_payment_ref ON transactions(provider_payment_ref)`,
		`CREATE TABLE videos (
			id BIGINT PRIMARY KEY,
			user_id TEXT NOT NULL,
			mode TEXT NOT NULL,
			room_type TEXT NOT NULL DEFAULT '',
			style TEXT NOT NULL DEFAULT '',
			effect TEXT NOT NULL,
			source_image_url TEXT NOT NULL,
			provider_job_id TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			video_url TEXT NOT NULL DEFAULT '',
			thumbnail_url TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
	}

	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("schema exec failed: %v", err)
		}
	}

	return db
}

func seedUser(t *testing.T, db *gorm.DB, userID string, credits int64) {
	t.Helper()
	now := time.Now().UTC()
	if err := db.Exec(
		"INSERT INTO users (id, email, name, credits, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
		userID,
		userID+"@example.com",
		"Test User",
		credits,
		now,
		now,
	).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
}

func assertCount(t *testing.T, db *gorm.DB, query string, want int64) {
	t.Helper()
	var got int64
	if err := db.Raw(query).Scan(&got).Error; err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if got != want {
		t.Fatalf("expected count %d, got %d (query: %s)", want, got, query)
	}
}
