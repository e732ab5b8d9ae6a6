package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	accountdomain "github.com/roomvision/roomvision/internal/account/domain"
	"github.com/roomvision/roomvision/internal/config"
	generationdomain "github.com/roomvision/roomvision/internal/generation/domain"
	"github.com/roomvision/roomvision/internal/session"
	sessiondomain "github.com/roomvision/roomvision/internal/session/domain"
	settlementdomain "github.com/roomvision/roomvision/internal/settlement/domain"
)

type fakeSessionService struct {
	session *sessiondomain.Session
	err     error
}

func (f *fakeSessionService) Issue(ctx context.Context, userID, userAgent, ipAddress string) (*sessiondomain.IssueResult, error) {
	_ = ctx
	_ = userID
	_ = userAgent
	_ = ipAddress
	return nil, nil
}

func (f *fakeSessionService) Authenticate(ctx context.Context, rawToken string) (*sessiondomain.Session, error) {
	_ = ctx
	_ = rawToken
	if f.err != nil {
		return nil, f.err
	}
	return f.session, nil
}

func (f *fakeSessionService) Revoke(ctx context.Context, rawToken string) error {
	_ = ctx
	_ = rawToken
	return nil
}

type fakeGenerationService struct {
	video       *generationdomain.Video
	generateErr error
	effects     []generationdomain.Effect
}

func (f *fakeGenerationService) Generate(ctx context.Context, req generationdomain.GenerateRequest) (*generationdomain.Video, error) {
	_ = ctx
	_ = req
	if f.generateErr != nil {
		return nil, f.generateErr
	}
	return f.video, nil
}

func (f *fakeGenerationService) RefreshStatus(ctx context.Context, userID string, videoID snowflake.ID) (*generationdomain.Video, error) {
	_ = ctx
	_ = userID
	_ = videoID
	return f.video, nil
}

func (f *fakeGenerationService) GetVideo(ctx context.Context, userID string, videoID snowflake.ID) (*generationdomain.Video, error) {
	_ = ctx
	_ = userID
	_ = videoID
	if f.video == nil {
		return nil, generationdomain.ErrVideoNotFound
	}
	return f.video, nil
}

func (f *fakeGenerationService) ListVideos(ctx context.Context, req generationdomain.ListVideosRequest) (*generationdomain.ListVideosResponse, error) {
	_ = ctx
	_ = req
	return &generationdomain.ListVideosResponse{}, nil
}

func (f *fakeGenerationService) ListEffects(ctx context.Context) ([]generationdomain.Effect, error) {
	_ = ctx
	return f.effects, nil
}

type fakeAccountService struct {
	user *accountdomain.User
}

func (f *fakeAccountService) GetUser(ctx context.Context, userID string) (*accountdomain.User, error) {
	_ = ctx
	_ = userID
	if f.user == nil {
		return nil, accountdomain.ErrUserNotFound
	}
	return f.user, nil
}

func (f *fakeAccountService) EnsureUser(ctx context.Context, user *accountdomain.User) error {
	_ = ctx
	_ = user
	return nil
}

func (f *fakeAccountService) AttachStripeCustomer(ctx context.Context, userID, customerID string) error {
	_ = ctx
	_ = userID
	_ = customerID
	return nil
}

func (f *fakeAccountService) Balance(ctx context.Context, userID string) (int64, error) {
	_ = ctx
	_ = userID
	if f.user == nil {
		return 0, accountdomain.ErrUserNotFound
	}
	return f.user.Credits, nil
}

func (f *fakeAccountService) Debit(ctx context.Context, userID string, credits int64, description string) error {
	_ = ctx
	_ = userID
	_ = credits
	_ = description
	return nil
}

func (f *fakeAccountService) Grant(ctx context.Context, req accountdomain.GrantRequest) error {
	_ = ctx
	_ = req
	return nil
}

func (f *fakeAccountService) ListTransactions(ctx context.Context, req accountdomain.ListTransactionsRequest) (accountdomain.ListTransactionsResponse, error) {
	_ = ctx
	_ = req
	return accountdomain.ListTransactionsResponse{}, nil
}

func (f *fakeAccountService) GetTransaction(ctx context.Context, userID string, id snowflake.ID) (*accountdomain.Transaction, error) {
	_ = ctx
	_ = userID
	_ = id
	return nil, accountdomain.ErrTransactionNotFound
}

func newTestServer(t *testing.T) (*Server, *fakeSessionService, *fakeGenerationService, *fakeAccountService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	sessionSvc := &fakeSessionService{
		session: &sessiondomain.Session{
			ID:        snowflake.ID(1),
			UserID:    "usr_1",
			ExpiresAt: time.Now().Add(time.Hour),
		},
	}
	generationSvc := &fakeGenerationService{}
	accountSvc := &fakeAccountService{
		user: &accountdomain.User{ID: "usr_1", Email: "one@example.com", Name: "One", Credits: 3},
	}

	cfg := config.Config{Environment: "test"}
	srv := &Server{
		cfg:           cfg,
		sessions:      session.NewManager(cfg),
		sessionSvc:    sessionSvc,
		generationSvc: generationSvc,
		accountSvc:    accountSvc,
	}

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())
	srv.engine = engine
	srv.registerAPIRoutes()

	return srv, sessionSvc, generationSvc, accountSvc
}

func TestGenerateHandlerRequiresAuth(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/generate", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	srv.Engine().ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", resp.Code)
	}
}

func TestGenerateHandlerReturnsPaymentRequired(t *testing.T) {
	srv, _, generationSvc, _ := newTestServer(t)
	generationSvc.generateErr = accountdomain.ErrInsufficientCredits

	body := `{"image_url":"https://example.com/room.jpg","mode":"room-to-furniture","room_type":"living-room","style":"modern","effect":"modern-minimal"}`
	req := httptest.NewRequest(http.MethodPost, "/api/generate", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer test-token")
	resp := httptest.NewRecorder()
	srv.Engine().ServeHTTP(resp, req)

	if resp.Code != http.StatusPaymentRequired {
		t.Fatalf("expected status 402, got %d", resp.Code)
	}
}

func TestGenerateHandlerReturnsCreatedVideo(t *testing.T) {
	srv, _, generationSvc, _ := newTestServer(t)
	generationSvc.video = &generationdomain.Video{
		ID:     snowflake.ID(42),
		UserID: "usr_1",
		Status: generationdomain.VideoStatusCompleted,
	}

	body := `{"image_url":"https://example.com/room.jpg","mode":"room-to-furniture","room_type":"living-room","style":"modern","effect":"modern-minimal"}`
	req := httptest.NewRequest(http.MethodPost, "/api/generate", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer test-token")
	resp := httptest.NewRecorder()
	srv.Engine().ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", resp.Code)
	}
	if !bytes.Contains(resp.Body.Bytes(), []byte(`"video"`)) {
		t.Fatalf("expected video in response, got %s", resp.Body.String())
	}
}

func TestMeHandlerReturnsBalance(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer test-token")
	resp := httptest.NewRecorder()
	srv.Engine().ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	if !bytes.Contains(resp.Body.Bytes(), []byte(`"credits":3`)) {
		t.Fatalf("expected credits in response, got %s", resp.Body.String())
	}
}

func TestAuthRequiredRejectsExpiredSession(t *testing.T) {
	srv, sessionSvc, _, _ := newTestServer(t)
	sessionSvc.err = sessiondomain.ErrSessionExpired

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer stale-token")
	resp := httptest.NewRecorder()
	srv.Engine().ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", resp.Code)
	}
}

type fakeWebhookService struct {
	err error
}

func (f *fakeWebhookService) IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) error {
	_ = ctx
	_ = provider
	_ = payload
	_ = headers
	return f.err
}

func TestWebhookHandlerRejectsBadSignature(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	srv.webhookSvc = &fakeWebhookService{err: settlementdomain.ErrInvalidSignature}

	req := httptest.NewRequest(http.MethodPost, "/api/payments/webhooks/stripe", bytes.NewBufferString(`{}`))
	resp := httptest.NewRecorder()
	srv.Engine().ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestWebhookHandlerAcknowledgesSettledEvent(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	srv.webhookSvc = &fakeWebhookService{}

	req := httptest.NewRequest(http.MethodPost, "/api/payments/webhooks/stripe", bytes.NewBufferString(`{}`))
	resp := httptest.NewRecorder()
	srv.Engine().ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	if !bytes.Contains(resp.Body.Bytes(), []byte(`"received":true`)) {
		t.Fatalf("expected receipt ack, got %s", resp.Body.String())
	}
}

func TestEffectsHandlerIsPublic(t *testing.T) {
	srv, _, generationSvc, _ := newTestServer(t)
	generationSvc.effects = []generationdomain.Effect{{ID: "modern-minimal", Name: "Modern Minimal"}}

	req := httptest.NewRequest(http.MethodGet, "/api/effects", nil)
	resp := httptest.NewRecorder()
	srv.Engine().ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	if !bytes.Contains(resp.Body.Bytes(), []byte("modern-minimal")) {
		t.Fatalf("expected effect in response, got %s", resp.Body.String())
	}
}
