package service_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	accountdomain "github.com/roomvision/roomvision/internal/account/domain"
	accountrepo "github.com/roomvision/roomvision/internal/account/repository"
	accountservice "github.com/roomvision/roomvision/internal/account/service"
	auditdomain "github.com/roomvision/roomvision/internal/audit/domain"
	"github.com/roomvision/roomvision/internal/clock"
	"github.com/roomvision/roomvision/internal/config"
	"github.com/roomvision/roomvision/internal/settlement/adapters"
	"github.com/roomvision/roomvision/internal/settlement/adapters/stripe"
	settlementdomain "github.com/roomvision/roomvision/internal/settlement/domain"
	settlementrepo "github.com/roomvision/roomvision/internal/settlement/repository"
	settlementservice "github.com/roomvision/roomvision/internal/settlement/service"
	settlementwebhook "github.com/roomvision/roomvision/internal/settlement/webhook"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type noopAuditService struct{}

func (noopAuditService) AuditLog(ctx context.Context, actorID *string, action string, targetType string, targetID *string, metadata map[string]any) error {
	return nil
}

func (noopAuditService) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	return auditdomain.ListAuditLogResponse{}, nil
}

const stripeSecret = "whsec_test"

func newWebhookService(t *testing.T, db *gorm.DB) (settlementdomain.Service, accountdomain.Service) {
	t.Helper()

	node, err := snowflake.NewNode(2)
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
	settlementSvc := settlementservice.NewService(settlementservice.Params{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      clock.NewSystemClock(),
		AccountSvc: accountSvc,
		AuditSvc:   noopAuditService{},
		Repo:       settlementrepo.Provide(),
	})
	webhookSvc := settlementwebhook.NewService(settlementwebhook.Params{
		DB:            db,
		Log:           zap.NewNop(),
		SettlementSvc: settlementSvc,
		Adapters:      adapters.NewRegistry(stripe.NewFactory()),
		Cfg: config.Config{
			Stripe: config.StripeConfig{WebhookSecret: stripeSecret},
		},
	})

	return webhookSvc, accountSvc
}

func TestIngestWebhookGrantsCredits(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	webhookSvc, accountSvc := newWebhookService(t, db)

	seedUser(t, db, "user_1", 0)

	payload := checkoutPayload("evt_1", "cs_1", "pi_1", "user_1", 30, 1900)
	if err := webhookSvc.IngestWebhook(ctx, "stripe", payload, signedHeader(payload)); err != nil {
		t.Fatalf("ingest webhook: %v", err)
	}

	balance, err := accountSvc.Balance(ctx, "user_1")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 30 {
		t.Fatalf("expected balance 30, got %d", balance)
	}

	assertCount(t, db, "SELECT COUNT(1) FROM payment_events", 1)
	assertCount(t, db, "SELECT COUNT(1) FROM transactions WHERE provider_payment_ref = 'pi_1'", 1)

	var processedAt string
	if err := db.Raw("SELECT processed_at FROM payment_events LIMIT 1").Scan(&processedAt).Error; err != nil {
		t.Fatalf("scan processed_at: %v", err)
	}
	if processedAt == "" {
		t.Fatalf("expected processed_at to be set")
	}
}

func TestIngestWebhookReplayGrantsOnce(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	webhookSvc, accountSvc := newWebhookService(t, db)

	seedUser(t, db, "user_1", 0)

	payload := checkoutPayload("evt_1", "cs_1", "pi_1", "user_1", 10, 900)
	headers := signedHeader(payload)
	for i := 0; i < 3; i++ {
		if err := webhookSvc.IngestWebhook(ctx, "stripe", payload, headers); err != nil {
			t.Fatalf("delivery %d: %v", i, err)
		}
	}

	balance, err := accountSvc.Balance(ctx, "user_1")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 10 {
		t.Fatalf("expected a single grant of 10 credits, got balance %d", balance)
	}
	assertCount(t, db, "SELECT COUNT(1) FROM payment_events", 1)
	assertCount(t, db, "SELECT COUNT(1) FROM transactions", 1)
}

func TestIngestWebhookDistinctEventsSamePaymentRef(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	webhookSvc, accountSvc := newWebhookService(t, db)

	seedUser(t, db, "user_1", 0)

	first := checkoutPayload("evt_1", "cs_1", "pi_1", "user_1", 10, 900)
	if err := webhookSvc.IngestWebhook(ctx, "stripe", first, signedHeader(first)); err != nil {
		t.Fatalf("first delivery: %v", err)
	}

	second := checkoutPayload("evt_2", "cs_1", "pi_1", "user_1", 10, 900)
	if err := webhookSvc.IngestWebhook(ctx, "stripe", second, signedHeader(second)); err != nil {
		t.Fatalf("second delivery: %v", err)
	}

	balance, err := accountSvc.Balance(ctx, "user_1")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 10 {
		t.Fatalf("expected payment ref to dedupe the grant, got balance %d", balance)
	}
	assertCount(t, db, "SELECT COUNT(1) FROM payment_events", 2)
	assertCount(t, db, "SELECT COUNT(1) FROM payment_events WHERE processed_at IS NOT NULL", 2)
	assertCount(t, db, "SELECT COUNT(1) FROM transactions", 1)
}

func TestIngestWebhookRetriesUnsettledEvent(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	webhookSvc, accountSvc := newWebhookService(t, db)

	// First delivery arrives before the user row exists, so the grant
	// fails. The event row stays unprocessed and the delivery errors so
	// the provider redelivers.
	payload := checkoutPayload("evt_1", "cs_1", "pi_1", "user_1", 30, 1900)
	headers := signedHeader(payload)
	if err := webhookSvc.IngestWebhook(ctx, "stripe", payload, headers); err == nil {
		t.Fatalf("expected first delivery to fail for unknown user")
	}
	assertCount(t, db, "SELECT COUNT(1) FROM payment_events", 1)
	assertCount(t, db, "SELECT COUNT(1) FROM payment_events WHERE processed_at IS NULL", 1)
	assertCount(t, db, "SELECT COUNT(1) FROM transactions", 0)

	seedUser(t, db, "user_1", 0)

	if err := webhookSvc.IngestWebhook(ctx, "stripe", payload, headers); err != nil {
		t.Fatalf("redelivery: %v", err)
	}

	balance, err := accountSvc.Balance(ctx, "user_1")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 30 {
		t.Fatalf("expected redelivery to grant 30 credits exactly once, got balance %d", balance)
	}
	assertCount(t, db, "SELECT COUNT(1) FROM payment_events", 1)
	assertCount(t, db, "SELECT COUNT(1) FROM payment_events WHERE processed_at IS NOT NULL", 1)
	assertCount(t, db, "SELECT COUNT(1) FROM transactions WHERE provider_payment_ref = 'pi_1'", 1)
}

func TestIngestWebhookAbsorbsPriorGrant(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	webhookSvc, accountSvc := newWebhookService(t, db)

	seedUser(t, db, "user_1", 0)

	// A prior delivery granted but the event was never marked processed.
	if err := accountSvc.Grant(ctx, accountdomain.GrantRequest{
		UserID:      "user_1",
		Credits:     10,
		AmountCents: 900,
		Currency:    "USD",
		Description: "credit purchase",
		ProviderRef: "pi_1",
	}); err != nil {
		t.Fatalf("prior grant: %v", err)
	}

	payload := checkoutPayload("evt_1", "cs_1", "pi_1", "user_1", 10, 900)
	if err := webhookSvc.IngestWebhook(ctx, "stripe", payload, signedHeader(payload)); err != nil {
		t.Fatalf("delivery after prior grant: %v", err)
	}

	balance, err := accountSvc.Balance(ctx, "user_1")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 10 {
		t.Fatalf("expected prior grant to stand without a double credit, got balance %d", balance)
	}
	assertCount(t, db, "SELECT COUNT(1) FROM payment_events WHERE processed_at IS NOT NULL", 1)
	assertCount(t, db, "SELECT COUNT(1) FROM transactions WHERE provider_payment_ref = 'pi_1'", 1)
}

func TestProcessEventStampsInjectedClock(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	node, err := snowflake.NewNode(2)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	accountSvc := accountservice.NewService(accountservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(fixed),
		Repo:  accountrepo.Provide(),
	})
	settlementSvc := settlementservice.NewService(settlementservice.Params{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      clock.NewFakeClock(fixed),
		AccountSvc: accountSvc,
		AuditSvc:   noopAuditService{},
		Repo:       settlementrepo.Provide(),
	})

	seedUser(t, db, "user_1", 0)

	event := &settlementdomain.SettlementEvent{
		Provider:          "stripe",
		ProviderEventID:   "evt_1",
		Type:              settlementdomain.EventTypeCheckoutCompleted,
		UserID:            "user_1",
		ProviderPaymentID: "pi_1",
		Credits:           10,
		AmountCents:       900,
		Currency:          "usd",
		OccurredAt:        fixed,
	}
	if err := settlementSvc.ProcessEvent(ctx, event, []byte(`{"id":"evt_1"}`)); err != nil {
		t.Fatalf("process event: %v", err)
	}

	var stamps struct {
		ReceivedAt  string
		ProcessedAt string
	}
	if err := db.Raw("SELECT received_at, processed_at FROM payment_events LIMIT 1").Scan(&stamps).Error; err != nil {
		t.Fatalf("scan stamps: %v", err)
	}
	for _, stamp := range []string{stamps.ReceivedAt, stamps.ProcessedAt} {
		if !strings.HasPrefix(stamp, "2026-03-01") {
			t.Fatalf("expected timestamps from the injected clock, got %q", stamp)
		}
	}
}

func TestIngestWebhookRejectsBadSignature(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	webhookSvc, _ := newWebhookService(t, db)

	seedUser(t, db, "user_1", 0)

	payload := checkoutPayload("evt_1", "cs_1", "pi_1", "user_1", 10, 900)
	headers := http.Header{}
	headers.Set("Stripe-Signature", buildStripeSignatureHeader("whsec_wrong", payload, time.Now().Unix()))

	if err := webhookSvc.IngestWebhook(ctx, "stripe", payload, headers); err == nil {
		t.Fatalf("expected signature rejection")
	}
	assertCount(t, db, "SELECT COUNT(1) FROM payment_events", 0)
}

func TestIngestWebhookIgnoresOtherEventTypes(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	webhookSvc, _ := newWebhookService(t, db)

	payload := []byte(`{"id":"evt_9","type":"invoice.paid","data":{"object":{}}}`)
	if err := webhookSvc.IngestWebhook(ctx, "stripe", payload, signedHeader(payload)); err != nil {
		t.Fatalf("expected ignored event to be acknowledged, got %v", err)
	}
	assertCount(t, db, "SELECT COUNT(1) FROM payment_events", 0)
}

func checkoutPayload(eventID, sessionID, paymentIntent, userID string, credits, amountTotal int64) []byte {
	now := time.Now().UTC().Unix()
	return []byte(fmt.Sprintf(
		`{"id":"%s","type":"checkout.session.completed","created":%d,"data":{"object":{"id":"%s","payment_intent":"%s","payment_status":"paid","amount_total":%d,"currency":"usd","created":%d,"metadata":{"userId":"%s","credits":"%d"}}}}`,
		eventID, now, sessionID, paymentIntent, amountTotal, now, userID, credits,
	))
}

func signedHeader(payload []byte) http.Header {
	headers := http.Header{}
	headers.Set("Stripe-Signature", buildStripeSignatureHeader(stripeSecret, payload, time.Now().Unix()))
	return headers
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
		`CREATE TABLE payment_events (
			id BIGINT PRIMARY KEY,
			provider TEXT NOT NULL,
			provider_event_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			user_id TEXT NOT NULL,
			payload TEXT NOT NULL,
			received_at TIMESTAMP NOT NULL,
			processed_at TIMESTAMP
		)`,
		`CREATE UNIQUE INDEX ux_payment_events_provider_event_id ON payment_events(provider, provider_event_id)`,
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

func buildStripeSignatureHeader(secret string, payload []byte, timestamp int64) string {
	signedPayload := fmt.Sprintf("%d.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(signedPayload))
	signature := hex.EncodeToString(mac.Sum(nil))
	return fmt.Sprintf("t=%d,v1=%s", timestamp, signature)
}
