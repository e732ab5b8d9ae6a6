package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/roomvision/roomvision/internal/settlement/domain"
)

func TestVerifySignature(t *testing.T) {
	secret := "whsec_test"
	payload := []byte(`{"id":"evt_123","type":"checkout.session.completed","data":{"object":{}}}`)
	timestamp := time.Now().Unix()

	header := buildStripeSignatureHeader(secret, payload, timestamp)
	reqHeader := http.Header{}
	reqHeader.Set("Stripe-Signature", header)

	adapter := &Adapter{webhookSecret: secret}
	if err := adapter.Verify(context.Background(), payload, reqHeader); err != nil {
		t.Fatalf("expected valid signature, got error: %v", err)
	}

	reqHeader.Set("Stripe-Signature", buildStripeSignatureHeader("wrong", payload, timestamp))
	if err := adapter.Verify(context.Background(), payload, reqHeader); err == nil {
		t.Fatalf("expected invalid signature error")
	}
}

func TestParseCheckoutSessionCompleted(t *testing.T) {
	created := time.Now().UTC().Unix()
	event := map[string]any{
		"id":      "evt_1",
		"type":    "checkout.session.completed",
		"created": created,
		"data": map[string]any{
			"object": map[string]any{
				"id":             "cs_1",
				"payment_intent": "pi_1",
				"payment_status": "paid",
				"amount_total":   1900,
				"currency":       "usd",
				"created":        created,
				"metadata": map[string]any{
					"userId":  "user_1",
					"credits": "30",
				},
			},
		},
	}

	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}

	adapter := &Adapter{webhookSecret: "whsec_test"}
	parsed, err := adapter.Parse(context.Background(), payload)
	if err != nil {
		t.Fatalf("parse event: %v", err)
	}
	if parsed.Type != domain.EventTypeCheckoutCompleted {
		t.Fatalf("expected type %s, got %s", domain.EventTypeCheckoutCompleted, parsed.Type)
	}
	if parsed.UserID != "user_1" {
		t.Fatalf("expected user_1, got %s", parsed.UserID)
	}
	if parsed.Credits != 30 {
		t.Fatalf("expected 30 credits, got %d", parsed.Credits)
	}
	if parsed.ProviderPaymentID != "pi_1" {
		t.Fatalf("expected payment ref pi_1, got %s", parsed.ProviderPaymentID)
	}
	if parsed.AmountCents != 1900 {
		t.Fatalf("expected amount 1900, got %d", parsed.AmountCents)
	}
	if parsed.Currency != "USD" {
		t.Fatalf("expected currency USD, got %s", parsed.Currency)
	}
}

func TestParseIgnoresOtherEventTypes(t *testing.T) {
	payload := []byte(`{"id":"evt_2","type":"invoice.paid","data":{"object":{}}}`)
	adapter := &Adapter{webhookSecret: "whsec_test"}
	if _, err := adapter.Parse(context.Background(), payload); !errors.Is(err, domain.ErrEventIgnored) {
		t.Fatalf("expected ErrEventIgnored, got %v", err)
	}
}

func TestParseRejectsMissingMetadata(t *testing.T) {
	created := time.Now().UTC().Unix()
	adapter := &Adapter{webhookSecret: "whsec_test"}

	payload := []byte(fmt.Sprintf(`{"id":"evt_3","type":"checkout.session.completed","created":%d,"data":{"object":{"id":"cs_3","payment_intent":"pi_3","amount_total":900,"currency":"usd","metadata":{"credits":"10"}}}}`, created))
	if _, err := adapter.Parse(context.Background(), payload); !errors.Is(err, domain.ErrInvalidUser) {
		t.Fatalf("expected ErrInvalidUser, got %v", err)
	}

	payload = []byte(fmt.Sprintf(`{"id":"evt_4","type":"checkout.session.completed","created":%d,"data":{"object":{"id":"cs_4","payment_intent":"pi_4","amount_total":900,"currency":"usd","metadata":{"userId":"user_1","credits":"-5"}}}}`, created))
	if _, err := adapter.Parse(context.Background(), payload); !errors.Is(err, domain.ErrInvalidCredits) {
		t.Fatalf("expected ErrInvalidCredits, got %v", err)
	}
}

func buildStripeSignatureHeader(secret string, payload []byte, timestamp int64) string {
	signedPayload := fmt.Sprintf("%d.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(signedPayload))
	signature := hex.EncodeToString(mac.Sum(nil))
	return fmt.Sprintf("t=%d,v1=%s", timestamp, signature)
}
