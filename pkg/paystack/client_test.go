package paystack

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/tobiafolabi/nairamart-backend/pkg/config"
	pkgerrors "github.com/tobiafolabi/nairamart-backend/pkg/errors"
	"github.com/tobiafolabi/nairamart-backend/pkg/logger"
)

func newTestLogger() *logger.Logger {
	return logger.New(logger.Options{
		ServiceName: "paystack-test",
		Level:       zerolog.ErrorLevel,
		Output:      io.Discard,
	})
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := NewClient(context.Background(), config.PaystackConfig{
		SecretKey: "sk_test_secret",
		BaseURL:   baseURL,
	}, newTestLogger())
	if err != nil {
		t.Fatalf("build client: %v", err)
	}
	return client
}

func TestNewClientRequiresSecret(t *testing.T) {
	if _, err := NewClient(context.Background(), config.PaystackConfig{}, newTestLogger()); err == nil {
		t.Fatal("expected error for missing secret key")
	}
	if _, err := NewClient(context.Background(), config.PaystackConfig{SecretKey: "sk"}, nil); err == nil {
		t.Fatal("expected error for nil logger")
	}
}

func TestVerifyTransactionSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transaction/verify/PSK-REF-001" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk_test_secret" {
			t.Errorf("unexpected auth header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": true,
			"message": "Verification successful",
			"data": {
				"id": 12345,
				"status": "success",
				"reference": "PSK-REF-001",
				"amount": 1250000,
				"currency": "NGN",
				"channel": "card",
				"customer": {"email": "buyer@example.com"}
			}
		}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	tx, err := client.VerifyTransaction(context.Background(), "PSK-REF-001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx.Status != "success" {
		t.Fatalf("unexpected status %q", tx.Status)
	}
	if tx.AmountKobo != 1250000 {
		t.Fatalf("unexpected amount %d", tx.AmountKobo)
	}
	if tx.Customer.Email != "buyer@example.com" {
		t.Fatalf("unexpected customer %q", tx.Customer.Email)
	}
}

func TestVerifyTransactionNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"status": false, "message": "Transaction reference not found"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.VerifyTransaction(context.Background(), "missing-ref")
	if err == nil {
		t.Fatal("expected error")
	}
	domainErr := pkgerrors.As(err)
	if domainErr == nil {
		t.Fatalf("expected domain error, got %T", err)
	}
	if domainErr.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %s", domainErr.Code())
	}
}

func TestVerifyTransactionGatewayRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status": false, "message": "Invalid key"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	if _, err := client.VerifyTransaction(context.Background(), "ref"); err == nil {
		t.Fatal("expected error for status=false body")
	}
}

func TestVerifyTransactionEmptyReference(t *testing.T) {
	client := newTestClient(t, "http://localhost")
	_, err := client.VerifyTransaction(context.Background(), "  ")
	if err == nil {
		t.Fatal("expected validation error")
	}
	if domainErr := pkgerrors.As(err); domainErr == nil || domainErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestValidateSignature(t *testing.T) {
	client := newTestClient(t, "http://localhost")
	payload := []byte(`{"event":"charge.success","data":{"reference":"PSK-REF-001"}}`)

	mac := hmac.New(sha512.New, []byte("sk_test_secret"))
	mac.Write(payload)
	valid := hex.EncodeToString(mac.Sum(nil))

	if !client.ValidateSignature(payload, valid) {
		t.Fatal("expected valid signature to pass")
	}
	if client.ValidateSignature(payload, "deadbeef") {
		t.Fatal("expected invalid signature to fail")
	}
	if client.ValidateSignature(payload, "") {
		t.Fatal("expected empty signature to fail")
	}
	if client.ValidateSignature([]byte(`tampered`), valid) {
		t.Fatal("expected tampered payload to fail")
	}
}

func TestParseWebhookEvent(t *testing.T) {
	event, err := ParseWebhookEvent([]byte(`{"event":"charge.success","data":{"reference":"r1"}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Event != "charge.success" {
		t.Fatalf("unexpected event %q", event.Event)
	}

	if _, err := ParseWebhookEvent([]byte(`{"data":{}}`)); err == nil {
		t.Fatal("expected error for missing event type")
	}
	if _, err := ParseWebhookEvent([]byte(`not-json`)); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}
