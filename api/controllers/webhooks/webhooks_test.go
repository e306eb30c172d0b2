package webhooks

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/rs/zerolog"

	pkgerrors "github.com/tobiafolabi/nairamart-backend/pkg/errors"
	"github.com/tobiafolabi/nairamart-backend/pkg/flutterwave"
	"github.com/tobiafolabi/nairamart-backend/pkg/logger"
	"github.com/tobiafolabi/nairamart-backend/pkg/paystack"
)

type stubPaystackService struct {
	events []*paystack.WebhookEvent
	err    error
}

func (s *stubPaystackService) ProcessPaystackEvent(_ context.Context, event *paystack.WebhookEvent) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

type stubFlutterwaveService struct {
	events []*flutterwave.WebhookEvent
	err    error
}

func (s *stubFlutterwaveService) ProcessFlutterwaveEvent(_ context.Context, event *flutterwave.WebhookEvent) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

type stubPaystackVerifier struct{ valid bool }

func (s *stubPaystackVerifier) ValidateSignature(_ []byte, _ string) bool { return s.valid }

type stubFlutterwaveVerifier struct{ expect string }

func (s *stubFlutterwaveVerifier) ValidateSignature(signature string) bool {
	return signature != "" && signature == s.expect
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{
		ServiceName: "webhooks-test",
		Level:       zerolog.ErrorLevel,
		Output:      io.Discard,
	})
}

func TestPaystackWebhookRejectsBadSignature(t *testing.T) {
	svc := &stubPaystackService{}
	handler := PaystackWebhook(svc, &stubPaystackVerifier{valid: false}, testLogger())

	body := `{"event":"charge.success","data":{"reference":"nm_abc_000000000000"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/paystack", strings.NewReader(body))
	req.Header.Set(paystack.SignatureHeader, "forged")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, svc.events, "no processing may happen on signature mismatch")
}

func TestPaystackWebhookDispatchesValidEvent(t *testing.T) {
	svc := &stubPaystackService{}
	handler := PaystackWebhook(svc, &stubPaystackVerifier{valid: true}, testLogger())

	body := `{"event":"charge.success","data":{"reference":"nm_abc_000000000000"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/paystack", strings.NewReader(body))
	req.Header.Set(paystack.SignatureHeader, "sig")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, svc.events, 1)
	assert.Equal(t, "charge.success", svc.events[0].Event)
}

func TestPaystackWebhookRejectsMalformedPayload(t *testing.T) {
	svc := &stubPaystackService{}
	handler := PaystackWebhook(svc, &stubPaystackVerifier{valid: true}, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/paystack", strings.NewReader("not-json"))
	req.Header.Set(paystack.SignatureHeader, "sig")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.events)
}

func TestPaystackWebhookSurfacesProcessingError(t *testing.T) {
	svc := &stubPaystackService{err: pkgerrors.New(pkgerrors.CodeDependency, "transaction still pending at the gateway")}
	handler := PaystackWebhook(svc, &stubPaystackVerifier{valid: true}, testLogger())

	body := `{"event":"charge.success","data":{"reference":"nm_abc_000000000000"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/paystack", strings.NewReader(body))
	req.Header.Set(paystack.SignatureHeader, "sig")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestFlutterwaveWebhookRejectsBadHash(t *testing.T) {
	svc := &stubFlutterwaveService{}
	handler := FlutterwaveWebhook(svc, &stubFlutterwaveVerifier{expect: "merchant-hash"}, testLogger())

	body := `{"event":"charge.completed","data":{"tx_ref":"nm_abc_000000000000"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/flutterwave", strings.NewReader(body))
	req.Header.Set(flutterwave.SignatureHeader, "wrong-hash")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, svc.events)
}

func TestFlutterwaveWebhookDispatchesValidEvent(t *testing.T) {
	svc := &stubFlutterwaveService{}
	handler := FlutterwaveWebhook(svc, &stubFlutterwaveVerifier{expect: "merchant-hash"}, testLogger())

	body := `{"event":"charge.completed","data":{"tx_ref":"nm_abc_000000000000"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/flutterwave", strings.NewReader(body))
	req.Header.Set(flutterwave.SignatureHeader, "merchant-hash")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, svc.events, 1)
	assert.Equal(t, "charge.completed", svc.events[0].Event)
}
