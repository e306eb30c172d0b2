package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/tobiafolabi/nairamart-backend/api/responses"
	pkgerrors "github.com/tobiafolabi/nairamart-backend/pkg/errors"
	"github.com/tobiafolabi/nairamart-backend/pkg/logger"
	"github.com/tobiafolabi/nairamart-backend/pkg/paystack"
)

// PaystackWebhookService processes signature-validated Paystack events.
type PaystackWebhookService interface {
	ProcessPaystackEvent(ctx context.Context, event *paystack.WebhookEvent) error
}

type paystackVerifier interface {
	ValidateSignature(payload []byte, signature string) bool
}

// PaystackWebhook receives Paystack charge deliveries. The HMAC signature is
// checked over the raw body before the payload is even parsed; a mismatch is
// rejected with 401 and nothing downstream runs.
func PaystackWebhook(svc PaystackWebhookService, client paystackVerifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if client == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "paystack client unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		signature := r.Header.Get(paystack.SignatureHeader)
		if !client.ValidateSignature(payload, signature) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook signature"))
			return
		}

		event, err := paystack.ParseWebhookEvent(payload)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if err := svc.ProcessPaystackEvent(ctx, event); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}
