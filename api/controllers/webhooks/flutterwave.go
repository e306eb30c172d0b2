package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/tobiafolabi/nairamart-backend/api/responses"
	pkgerrors "github.com/tobiafolabi/nairamart-backend/pkg/errors"
	"github.com/tobiafolabi/nairamart-backend/pkg/flutterwave"
	"github.com/tobiafolabi/nairamart-backend/pkg/logger"
)

// FlutterwaveWebhookService processes signature-validated Flutterwave events.
type FlutterwaveWebhookService interface {
	ProcessFlutterwaveEvent(ctx context.Context, event *flutterwave.WebhookEvent) error
}

type flutterwaveVerifier interface {
	ValidateSignature(signature string) bool
}

// FlutterwaveWebhook receives Flutterwave charge deliveries. Flutterwave sends
// the merchant's secret hash verbatim in a header; it is compared in constant
// time before the payload is parsed, and a mismatch is rejected with 401.
func FlutterwaveWebhook(svc FlutterwaveWebhookService, client flutterwaveVerifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if client == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "flutterwave client unavailable"))
			return
		}

		signature := r.Header.Get(flutterwave.SignatureHeader)
		if !client.ValidateSignature(signature) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook signature"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		event, err := flutterwave.ParseWebhookEvent(payload)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if err := svc.ProcessFlutterwaveEvent(ctx, event); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}
