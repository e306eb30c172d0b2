package controllers

import (
	"net/http"
	"strings"

	"github.com/tobiafolabi/nairamart-backend/api/responses"
	"github.com/tobiafolabi/nairamart-backend/internal/webhooks"
	"github.com/tobiafolabi/nairamart-backend/pkg/enums"
	pkgerrors "github.com/tobiafolabi/nairamart-backend/pkg/errors"
	"github.com/tobiafolabi/nairamart-backend/pkg/logger"
)

// VerifyPayment is the buyer polling endpoint. It re-verifies the reference
// against the gateway and settles the order when the charge succeeded; a poll
// racing a webhook resolves to the already-materialized order.
func VerifyPayment(svc *webhooks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		reference := strings.TrimSpace(r.URL.Query().Get("reference"))
		if reference == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "reference query parameter required"))
			return
		}

		gateway, err := enums.ParsePaymentGateway(strings.TrimSpace(r.URL.Query().Get("gateway")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid gateway"))
			return
		}

		result, err := svc.VerifyAndSettle(r.Context(), gateway, reference)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"ok":       result.Settled,
			"status":   result.Status,
			"order_id": result.OrderID,
		})
	}
}
