package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tobiafolabi/nairamart-backend/api/responses"
	"github.com/tobiafolabi/nairamart-backend/api/validators"
	"github.com/tobiafolabi/nairamart-backend/internal/refunds"
	"github.com/tobiafolabi/nairamart-backend/pkg/enums"
	pkgerrors "github.com/tobiafolabi/nairamart-backend/pkg/errors"
	"github.com/tobiafolabi/nairamart-backend/pkg/logger"
)

type openReturnRequest struct {
	ProductID      string   `json:"product_id" validate:"required,uuid"`
	Qty            int      `json:"qty" validate:"required,min=1"`
	Reason         string   `json:"reason" validate:"required,max=1000"`
	EvidenceImages []string `json:"evidence_images" validate:"omitempty,dive,url"`
}

// OpenReturn lets the buyer request a return on a delivered line item.
func OpenReturn(svc *refunds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, subOrderID, err := orderPathIDs(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req openReturnRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		productID, err := uuid.Parse(req.ProductID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id"))
			return
		}

		ret, err := svc.RequestReturn(r.Context(), actor, orderID, subOrderID, refunds.ReturnInput{
			ProductID:      productID,
			Qty:            req.Qty,
			Reason:         validators.SanitizeString(req.Reason, 1000),
			EvidenceImages: req.EvidenceImages,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, ret)
	}
}

type updateReturnStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Notes  string `json:"notes" validate:"max=1000"`
}

// UpdateReturnStatus moves a return request through the review workflow.
func UpdateReturnStatus(svc *refunds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, subOrderID, err := orderPathIDs(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		returnID, err := uuid.Parse(chi.URLParam(r, "returnID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid return id"))
			return
		}

		var req updateReturnStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := enums.ParseReturnStatus(strings.TrimSpace(req.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid return status"))
			return
		}

		ret, err := svc.UpdateReturnStatus(r.Context(), actor, orderID, subOrderID, returnID, status, validators.SanitizeString(req.Notes, 1000))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ret)
	}
}
