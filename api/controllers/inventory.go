package controllers

import (
	"net/http"

	"github.com/delgadoservices/fieldstock-backend/api/responses"
	"github.com/delgadoservices/fieldstock-backend/api/validators"
	inventorysvc "github.com/delgadoservices/fieldstock-backend/internal/inventory"
	"github.com/delgadoservices/fieldstock-backend/pkg/logger"
)

// ItemAvailability returns the ledger view for one item.
func ItemAvailability(svc inventorysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		availability, err := svc.Availability(r.Context(), itemID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, availability)
	}
}

// AdjustItemStock records an on-hand change (receiving, damage, counts).
func AdjustItemStock(svc inventorysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload adjustStockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.AdjustOnHand(r.Context(), inventorysvc.AdjustOnHandInput{
			ItemID:      itemID,
			Delta:       payload.Delta,
			Reason:      payload.Reason,
			ActorUserID: actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

type adjustStockRequest struct {
	Delta  int    `json:"delta" validate:"required"`
	Reason string `json:"reason" validate:"required"`
}
