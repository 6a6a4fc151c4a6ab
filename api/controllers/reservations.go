package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/delgadoservices/fieldstock-backend/api/middleware"
	"github.com/delgadoservices/fieldstock-backend/api/responses"
	"github.com/delgadoservices/fieldstock-backend/api/validators"
	reservationsvc "github.com/delgadoservices/fieldstock-backend/internal/reservations"
	"github.com/delgadoservices/fieldstock-backend/pkg/enums"
	pkgerrors "github.com/delgadoservices/fieldstock-backend/pkg/errors"
	"github.com/delgadoservices/fieldstock-backend/pkg/logger"
)

// CreateReservation opens a planned reservation under a job.
func CreateReservation(svc reservationsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, err := pathUUID(r, "jobID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createReservationRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		itemID, err := uuid.Parse(payload.ItemID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid item id"))
			return
		}

		reservation, err := svc.Create(r.Context(), reservationsvc.CreateInput{
			JobID:          jobID,
			ItemID:         itemID,
			QuantityNeeded: payload.QuantityNeeded,
			Notes:          payload.Notes,
			ActorUserID:    actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, reservation)
	}
}

// ListReservations returns every reservation line for a job.
func ListReservations(svc reservationsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, err := pathUUID(r, "jobID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		reservations, err := svc.ListByJob(r.Context(), jobID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, reservations)
	}
}

// GetReservation fetches one reservation.
func GetReservation(svc reservationsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		reservation, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, reservation)
	}
}

// PatchReservation applies a partial update to a non-billed reservation.
func PatchReservation(svc reservationsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload patchReservationRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toUpdateInput(id, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reservation, err := svc.Update(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, reservation)
	}
}

// AllocateReservation claims stock for a reservation.
func AllocateReservation(svc reservationsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload allocateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input := reservationsvc.AllocateInput{
			ReservationID:   id,
			Requested:       payload.Requested,
			Force:           payload.Force,
			ExpectedArrival: payload.ExpectedArrival,
			ActorUserID:     actor,
		}
		if payload.PurchaseOrderID != nil {
			poID, err := uuid.Parse(*payload.PurchaseOrderID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid purchase order id"))
				return
			}
			input.PurchaseOrderID = &poID
		}

		reservation, err := svc.Allocate(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, reservation)
	}
}

// LoadReservation marks allocated stock as loaded for delivery.
func LoadReservation(svc reservationsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return quantityTransition(logg, func(r *http.Request, id uuid.UUID, qty int, actor uuid.UUID) (any, error) {
		return svc.Load(r.Context(), reservationsvc.LoadInput{ReservationID: id, Quantity: qty, ActorUserID: actor})
	})
}

// UseReservation records material consumed on site.
func UseReservation(svc reservationsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return quantityTransition(logg, func(r *http.Request, id uuid.UUID, qty int, actor uuid.UUID) (any, error) {
		return svc.RecordUsage(r.Context(), reservationsvc.UsageInput{ReservationID: id, Quantity: qty, ActorUserID: actor})
	})
}

// ReturnReservation sends unconsumed material back to stock. A planned
// reservation accepts an empty payload ({}), which cancels it.
func ReturnReservation(svc reservationsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload returnRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		reservation, err := svc.Return(r.Context(), reservationsvc.ReturnInput{
			ReservationID: id,
			Quantity:      payload.Quantity,
			ActorUserID:   actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, reservation)
	}
}

// quantityTransition is the shared handler shape for the load and use
// endpoints, which differ only in the service call.
func quantityTransition(logg *logger.Logger, run func(r *http.Request, id uuid.UUID, qty int, actor uuid.UUID) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload quantityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		reservation, err := run(r, id, payload.Quantity, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, reservation)
	}
}

// BillReservation closes the reservation into the billed state.
func BillReservation(svc reservationsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		reservation, err := svc.Bill(r.Context(), reservationsvc.BillInput{ReservationID: id, ActorUserID: actor})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, reservation)
	}
}

// OverrideReservation corrects counters on a billed reservation.
func OverrideReservation(svc reservationsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload overrideRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reservation, err := svc.Override(r.Context(), reservationsvc.OverrideInput{
			ReservationID:    id,
			QuantityUsed:     payload.QuantityUsed,
			QuantityReturned: payload.QuantityReturned,
			Notes:            payload.Notes,
			ActorUserID:      actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, reservation)
	}
}

type createReservationRequest struct {
	ItemID         string  `json:"item_id" validate:"required,uuid"`
	QuantityNeeded int     `json:"quantity_needed" validate:"required,gt=0"`
	Notes          *string `json:"notes,omitempty"`
}

type patchReservationRequest struct {
	QuantityNeeded   *int       `json:"quantity_needed,omitempty"`
	QuantityLoaded   *int       `json:"quantity_loaded,omitempty"`
	QuantityUsed     *int       `json:"quantity_used,omitempty"`
	QuantityReturned *int       `json:"quantity_returned,omitempty"`
	Status           *string    `json:"status,omitempty"`
	Notes            *string    `json:"notes,omitempty"`
	PurchaseOrderID  *string    `json:"purchase_order_id,omitempty"`
	ExpectedArrival  *time.Time `json:"expected_arrival,omitempty"`
}

func (p patchReservationRequest) toUpdateInput(id, actor uuid.UUID) (reservationsvc.UpdateInput, error) {
	input := reservationsvc.UpdateInput{
		ReservationID:    id,
		QuantityNeeded:   p.QuantityNeeded,
		QuantityLoaded:   p.QuantityLoaded,
		QuantityUsed:     p.QuantityUsed,
		QuantityReturned: p.QuantityReturned,
		Notes:            p.Notes,
		ExpectedArrival:  p.ExpectedArrival,
		ActorUserID:      actor,
	}
	if p.Status != nil {
		status, err := enums.ParseReservationStatus(*p.Status)
		if err != nil {
			return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status")
		}
		input.Status = &status
	}
	if p.PurchaseOrderID != nil {
		poID, err := uuid.Parse(*p.PurchaseOrderID)
		if err != nil {
			return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid purchase order id")
		}
		input.PurchaseOrderID = &poID
	}
	return input, nil
}

type allocateRequest struct {
	Requested       int        `json:"requested" validate:"required,gt=0"`
	Force           bool       `json:"force,omitempty"`
	PurchaseOrderID *string    `json:"purchase_order_id,omitempty"`
	ExpectedArrival *time.Time `json:"expected_arrival,omitempty"`
}

type quantityRequest struct {
	Quantity int `json:"quantity" validate:"required,gt=0"`
}

type returnRequest struct {
	Quantity int `json:"quantity,omitempty" validate:"omitempty,gt=0"`
}

type overrideRequest struct {
	QuantityUsed     *int    `json:"quantity_used,omitempty"`
	QuantityReturned *int    `json:"quantity_returned,omitempty"`
	Notes            *string `json:"notes,omitempty"`
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+name)
	}
	return id, nil
}

func requireActor(r *http.Request) (uuid.UUID, error) {
	actor := middleware.ActorFromContext(r.Context())
	if actor == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "X-Actor-Id header required")
	}
	return actor, nil
}
