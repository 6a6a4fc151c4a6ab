package controllers

import (
	"net/http"
	"strconv"

	"github.com/delgadoservices/fieldstock-backend/api/responses"
	"github.com/delgadoservices/fieldstock-backend/internal/audit"
	"github.com/delgadoservices/fieldstock-backend/pkg/logger"
	"github.com/delgadoservices/fieldstock-backend/pkg/pagination"
)

// ReservationAuditTrail lists the change history for one reservation.
func ReservationAuditTrail(recorder audit.Recorder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entries, err := recorder.ListByReservation(r.Context(), id, paginationParams(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, entries)
	}
}

// JobAuditTrail lists the change history across a job's reservations.
func JobAuditTrail(recorder audit.Recorder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, err := pathUUID(r, "jobID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entries, err := recorder.ListByJob(r.Context(), jobID, paginationParams(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, entries)
	}
}

func paginationParams(r *http.Request) pagination.Params {
	params := pagination.Params{Cursor: r.URL.Query().Get("cursor")}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil {
			params.Limit = limit
		}
	}
	return params
}
