package controllers

import (
	"net/http"

	"github.com/delgadoservices/fieldstock-backend/api/responses"
	variancesvc "github.com/delgadoservices/fieldstock-backend/internal/variance"
	"github.com/delgadoservices/fieldstock-backend/pkg/logger"
)

// JobVariance computes the cost variance rollup for a job.
func JobVariance(svc variancesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, err := pathUUID(r, "jobID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rollup, err := svc.ComputeVariance(r.Context(), jobID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rollup)
	}
}
