package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/delgadoservices/fieldstock-backend/api/controllers"
	"github.com/delgadoservices/fieldstock-backend/api/middleware"
	"github.com/delgadoservices/fieldstock-backend/internal/audit"
	"github.com/delgadoservices/fieldstock-backend/internal/inventory"
	"github.com/delgadoservices/fieldstock-backend/internal/reservations"
	"github.com/delgadoservices/fieldstock-backend/internal/variance"
	"github.com/delgadoservices/fieldstock-backend/pkg/config"
	"github.com/delgadoservices/fieldstock-backend/pkg/db"
	"github.com/delgadoservices/fieldstock-backend/pkg/logger"
	pkgredis "github.com/delgadoservices/fieldstock-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *pkgredis.Client,
	reservationService reservations.Service,
	inventoryService inventory.Service,
	varianceService variance.Service,
	auditRecorder audit.Recorder,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Get("/healthz", controllers.HealthLive(cfg))
	r.Get("/readyz", controllers.HealthReady(cfg, logg, dbP, redisClient))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.ActorContext(logg))
		r.Use(middleware.Idempotency(idempotencyStore(redisClient), cfg.Idempotency, logg))

		r.Route("/jobs/{jobID}", func(r chi.Router) {
			r.Post("/reservations", controllers.CreateReservation(reservationService, logg))
			r.Get("/reservations", controllers.ListReservations(reservationService, logg))
			r.Get("/variance", controllers.JobVariance(varianceService, logg))
			r.Get("/audit", controllers.JobAuditTrail(auditRecorder, logg))
		})

		r.Route("/reservations/{id}", func(r chi.Router) {
			r.Get("/", controllers.GetReservation(reservationService, logg))
			r.Patch("/", controllers.PatchReservation(reservationService, logg))
			r.Post("/allocate", controllers.AllocateReservation(reservationService, logg))
			r.Post("/load", controllers.LoadReservation(reservationService, logg))
			r.Post("/use", controllers.UseReservation(reservationService, logg))
			r.Post("/return", controllers.ReturnReservation(reservationService, logg))
			r.Post("/bill", controllers.BillReservation(reservationService, logg))
			r.Post("/override", controllers.OverrideReservation(reservationService, logg))
			r.Get("/audit", controllers.ReservationAuditTrail(auditRecorder, logg))
		})

		r.Route("/items/{id}", func(r chi.Router) {
			r.Get("/availability", controllers.ItemAvailability(inventoryService, logg))
			r.Post("/adjustments", controllers.AdjustItemStock(inventoryService, logg))
		})
	})

	return r
}

func idempotencyStore(client *pkgredis.Client) pkgredis.IdempotencyStore {
	if client == nil {
		return nil
	}
	return client
}
