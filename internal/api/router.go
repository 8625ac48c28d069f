package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/shopledger/payoutrecon/internal/ingestion"
	"github.com/shopledger/payoutrecon/internal/reconciliation"
	"github.com/shopledger/payoutrecon/internal/repository"
)

// NewRouter creates the Chi router with all API routes mounted.
func NewRouter(
	payoutRepo *repository.PayoutRepo,
	orderRepo *repository.OrderRepo,
	runRepo *repository.RunRepo,
	discRepo *repository.DiscrepancyRepo,
	ingestionSvc *ingestion.Service,
	reconSvc *reconciliation.Service,
	log logrus.FieldLogger,
) http.Handler {
	log = log.WithField("component", "api")
	h := &Handlers{
		payoutRepo:   payoutRepo,
		orderRepo:    orderRepo,
		runRepo:      runRepo,
		discRepo:     discRepo,
		ingestionSvc: ingestionSvc,
		reconSvc:     reconSvc,
		log:          log,
	}

	r := chi.NewRouter()

	// Middleware.
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: log, NoColor: true}))
	r.Use(middleware.Recoverer)
	r.Use(middleware.SetHeader("Content-Type", "application/json"))

	r.Route("/api/v1", func(r chi.Router) {
		// Ingestion.
		r.Post("/imports/payouts", h.ImportPayouts)
		r.Post("/imports/orders", h.ImportOrders)

		// Reconciliation runs.
		r.Post("/reconciliations", h.CreateReconciliation)
		r.Get("/reconciliations", h.ListReconciliations)
		r.Get("/reconciliations/{id}", h.GetReconciliation)

		// Payouts and orders.
		r.Get("/payouts", h.ListPayouts)
		r.Get("/payouts/{id}/orders", h.GetPayoutOrders)
		r.Get("/orders", h.ListOrders)

		// Discrepancies.
		r.Get("/discrepancies", h.ListDiscrepancies)
		r.Get("/discrepancies/summary", h.GetDiscrepancySummary)

		// Dashboard.
		r.Get("/dashboard", h.GetDashboard)
	})

	return r
}
