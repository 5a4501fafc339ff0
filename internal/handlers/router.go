// Package handlers wires the HTTP surface: JSON request/response types,
// input validation and the route table.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/exsplitter/backend/internal/auth"
	"github.com/exsplitter/backend/internal/middleware"
	"github.com/exsplitter/backend/internal/service"
)

// NewRouter assembles the full route table with the middleware stack.
func NewRouter(
	authService *service.AuthService,
	tripService *service.TripService,
	ledgerService *service.LedgerService,
	jwtManager *auth.JWTManager,
	allowedOrigins []string,
) http.Handler {
	authHandler := NewAuthHandler(authService)
	tripHandler := NewTripHandler(tripService)
	ledgerHandler := NewLedgerHandler(ledgerService)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.Logging)
	r.Use(middleware.Metrics)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/auth/register", authHandler.Register)
	r.Post("/auth/login", authHandler.Login)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(jwtManager))

		r.Post("/split/preview", ledgerHandler.PreviewSplit)

		r.Route("/trips", func(r chi.Router) {
			r.Post("/", tripHandler.Create)
			r.Get("/", tripHandler.List)

			r.Route("/{tripID}", func(r chi.Router) {
				r.Get("/", tripHandler.Get)
				r.Post("/members", tripHandler.AddMembers)
				r.Delete("/members/{memberID}", tripHandler.RemoveMember)

				r.Post("/expenses", ledgerHandler.CreateExpense)
				r.Put("/expenses/{expenseID}", ledgerHandler.ReplaceExpense)
				r.Delete("/expenses/{expenseID}", ledgerHandler.DeleteExpense)

				r.Get("/transfers", ledgerHandler.Transfers)
				r.Get("/record", ledgerHandler.Record)

				r.Route("/pairs/{debtorID}/{creditorID}", func(r chi.Router) {
					r.Get("/", ledgerHandler.Pair)
					r.Post("/payments", ledgerHandler.RecordPayment)
					r.Post("/marks/{expenseID}", ledgerHandler.ToggleMark)
					r.Post("/settle", ledgerHandler.MarkFullyPaid)
					r.Delete("/settle", ledgerHandler.UnmarkFullyPaid)
				})
			})
		})
	})

	return r
}
