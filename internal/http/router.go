package http

import (
	"net/http"

	"github.com/fjod/go_pos/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// NewRouter builds the control surface. Admin routes and settings changes need the admin PIN.
func NewRouter(th *TerminalHandler, ah *AdminHandler, gate Gate, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, logger, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/state", th.State)
		r.Post("/scan", th.Scan)
		r.Post("/identity", th.EnterIdentity)
		r.Post("/screen", th.Navigate)
		r.Post("/back", th.Back)

		r.Route("/cart/{product_id}", func(r chi.Router) {
			r.Post("/increment", th.Increment)
			r.Post("/decrement", th.Decrement)
		})
		r.Post("/checkout", th.Checkout)
		r.Post("/cancel", th.Cancel)

		r.Route("/till", func(r chi.Router) {
			r.Post("/load", th.LoadTokens)
			r.Post("/refund", th.Refund)
		})

		r.Get("/settings", th.GetSettings)
		r.With(RequirePIN(gate, domain.ScreenAdmin, logger)).Put("/settings", th.PutSettings)

		r.Route("/admin", func(r chi.Router) {
			r.Use(RequirePIN(gate, domain.ScreenAdmin, logger))
			r.Get("/summary", ah.Summary)
			r.Get("/history", ah.History)
			r.Post("/reset", ah.Reset)
		})
	})

	return otelhttp.NewHandler(r, "pos-control")
}
