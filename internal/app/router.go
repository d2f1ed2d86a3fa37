package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	fiscalhttp "github.com/pawnbook/pawnbook/internal/fiscal/http"
	"github.com/pawnbook/pawnbook/internal/ledger"
	"github.com/pawnbook/pawnbook/internal/parties"
	"github.com/pawnbook/pawnbook/internal/pledge"
	"github.com/pawnbook/pawnbook/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	LedgerHandler  *ledger.Handler
	PledgeHandler  *pledge.Handler
	FiscalHandler  *fiscalhttp.Handler
	PartiesHandler *parties.Handler
	JobHandler     *jobs.Handler
}

// NewRouter constructs the chi.Router with Pawnbook defaults. All business
// routes live under /api/v1 behind the token middleware; health and metrics
// stay outside it.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if params.PartiesHandler != nil {
			params.PartiesHandler.MountRoutes(r)
		}
		if params.LedgerHandler != nil {
			params.LedgerHandler.MountRoutes(r)
		}
		if params.PledgeHandler != nil {
			params.PledgeHandler.MountRoutes(r)
		}
		if params.FiscalHandler != nil {
			params.FiscalHandler.MountRoutes(r)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", func(r chi.Router) {
				params.JobHandler.MountRoutes(r)
			})
		}
	})

	return r
}
