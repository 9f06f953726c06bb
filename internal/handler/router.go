package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/csvsage/backend/internal/handler/dataset"
	"github.com/zhouzirui/csvsage/backend/internal/handler/query"
	middlewarePkg "github.com/zhouzirui/csvsage/backend/internal/middleware"
	"github.com/zhouzirui/csvsage/backend/internal/service/analyst"
	"github.com/zhouzirui/csvsage/backend/internal/service/chart"
	"github.com/zhouzirui/csvsage/backend/pkg/utils"
)

// Options configures the HTTP surface.
type Options struct {
	AllowedOrigin  string
	MaxUploadBytes int64
}

// NewRouter wires HTTP routes to core services.
func NewRouter(logger zerolog.Logger, analystSvc *analyst.Service, charts *chart.Service, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(opts.AllowedOrigin))

	datasetHandler := dataset.New(analystSvc, charts, opts.MaxUploadBytes)
	queryHandler := query.New(analystSvc)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})

	datasetHandler.RegisterRoutes(r)
	queryHandler.RegisterRoutes(r)

	return r
}
