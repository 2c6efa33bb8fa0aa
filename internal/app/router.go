package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/clinicore/clinicore/internal/audit"
	"github.com/clinicore/clinicore/internal/observability"
	"github.com/clinicore/clinicore/internal/rbac"
	"github.com/clinicore/clinicore/internal/shared"
	"github.com/clinicore/clinicore/internal/users"
	"github.com/clinicore/clinicore/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	RBACHandler    *rbac.Handler
	RBACMiddleware rbac.Middleware
	UsersHandler   *users.Handler
	AuditHandler   *audit.Handler
	JobsHandler    *jobs.Handler
	Metrics        *observability.Metrics
}

// NewRouter constructs the chi.Router with Clinicore defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/permissions", params.RBACHandler.MountPermissionRoutes)
	r.Route("/roles", params.RBACHandler.MountRoleRoutes)

	r.Route("/users", func(r chi.Router) {
		r.With(params.RBACMiddleware.RequireAny(shared.PermUsuariosRead)).
			Get("/", params.UsersHandler.ListUsers)
		r.Route("/{userID}", func(r chi.Router) {
			r.With(params.RBACMiddleware.RequireAny(shared.PermUsuariosRead)).
				Get("/", params.UsersHandler.GetUser)
			params.RBACHandler.MountUserAccessRoutes(r)
		})
	})

	r.Route("/audit", func(r chi.Router) {
		r.Use(params.RBACMiddleware.RequireAny(shared.PermAuditoriaRead))
		params.AuditHandler.MountRoutes(r)
	})

	if params.JobsHandler != nil {
		r.Route("/jobs", func(r chi.Router) {
			params.JobsHandler.MountRoutes(r)
			r.Group(func(r chi.Router) {
				r.Use(params.RBACMiddleware.RequireAny(shared.PermUsuariosUpdate))
				params.JobsHandler.MountAdminRoutes(r)
			})
		})
	}

	if params.Metrics != nil {
		r.Handle("/metrics", params.Metrics.Handler())
	}

	return r
}
