package router

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/parisxmas/OxiDB/OxiPlan/internal/auth"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/handler"
	mw "github.com/parisxmas/OxiDB/OxiPlan/internal/middleware"
)

func New(
	jwtSecret string,
	roles auth.RoleLookup,
	logger *slog.Logger,
	metrics http.Handler,
	authH *handler.AuthHandler,
	templateH *handler.TemplateHandler,
	planH *handler.PlanHandler,
	blobH *handler.BlobHandler,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Recovery(logger))
	r.Use(mw.Logger(logger))
	r.Use(mw.CORS)

	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/auth/login", authH.Login)
		r.Post("/auth/register", authH.Register)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(jwtSecret, roles, logger))

			r.Get("/auth/me", authH.Me)
			r.Put("/auth/me", authH.UpdateMe)
			r.Get("/dashboard", planH.Dashboard)

			// Templates
			r.Get("/templates", templateH.List)
			r.Get("/templates/catalog", templateH.Catalog)
			r.Post("/templates", templateH.Create)
			r.Get("/templates/{templateId}", templateH.Get)
			r.Put("/templates/{templateId}", templateH.Update)
			r.Delete("/templates/{templateId}", templateH.Delete)
			r.Post("/templates/{templateId}/activate", templateH.Activate)
			r.Post("/templates/{templateId}/deactivate", templateH.Deactivate)

			// Plans
			r.Post("/plans/draft", planH.Draft)
			r.Post("/plans/rows", planH.Rows)
			r.Post("/plans/validate", planH.Validate)
			r.Get("/plans", planH.ListMine)
			r.Post("/plans", planH.Submit)
			r.Get("/plans/queue", planH.Queue)
			r.Get("/plans/{planId}", planH.Get)
			r.Post("/plans/{planId}/resubmit", planH.Resubmit)
			r.Delete("/plans/{planId}", planH.Delete)
			r.Post("/plans/{planId}/revalidate", planH.Revalidate)
			r.Post("/plans/{planId}/review", planH.Review)
			r.Post("/plans/{planId}/amend", planH.Amend)
			r.Post("/plans/{planId}/reopen", planH.Reopen)

			// Reports
			r.Get("/blobs/*", blobH.Download)
		})
	})

	return r
}
