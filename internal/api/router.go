package api

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"
	apiContext "hookd/internal/api/context"
	"hookd/internal/api/handlers"
	"hookd/internal/api/middleware"
)

type Dependencies struct {
	AuthHandler    *handlers.AuthHandler
	WebhookHandler *handlers.WebhookHandler
	HealthHandler  *handlers.HealthHandler
	MetricsHandler *handlers.MetricsHandler
	AuthMiddleware *middleware.AuthMiddleware
}

func NewRouter(deps *Dependencies) *httprouter.Router {
	router := httprouter.New()

	// Authentication routes
	router.POST("/api/v1/auth/signup", wrap(deps.AuthHandler.Signup))
	router.POST("/api/v1/auth/login", wrap(deps.AuthHandler.Login))

	// Middleware references
	authMid := deps.AuthMiddleware

	// Webhook management
	router.GET("/api/v1/webhooks",
		chain(deps.WebhookHandler.List, middleware.Instrument("/api/v1/webhooks"), authMid.Handle, middleware.RateLimit("api_read")))
	router.POST("/api/v1/webhooks",
		chain(deps.WebhookHandler.Create, middleware.Instrument("/api/v1/webhooks"), authMid.Handle, middleware.RateLimit("api_write"),
			middleware.RequireFields("name", "event", "url")))
	router.GET("/api/v1/webhooks/:id",
		chain(deps.WebhookHandler.Get, middleware.Instrument("/api/v1/webhooks/:id"), authMid.Handle, middleware.RateLimit("api_read")))
	router.PUT("/api/v1/webhooks/:id",
		chain(deps.WebhookHandler.Replace, middleware.Instrument("/api/v1/webhooks/:id"), authMid.Handle, middleware.RateLimit("api_write"),
			middleware.RequireFields("id", "name", "event", "url")))
	router.DELETE("/api/v1/webhooks/:id",
		chain(deps.WebhookHandler.Delete, middleware.Instrument("/api/v1/webhooks/:id"), authMid.Handle, middleware.RateLimit("api_write")))

	// Operational endpoints
	router.GET("/healthz", wrap(deps.HealthHandler.Check))
	router.GET("/metrics", wrap(deps.MetricsHandler.Export))

	return router
}

// Helper function to chain middlewares
func chain(handler http.HandlerFunc, middlewares ...func(http.HandlerFunc) http.HandlerFunc) httprouter.Handle {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return wrap(handler)
}

// Convert http.HandlerFunc to httprouter.Handle
func wrap(handler http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		// Inject params into context
		ctx := context.WithValue(r.Context(), apiContext.Params, ps)
		handler(w, r.WithContext(ctx))
	}
}
