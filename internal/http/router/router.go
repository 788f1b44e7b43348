package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sandeepkv93/device-session-guard/internal/health"
	"github.com/sandeepkv93/device-session-guard/internal/http/handler"
	"github.com/sandeepkv93/device-session-guard/internal/http/middleware"
	"github.com/sandeepkv93/device-session-guard/internal/http/response"
	"github.com/sandeepkv93/device-session-guard/internal/service"
)

type Dependencies struct {
	AuthHandler    *handler.AuthHandler
	UserHandler    *handler.UserHandler
	Verifier       service.RequestVerifier
	LogoutRoute    string
	RefreshLimiter RefreshRateLimiterFunc
	Readiness      *health.ProbeRunner
	EnableOTelHTTP bool
}

type RefreshRateLimiterFunc func(http.Handler) http.Handler

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.StructuredRequestLogger)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.BodyLimit(1 << 20))

	refreshLimiter := dep.RefreshLimiter
	if refreshLimiter == nil {
		refreshLimiter = func(next http.Handler) http.Handler { return next }
	}
	logoutRoute := dep.LogoutRoute
	if logoutRoute == "" {
		logoutRoute = "logout-user"
	}
	guard := middleware.AuthMiddleware(dep.Verifier)

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if dep.Readiness == nil {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": []any{}})
			return
		}
		ready, results := dep.Readiness.Ready(r.Context())
		if ready {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": results})
			return
		}
		response.Error(w, r, http.StatusServiceUnavailable, response.CodeDependencyUnready, "dependencies are not ready", map[string]any{"checks": results})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/social-signin", dep.AuthHandler.SocialSignIn)
			r.Post("/login-user", dep.AuthHandler.LoginUser)
			r.With(refreshLimiter).Post("/refresh-token", dep.AuthHandler.Refresh)
			r.With(guard).Get("/"+logoutRoute, dep.AuthHandler.Logout)
		})

		r.Route("/user", func(r chi.Router) {
			r.Use(guard)
			r.Get("/profile-details", dep.UserHandler.ProfileDetails)
			r.Get("/sessions", dep.UserHandler.Sessions)
			r.Delete("/sessions/{session_id}", dep.UserHandler.RevokeSession)
			r.Post("/change-password", dep.UserHandler.ChangePassword)
		})
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
