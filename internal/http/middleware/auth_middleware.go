package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/sandeepkv93/device-session-guard/internal/http/response"
	"github.com/sandeepkv93/device-session-guard/internal/service"
)

type contextKey string

const (
	PrincipalContextKey contextKey = "principal"
)

// AuthMiddleware admits a request only when the verifier accepts its bearer token. The
// full request path is passed so the verifier can recognize the logout route.
func AuthMiddleware(verifier service.RequestVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := verifier.VerifyRequest(r.Context(), service.AuthRequest{
				Token: BearerToken(r),
				Route: r.URL.Path,
			})
			if err != nil {
				WriteServiceError(w, r, err)
				return
			}
			ctx := context.WithValue(r.Context(), PrincipalContextKey, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func BearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

// PrincipalFromContext returns the verified caller. A principal admitted only through the
// logout bypass is not returned.
func PrincipalFromContext(ctx context.Context) (*service.Principal, bool) {
	p, ok := ctx.Value(PrincipalContextKey).(*service.Principal)
	if !ok || p == nil || p.LogoutBypass {
		return nil, false
	}
	return p, true
}

// LogoutToken returns the access token the guard admitted, including one admitted only
// through the logout bypass.
func LogoutToken(ctx context.Context) string {
	if p, ok := ctx.Value(PrincipalContextKey).(*service.Principal); ok && p != nil {
		return p.AccessToken
	}
	return ""
}

// WriteServiceError maps the service error taxonomy onto the response envelope.
func WriteServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := http.StatusInternalServerError, response.CodeInternal
	switch service.KindOf(err) {
	case service.KindValidation:
		status, code = http.StatusBadRequest, response.CodeBadRequest
	case service.KindAuthentication:
		status, code = http.StatusUnauthorized, response.CodeUnauthorized
	case service.KindNotFound:
		status, code = http.StatusNotFound, response.CodeNotFound
	}
	response.Error(w, r, status, code, service.PublicMessage(err), nil)
}
