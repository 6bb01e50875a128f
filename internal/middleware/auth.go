// Package middleware provides HTTP middleware for the dashboard API.
package middleware

import (
	"context"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/rktransport/fleetops/internal/auth"
	"github.com/rktransport/fleetops/internal/models"
)

type contextKey string

// ClaimsKey is the request-context key holding the authenticated claims.
const ClaimsKey contextKey = "claims"

// RequireAuth rejects requests without a valid bearer token and stores the
// token claims on the request context.
func RequireAuth(service *auth.Service, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := service.ExtractTokenFromHeader(r.Header.Get("Authorization"))
		if err != nil {
			http.Error(w, "Authorization required", http.StatusUnauthorized)
			return
		}
		claims, err := service.ValidateToken(token)
		if err != nil {
			log.WithError(err).Debug("rejected token")
			http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), ClaimsKey, claims)
		next(w, r.WithContext(ctx))
	}
}

// RequireWriter additionally rejects roles without write access to the fleet
// collections.
func RequireWriter(service *auth.Service, next http.HandlerFunc) http.HandlerFunc {
	return RequireAuth(service, func(w http.ResponseWriter, r *http.Request) {
		claims := ClaimsFromContext(r.Context())
		if claims == nil || !claims.Role.CanWrite() {
			http.Error(w, "Insufficient permissions", http.StatusForbidden)
			return
		}
		next(w, r)
	})
}

// RequireAdmin restricts a route to administrators.
func RequireAdmin(service *auth.Service, next http.HandlerFunc) http.HandlerFunc {
	return RequireAuth(service, func(w http.ResponseWriter, r *http.Request) {
		claims := ClaimsFromContext(r.Context())
		if claims == nil || claims.Role != models.RoleAdmin {
			http.Error(w, "Insufficient permissions", http.StatusForbidden)
			return
		}
		next(w, r)
	})
}

// ClaimsFromContext returns the authenticated claims, or nil outside an
// authenticated request.
func ClaimsFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(ClaimsKey).(*auth.Claims)
	return claims
}
