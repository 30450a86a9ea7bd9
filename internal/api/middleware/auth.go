package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/careloop/careloop-api/internal/api/shared"
	"github.com/careloop/careloop-api/internal/domain"
	"github.com/careloop/careloop-api/internal/platform/logger"
	"github.com/careloop/careloop-api/internal/redact"
	"github.com/careloop/careloop-api/internal/service/auth"
)

// TriggerKeyHeader carries the shared key of schedulers and operator tools.
const TriggerKeyHeader = "X-Trigger-Key"

// AuthMiddleware authenticates user tokens and scheduler trigger keys.
type AuthMiddleware struct {
	jwtService auth.JWTService
	triggerKey auth.TriggerKeyVerifier
}

// NewAuthMiddleware creates a new AuthMiddleware with the given dependencies.
func NewAuthMiddleware(jwtService auth.JWTService, triggerKey auth.TriggerKeyVerifier) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService: jwtService,
		triggerKey: triggerKey,
	}
}

// Authenticate validates the bearer token and records the user ID and role
// on the request context.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, ok := m.authenticateBearer(w, r)
		if !ok {
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole rejects authenticated callers whose role is not listed. It must
// run after Authenticate.
func RequireRole(roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, role, ok := shared.Principal(r.Context())
			if !ok {
				shared.RespondWithError(w, r, http.StatusUnauthorized, "Authorization required")
				return
			}
			for _, allowed := range roles {
				if role == allowed {
					next.ServeHTTP(w, r)
					return
				}
			}
			shared.RespondWithError(w, r, http.StatusForbidden, "Insufficient role")
		})
	}
}

// TriggerOrAdmin guards the function gateway. Requests presenting the trigger
// key header pass on the key alone; all others need an admin token.
func (m *AuthMiddleware) TriggerOrAdmin(next http.Handler) http.Handler {
	adminOnly := RequireRole(domain.RoleAdmin)(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if key := r.Header.Get(TriggerKeyHeader); key != "" {
			if m.triggerKey == nil || m.triggerKey.Verify(key) != nil {
				shared.RespondWithErrorAndLog(w, r, http.StatusUnauthorized, "Invalid trigger key",
					auth.ErrInvalidTriggerKey, shared.WithElevatedLogLevel())
				return
			}
			next.ServeHTTP(w, r.WithContext(shared.WithTrigger(r.Context())))
			return
		}

		ctx, ok := m.authenticateBearer(w, r)
		if !ok {
			return
		}
		adminOnly.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) authenticateBearer(w http.ResponseWriter, r *http.Request) (context.Context, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authorization header required")
		return nil, false
	}

	scheme, token, found := strings.Cut(authHeader, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid authorization format")
		return nil, false
	}

	claims, err := m.jwtService.ValidateToken(r.Context(), strings.TrimSpace(token))
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrExpiredToken):
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Token expired")
		case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrTokenNotYetValid):
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid token")
		default:
			logger.FromContext(r.Context()).ErrorContext(r.Context(), "failed to validate token",
				"error", redact.Error(err))
			shared.RespondWithError(w, r, http.StatusInternalServerError, "Authentication error")
		}
		return nil, false
	}

	return shared.WithPrincipal(r.Context(), claims.UserID, claims.Role), true
}
