package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/pranaytiwariii/SlotSwapper/pkg/client"
	apperrors "github.com/pranaytiwariii/SlotSwapper/pkg/errors"
	httputil "github.com/pranaytiwariii/SlotSwapper/pkg/http"
	"github.com/pranaytiwariii/SlotSwapper/pkg/logger"
)

const UserIDKey contextKey = "user_id"

// UserHeader is trusted only when no identity provider is configured,
// i.e. the service sits behind a gateway that already authenticated the
// caller.
const UserHeader = "X-User-ID"

// Identity resolves the calling user and stores their id in the request
// context. With an identity client, the bearer token is exchanged for a
// user id; without one, the gateway-set X-User-ID header is used.
func Identity(identity *client.IdentityClient, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := resolveUserID(r, identity)
			if err != nil {
				log.Warn("Failed to resolve caller identity",
					"request_id", requestIDFrom(r),
					"path", r.URL.Path,
					"error", err,
				)
				_ = httputil.WriteError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func resolveUserID(r *http.Request, identity *client.IdentityClient) (string, error) {
	if identity == nil {
		userID := strings.TrimSpace(r.Header.Get(UserHeader))
		if userID == "" {
			return "", apperrors.Unauthorized("Missing user identity")
		}
		return userID, nil
	}

	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return "", apperrors.Unauthorized("Missing bearer token")
	}

	userID, err := identity.ResolveUser(r.Context(), strings.TrimSpace(token))
	if err != nil {
		return "", apperrors.Unauthorized("Invalid or expired token")
	}
	return userID, nil
}

// UserIDFromContext returns the resolved caller id, or "" when the request
// did not pass through the Identity middleware.
func UserIDFromContext(ctx context.Context) string {
	if userID, ok := ctx.Value(UserIDKey).(string); ok {
		return userID
	}
	return ""
}
