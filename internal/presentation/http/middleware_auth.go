package httppresentation

import (
	"context"
	"net/http"
	"strings"

	"github.com/Zhima-Mochi/krishi-prebook/internal/domain/identity"
	"github.com/Zhima-Mochi/krishi-prebook/internal/observability"
	"github.com/Zhima-Mochi/krishi-prebook/internal/observability/logctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*identity.User, error)
}

type userKey struct{}

func contextWithUser(ctx context.Context, u *identity.User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

func userFromContext(ctx context.Context) *identity.User {
	u, _ := ctx.Value(userKey{}).(*identity.User)
	return u
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}

// requireAuth resolves the bearer token and rejects the request with 401 when it
// does not map to a user.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := h.auth.Authenticate(r.Context(), bearerToken(r))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		ctx := contextWithUser(r.Context(), user)
		ctx = logctx.WithFields(ctx, h.log,
			observability.F("user_id", user.ID),
			observability.F("role", string(user.Role)),
		)
		trace.SpanFromContext(ctx).SetAttributes(attribute.String("enduser.id", user.ID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireSeller must run after requireAuth.
func (h *Handler) requireSeller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !userFromContext(r.Context()).IsSeller() {
			writeDomainError(w, identity.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
