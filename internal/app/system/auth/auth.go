// internal/app/system/auth/auth.go
package auth

import (
	"context"
	"net/http"
	"strings"

	uierrors "github.com/dalemusser/tenanthub/internal/app/features/errors"
	"github.com/dalemusser/tenanthub/internal/app/system/auditlog"
	"github.com/dalemusser/tenanthub/internal/app/system/tokens"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

/*─────────────────────────────────────────────────────────────────────────────*
| Current-Admin helper                                                         |
*─────────────────────────────────────────────────────────────────────────────*/

// Admin is the authenticated administrator injected into r.Context().
type Admin struct {
	ID    primitive.ObjectID
	OrgID primitive.ObjectID
	Email string
	Role  string
}

type ctxKey string

const currentAdminKey ctxKey = "currentAdmin"

// CurrentAdmin returns the admin & "found?" flag.
func CurrentAdmin(ctx context.Context) (*Admin, bool) {
	a, ok := ctx.Value(currentAdminKey).(*Admin)
	return a, ok
}

// WithAdmin returns a copy of ctx carrying a.
func WithAdmin(ctx context.Context, a *Admin) context.Context {
	return context.WithValue(ctx, currentAdminKey, a)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Bearer middleware                                                            |
*─────────────────────────────────────────────────────────────────────────────*/

// Verifier validates a bearer token.
type Verifier interface {
	Verify(token string) (tokens.Claims, error)
}

// Middleware authenticates requests with bearer tokens.
type Middleware struct {
	verifier Verifier
	audit    *auditlog.Logger
	log      *zap.Logger
}

// NewMiddleware constructs the bearer middleware. audit may be nil.
func NewMiddleware(v Verifier, audit *auditlog.Logger, logger *zap.Logger) *Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Middleware{verifier: v, audit: audit, log: logger}
}

// RequireAdmin rejects requests without a valid bearer token with 401 and
// injects the token's administrator into the context otherwise.
func (m *Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			uierrors.RenderUnauthorized(w, "missing bearer token")
			return
		}

		claims, err := m.verifier.Verify(raw)
		if err != nil {
			m.log.Debug("bearer token rejected", zap.Error(err))
			m.audit.TokenRejected(r.Context(), r, "invalid token")
			uierrors.RenderUnauthorized(w, "invalid or expired token")
			return
		}

		admin, err := adminFromClaims(claims)
		if err != nil {
			m.log.Warn("token carries malformed ids", zap.String("sub", claims.Subject), zap.Error(err))
			m.audit.TokenRejected(r.Context(), r, "malformed claims")
			uierrors.RenderUnauthorized(w, "invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithAdmin(r.Context(), admin)))
	})
}

func adminFromClaims(c tokens.Claims) (*Admin, error) {
	id, err := primitive.ObjectIDFromHex(c.Subject)
	if err != nil {
		return nil, err
	}
	orgID, err := primitive.ObjectIDFromHex(c.OrgID)
	if err != nil {
		return nil, err
	}
	return &Admin{ID: id, OrgID: orgID, Email: c.Email, Role: c.Role}, nil
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
