package tenancy

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/tenanthub/internal/app/system/authutil"
	"github.com/dalemusser/tenanthub/internal/app/system/normalize"
	"github.com/dalemusser/tenanthub/internal/app/system/tokens"
	"github.com/dalemusser/tenanthub/internal/domain/apperr"
	"github.com/dalemusser/tenanthub/internal/domain/models"
	"go.uber.org/zap"
)

// Login failure causes. Both surface to clients as the same
// Unauthenticated "invalid credentials"; they exist for auditing.
var (
	ErrUnknownEmail  = errors.New("no administrator with that email")
	ErrWrongPassword = errors.New("password mismatch")
)

// LoginResult is a successful login.
type LoginResult struct {
	AccessToken string
	TokenType   string
	ExpiresIn   int64 // seconds
	Admin       models.Administrator
}

// Authenticator exchanges administrator credentials for bearer tokens.
type Authenticator struct {
	admins AdminStore
	hasher *authutil.Hasher
	issuer *tokens.Issuer
	ttl    time.Duration
	log    *zap.Logger
}

func NewAuthenticator(admins AdminStore, hasher *authutil.Hasher, issuer *tokens.Issuer, ttl time.Duration, logger *zap.Logger) *Authenticator {
	if ttl <= 0 {
		ttl = tokens.DefaultTTL
	}
	if hasher == nil {
		hasher = authutil.NewHasher(authutil.DefaultCost)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authenticator{admins: admins, hasher: hasher, issuer: issuer, ttl: ttl, log: logger}
}

func invalidCredentials(cause error) error {
	return apperr.Wrap(apperr.ErrUnauthenticated, cause, "invalid credentials")
}

// Login checks email and password and issues a token. Emails are not unique
// across organizations, so every administrator with the email is tried,
// oldest first.
func (a *Authenticator) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = normalize.Email(email)
	if email == "" || password == "" {
		return LoginResult{}, invalidCredentials(ErrUnknownEmail)
	}

	candidates, err := a.admins.FindByEmail(ctx, email)
	if err != nil {
		return LoginResult{}, apperr.Internal(err, "load administrators")
	}
	if len(candidates) == 0 {
		return LoginResult{}, invalidCredentials(ErrUnknownEmail)
	}

	for _, admin := range candidates {
		if !a.hasher.Verify(password, admin.PasswordHash) {
			continue
		}
		token, err := a.issuer.Issue(tokens.Claims{
			Subject: admin.ID.Hex(),
			Email:   admin.Email,
			OrgID:   admin.OrganizationID.Hex(),
			Role:    admin.Role,
		}, a.ttl)
		if err != nil {
			return LoginResult{}, apperr.Internal(err, "issue token")
		}
		return LoginResult{
			AccessToken: token,
			TokenType:   "bearer",
			ExpiresIn:   int64(a.ttl / time.Second),
			Admin:       admin,
		}, nil
	}
	return LoginResult{}, invalidCredentials(ErrWrongPassword)
}

// Verify validates a bearer token and returns its claims.
func (a *Authenticator) Verify(token string) (tokens.Claims, error) {
	return a.issuer.Verify(token)
}
