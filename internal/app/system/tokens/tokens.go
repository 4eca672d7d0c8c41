// Package tokens issues and verifies the signed bearer tokens handed to
// administrators at login.
package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/tenanthub/internal/domain/apperr"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTTL is the token lifetime when none is configured.
const DefaultTTL = time.Hour

// Claims is the identity carried by a token.
type Claims struct {
	Subject string // administrator id
	Email   string
	OrgID   string
	Role    string
}

type jwtClaims struct {
	Email string `json:"email"`
	OrgID string `json:"org_id"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 tokens with a shared secret.
type Issuer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewIssuer returns an Issuer. The secret must not be empty.
func NewIssuer(secret, issuer string) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("tokens: empty signing secret")
	}
	return &Issuer{secret: []byte(secret), issuer: issuer, now: time.Now}, nil
}

// Issue signs c with an expiry ttl from now.
func (i *Issuer) Issue(c Claims, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := i.now()
	claims := jwtClaims{
		Email: c.Email,
		OrgID: c.OrgID,
		Role:  c.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.Subject,
			Issuer:    i.issuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry. Every failure, whatever the cause,
// is reported as apperr.ErrUnauthenticated.
func (i *Issuer) Verify(token string) (Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}

	var claims jwtClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return Claims{}, apperr.New(apperr.ErrUnauthenticated, "could not validate credentials")
	}
	if claims.Subject == "" || claims.OrgID == "" {
		return Claims{}, apperr.New(apperr.ErrUnauthenticated, "could not validate credentials")
	}

	return Claims{
		Subject: claims.Subject,
		Email:   claims.Email,
		OrgID:   claims.OrgID,
		Role:    claims.Role,
	}, nil
}
