package tenancy_test

import (
	"errors"
	"testing"

	"github.com/dalemusser/tenanthub/internal/app/tenancy"
	"github.com/dalemusser/tenanthub/internal/domain/apperr"
	"github.com/stretchr/testify/require"
)

func TestLogin(t *testing.T) {
	e := newEnv(t)
	id := e.create(t, "acme", "a@x.com")

	res, err := e.auth.Login(ctx(t), " A@X.com ", testPassword)
	require.NoError(t, err)
	require.Equal(t, "bearer", res.TokenType)
	require.Equal(t, int64(3600), res.ExpiresIn)
	require.Equal(t, id, res.Admin.OrganizationID)

	claims, err := e.auth.Verify(res.AccessToken)
	require.NoError(t, err)
	require.Equal(t, id.Hex(), claims.OrgID)
	require.Equal(t, res.Admin.ID.Hex(), claims.Subject)
	require.Equal(t, "a@x.com", claims.Email)
	require.Equal(t, "admin", claims.Role)
}

func TestLogin_Failures(t *testing.T) {
	e := newEnv(t)
	e.create(t, "acme", "a@x.com")

	tests := []struct {
		name     string
		email    string
		password string
		cause    error
	}{
		{"wrong password", "a@x.com", "wrongpass", tenancy.ErrWrongPassword},
		{"unknown email", "nobody@x.com", testPassword, tenancy.ErrUnknownEmail},
		{"empty email", "", testPassword, tenancy.ErrUnknownEmail},
		{"empty password", "a@x.com", "", tenancy.ErrUnknownEmail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.auth.Login(ctx(t), tt.email, tt.password)
			require.ErrorIs(t, err, apperr.ErrUnauthenticated)
			require.True(t, errors.Is(err, tt.cause))
			require.Equal(t, "invalid credentials", apperr.Message(err))
		})
	}
}

func TestLogin_SharedEmailAcrossOrganizations(t *testing.T) {
	e := newEnv(t)
	first := e.create(t, "acme", "shared@x.com")

	v, err := e.mgr.Create(ctx(t), tenancy.CreateInput{Name: "beta", Email: "shared@x.com", Password: "different-pass"})
	require.NoError(t, err)

	res, err := e.auth.Login(ctx(t), "shared@x.com", testPassword)
	require.NoError(t, err)
	require.Equal(t, first, res.Admin.OrganizationID)

	res, err = e.auth.Login(ctx(t), "shared@x.com", "different-pass")
	require.NoError(t, err)
	require.Equal(t, v.ID, res.Admin.OrganizationID.Hex())
}

func TestVerify_RejectsGarbage(t *testing.T) {
	e := newEnv(t)
	_, err := e.auth.Verify("not.a.token")
	require.ErrorIs(t, err, apperr.ErrUnauthenticated)
}
