package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sis-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/sis-enrollment-api/pkg/errors"
)

func TestTokenServiceIssueAndValidate(t *testing.T) {
	svc := NewTokenService(TokenConfig{Secret: "s3cret", Issuer: "sis-enrollment-api", Expiration: time.Hour})

	token, expiresAt, err := svc.Issue("dean-1", models.RoleDean, "dean@example.edu", "Dean One")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "dean-1", claims.UserID)
	assert.Equal(t, models.RoleDean, claims.Role)
}

func TestTokenServiceRejects(t *testing.T) {
	svc := NewTokenService(TokenConfig{Secret: "s3cret", Issuer: "sis-enrollment-api", Expiration: time.Hour})

	_, _, err := svc.Issue("u-1", models.UserRole("JANITOR"), "", "")
	requireCode(t, err, appErrors.ErrValidation.Code)

	other := NewTokenService(TokenConfig{Secret: "different", Issuer: "sis-enrollment-api"})
	foreign, _, err := other.Issue("u-1", models.RoleStudent, "", "")
	require.NoError(t, err)
	_, err = svc.Validate(foreign)
	requireCode(t, err, appErrors.ErrUnauthorized.Code)

	wrongIssuer := NewTokenService(TokenConfig{Secret: "s3cret", Issuer: "someone-else"})
	token, _, err := wrongIssuer.Issue("u-1", models.RoleStudent, "", "")
	require.NoError(t, err)
	_, err = svc.Validate(token)
	requireCode(t, err, appErrors.ErrUnauthorized.Code)

	expired := NewTokenService(TokenConfig{Secret: "s3cret", Issuer: "sis-enrollment-api", Expiration: time.Minute})
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	stale, _, err := expired.Issue("u-1", models.RoleStudent, "", "")
	require.NoError(t, err)
	_, err = svc.Validate(stale)
	requireCode(t, err, appErrors.ErrUnauthorized.Code)

	_, err = svc.Validate("not-a-token")
	requireCode(t, err, appErrors.ErrUnauthorized.Code)
}
