package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ipcr-api/internal/models"
	appErrors "github.com/noah-isme/ipcr-api/pkg/errors"
)

func signIdentity(t *testing.T, secret string, claims *models.IdentityClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func identityClaims(ownerID string, role models.OwnerRole, ttl time.Duration) *models.IdentityClaims {
	return &models.IdentityClaims{
		OwnerID: ownerID,
		Email:   "prof@lspu.edu.ph",
		Name:    "Prof",
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "lspu-docs",
			Audience:  jwt.ClaimStrings{"ipcr-api"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
}

func TestIdentityServiceValidateToken(t *testing.T) {
	svc := NewIdentityService(IdentityConfig{Secret: "secret", Issuer: "lspu-docs", Audience: "ipcr-api"}, nil)

	claims, err := svc.ValidateToken(signIdentity(t, "secret", identityClaims("owner-1", "admin", time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, "owner-1", claims.OwnerID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
	assert.Equal(t, "prof@lspu.edu.ph", claims.Owner().Email)
}

func TestIdentityServiceDefaultsRoleAndSubject(t *testing.T) {
	svc := NewIdentityService(IdentityConfig{Secret: "secret"}, nil)
	c := identityClaims("", "", time.Hour)
	c.Subject = "owner-9"

	claims, err := svc.ValidateToken(signIdentity(t, "secret", c))
	require.NoError(t, err)
	assert.Equal(t, "owner-9", claims.OwnerID)
	assert.Equal(t, models.RoleProfessor, claims.Role)
}

func TestIdentityServiceRejectsBadTokens(t *testing.T) {
	svc := NewIdentityService(IdentityConfig{Secret: "secret", Issuer: "lspu-docs", Audience: "ipcr-api"}, nil)

	wrongAudience := identityClaims("owner-1", models.RoleProfessor, time.Hour)
	wrongAudience.Audience = jwt.ClaimStrings{"other"}

	cases := map[string]string{
		"wrong secret":   signIdentity(t, "other", identityClaims("owner-1", models.RoleProfessor, time.Hour)),
		"expired":        signIdentity(t, "secret", identityClaims("owner-1", models.RoleProfessor, -time.Minute)),
		"wrong audience": signIdentity(t, "secret", wrongAudience),
		"no owner":       signIdentity(t, "secret", identityClaims("", models.RoleProfessor, time.Hour)),
		"garbage":        "not-a-token",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
		})
	}
}
