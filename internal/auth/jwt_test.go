package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greengig/greengig/internal/auth"
	"github.com/greengig/greengig/internal/auth/authtest"
)

func TestJWTService_ValidateAccessToken(t *testing.T) {
	svc := authtest.Service(t)

	p, err := svc.ValidateAccessToken(authtest.Token(t, "usr_test123", auth.RoleReviewer))
	require.NoError(t, err)
	assert.Equal(t, "usr_test123", p.UserID)
	assert.True(t, p.IsReviewer())

	p, err = svc.ValidateAccessToken(authtest.Token(t, "usr_plain"))
	require.NoError(t, err)
	assert.False(t, p.IsReviewer())
}

func TestJWTService_SubjectFallback(t *testing.T) {
	token := authtest.Sign(t, authtest.SigningKey, auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    authtest.Issuer,
			Subject:   "usr_sub",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	p, err := authtest.Service(t).ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "usr_sub", p.UserID)
}

func TestJWTService_InvalidToken(t *testing.T) {
	svc := authtest.Service(t)

	tests := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"malformed token", "not.a.valid.jwt"},
		{"invalid base64", "xxx.yyy.zzz"},
		{"wrong signing key", authtest.Sign(t, "key-two", auth.Claims{
			RegisteredClaims: jwt.RegisteredClaims{Issuer: authtest.Issuer, ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
			UserID:           "usr_1",
		})},
		{"wrong issuer", authtest.Sign(t, authtest.SigningKey, auth.Claims{
			RegisteredClaims: jwt.RegisteredClaims{Issuer: "someone-else", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
			UserID:           "usr_1",
		})},
		{"no expiry", authtest.Sign(t, authtest.SigningKey, auth.Claims{
			RegisteredClaims: jwt.RegisteredClaims{Issuer: authtest.Issuer},
			UserID:           "usr_1",
		})},
		{"no subject", authtest.Sign(t, authtest.SigningKey, auth.Claims{
			RegisteredClaims: jwt.RegisteredClaims{Issuer: authtest.Issuer, ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateAccessToken(tt.token)
			assert.ErrorIs(t, err, auth.ErrInvalidAccessToken)
		})
	}
}

func TestJWTService_Expired(t *testing.T) {
	token := authtest.Sign(t, authtest.SigningKey, auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    authtest.Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
		UserID: "usr_1",
	})

	_, err := authtest.Service(t).ValidateAccessToken(token)
	assert.ErrorIs(t, err, auth.ErrAccessTokenExpired)
}

func TestNewJWTService_RequiresKey(t *testing.T) {
	_, err := auth.NewJWTService(auth.JWTConfig{})
	assert.ErrorIs(t, err, auth.ErrMissingSigningKey)
}
