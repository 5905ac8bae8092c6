// Package authtest signs access tokens for tests.
package authtest

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/greengig/greengig/internal/auth"
)

// SigningKey is the key used by Token.
const SigningKey = "test-secret-key-for-testing-only"

// Issuer is the issuer used by Token.
const Issuer = "greengig"

// Token returns a token for userID valid for one hour.
func Token(t testing.TB, userID string, roles ...string) string {
	t.Helper()
	return Sign(t, SigningKey, auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		UserID: userID,
		Roles:  roles,
	})
}

// Sign signs arbitrary claims with HS256.
func Sign(t testing.TB, key string, claims auth.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

// Service returns a validator matching Token.
func Service(t testing.TB) *auth.JWTService {
	t.Helper()
	svc, err := auth.NewJWTService(auth.JWTConfig{SigningKey: SigningKey, Issuer: Issuer})
	if err != nil {
		t.Fatalf("new jwt service: %v", err)
	}
	return svc
}
