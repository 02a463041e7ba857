package utils

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func TestSignJWTRoundTrip(t *testing.T) {
	const secret = "test-secret"
	token, err := SignJWT(secret, "user-1", "client", 60)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithIssuer(Issuer))
	if err != nil || !parsed.Valid {
		t.Fatalf("parse: %v", err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		t.Fatal("wrong claims type")
	}
	if claims.UserID != "user-1" || claims.Role != "client" {
		t.Fatalf("claims = %+v", claims)
	}
	if claims.Issuer != Issuer {
		t.Fatalf("issuer = %q, want %q", claims.Issuer, Issuer)
	}
}

func TestSignJWTWrongSecretRejected(t *testing.T) {
	token, err := SignJWT("secret-a", "user-1", "client", 60)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	_, err = jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte("secret-b"), nil
	}, jwt.WithIssuer(Issuer))
	if err == nil {
		t.Fatal("token signed with another secret must not verify")
	}
}
