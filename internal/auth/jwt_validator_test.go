package auth

import (
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

func buildTestToken(t *testing.T, issuer, audience string, notBefore, expiry time.Time) jwt.Token {
	t.Helper()
	token, err := jwt.NewBuilder().
		Issuer(issuer).
		Audience([]string{audience}).
		Subject("guardian-1").
		IssuedAt(notBefore).
		NotBefore(notBefore).
		Expiration(expiry).
		Build()
	if err != nil {
		t.Fatalf("build token: %v", err)
	}
	return token
}

func TestTokenValidatorValidateSuccess(t *testing.T) {
	now := time.Now()
	token := buildTestToken(t, "backend-juku", "juku-portal", now, now.Add(time.Minute))

	validator := TokenValidator{Issuer: "backend-juku", Audience: "juku-portal", ClockSkew: time.Second, Algorithm: jwa.HS256}
	if err := validator.Validate(token, jwa.HS256, now); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestTokenValidatorIssuerMismatch(t *testing.T) {
	now := time.Now()
	token := buildTestToken(t, "other", "juku-portal", now, now.Add(time.Minute))

	validator := TokenValidator{Issuer: "backend-juku", Audience: "juku-portal", Algorithm: jwa.HS256}
	if err := validator.Validate(token, jwa.HS256, now); err == nil {
		t.Fatal("expected issuer mismatch error")
	}
}

func TestTokenValidatorExpiry(t *testing.T) {
	now := time.Now()
	token := buildTestToken(t, "backend-juku", "juku-portal", now.Add(-2*time.Hour), now.Add(-time.Minute))

	validator := TokenValidator{Issuer: "backend-juku", Audience: "juku-portal", Algorithm: jwa.HS256}
	if err := validator.Validate(token, jwa.HS256, now); err == nil {
		t.Fatal("expected expiration error")
	}
}

func TestTokenValidatorNotBefore(t *testing.T) {
	now := time.Now()
	token := buildTestToken(t, "backend-juku", "juku-portal", now.Add(5*time.Minute), now.Add(10*time.Minute))

	validator := TokenValidator{Issuer: "backend-juku", Audience: "juku-portal", Algorithm: jwa.HS256, ClockSkew: time.Second}
	if err := validator.Validate(token, jwa.HS256, now); err == nil {
		t.Fatal("expected not-before validation error")
	}
}

func TestTokenValidatorAlgorithmMismatch(t *testing.T) {
	now := time.Now()
	token := buildTestToken(t, "backend-juku", "juku-portal", now, now.Add(time.Minute))

	validator := TokenValidator{Issuer: "backend-juku", Audience: "juku-portal", Algorithm: jwa.HS256}
	if err := validator.Validate(token, jwa.RS256, now); err == nil {
		t.Fatal("expected algorithm mismatch error")
	}
}
