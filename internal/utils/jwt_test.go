package utils

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "unit-test-secret"

func TestAccessTokenRoundTrip(t *testing.T) {
	tok, err := NewAccessToken(testSecret, "pay_abc123", KindNormal, time.Hour)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}
	if tok.Token == "" {
		t.Fatal("empty token string")
	}
	if until := time.Until(tok.Exp); until < 59*time.Minute || until > time.Hour {
		t.Errorf("exp %v not about an hour out", tok.Exp)
	}

	claims, err := VerifyAccessToken(testSecret, tok.Token)
	if err != nil {
		t.Fatalf("VerifyAccessToken: %v", err)
	}
	if claims.PaymentID != "pay_abc123" {
		t.Errorf("paymentId = %q, want pay_abc123", claims.PaymentID)
	}
	if claims.Kind != KindNormal {
		t.Errorf("kind = %q, want %q", claims.Kind, KindNormal)
	}
}

func TestRescueTokenCarriesKind(t *testing.T) {
	tok, err := NewAccessToken(testSecret, "pay_abc123", KindRescue, 24*time.Hour)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}
	claims, err := VerifyAccessToken(testSecret, tok.Token)
	if err != nil {
		t.Fatalf("VerifyAccessToken: %v", err)
	}
	if claims.Kind != KindRescue {
		t.Errorf("kind = %q, want %q", claims.Kind, KindRescue)
	}
}

func TestExpiredTokenKeepsClaims(t *testing.T) {
	tok, err := NewAccessToken(testSecret, "pay_old", KindNormal, -time.Minute)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}

	claims, err := VerifyAccessToken(testSecret, tok.Token)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("error = %v, want ErrTokenExpired", err)
	}
	if claims.PaymentID != "pay_old" {
		t.Errorf("expired token lost its paymentId claim: %q", claims.PaymentID)
	}
	if claims.Kind != KindNormal {
		t.Errorf("expired token lost its kind claim: %q", claims.Kind)
	}
}

func TestTamperedTokenRejected(t *testing.T) {
	tok, err := NewAccessToken(testSecret, "pay_abc123", KindNormal, time.Hour)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}

	raw := []byte(tok.Token)
	last := len(raw) - 1
	if raw[last] == 'A' {
		raw[last] = 'B'
	} else {
		raw[last] = 'A'
	}

	if _, err := VerifyAccessToken(testSecret, string(raw)); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("error = %v, want ErrTokenInvalid", err)
	}
}

func TestWrongSecretRejected(t *testing.T) {
	tok, err := NewAccessToken(testSecret, "pay_abc123", KindNormal, time.Hour)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}
	if _, err := VerifyAccessToken("a-different-secret", tok.Token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("error = %v, want ErrTokenInvalid", err)
	}
}

func TestGarbageTokenRejected(t *testing.T) {
	for _, raw := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := VerifyAccessToken(testSecret, raw); !errors.Is(err, ErrTokenInvalid) {
			t.Errorf("VerifyAccessToken(%q) error = %v, want ErrTokenInvalid", raw, err)
		}
	}
}

func TestMissingKindDefaultsToNormal(t *testing.T) {
	// Tokens minted before the kind claim existed should still verify as
	// normal tokens.
	raw := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"paymentId": "pay_legacy",
		"exp":       time.Now().Add(time.Hour).Unix(),
	})
	signed, err := raw.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	claims, err := VerifyAccessToken(testSecret, signed)
	if err != nil {
		t.Fatalf("VerifyAccessToken: %v", err)
	}
	if claims.Kind != KindNormal {
		t.Errorf("kind = %q, want default %q", claims.Kind, KindNormal)
	}
}

func TestUnsignedTokenRejected(t *testing.T) {
	raw := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"paymentId": "pay_abc123",
		"exp":       time.Now().Add(time.Hour).Unix(),
	})
	signed, err := raw.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := VerifyAccessToken(testSecret, signed); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("alg=none token accepted, error = %v", err)
	}
}
