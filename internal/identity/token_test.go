package identity

import (
	"errors"
	"testing"
	"time"
)

// newTestVerifier creates a TokenVerifier with a fixed secret so tests are
// deterministic.
func newTestVerifier(t *testing.T) *TokenVerifier {
	t.Helper()
	v, err := NewTokenVerifier("test-secret-at-least-16-chars!!", "identity-provider")
	if err != nil {
		t.Fatalf("NewTokenVerifier: %v", err)
	}
	return v
}

func TestNewTokenVerifier_ShortSecret(t *testing.T) {
	_, err := NewTokenVerifier("short", "identity-provider")
	if err == nil {
		t.Fatal("NewTokenVerifier() should reject secrets shorter than 16 chars")
	}
}

func TestNewTokenVerifier_EmptyIssuer(t *testing.T) {
	_, err := NewTokenVerifier("test-secret-at-least-16-chars!!", "")
	if err == nil {
		t.Fatal("NewTokenVerifier() should reject an empty issuer")
	}
}

func TestVerify_RoundTrip(t *testing.T) {
	v := newTestVerifier(t)

	token, err := v.Issue("U1", "ann@example.com", time.Minute)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	claims, err := v.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.Subject != "U1" {
		t.Errorf("Subject = %q, want %q", claims.Subject, "U1")
	}
	if claims.Email != "ann@example.com" {
		t.Errorf("Email = %q, want %q", claims.Email, "ann@example.com")
	}
}

func TestVerify_Garbage(t *testing.T) {
	v := newTestVerifier(t)

	_, err := v.Verify("this.is.garbage")
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("Verify() error = %v, want ErrInvalidToken", err)
	}
}

func TestVerify_Expired(t *testing.T) {
	v := newTestVerifier(t)

	token, err := v.Issue("U1", "", -time.Minute)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	if _, err := v.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("Verify() of expired token error = %v, want ErrInvalidToken", err)
	}
}

func TestVerify_WrongIssuer(t *testing.T) {
	other, err := NewTokenVerifier("test-secret-at-least-16-chars!!", "some-other-issuer")
	if err != nil {
		t.Fatalf("NewTokenVerifier: %v", err)
	}
	token, err := other.Issue("U1", "", time.Minute)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	v := newTestVerifier(t)
	if _, err := v.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("Verify() of foreign-issuer token error = %v, want ErrInvalidToken", err)
	}
}

func TestVerify_TamperedSignature(t *testing.T) {
	v := newTestVerifier(t)

	token, err := v.Issue("U1", "", time.Minute)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	tampered := token[:len(token)-2] + "xx"
	if _, err := v.Verify(tampered); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("Verify() of tampered token error = %v, want ErrInvalidToken", err)
	}
}
