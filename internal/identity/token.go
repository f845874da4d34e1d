package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenVerifier validates bearer tokens issued by the identity provider.
//
// The provider signs its tokens with HS256 using a secret shared with this
// service, so verification is local — no network round trip per request.
// The same struct can also mint tokens (Issue), which the provider-facing
// integration tests use to produce valid inputs.
type TokenVerifier struct {
	secret []byte
	issuer string
}

// NewTokenVerifier creates a TokenVerifier for the given shared secret and
// expected issuer. The secret should be at least 32 bytes of random data in
// production.
func NewTokenVerifier(secret, issuer string) (*TokenVerifier, error) {
	if len(secret) < 16 {
		return nil, errors.New("identity: token secret must be at least 16 characters")
	}
	if issuer == "" {
		return nil, errors.New("identity: token issuer must not be empty")
	}
	return &TokenVerifier{secret: []byte(secret), issuer: issuer}, nil
}

// tokenClaims is the JWT payload. "sub" carries the external identifier;
// the provider also includes the account email.
type tokenClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Verify parses and validates a token string and returns its claims.
//
// Checks performed: HS256 signature (jwt.WithValidMethods prevents
// algorithm-confusion attacks), expiry, and issuer. Any failure is reported
// as ErrInvalidToken; callers never see the parse detail.
func (v *TokenVerifier) Verify(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&tokenClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("identity: unexpected signing method: %v", token.Header["alg"])
			}
			return v.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	c, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: unexpected claims", ErrInvalidToken)
	}
	if c.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", ErrInvalidToken)
	}

	return &Claims{Subject: c.Subject, Email: c.Email}, nil
}

// Issue signs a token the way the provider would. Intended for tests and
// local tooling; the service itself never issues tokens.
func (v *TokenVerifier) Issue(subject, email string, ttl time.Duration) (string, error) {
	now := time.Now()

	c := tokenClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    v.issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("identity: signing token: %w", err)
	}
	return signed, nil
}
