// Package jwtx mints and verifies the short-lived stateless access tokens
// issued after a successful login or refresh. Access tokens cannot be revoked
// individually; revocation happens at the refresh-token layer.
package jwtx

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultAccessTokenTTL is used when the caller does not configure a lifetime.
const DefaultAccessTokenTTL = 15 * time.Minute

// ErrInvalidToken reports a token that failed signature, issuer, or time
// validation.
var ErrInvalidToken = errors.New("jwtx: invalid access token")

// AccessClaims are the claims embedded in an access token. The subject is the
// identity id; email and role ride along so downstream handlers can authorize
// without a store round-trip.
type AccessClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Signer signs and verifies HS256 access tokens with a single shared secret.
type Signer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

func NewSigner(secret []byte, issuer string, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = DefaultAccessTokenTTL
	}
	return &Signer{secret: secret, issuer: issuer, ttl: ttl}
}

// TTL returns the configured access token lifetime.
func (s *Signer) TTL() time.Duration { return s.ttl }

// Sign mints an access token for the given identity.
func (s *Signer) Sign(identityID, email, role string, now time.Time) (string, error) {
	claims := AccessClaims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identityID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Parse validates a token string and returns its claims.
func (s *Signer) Parse(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	token, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
