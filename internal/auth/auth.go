// Package auth issues and parses the JWT tokens that carry the caller's
// owner identity. It adapts the external identity concern to the narrow
// "request credentials yield an owner id" contract the service relies on.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned when a token fails signature or claims validation.
var ErrInvalidToken = errors.New("invalid token")

// DefaultTokenTTL is applied when no TTL is configured.
const DefaultTokenTTL = 24 * time.Hour * 30

// Claims embeds the registered JWT claims and adds the owner identity.
type Claims struct {
	jwt.RegisteredClaims
	OwnerID string `json:"owner_id"`
}

// TokenService signs and verifies owner tokens with a shared HMAC secret.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	return &TokenService{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// Issue mints a token for a freshly generated owner identity. UUIDs make
// collisions with existing owners negligible, so no uniqueness probe is needed.
func (t *TokenService) Issue() (string, uuid.UUID, error) {
	ownerID := uuid.New()

	token, err := t.IssueFor(ownerID)
	if err != nil {
		return "", uuid.Nil, err
	}

	return token, ownerID, nil
}

// IssueFor mints a token for an existing owner identity.
func (t *TokenService) IssueFor(ownerID uuid.UUID) (string, error) {
	const op = "auth.TokenService.IssueFor"

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(t.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		OwnerID: ownerID.String(),
	})

	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("%s: failed to sign token: %w", op, err)
	}

	return signed, nil
}

// Parse verifies the token and returns the owner identity it carries.
func (t *TokenService) Parse(tokenString string) (uuid.UUID, error) {
	const op = "auth.TokenService.Parse"

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	ownerID, err := uuid.Parse(claims.OwnerID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	return ownerID, nil
}
