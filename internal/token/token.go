// Package token mints and validates the HS256 session tokens handed out after
// a successful OTP verification.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"admin-auth/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrMissingToken   = errors.New("missing token")
	ErrMalformedToken = errors.New("malformed token")
	ErrInvalidToken   = errors.New("invalid token")
	ErrExpiredToken   = errors.New("token expired")
)

// Claims are the claims embedded in a session token.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type Manager struct {
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

func NewManager(cfg config.TokenConfig) *Manager {
	return &Manager{
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		ttl:      cfg.TTL,
		now:      time.Now,
	}
}

// WithClock replaces the time source; used by tests and by callers that
// already captured "now" for the request.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	cp := *m
	cp.now = now
	return &cp
}

// Minted is a signed token with the claims callers log or return.
type Minted struct {
	Token     string
	ID        string
	ExpiresAt time.Time
}

// Mint signs a fresh token for identity. Every call yields a distinct token.
func (m *Manager) Mint(identity string, key []byte) (*Minted, error) {
	if len(key) == 0 {
		return nil, errors.New("empty signing key")
	}
	now := m.now()
	expiresAt := now.Add(m.ttl)

	claims := Claims{
		Email: identity,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity,
			Issuer:    m.issuer,
			Audience:  jwt.ClaimStrings{m.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return &Minted{Token: signed, ID: claims.ID, ExpiresAt: expiresAt}, nil
}

// Validate checks signature, algorithm, issuer, audience and expiry.
func (m *Manager) Validate(tokenString string, key []byte) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}
	if len(key) == 0 {
		return nil, ErrInvalidToken
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return key, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(m.issuer),
		jwt.WithAudience(m.audience),
		jwt.WithTimeFunc(m.now),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpiredToken
	case errors.Is(err, jwt.ErrTokenMalformed):
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	default:
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	if claims.Email == "" {
		claims.Email = claims.Subject
	}
	return claims, nil
}

// ExtractBearer pulls the token out of an Authorization header value.
// Both "Bearer <token>" and a bare token are accepted.
func ExtractBearer(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrMissingToken
	}

	parts := strings.Fields(header)
	switch len(parts) {
	case 1:
		if strings.EqualFold(parts[0], "Bearer") {
			return "", ErrMissingToken
		}
		return parts[0], nil
	case 2:
		if !strings.EqualFold(parts[0], "Bearer") {
			return "", ErrMalformedToken
		}
		return parts[1], nil
	default:
		return "", ErrMalformedToken
	}
}
