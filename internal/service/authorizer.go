package service

import (
	"context"
	"errors"

	"admin-auth/internal/secrets"
	"admin-auth/internal/token"
	"admin-auth/internal/util"
)

// Decision is the outcome of authorizing a request. The zero value denies.
type Decision struct {
	Allow    bool
	Identity string
	TokenID  string
	// Reason is for logs only and never returned to clients.
	Reason string
}

// Authorizer validates session tokens. It never touches the OTP store.
type Authorizer struct {
	keys   secrets.KeyProvider
	tokens *token.Manager
}

func NewAuthorizer(keys secrets.KeyProvider, tokens *token.Manager) *Authorizer {
	return &Authorizer{keys: keys, tokens: tokens}
}

// Authorize fails closed on every error, including a missing signing key.
func (a *Authorizer) Authorize(ctx context.Context, authorization string) Decision {
	raw, err := token.ExtractBearer(authorization)
	if err != nil {
		return deny("malformed_header")
	}

	key, err := a.keys.SigningKey(ctx)
	if err != nil {
		util.Error("Authorizer could not load signing key", util.ErrorField(err))
		return deny("key_unavailable")
	}

	claims, err := a.tokens.Validate(raw, key)
	if err != nil {
		util.Debug("Token rejected", util.ErrorField(err))
		if errors.Is(err, token.ErrExpiredToken) {
			return deny("expired")
		}
		return deny("invalid_token")
	}

	return Decision{Allow: true, Identity: claims.Email, TokenID: claims.ID}
}

func deny(reason string) Decision {
	return Decision{Reason: reason}
}
