package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"admin-auth/internal/audit"
	"admin-auth/internal/config"
	"admin-auth/internal/models"
	"admin-auth/internal/repository"
	"admin-auth/internal/secrets"
	"admin-auth/internal/token"
	"admin-auth/internal/util"
)

type VerifierDeps struct {
	Store   repository.OTPStore
	Hasher  Hasher
	Keys    secrets.KeyProvider
	Tokens  *token.Manager
	Auditor audit.Auditor
}

// Verifier exchanges a valid code for a session token.
type Verifier struct {
	store   repository.OTPStore
	hasher  Hasher
	keys    secrets.KeyProvider
	tokens  *token.Manager
	auditor audit.Auditor

	singleUse bool
	now       func() time.Time
	// decoy is compared when no record exists, so an unknown identity costs
	// the same hash work as a wrong code.
	decoy string
}

func NewVerifier(cfg config.OTPConfig, deps VerifierDeps) *Verifier {
	auditor := deps.Auditor
	if auditor == nil {
		auditor = audit.Nop{}
	}
	decoy, err := deps.Hasher.HashOTP("000000")
	if err != nil {
		util.Warn("Could not prepare decoy hash", util.ErrorField(err))
	}
	return &Verifier{
		decoy:     decoy,
		store:     deps.Store,
		hasher:    deps.Hasher,
		keys:      deps.Keys,
		tokens:    deps.Tokens,
		auditor:   auditor,
		singleUse: cfg.SingleUse,
		now:       time.Now,
	}
}

type VerifyResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"-"`
	TokenID   string    `json:"-"`
}

// Verify checks expiry before the hash so an expired record never reaches
// the comparison. Nothing is written unless single-use mode is on.
func (s *Verifier) Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}
	identity := req.Email

	record, err := s.store.Get(ctx, identity)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			if s.decoy != "" {
				_, _ = s.hasher.VerifyOTP(req.OTP, s.decoy)
			}
			return nil, s.reject(ctx, identity, "not_found", ErrNotFound)
		}
		return nil, fmt.Errorf("%w: store: %v", ErrDependency, err)
	}

	now := s.now()
	if record.Expired(now) {
		return nil, s.reject(ctx, identity, "expired", ErrExpired)
	}

	ok, err := s.hasher.VerifyOTP(req.OTP, record.CredentialHash)
	if err != nil {
		util.Error("Stored OTP hash is unreadable", util.Identity(identity), util.ErrorField(err))
		return nil, s.reject(ctx, identity, "unreadable_hash", ErrInvalidCredential)
	}
	if !ok {
		return nil, s.reject(ctx, identity, "invalid_credential", ErrInvalidCredential)
	}

	key, err := s.keys.SigningKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: signing key: %v", ErrDependency, err)
	}

	minted, err := s.tokens.Mint(identity, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDependency, err)
	}

	if s.singleUse {
		if err := s.store.Delete(ctx, identity); err != nil {
			return nil, fmt.Errorf("%w: consume otp: %v", ErrDependency, err)
		}
	}

	util.Info("OTP verified", util.Identity(identity), util.String("token_id", minted.ID))
	s.auditor.Record(ctx, audit.Entry{Type: models.EventOTPVerified, Identity: identity, TokenID: minted.ID})

	return &VerifyResult{Token: minted.Token, ExpiresAt: minted.ExpiresAt, TokenID: minted.ID}, nil
}

func (s *Verifier) reject(ctx context.Context, identity, reason string, err error) error {
	util.Warn("OTP verification rejected", util.Identity(identity), util.String("reason", reason))
	s.auditor.Record(ctx, audit.Entry{Type: models.EventOTPRejected, Identity: identity, Reason: reason})
	return err
}
