package service

import (
	"context"
	"fmt"
	"time"

	"admin-auth/internal/audit"
	"admin-auth/internal/config"
	"admin-auth/internal/mailer"
	"admin-auth/internal/models"
	"admin-auth/internal/repository"
	"admin-auth/internal/util"
)

const issueAck = "OTP sent to email"

// Hasher is satisfied by *hashing.Hasher.
type Hasher interface {
	Algorithm() string
	HashOTP(code string) (string, error)
	VerifyOTP(code, encoded string) (bool, error)
}

// Throttle caps issuances per identity. Optional.
type Throttle interface {
	Allow(ctx context.Context, identity string) (bool, error)
}

type IssuerDeps struct {
	Store    repository.OTPStore
	Hasher   Hasher
	Mailer   mailer.Dispatcher
	Throttle Throttle
	Auditor  audit.Auditor
}

// Issuer creates a challenge for an email address and mails the code.
type Issuer struct {
	store    repository.OTPStore
	hasher   Hasher
	mailer   mailer.Dispatcher
	throttle Throttle
	auditor  audit.Auditor

	ttl      time.Duration
	subject  string
	now      func() time.Time
	generate func() (string, error)
}

func NewIssuer(cfg config.OTPConfig, deps IssuerDeps) *Issuer {
	auditor := deps.Auditor
	if auditor == nil {
		auditor = audit.Nop{}
	}
	return &Issuer{
		store:    deps.Store,
		hasher:   deps.Hasher,
		mailer:   deps.Mailer,
		throttle: deps.Throttle,
		auditor:  auditor,
		ttl:      cfg.TTL,
		subject:  cfg.MailSubject,
		now:      time.Now,
		generate: GenerateCode,
	}
}

type IssueResult struct {
	Message string `json:"message"`
}

// Issue overwrites any outstanding challenge for the identity. When the mail
// cannot be sent the new record stays in place and ErrDispatch is returned.
func (s *Issuer) Issue(ctx context.Context, req IssueRequest) (*IssueResult, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}
	identity := req.Email

	if s.throttle != nil {
		allowed, err := s.throttle.Allow(ctx, identity)
		if err != nil {
			return nil, fmt.Errorf("%w: throttle: %v", ErrDependency, err)
		}
		if !allowed {
			s.auditor.Record(ctx, audit.Entry{Type: models.EventOTPRejected, Identity: identity, Reason: "throttled"})
			return nil, ErrThrottled
		}
	}

	code, err := s.generate()
	if err != nil {
		return nil, fmt.Errorf("%w: code generation: %v", ErrDependency, err)
	}

	hash, err := s.hasher.HashOTP(code)
	if err != nil {
		return nil, fmt.Errorf("%w: hashing: %v", ErrDependency, err)
	}

	now := s.now()
	record := &models.OTPRecord{
		Identity:       identity,
		CredentialHash: hash,
		ExpiresAt:      now.Add(s.ttl).Unix(),
		CreatedAt:      now.Unix(),
		Algorithm:      s.hasher.Algorithm(),
	}
	// store eviction lines up with the whole-second expiresAt
	if err := s.store.Put(ctx, record, record.TTL(now)); err != nil {
		return nil, fmt.Errorf("%w: store: %v", ErrDependency, err)
	}

	if err := s.mailer.Send(ctx, mailer.OTPMessage(identity, s.subject, code, s.ttl)); err != nil {
		util.Error("OTP stored but email dispatch failed",
			util.Identity(identity),
			util.ErrorField(err))
		s.auditor.Record(ctx, audit.Entry{Type: models.EventOTPDispatchFailed, Identity: identity})
		return nil, fmt.Errorf("%w: %v", ErrDispatch, err)
	}

	util.Info("OTP issued", util.Identity(identity), util.Time("expires_at", time.Unix(record.ExpiresAt, 0)))
	s.auditor.Record(ctx, audit.Entry{Type: models.EventOTPIssued, Identity: identity})

	return &IssueResult{Message: issueAck}, nil
}
