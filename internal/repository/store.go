// Package repository defines the OTP record store shared by the issuer and
// verifier. Backends live in the dynamodb, redis and scylla subpackages.
package repository

import (
	"context"
	"errors"
	"time"

	"admin-auth/internal/models"
)

var ErrNotFound = errors.New("otp record not found")

// OTPStore is a keyed put/get with per-record expiry. Put overwrites any
// record for the same identity.
type OTPStore interface {
	Put(ctx context.Context, record *models.OTPRecord, ttl time.Duration) error
	Get(ctx context.Context, identity string) (*models.OTPRecord, error)
	Delete(ctx context.Context, identity string) error
}

// HealthChecker is implemented by stores that can probe their backend.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
