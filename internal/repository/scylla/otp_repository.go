package scylla

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gocql/gocql"

	"admin-auth/internal/models"
	"admin-auth/internal/repository"
	"admin-auth/internal/util"
)

const (
	insertOTP = `INSERT INTO otp_records (email, credential_hash, expires_at, created_at, algorithm)
        VALUES (?, ?, ?, ?, ?) USING TTL ?`
	selectOTP = `SELECT email, credential_hash, expires_at, created_at, algorithm
        FROM otp_records WHERE email = ?`
	deleteOTP = `DELETE FROM otp_records WHERE email = ?`
)

// OTPRepository keeps OTP records in Scylla with a per-row TTL.
type OTPRepository struct {
	client *ScyllaClient
}

func NewOTPRepository(client *ScyllaClient) *OTPRepository {
	return &OTPRepository{client: client}
}

func (r *OTPRepository) Put(ctx context.Context, record *models.OTPRecord, ttl time.Duration) error {
	err := r.client.Session.Query(insertOTP,
		record.Identity, record.CredentialHash, record.ExpiresAt, record.CreatedAt, record.Algorithm,
		ttlSeconds(ttl),
	).WithContext(ctx).Exec()
	if err != nil {
		util.Error("Failed to insert OTP record", util.Identity(record.Identity), util.ErrorField(err))
		return fmt.Errorf("failed to insert otp record: %w", err)
	}
	return nil
}

func (r *OTPRepository) Get(ctx context.Context, identity string) (*models.OTPRecord, error) {
	var rec models.OTPRecord
	err := r.client.Session.Query(selectOTP, identity).WithContext(ctx).
		Scan(&rec.Identity, &rec.CredentialHash, &rec.ExpiresAt, &rec.CreatedAt, &rec.Algorithm)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		util.Error("Failed to get OTP record", util.Identity(identity), util.ErrorField(err))
		return nil, fmt.Errorf("failed to get otp record: %w", err)
	}
	return &rec, nil
}

func (r *OTPRepository) Delete(ctx context.Context, identity string) error {
	if err := r.client.Session.Query(deleteOTP, identity).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("failed to delete otp record: %w", err)
	}
	return nil
}

func (r *OTPRepository) HealthCheck(ctx context.Context) error {
	return r.client.HealthCheck(ctx)
}

// ttlSeconds rounds up so a row never outlives its TTL by less than a
// second and never gets TTL 0, which Scylla reads as "no expiry".
func ttlSeconds(ttl time.Duration) int {
	s := int(math.Ceil(ttl.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}
