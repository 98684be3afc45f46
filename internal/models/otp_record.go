package models

import "time"

// OTPRecord is the single outstanding challenge for an identity. The
// plaintext code is never part of it.
type OTPRecord struct {
	Identity       string `json:"email" dynamodbav:"email"`
	CredentialHash string `json:"credentialHash" dynamodbav:"credentialHash"`
	ExpiresAt      int64  `json:"expiresAt" dynamodbav:"expiresAt"`
	CreatedAt      int64  `json:"createdAt,omitempty" dynamodbav:"createdAt,omitempty"`
	Algorithm      string `json:"algorithm,omitempty" dynamodbav:"algorithm,omitempty"`
}

// Expired reports whether the record can no longer be verified at now.
// A record is dead at exactly ExpiresAt.
func (r *OTPRecord) Expired(now time.Time) bool {
	return now.Unix() >= r.ExpiresAt
}

// TTL returns the time left until expiry, never negative.
func (r *OTPRecord) TTL(now time.Time) time.Duration {
	d := time.Unix(r.ExpiresAt, 0).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
