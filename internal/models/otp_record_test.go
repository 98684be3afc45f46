package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOTPRecord_Expired(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	rec := &OTPRecord{ExpiresAt: now.Unix()}

	assert.True(t, rec.Expired(now))
	assert.False(t, rec.Expired(now.Add(-time.Second)))
	assert.True(t, rec.Expired(now.Add(time.Second)))
}

func TestOTPRecord_TTL(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	rec := &OTPRecord{ExpiresAt: now.Add(5 * time.Minute).Unix()}

	assert.Equal(t, 5*time.Minute, rec.TTL(now))
	assert.Equal(t, time.Duration(0), rec.TTL(now.Add(time.Hour)))
}
