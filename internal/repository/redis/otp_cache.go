package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"admin-auth/internal/client"
	"admin-auth/internal/models"
	"admin-auth/internal/repository"
	"admin-auth/internal/util"
)

const (
	otpPrefix        = "otp:"
	operationTimeout = 5 * time.Second
)

// OTPCache stores OTP records as JSON under otp:<email> with a native TTL.
type OTPCache struct {
	client *client.RedisClient
}

func NewOTPCache(client *client.RedisClient) *OTPCache {
	return &OTPCache{client: client}
}

func (c *OTPCache) Put(ctx context.Context, record *models.OTPRecord, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("invalid ttl %s for otp record", ttl)
	}
	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal otp record: %w", err)
	}

	if err := c.client.Set(ctx, otpPrefix+record.Identity, payload, ttl); err != nil {
		util.Error("Failed to set OTP in cache",
			util.Identity(record.Identity),
			util.Duration("ttl", ttl),
			util.ErrorField(err))
		return fmt.Errorf("failed to set otp in cache: %w", err)
	}

	util.Debug("OTP cached", util.Identity(record.Identity), util.Duration("ttl", ttl))
	return nil
}

func (c *OTPCache) Get(ctx context.Context, identity string) (*models.OTPRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	raw, err := c.client.Get(ctx, otpPrefix+identity)
	if err != nil {
		if errors.Is(err, client.ErrKeyNotFound) {
			return nil, repository.ErrNotFound
		}
		util.Error("Failed to get OTP from cache", util.Identity(identity), util.ErrorField(err))
		return nil, fmt.Errorf("failed to get otp from cache: %w", err)
	}

	var record models.OTPRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, fmt.Errorf("corrupt otp record: %w", err)
	}
	return &record, nil
}

func (c *OTPCache) Delete(ctx context.Context, identity string) error {
	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	if err := c.client.Del(ctx, otpPrefix+identity); err != nil {
		util.Error("Failed to delete OTP from cache", util.Identity(identity), util.ErrorField(err))
		return fmt.Errorf("failed to delete otp from cache: %w", err)
	}
	return nil
}

func (c *OTPCache) HealthCheck(ctx context.Context) error {
	return c.client.HealthCheck(ctx)
}
