package redis

import (
	"context"
	"fmt"
	"time"

	"admin-auth/internal/client"
	"admin-auth/internal/util"
)

const issueLimitPrefix = "rate_limit:otp_issue:"

// RateLimitCache counts OTP issuances per identity in a fixed window.
type RateLimitCache struct {
	client *client.RedisClient
	limit  int
	window time.Duration
}

func NewRateLimitCache(client *client.RedisClient, limit int, window time.Duration) *RateLimitCache {
	return &RateLimitCache{client: client, limit: limit, window: window}
}

// Allow records one issuance for identity and reports whether it is within
// the limit. A zero limit disables throttling.
func (c *RateLimitCache) Allow(ctx context.Context, identity string) (bool, error) {
	if c.limit <= 0 {
		return true, nil
	}
	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	count, err := c.client.IncrWithExpire(ctx, issueLimitPrefix+identity, c.window)
	if err != nil {
		util.Error("Failed to increment issuance counter", util.Identity(identity), util.ErrorField(err))
		return false, fmt.Errorf("failed to increment issuance counter: %w", err)
	}

	if count > int64(c.limit) {
		util.Warn("OTP issuance throttled",
			util.Identity(identity),
			util.Int("count", int(count)),
			util.Int("limit", c.limit))
		return false, nil
	}
	return true, nil
}
