package ratelimiter

import (
	"context"
	"fmt"
	"time"

	"anoa.com/threadfeed/pkg/apperror"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	ScopeGlobal = "global"
	ScopeThread = "thread"
	ScopeReply  = "reply"
)

// RateLimitError tells the caller how long to wait before retrying.
type RateLimitError struct {
	Message    string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return e.Message
}

func (e *RateLimitError) Unwrap() error {
	return apperror.ErrRateLimitExceeded
}

func key(userID uuid.UUID, scope string) string {
	return fmt.Sprintf("rate_limit:user:%s:%s", userID.String(), scope)
}

// CheckAndSetRateLimit claims the cooldown slot for the user. A nil client
// disables rate limiting.
func CheckAndSetRateLimit(ctx context.Context, rdb *redis.Client, userID uuid.UUID, scope string, limit time.Duration) (bool, error) {
	if rdb == nil || limit <= 0 {
		return true, nil
	}

	wasSet, err := rdb.SetNX(ctx, key(userID, scope), "locked", limit).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit in redis: %w", err)
	}

	return wasSet, nil
}

func GetRateLimitTTL(ctx context.Context, rdb *redis.Client, userID uuid.UUID, scope string) (time.Duration, error) {
	if rdb == nil {
		return 0, nil
	}
	return rdb.TTL(ctx, key(userID, scope)).Result()
}

func ClearRateLimit(ctx context.Context, rdb *redis.Client, userID uuid.UUID, scope string) error {
	if rdb == nil {
		return nil
	}
	_, err := rdb.Del(ctx, key(userID, scope)).Result()
	return err
}
