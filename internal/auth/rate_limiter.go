package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// LoginLimiter throttles failed-or-not login attempts per ip and email with a
// fixed window counter in Redis. A nil limiter allows everything.
type LoginLimiter struct {
	client      *redis.Client
	maxAttempts int64
	window      time.Duration
}

// NewLoginLimiter builds a limiter; a nil client disables limiting.
func NewLoginLimiter(client *redis.Client, maxAttempts int, window time.Duration) *LoginLimiter {
	if client == nil || maxAttempts <= 0 {
		return nil
	}
	return &LoginLimiter{client: client, maxAttempts: int64(maxAttempts), window: window}
}

func loginKey(ip, email string) string {
	return fmt.Sprintf("crm:ratelimit:login:%s:%s", ip, strings.ToLower(email))
}

// Allow counts an attempt and reports whether it is within the limit.
func (l *LoginLimiter) Allow(ctx context.Context, ip, email string) (bool, error) {
	if l == nil {
		return true, nil
	}
	key := loginKey(ip, email)
	pipe := l.client.TxPipeline()
	count := pipe.Incr(ctx, key)
	ttl := pipe.TTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("increment login attempt: %w", err)
	}
	// A counter without expiry is re-armed on every attempt until EXPIRE succeeds.
	if ttl.Val() < 0 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return false, fmt.Errorf("expire login attempt: %w", err)
		}
	}
	return count.Val() <= l.maxAttempts, nil
}

// Reset clears the counter after a successful login.
func (l *LoginLimiter) Reset(ctx context.Context, ip, email string) error {
	if l == nil {
		return nil
	}
	return l.client.Del(ctx, loginKey(ip, email)).Err()
}
