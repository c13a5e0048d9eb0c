package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/covera/internal/config"
	"go.uber.org/zap"
)

const (
	keyChatPhone   = "chat:rate:%s"
	keySessionTurn = "lock:session:%s"

	turnLockWait = 5 * time.Second
)

// ErrSessionBusy is returned when another turn for the same session still
// holds the lock after the wait window.
var ErrSessionBusy = errors.New("session_busy")

// ChatLimiter bounds chat throughput per phone and serializes turns per
// session. Throttling fails open when redis errors; the turn lock fails closed.
type ChatLimiter struct {
	bucket  *TokenBucket
	locker  *Locker
	log     *zap.Logger
	lockTTL time.Duration
}

func NewChatLimiter(client *redis.Client, cfg config.Config, log *zap.Logger) *ChatLimiter {
	lockTTL := cfg.Session.TurnLockTTL
	if lockTTL <= 0 {
		lockTTL = 90 * time.Second
	}
	return &ChatLimiter{
		bucket:  NewTokenBucket(client, cfg.ChatRate.Rate, cfg.ChatRate.Burst),
		locker:  NewLocker(client),
		log:     log.Named("ratelimit.chat"),
		lockTTL: lockTTL,
	}
}

// AllowPhone reports whether phone may send another message now, and if not,
// how long it should wait.
func (l *ChatLimiter) AllowPhone(ctx context.Context, phone string) (bool, time.Duration) {
	phone = strings.TrimSpace(phone)
	if l == nil || phone == "" || l.bucket.rate <= 0 || l.bucket.burst <= 0 {
		return true, 0
	}
	res, err := l.bucket.Take(ctx, fmt.Sprintf(keyChatPhone, phone))
	if err != nil {
		l.log.Warn("chat rate limiter unavailable", zap.Error(err))
		return true, 0
	}
	return res.Allowed, res.RetryAfter
}

// LockSession waits briefly for the session's turn lock. The returned
// release function is safe to call once the turn completes.
func (l *ChatLimiter) LockSession(ctx context.Context, sessionID string) (func(), error) {
	if l == nil {
		return func() {}, nil
	}
	key := fmt.Sprintf(keySessionTurn, strings.TrimSpace(sessionID))
	token, ok, err := l.locker.Acquire(ctx, key, l.lockTTL, turnLockWait)
	if err != nil {
		return nil, fmt.Errorf("acquire turn lock: %w", err)
	}
	if !ok {
		return nil, ErrSessionBusy
	}
	return func() {
		// released on a fresh context, the turn context may already be done
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := l.locker.Release(releaseCtx, key, token); err != nil {
			l.log.Warn("release turn lock failed", zap.String("session_id", sessionID), zap.Error(err))
		}
	}, nil
}
