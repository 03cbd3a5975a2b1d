package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("schedule lock not acquired")
)

// Locker is used by the appointment service to serialize bookings per employee.
// Callers queue behind the current holder; ErrLockNotAcquired means the lock
// stayed taken for a whole TTL.
type Locker interface {
	WithEmployeeLock(ctx context.Context, employeeID uuid.UUID, fn func(ctx context.Context) error) error
}

type redisEmployeeLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisEmployeeLocker creates a locker that uses a per employee Redis key
func NewRedisEmployeeLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisEmployeeLocker{
		client: client,
		ttl:    ttl,
	}
}

func lockKey(employeeID uuid.UUID) string {
	return fmt.Sprintf("lock:employee:%s", employeeID.String())
}

func (l *redisEmployeeLocker) WithEmployeeLock(ctx context.Context, employeeID uuid.UUID, fn func(ctx context.Context) error) error {
	key := lockKey(employeeID)
	token := uuid.NewString()

	err := acquire(ctx, l.ttl, lockRetryEvery, func(ctx context.Context) (bool, error) {
		return l.client.SetNX(ctx, key, token, l.ttl).Result()
	})
	if err != nil {
		return err
	}

	defer func() {
		// release with a fresh context so a cancelled request still frees the key
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		_ = l.release(releaseCtx, key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

const lockRetryEvery = 20 * time.Millisecond

// acquire polls try until it succeeds. It gives up with ErrLockNotAcquired
// once wait has elapsed.
func acquire(ctx context.Context, wait, every time.Duration, try func(ctx context.Context) (bool, error)) error {
	deadline := time.NewTimer(wait)
	defer deadline.Stop()

	for {
		ok, err := try(ctx)
		if err != nil {
			return fmt.Errorf("acquire schedule lock: %w", err)
		}
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return ErrLockNotAcquired
		case <-time.After(every):
		}
	}
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisEmployeeLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release schedule lock: %w", err)
	}
	return nil
}

// NoopLocker runs fn directly. Used when Redis is unavailable; the database
// advisory lock still serializes bookings.
type NoopLocker struct{}

func (NoopLocker) WithEmployeeLock(ctx context.Context, _ uuid.UUID, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
