package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when the lock is held elsewhere.
var ErrNotAcquired = errors.New("lock not acquired")

// Locker hands out short-lived distributed mutexes.
type Locker interface {
	Acquire(ctx context.Context, key string) (Unlock, error)
}

// Unlock releases a held lock.
type Unlock func(ctx context.Context) error

const (
	DefaultExpiry = 30 * time.Second
	DefaultTries  = 8
)

// RedsyncLocker implements Locker with redsync over one redis client.
type RedsyncLocker struct {
	rs     *redsync.Redsync
	expiry time.Duration
	tries  int
}

func NewRedsyncLocker(rdb *redis.Client) *RedsyncLocker {
	return &RedsyncLocker{
		rs:     redsync.New(goredis.NewPool(rdb)),
		expiry: DefaultExpiry,
		tries:  DefaultTries,
	}
}

func (l *RedsyncLocker) Acquire(ctx context.Context, key string) (Unlock, error) {
	mutex := l.rs.NewMutex(
		key,
		redsync.WithExpiry(l.expiry),
		redsync.WithTries(l.tries),
		redsync.WithRetryDelay(100*time.Millisecond),
	)

	if err := mutex.LockContext(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrNotAcquired, key, err)
	}

	return func(ctx context.Context) error {
		_, err := mutex.UnlockContext(ctx)
		return err
	}, nil
}

// NoopLocker always succeeds. Used when redis is not configured.
type NoopLocker struct{}

func (NoopLocker) Acquire(context.Context, string) (Unlock, error) {
	return func(context.Context) error { return nil }, nil
}

// ReconcileKey is the lock for one provider transaction.
func ReconcileKey(transID string) string {
	return "lock:reconcile:" + transID
}

// SubscriptionKey is the lock for one subscription row.
func SubscriptionKey(subscriptionID string) string {
	return "lock:subscription:" + subscriptionID
}

// UserSubscriptionKey serialises subscription creation for one user.
func UserSubscriptionKey(userID string) string {
	return "lock:user-subscription:" + userID
}
