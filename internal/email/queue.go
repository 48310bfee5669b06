package email

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/EnowBibi/KontriVibeBackend/internal/logger"

	"github.com/redis/go-redis/v9"
)

const (
	queueKey = "emails"
	maxTries = 3
)

// RedisQueue is a Sender that enqueues; QueueWorker does the delivery.
type RedisQueue struct {
	rdb *redis.Client
}

func NewRedisQueue(rdb *redis.Client) *RedisQueue {
	return &RedisQueue{rdb: rdb}
}

func (q *RedisQueue) Send(ctx context.Context, email *Email) error {
	return q.push(ctx, job{Email: *email, Created: time.Now()})
}

func (q *RedisQueue) push(ctx context.Context, j job) error {
	data, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("failed to marshal email job: %w", err)
	}
	if err := q.rdb.LPush(ctx, queueKey, data).Err(); err != nil {
		return fmt.Errorf("failed to queue email to %s: %w", j.Email.To, err)
	}
	logger.CtxDebug(ctx, "email queued", "to", j.Email.To, "subject", j.Email.Subject)
	return nil
}

// Length is the number of queued jobs.
func (q *RedisQueue) Length(ctx context.Context) int64 {
	n, err := q.rdb.LLen(ctx, queueKey).Result()
	if err != nil {
		return 0
	}
	return n
}

// QueueWorker drains the queue into a synchronous sender.
type QueueWorker struct {
	queue  *RedisQueue
	sender Sender
	wait   time.Duration
}

func NewQueueWorker(queue *RedisQueue, sender Sender) *QueueWorker {
	return &QueueWorker{queue: queue, sender: sender, wait: 5 * time.Second}
}

func (w *QueueWorker) Start(ctx context.Context) {
	logger.Info("email worker started")
	for {
		select {
		case <-ctx.Done():
			logger.Info("email worker stopped")
			return
		default:
		}

		if err := w.processOne(ctx); err != nil && !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			logger.WorkerLog("email_worker", "process", err)
			time.Sleep(time.Second)
		}
	}
}

// processOne handles at most one job. A failed send is re-queued until maxTries.
func (w *QueueWorker) processOne(ctx context.Context) error {
	res, err := w.queue.rdb.BRPop(ctx, w.wait, queueKey).Result()
	if err != nil {
		return err
	}
	if len(res) != 2 {
		return fmt.Errorf("unexpected BRPOP reply of length %d", len(res))
	}

	var j job
	if err := json.Unmarshal([]byte(res[1]), &j); err != nil {
		return fmt.Errorf("dropping malformed email job: %w", err)
	}

	if err := w.sender.Send(ctx, &j.Email); err != nil {
		j.Tries++
		if j.Tries >= maxTries {
			return fmt.Errorf("giving up on email to %s after %d tries: %w", j.Email.To, j.Tries, err)
		}
		return w.queue.push(ctx, j)
	}
	return nil
}
