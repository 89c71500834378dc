package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	applogger "CoinPull/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// Option configures RedisQueue.
type Option func(*Config)

// WithWorkers sets the number of concurrent workers.
func WithWorkers(n int) Option { return func(c *Config) { c.Workers = n } }

// WithRetry sets the retry budget and the first retry delay.
func WithRetry(limit int, delay time.Duration) Option {
	return func(c *Config) {
		c.RetryLimit = limit
		c.RetryDelay = delay
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option { return func(c *Config) { c.Prefix = prefix } }

// RedisQueue is a Redis list backed work queue. Failed messages wait in a
// sorted set until their retry time and end up on a dead-letter list once the
// retry budget is spent.
type RedisQueue struct {
	cfg    Config
	client *redis.Client
	jobs   map[string]Job
	log    *applogger.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewRedisQueue creates a queue on an existing client.
func NewRedisQueue(client *redis.Client, opts ...Option) *RedisQueue {
	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.withDefaults()
	return &RedisQueue{cfg: cfg, client: client, jobs: make(map[string]Job)}
}

func (r *RedisQueue) SetLogger(l *applogger.Logger) { r.log = l }

// Register adds a job. Jobs must be registered before Start.
func (r *RedisQueue) Register(job Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return errors.New("queue already running")
	}
	if _, ok := r.jobs[job.Type()]; ok {
		return fmt.Errorf("job already registered for type %s", job.Type())
	}
	r.jobs[job.Type()] = job
	return nil
}

// Start pings Redis and launches the workers and the retry mover.
func (r *RedisQueue) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return errors.New("queue already running")
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	ctx, r.cancel = context.WithCancel(ctx)
	r.running = true
	for i := 0; i < r.cfg.Workers; i++ {
		r.wg.Add(1)
		go r.worker(ctx)
	}
	r.wg.Add(1)
	go r.retryMover(ctx)

	r.info("redis queue started",
		applogger.Int("workers", r.cfg.Workers),
		applogger.String("prefix", r.cfg.Prefix))
	return nil
}

// Stop cancels the workers and waits for in-flight messages.
func (r *RedisQueue) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	r.cancel()
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for queue workers: %w", ctx.Err())
	case <-done:
		r.info("redis queue stopped")
		return nil
	}
}

// Enqueue adds a message for a registered job type. Messages persist in
// Redis until a worker picks them up, so enqueueing before Start is allowed.
func (r *RedisQueue) Enqueue(ctx context.Context, msgType string, payload interface{}) error {
	r.mu.Lock()
	_, ok := r.jobs[msgType]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("no job registered for type: %s", msgType)
	}

	msg, err := NewMessage(msgType, payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := r.client.LPush(ctx, r.queueKey(), data).Err(); err != nil {
		return fmt.Errorf("lpush: %w", err)
	}
	return nil
}

func (r *RedisQueue) worker(ctx context.Context) {
	defer r.wg.Done()
	for ctx.Err() == nil {
		res, err := r.client.BRPop(ctx, time.Second, r.queueKey()).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			r.warn("brpop", applogger.Error(err))
			sleepCtx(ctx, time.Second)
			continue
		}
		if len(res) < 2 {
			continue
		}

		var msg Message
		if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
			r.warn("drop malformed message", applogger.Error(err))
			continue
		}
		r.process(ctx, msg)
	}
}

func (r *RedisQueue) process(ctx context.Context, msg Message) {
	job, ok := r.jobs[msg.Type]
	if !ok {
		r.warn("no job for message", applogger.String("type", msg.Type), applogger.String("id", msg.ID))
		r.deadLetter(msg)
		return
	}

	err := job.Handle(ctx, msg.Payload)
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) {
		// shutting down; hand the message back untouched
		r.schedule(msg, time.Now())
		return
	}

	next, at, dead := r.onFailure(msg, time.Now())
	if dead {
		if r.log != nil {
			r.log.Error("message dead-lettered",
				applogger.String("id", msg.ID),
				applogger.String("type", msg.Type),
				applogger.Int("attempts", next.Attempts),
				applogger.Error(err))
		}
		r.deadLetter(next)
		return
	}
	r.warn("message failed, retry scheduled",
		applogger.String("id", msg.ID),
		applogger.String("type", msg.Type),
		applogger.Int("attempt", next.Attempts),
		applogger.String("retry_at", at.Format(time.RFC3339)),
		applogger.Error(err))
	r.schedule(next, at)
}

// onFailure counts the failed attempt and returns when to retry, or dead when
// the retry budget is spent.
func (r *RedisQueue) onFailure(msg Message, now time.Time) (Message, time.Time, bool) {
	msg.Attempts++
	if msg.Attempts > r.cfg.RetryLimit {
		return msg, time.Time{}, true
	}
	return msg, now.Add(retryAfter(r.cfg.RetryDelay, msg.Attempts)), false
}

func (r *RedisQueue) schedule(msg Message, at time.Time) {
	data, err := json.Marshal(msg)
	if err != nil {
		r.warn("marshal retry", applogger.Error(err))
		return
	}
	err = r.client.ZAdd(context.Background(), r.retryKey(), redis.Z{
		Score:  float64(at.UnixMilli()),
		Member: data,
	}).Err()
	if err != nil {
		r.warn("zadd retry", applogger.Error(err))
	}
}

func (r *RedisQueue) deadLetter(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := r.client.LPush(context.Background(), r.deadLetterKey(), data).Err(); err != nil {
		r.warn("lpush dlq", applogger.Error(err))
	}
}

func (r *RedisQueue) retryMover(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.promoteDue(ctx)
		}
	}
}

// promoteDue moves retries whose time has come back onto the main list. The
// ZREM result guards against two instances promoting the same member.
func (r *RedisQueue) promoteDue(ctx context.Context) {
	due, err := r.client.ZRangeByScore(ctx, r.retryKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(time.Now().UnixMilli(), 10),
	}).Result()
	if err != nil {
		if ctx.Err() == nil {
			r.warn("fetch due retries", applogger.Error(err))
		}
		return
	}
	for _, member := range due {
		removed, err := r.client.ZRem(ctx, r.retryKey(), member).Result()
		if err != nil || removed == 0 {
			continue
		}
		if err := r.client.LPush(ctx, r.queueKey(), member).Err(); err != nil {
			r.warn("requeue retry", applogger.Error(err))
		}
	}
}

func (r *RedisQueue) queueKey() string      { return r.cfg.Prefix + ":messages" }
func (r *RedisQueue) retryKey() string      { return r.cfg.Prefix + ":retry" }
func (r *RedisQueue) deadLetterKey() string { return r.cfg.Prefix + ":dlq" }

func (r *RedisQueue) info(msg string, fields ...applogger.Field) {
	if r.log != nil {
		r.log.Info(msg, fields...)
	}
}

func (r *RedisQueue) warn(msg string, fields ...applogger.Field) {
	if r.log != nil {
		r.log.Warn(msg, fields...)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

var _ Enqueuer = (*RedisQueue)(nil)
