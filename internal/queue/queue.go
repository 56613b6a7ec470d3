package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Task represents a job to be processed asynchronously.
type Task struct {
	Kind           string
	Payload        []byte
	IdempotencyKey string
	MaxAttempts    int
	Delay          time.Duration
}

type taskMessage struct {
	Kind        string `json:"kind"`
	Key         string `json:"key,omitempty"`
	Payload     []byte `json:"payload,omitempty"`
	Attempt     int    `json:"attempt"`
	MaxAttempts int    `json:"maxAttempts"`
	AvailableAt int64  `json:"availableAt"`
}

// Enqueuer publishes tasks to Redis backed delay queues.
type Enqueuer struct {
	R        *redis.Client
	Prefix   string
	DedupTTL time.Duration
}

// Enqueue inserts the task into its queue. If an idempotency key is supplied
// the task is only enqueued once within the deduplication window.
func (e Enqueuer) Enqueue(ctx context.Context, t Task) error {
	if e.R == nil {
		return errors.New("queue: redis client not configured")
	}
	kind := sanitizeKind(t.Kind)
	if kind == "" {
		return errors.New("queue: task kind is required")
	}
	msg := taskMessage{
		Kind:        kind,
		Key:         t.IdempotencyKey,
		Payload:     t.Payload,
		MaxAttempts: t.MaxAttempts,
	}
	if msg.MaxAttempts <= 0 {
		msg.MaxAttempts = 10
	}
	msg.AvailableAt = time.Now().Add(t.Delay).UnixNano()

	if msg.Key != "" {
		ttl := e.DedupTTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		ok, err := e.R.SetNX(ctx, dedupKey(e.Prefix, kind, msg.Key), "1", ttl).Result()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return e.R.ZAdd(ctx, queueKey(e.Prefix, kind), redis.Z{Score: float64(msg.AvailableAt), Member: raw}).Err()
}

// Worker consumes tasks for a specific kind.
type Worker struct {
	R                 *redis.Client
	Prefix            string
	Kind              string
	Concurrency       int
	VisibilityTimeout time.Duration
	Handler           func(context.Context, Task) error
	RetryBase         time.Duration
}

// Run processes tasks until the context is cancelled. In-flight tasks are
// tracked in a processing set so they can be redelivered after a crash.
func (w Worker) Run(ctx context.Context) error {
	if w.R == nil {
		return errors.New("queue: worker redis client not configured")
	}
	if w.Handler == nil {
		return errors.New("queue: worker handler not configured")
	}
	kind := sanitizeKind(w.Kind)
	if kind == "" {
		return errors.New("queue: worker kind is required")
	}
	concurrency := w.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	requeueTicker := time.NewTicker(time.Second)
	defer requeueTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil
		case <-requeueTicker.C:
			if err := w.requeueExpired(ctx, kind); err != nil {
				return err
			}
		default:
		}

		raw, msg, ok, err := w.pop(ctx, kind)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				wg.Wait()
				return nil
			}
			return err
		}
		if !ok {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(raw string, m taskMessage) {
			defer func() { <-sem }()
			defer wg.Done()
			err := w.Handler(ctx, Task{Kind: kind, Payload: m.Payload, IdempotencyKey: m.Key})
			if err != nil {
				w.handleFailure(ctx, kind, raw, m)
				return
			}
			w.ack(ctx, kind, raw, m)
		}(raw, msg)
	}
}

// WorkOnce pops and processes at most one due task. It exists for tests and
// for the worker binary's drain mode.
func (w Worker) WorkOnce(ctx context.Context) (bool, error) {
	if w.R == nil || w.Handler == nil {
		return false, errors.New("queue: worker not configured")
	}
	kind := sanitizeKind(w.Kind)
	if kind == "" {
		return false, errors.New("queue: worker kind is required")
	}
	raw, msg, ok, err := w.pop(ctx, kind)
	if err != nil || !ok {
		return false, err
	}
	if err := w.Handler(ctx, Task{Kind: kind, Payload: msg.Payload, IdempotencyKey: msg.Key}); err != nil {
		w.handleFailure(ctx, kind, raw, msg)
		return true, nil
	}
	w.ack(ctx, kind, raw, msg)
	return true, nil
}

// pop removes the next due task, moving it into the processing set. Tasks not
// yet due are pushed back.
func (w Worker) pop(ctx context.Context, kind string) (string, taskMessage, bool, error) {
	qKey := queueKey(w.Prefix, kind)
	res, err := w.R.ZPopMin(ctx, qKey, 1).Result()
	if err != nil {
		if err == redis.Nil {
			return "", taskMessage{}, false, nil
		}
		return "", taskMessage{}, false, err
	}
	if len(res) == 0 {
		return "", taskMessage{}, false, nil
	}
	member, ok := res[0].Member.(string)
	if !ok {
		return "", taskMessage{}, false, nil
	}
	var msg taskMessage
	if err := json.Unmarshal([]byte(member), &msg); err != nil {
		return "", taskMessage{}, false, nil
	}
	if msg.AvailableAt > time.Now().UnixNano() {
		_ = w.R.ZAdd(ctx, qKey, redis.Z{Score: float64(msg.AvailableAt), Member: member}).Err()
		return "", taskMessage{}, false, nil
	}

	msg.Attempt++
	rawBytes, err := json.Marshal(msg)
	if err != nil {
		return "", taskMessage{}, false, nil
	}
	visibility := w.VisibilityTimeout
	if visibility <= 0 {
		visibility = 30 * time.Second
	}
	deadline := time.Now().Add(visibility).UnixNano()
	if err := w.R.ZAdd(ctx, processingKey(w.Prefix, kind), redis.Z{Score: float64(deadline), Member: rawBytes}).Err(); err != nil {
		return "", taskMessage{}, false, err
	}
	return string(rawBytes), msg, true, nil
}

func (w Worker) handleFailure(ctx context.Context, kind, raw string, msg taskMessage) {
	_ = w.R.ZRem(ctx, processingKey(w.Prefix, kind), raw)
	if msg.MaxAttempts > 0 && msg.Attempt >= msg.MaxAttempts {
		if rawBytes, err := json.Marshal(msg); err == nil {
			_ = w.R.LPush(ctx, dlqKey(w.Prefix, kind), rawBytes).Err()
		}
		if msg.Key != "" {
			_ = w.R.Del(ctx, dedupKey(w.Prefix, kind, msg.Key)).Err()
		}
		return
	}
	msg.AvailableAt = time.Now().Add(backoff(w.RetryBase, msg.Attempt)).UnixNano()
	if rawBytes, err := json.Marshal(msg); err == nil {
		_ = w.R.ZAdd(ctx, queueKey(w.Prefix, kind), redis.Z{Score: float64(msg.AvailableAt), Member: rawBytes}).Err()
	}
}

func (w Worker) ack(ctx context.Context, kind, raw string, msg taskMessage) {
	_ = w.R.ZRem(ctx, processingKey(w.Prefix, kind), raw)
	if msg.Key != "" {
		_ = w.R.Del(ctx, dedupKey(w.Prefix, kind, msg.Key)).Err()
	}
}

func (w Worker) requeueExpired(ctx context.Context, kind string) error {
	pKey := processingKey(w.Prefix, kind)
	now := float64(time.Now().UnixNano())
	due, err := w.R.ZRangeByScore(ctx, pKey, &redis.ZRangeBy{Min: "-inf", Max: fmt.Sprintf("%f", now)}).Result()
	if err != nil && err != redis.Nil {
		return err
	}
	for _, raw := range due {
		var msg taskMessage
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			continue
		}
		_ = w.R.ZRem(ctx, pKey, raw).Err()
		msg.AvailableAt = time.Now().UnixNano()
		if encoded, err := json.Marshal(msg); err == nil {
			_ = w.R.ZAdd(ctx, queueKey(w.Prefix, kind), redis.Z{Score: float64(msg.AvailableAt), Member: encoded}).Err()
		}
	}
	return nil
}

// backoff grows exponentially per attempt with up to 25% jitter.
func backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = 200 * time.Millisecond
	}
	d := base
	for i := 1; i < attempt && d < time.Minute; i++ {
		d *= 2
	}
	if d > time.Minute {
		d = time.Minute
	}
	jitter := time.Duration(rand.Int63n(int64(d)/4 + 1))
	return d + jitter
}

func sanitizeKind(kind string) string {
	return strings.ToLower(strings.TrimSpace(kind))
}

func queueKey(prefix, kind string) string {
	if prefix == "" {
		return fmt.Sprintf("queue:%s", kind)
	}
	return fmt.Sprintf("%s:queue:%s", prefix, kind)
}

func processingKey(prefix, kind string) string {
	if prefix == "" {
		return fmt.Sprintf("queue:%s:processing", kind)
	}
	return fmt.Sprintf("%s:%s:processing", prefix, kind)
}

func dlqKey(prefix, kind string) string {
	if prefix == "" {
		return fmt.Sprintf("queue:%s:dlq", kind)
	}
	return fmt.Sprintf("%s:%s:dlq", prefix, kind)
}

func dedupKey(prefix, kind, key string) string {
	if prefix == "" {
		return fmt.Sprintf("queue:dedup:%s:%s", kind, key)
	}
	return fmt.Sprintf("%s:dedup:%s:%s", prefix, kind, key)
}
