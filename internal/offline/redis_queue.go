package offline

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/protocol-service/pkg/util"
)

// RedisQueue is the Redis-list backed queue implementation. Pending
// envelopes live in a list drained head-first; dead letters go to a
// sibling list for operator inspection.
type RedisQueue struct {
	client *redis.Client
	logger *zap.Logger

	pendingKey string
	deadKey    string
}

// NewRedisQueue builds a queue under the given key prefix.
func NewRedisQueue(client *redis.Client, keyPrefix string, logger *zap.Logger) *RedisQueue {
	if keyPrefix == "" {
		keyPrefix = "protocol:offline"
	}
	return &RedisQueue{
		client:     client,
		logger:     logger,
		pendingKey: keyPrefix + ":pending",
		deadKey:    keyPrefix + ":dead",
	}
}

// Enqueue appends the envelope to the pending list.
func (q *RedisQueue) Enqueue(ctx context.Context, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	if err := q.client.RPush(ctx, q.pendingKey, payload).Err(); err != nil {
		return util.NewTransientIO(err)
	}
	q.logger.Info("envelope enqueued",
		zap.String("protocol_id", env.ID),
		zap.String("op", string(env.Op)))
	return nil
}

// Drain replays pending envelopes head-first, at most limit per pass.
// The head is only popped after its submission outcome is known, so a
// crash mid-drain loses nothing.
func (q *RedisQueue) Drain(ctx context.Context, submit SubmitFunc, limit int) (DrainResult, error) {
	var result DrainResult
	for {
		if limit > 0 && result.Submitted+result.DeadLettered >= limit {
			return result, nil
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
		payload, err := q.client.LIndex(ctx, q.pendingKey, 0).Result()
		if err == redis.Nil {
			return result, nil
		}
		if err != nil {
			return result, util.NewTransientIO(err)
		}

		var env Envelope
		if err := json.Unmarshal([]byte(payload), &env); err != nil {
			// unreadable payload can never succeed; dead-letter it raw
			q.logger.Error("dead-lettering undecodable envelope", zap.Error(err))
			if derr := q.client.LPush(ctx, q.deadKey, payload).Err(); derr != nil {
				return result, util.NewTransientIO(derr)
			}
			if perr := q.client.LPop(ctx, q.pendingKey).Err(); perr != nil {
				return result, util.NewTransientIO(perr)
			}
			result.DeadLettered++
			continue
		}

		env.Attempts++
		submitErr := submit(ctx, env)
		switch {
		case submitErr == nil:
			if err := q.client.LPop(ctx, q.pendingKey).Err(); err != nil {
				return result, util.NewTransientIO(err)
			}
			result.Submitted++
		case util.IsTransient(submitErr):
			// leave the envelope queued and stop to preserve order
			env.LastError = submitErr.Error()
			if updated, err := json.Marshal(env); err == nil {
				_ = q.client.LSet(ctx, q.pendingKey, 0, updated).Err()
			}
			q.logger.Warn("drain stopped on transient failure",
				zap.String("protocol_id", env.ID),
				zap.Error(submitErr))
			result.Stopped = true
			return result, nil
		default:
			env.LastError = submitErr.Error()
			dead, err := json.Marshal(env)
			if err != nil {
				dead = []byte(payload)
			}
			if derr := q.client.LPush(ctx, q.deadKey, dead).Err(); derr != nil {
				return result, util.NewTransientIO(derr)
			}
			if perr := q.client.LPop(ctx, q.pendingKey).Err(); perr != nil {
				return result, util.NewTransientIO(perr)
			}
			q.logger.Error("envelope dead-lettered",
				zap.String("protocol_id", env.ID),
				zap.String("op", string(env.Op)),
				zap.Error(submitErr))
			result.DeadLettered++
		}
	}
}

// Len reports the number of pending envelopes.
func (q *RedisQueue) Len(ctx context.Context) (int, error) {
	n, err := q.client.LLen(ctx, q.pendingKey).Result()
	if err != nil {
		return 0, util.NewTransientIO(err)
	}
	return int(n), nil
}

// DeadLetters returns the dead-lettered envelopes, newest first.
func (q *RedisQueue) DeadLetters(ctx context.Context) ([]Envelope, error) {
	payloads, err := q.client.LRange(ctx, q.deadKey, 0, -1).Result()
	if err != nil {
		return nil, util.NewTransientIO(err)
	}
	envelopes := make([]Envelope, 0, len(payloads))
	for _, payload := range payloads {
		var env Envelope
		if err := json.Unmarshal([]byte(payload), &env); err != nil {
			continue
		}
		envelopes = append(envelopes, env)
	}
	return envelopes, nil
}
