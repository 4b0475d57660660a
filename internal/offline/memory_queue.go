package offline

import (
	"context"
	"sync"

	"github.com/spec-kit/protocol-service/pkg/util"
)

// MemoryQueue keeps the queue semantics without external storage. It
// backs tests and serves as the fallback when Redis is not configured.
type MemoryQueue struct {
	mu      sync.Mutex
	pending []Envelope
	dead    []Envelope
}

// NewMemoryQueue builds an empty in-memory queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

// Enqueue appends to the pending list.
func (q *MemoryQueue) Enqueue(_ context.Context, env Envelope) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, env)
	return nil
}

// Drain replays pending envelopes in FIFO order with the same
// stop/dead-letter rules as the Redis implementation.
func (q *MemoryQueue) Drain(ctx context.Context, submit SubmitFunc, limit int) (DrainResult, error) {
	var result DrainResult
	for {
		if limit > 0 && result.Submitted+result.DeadLettered >= limit {
			return result, nil
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.mu.Unlock()
			return result, nil
		}
		env := q.pending[0]
		q.mu.Unlock()

		env.Attempts++
		submitErr := submit(ctx, env)
		q.mu.Lock()
		switch {
		case submitErr == nil:
			q.pending = q.pending[1:]
			result.Submitted++
		case util.IsTransient(submitErr):
			env.LastError = submitErr.Error()
			q.pending[0] = env
			q.mu.Unlock()
			result.Stopped = true
			return result, nil
		default:
			env.LastError = submitErr.Error()
			q.dead = append(q.dead, env)
			q.pending = q.pending[1:]
			result.DeadLettered++
		}
		q.mu.Unlock()
	}
}

// Len reports pending envelope count.
func (q *MemoryQueue) Len(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending), nil
}

// DeadLetters returns dead-lettered envelopes.
func (q *MemoryQueue) DeadLetters(_ context.Context) ([]Envelope, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Envelope(nil), q.dead...), nil
}
