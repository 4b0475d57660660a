// Package offline implements the durable staging area for protocol
// submissions captured without connectivity. The queue only ever holds
// new create/close submissions; it is never a cache of remote state,
// so nothing in here answers "what is the current status of protocol X".
package offline

import (
	"context"
	"time"

	"github.com/spec-kit/protocol-service/internal/domain"
)

// Op identifies which command an envelope replays. Only the commands
// drivers issue in the field are staged offline.
type Op string

const (
	OpCreate Op = "create"
	OpClose  Op = "close"
)

// Envelope wraps a fully-formed protocol awaiting replay. The protocol
// id doubles as the idempotency key: replaying the same envelope twice
// must never produce two records.
type Envelope struct {
	ID         string          `json:"id"`
	Op         Op              `json:"op"`
	Protocol   domain.Protocol `json:"protocol"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	Attempts   int             `json:"attempts"`
	LastError  string          `json:"last_error,omitempty"`
}

// SubmitFunc replays one envelope against the protocol store.
type SubmitFunc func(ctx context.Context, env Envelope) error

// DrainResult summarizes one drain pass.
type DrainResult struct {
	Submitted    int
	DeadLettered int
	// Stopped is true when a transient failure halted the pass early to
	// preserve FIFO order.
	Stopped bool
}

// Queue is the durable FIFO staging area. Enqueue never blocks on the
// network beyond its own storage medium.
type Queue interface {
	Enqueue(ctx context.Context, env Envelope) error
	// Drain replays queued envelopes in FIFO order, at most limit per
	// pass (limit <= 0 means unbounded). Successful submissions are
	// removed; a transient failure stops the pass; a permanent failure
	// moves the envelope to the dead-letter area with the error
	// recorded and draining continues.
	Drain(ctx context.Context, submit SubmitFunc, limit int) (DrainResult, error)
	Len(ctx context.Context) (int, error)
	DeadLetters(ctx context.Context) ([]Envelope, error)
}
