package service

import (
	"context"
	"sync"
	"time"

	dErrors "pharmatrace/pkg/domain-errors"
)

// TxRunner provides the transactional boundary for a custody movement.
// The postgres implementation opens a database transaction and places it
// in the context so every store touched inside fn joins it; the in-memory
// implementation is a coarse lock.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// defaultTxTimeout bounds a custody transaction.
const defaultTxTimeout = 5 * time.Second

type memoryTx struct {
	mu      sync.Mutex
	timeout time.Duration
}

// NewMemoryTx returns a coarse-lock TxRunner for in-memory deployments and
// tests. Serializing all custody movements through one mutex gives the
// same no-interleaving guarantee the postgres row locks give.
func NewMemoryTx() TxRunner {
	return &memoryTx{}
}

func (t *memoryTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return fn(ctx)
}
