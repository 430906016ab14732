package storage

import (
	"context"
	"hash/fnv"
	"time"

	id "casetrace/pkg/domain"
	dErrors "casetrace/pkg/domain-errors"
)

// shardedTxRunner provides the per-case mutual-exclusion discipline for the
// in-memory stores. Instead of a single global lock, case mutations are
// distributed across N shards keyed by a hash of the case number, so
// unrelated cases do not contend.
const numCaseShards = 128

// defaultCaseTxTimeout bounds how long a case mutation may hold its shard.
const defaultCaseTxTimeout = 5 * time.Second

type shardedTxRunner struct {
	shards  [numCaseShards]chan struct{}
	stores  Stores
	timeout time.Duration
}

// NewShardedTxRunner wraps the given stores in a sharded per-case lock.
func NewShardedTxRunner(stores Stores) TxRunner {
	r := &shardedTxRunner{stores: stores}
	for i := range r.shards {
		r.shards[i] = make(chan struct{}, 1)
	}
	return r
}

func (r *shardedTxRunner) RunInCaseTx(ctx context.Context, num id.CaseNumber, fn func(ctx context.Context, s Stores) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := r.timeout
	if timeout == 0 {
		timeout = defaultCaseTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shard := r.shards[shardIndex(num)]
	select {
	case shard <- struct{}{}:
		defer func() { <-shard }()
	case <-ctx.Done():
		return dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "transaction aborted: lock wait timed out")
	}

	return fn(ctx, r.stores)
}

func shardIndex(num id.CaseNumber) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(num))
	return int(h.Sum32() % numCaseShards)
}
