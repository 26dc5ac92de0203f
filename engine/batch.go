package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/c360/quantdata/errors"
	"github.com/c360/quantdata/pkg/worker"
	"github.com/c360/quantdata/types"
)

// BatchItem is the outcome of one query within a bulk import. Exactly one
// of Result and Err is set once the batch completes.
type BatchItem struct {
	Query  types.Query
	Result *types.Result
	Err    error
}

// batchOutcome carries one worker's result back to the collecting goroutine.
type batchOutcome struct {
	idx    int
	result *types.Result
	err    error
}

// ResolveBatch resolves many queries concurrently on a bounded worker
// pool, preserving input order in the returned slice. Individual failures
// do not abort the batch; each item carries its own outcome. Per-provider
// concurrency caps still apply underneath the pool.
func (e *Engine) ResolveBatch(ctx context.Context, queries []types.Query) []BatchItem {
	items := make([]BatchItem, len(queries))
	for i := range queries {
		items[i].Query = queries[i]
	}
	if len(queries) == 0 {
		return items
	}

	// Workers deliver through this channel and never write items directly:
	// if the drain below times out, a straggler still lands in the buffer
	// instead of racing the collection loop.
	outcomes := make(chan batchOutcome, len(queries))
	pool := worker.NewPool(e.cfg.BatchWorkers, len(queries), func(ctx context.Context, idx int) error {
		result, err := e.Resolve(ctx, items[idx].Query)
		outcomes <- batchOutcome{idx: idx, result: result, err: err}
		return err
	})

	if err := pool.Start(ctx); err != nil {
		for i := range items {
			items[i].Err = errors.WrapTransient(err, "Engine", "ResolveBatch", "worker pool start")
		}
		return items
	}

	done := make([]bool, len(items))
	for i := range items {
		if err := pool.Submit(i); err != nil {
			items[i].Err = errors.WrapTransient(err, "Engine", "ResolveBatch", "submit")
			done[i] = true
		}
	}

	// Stop drains the queue. The bound is generous; workers give up much
	// earlier when the batch context ends.
	waves := len(queries)/e.cfg.BatchWorkers + 1
	stopErr := pool.Stop(time.Duration(waves)*e.cfg.HistoricalTimeout + time.Minute)

collect:
	for {
		select {
		case out := <-outcomes:
			items[out.idx].Result = out.result
			items[out.idx].Err = out.err
			done[out.idx] = true
		default:
			break collect
		}
	}

	for i := range items {
		if !done[i] {
			reason := fmt.Errorf("batch abandoned before this query ran")
			if stopErr != nil {
				reason = fmt.Errorf("batch abandoned before this query ran: %w", stopErr)
			}
			items[i].Err = errors.WrapTransient(reason, "Engine", "ResolveBatch", "drain")
		}
	}
	return items
}
