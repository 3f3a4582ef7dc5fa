package indexer

import (
	"context"
	"time"

	"github.com/croncatio/tm-indexer/internal/domain"
	"github.com/croncatio/tm-indexer/internal/filter"
	"github.com/croncatio/tm-indexer/internal/util"
)

// Worker drains a block stream (the dispatcher's per-subscriber channel)
// and indexes each block in the order it arrives.
type Worker struct {
	ChainID string
	Store   BlockStore
	Fetcher Fetcher
	Filters *filter.Set
}

// Run processes blocks from in until the channel closes or ctx is
// cancelled. A single block's processing error is logged and does not
// stop the worker; the dispatcher's lossy broadcast means a lost block is
// recovered by the gap filler, not by the live worker retrying forever.
func (w *Worker) Run(ctx context.Context, in <-chan domain.Block) {
	for {
		select {
		case <-ctx.Done():
			return
		case block, ok := <-in:
			if !ok {
				return
			}
			if err := ProcessBlock(ctx, w.Store, w.Fetcher, w.Filters, w.ChainID, block); err != nil {
				util.Error("failed to index block",
					"chain_id", w.ChainID,
					"height", block.Height,
					"error", err.Error())
			}
		}
	}
}

// Supervise runs fn repeatedly, restarting it at a fixed interval whenever
// it returns (crash or clean exit alike) until ctx is cancelled. This is
// spec.md §4.5's "top-level indexer supervisors restart the whole indexer
// on crash every 5s, indefinitely."
func Supervise(ctx context.Context, name string, restartInterval time.Duration, fn func(ctx context.Context) error) {
	for {
		if ctx.Err() != nil {
			return
		}

		err := fn(ctx)
		if ctx.Err() != nil {
			return
		}

		if err != nil {
			util.Error("supervised task exited with error, restarting",
				"task", name,
				"error", err.Error(),
				"restart_in", restartInterval.String())
		} else {
			util.Warn("supervised task exited cleanly, restarting",
				"task", name,
				"restart_in", restartInterval.String())
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(restartInterval):
		}
	}
}
