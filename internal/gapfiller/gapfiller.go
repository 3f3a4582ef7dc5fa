// Package gapfiller periodically re-indexes historical height ranges that
// the live pipeline missed, using the same per-block indexing routine as
// the live worker.
package gapfiller

import (
	"context"
	"time"

	"github.com/croncatio/tm-indexer/internal/domain"
	"github.com/croncatio/tm-indexer/internal/filter"
	"github.com/croncatio/tm-indexer/internal/indexer"
	"github.com/croncatio/tm-indexer/internal/store"
	"github.com/croncatio/tm-indexer/internal/util"
)

// DefaultInterval is how often GapFiller checks for missing heights.
const DefaultInterval = 60 * time.Second

// DefaultLookbackDays bounds the gap query to recent history.
const DefaultLookbackDays = 7

// GapStore is the persistence surface the gap filler needs beyond the
// indexer's BlockStore: finding the missing height ranges themselves.
type GapStore interface {
	indexer.BlockStore
	GetBlockGaps(ctx context.Context, chainID string, lookbackDays int) ([]store.BlockGap, error)
}

// BlockFetcher fetches a single historical block by height, in addition
// to the transaction pagination the indexer.Fetcher interface already
// provides.
type BlockFetcher interface {
	indexer.Fetcher
	Block(ctx context.Context, height uint64) (domain.Block, error)
}

// GapFiller back-fills one chain's missing heights. cmd/indexer gives it
// the same store adapter (and so the same DB pool) and RPC client as the
// chain's live indexer worker.
type GapFiller struct {
	ChainID      string
	Store        GapStore
	Fetcher      BlockFetcher
	Filters      *filter.Set
	Interval     time.Duration
	LookbackDays int
}

// Run ticks at Interval (DefaultInterval if unset) until ctx is cancelled,
// scanning for and re-indexing missing heights on each tick.
func (g *GapFiller) Run(ctx context.Context) error {
	interval := g.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	lookback := g.LookbackDays
	if lookback <= 0 {
		lookback = DefaultLookbackDays
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := g.fillOnce(ctx, lookback); err != nil {
				util.Error("gap fill pass failed",
					"chain_id", g.ChainID,
					"error", err.Error())
			}
		}
	}
}

// fillOnce runs a single gap-detection and backfill pass.
func (g *GapFiller) fillOnce(ctx context.Context, lookbackDays int) error {
	gaps, err := g.Store.GetBlockGaps(ctx, g.ChainID, lookbackDays)
	if err != nil {
		return err
	}

	if len(gaps) == 0 {
		return nil
	}

	util.Info("found block gaps", "chain_id", g.ChainID, "gap_count", len(gaps))

	for _, gap := range gaps {
		for _, height := range gap.Heights() {
			if ctx.Err() != nil {
				return nil
			}
			g.fillHeight(ctx, height)
		}
	}

	return nil
}

// fillHeight fetches and re-indexes a single missing height. Errors are
// logged, not returned: one bad height must not stop the rest of the pass,
// the next tick will retry it along with any others still missing.
func (g *GapFiller) fillHeight(ctx context.Context, height uint64) {
	block, err := g.Fetcher.Block(ctx, height)
	if err != nil {
		util.Error("gap filler failed to fetch block",
			"chain_id", g.ChainID, "height", height, "error", err.Error())
		return
	}

	if err := indexer.ProcessBlock(ctx, g.Store, g.Fetcher, g.Filters, g.ChainID, block); err != nil {
		util.Error("gap filler failed to index block",
			"chain_id", g.ChainID, "height", height, "error", err.Error())
		return
	}

	util.Info("gap filler re-indexed block", "chain_id", g.ChainID, "height", height)
}
