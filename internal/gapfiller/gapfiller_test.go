package gapfiller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/croncatio/tm-indexer/internal/domain"
	"github.com/croncatio/tm-indexer/internal/store"
)

type fakeGapStore struct {
	mu     sync.Mutex
	gaps   []store.BlockGap
	blocks []domain.Block
	txs    []domain.Transaction
}

func (s *fakeGapStore) InsertBlock(ctx context.Context, block domain.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks = append(s.blocks, block)
	return nil
}

func (s *fakeGapStore) InsertTransaction(ctx context.Context, chainID string, tx domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs = append(s.txs, tx)
	return nil
}

func (s *fakeGapStore) GetBlockGaps(ctx context.Context, chainID string, lookbackDays int) ([]store.BlockGap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	gaps := s.gaps
	s.gaps = nil
	return gaps, nil
}

type fakeBlockFetcher struct {
	blocks   map[uint64]domain.Block
	fetchErr error
	calls    []uint64
}

func (f *fakeBlockFetcher) Block(ctx context.Context, height uint64) (domain.Block, error) {
	f.calls = append(f.calls, height)
	if f.fetchErr != nil {
		return domain.Block{}, f.fetchErr
	}
	b, ok := f.blocks[height]
	if !ok {
		return domain.Block{}, errors.New("no fixture for height")
	}
	return b, nil
}

func (f *fakeBlockFetcher) TxSearch(ctx context.Context, height uint64, page int) ([]domain.Transaction, int, error) {
	return nil, 0, nil
}

func TestGapFiller_FillsEachHeightInEveryGap(t *testing.T) {
	gaps := []store.BlockGap{
		{Start: 10, End: 12},
		{Start: 20, End: 20},
	}

	fetcher := &fakeBlockFetcher{blocks: map[uint64]domain.Block{
		10: {Height: 10, ChainID: "uni-5"},
		11: {Height: 11, ChainID: "uni-5"},
		12: {Height: 12, ChainID: "uni-5"},
		20: {Height: 20, ChainID: "uni-5"},
	}}
	gstore := &fakeGapStore{gaps: gaps}

	gf := &GapFiller{ChainID: "uni-5", Store: gstore, Fetcher: fetcher}

	err := gf.fillOnce(context.Background(), DefaultLookbackDays)
	require.NoError(t, err)

	assert.ElementsMatch(t, []uint64{10, 11, 12, 20}, fetcher.calls)
	require.Len(t, gstore.blocks, 4)
}

func TestGapFiller_NoGapsIsNoOp(t *testing.T) {
	gstore := &fakeGapStore{}
	fetcher := &fakeBlockFetcher{}
	gf := &GapFiller{ChainID: "uni-5", Store: gstore, Fetcher: fetcher}

	err := gf.fillOnce(context.Background(), DefaultLookbackDays)
	require.NoError(t, err)
	assert.Empty(t, fetcher.calls)
	assert.Empty(t, gstore.blocks)
}

func TestGapFiller_OneBadHeightDoesNotStopTheRest(t *testing.T) {
	gaps := []store.BlockGap{{Start: 1, End: 3}}
	fetcher := &fakeBlockFetcher{blocks: map[uint64]domain.Block{
		1: {Height: 1, ChainID: "uni-5"},
		3: {Height: 3, ChainID: "uni-5"},
	}}
	gstore := &fakeGapStore{gaps: gaps}
	gf := &GapFiller{ChainID: "uni-5", Store: gstore, Fetcher: fetcher}

	err := gf.fillOnce(context.Background(), DefaultLookbackDays)
	require.NoError(t, err)

	assert.ElementsMatch(t, []uint64{1, 2, 3}, fetcher.calls)
	require.Len(t, gstore.blocks, 2)
}

func TestGapFiller_StopsPromptlyOnContextCancel(t *testing.T) {
	gaps := []store.BlockGap{{Start: 1, End: 1000}}
	fetcher := &fakeBlockFetcher{blocks: map[uint64]domain.Block{1: {Height: 1, ChainID: "uni-5"}}}
	gstore := &fakeGapStore{gaps: gaps}
	gf := &GapFiller{ChainID: "uni-5", Store: gstore, Fetcher: fetcher}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := gf.fillOnce(ctx, DefaultLookbackDays)
	require.NoError(t, err)
}

func TestGapFiller_Run_ExitsOnContextCancel(t *testing.T) {
	gstore := &fakeGapStore{}
	fetcher := &fakeBlockFetcher{}
	gf := &GapFiller{ChainID: "uni-5", Store: gstore, Fetcher: fetcher, Interval: time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gf.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not exit after context cancellation")
	}
}

func TestGapFiller_ZeroValueLeavesIntervalAndLookbackUnset(t *testing.T) {
	gf := &GapFiller{}
	assert.Equal(t, time.Duration(0), gf.Interval)
	assert.Equal(t, 0, gf.LookbackDays)
}
