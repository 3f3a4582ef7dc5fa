// Package sequencer provides bounded deduplication and windowed reordering
// over a stream of blocks for a single chain. It buffers up to Capacity
// pending heights and emits the smallest once the window is full, giving a
// fixed reorder window of Capacity blocks.
package sequencer

import (
	"container/heap"
	"context"
	"fmt"

	infinity "github.com/Code-Hex/go-infinity-channel"
	"github.com/croncatio/tm-indexer/internal/domain"
	"github.com/croncatio/tm-indexer/internal/provider"
	"github.com/croncatio/tm-indexer/internal/util"
)

// DefaultCapacity is the reorder window size used unless a config
// specifies otherwise.
const DefaultCapacity = 128

// Config configures a Sequencer.
type Config struct {
	// Capacity is the maximum number of pending heights buffered before
	// the smallest is emitted. Must be >= 1.
	Capacity int

	// ChainID labels the window-size gauge.
	ChainID string
}

// Validate checks Config for construction-time failures.
func (c Config) Validate() error {
	if c.Capacity < 1 {
		return fmt.Errorf("sequencer capacity must be >= 1, got %d", c.Capacity)
	}
	return nil
}

// heightHeap is a min-heap of pending heights.
type heightHeap []uint64

func (h heightHeap) Len() int            { return len(h) }
func (h heightHeap) Less(i, j int) bool  { return h[i] < h[j] }
func (h heightHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *heightHeap) Push(x interface{}) { *h = append(*h, x.(uint64)) }
func (h *heightHeap) Pop() interface{} {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

// Sequencer deduplicates and reorders a single chain's block stream.
type Sequencer struct {
	cfg     Config
	pending map[uint64]domain.Block
	heap    heightHeap
	lastOut uint64
	hasLast bool
}

// New constructs a Sequencer from cfg. Returns an error if cfg is invalid.
func New(cfg Config) (*Sequencer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Sequencer{
		cfg:     cfg,
		pending: make(map[uint64]domain.Block, cfg.Capacity),
		heap:    make(heightHeap, 0, cfg.Capacity),
	}, nil
}

// Run reads tagged blocks from in, buffers/reorders them, and writes
// domain.Block values to the returned unbounded channel in ascending height
// order. The returned channel is closed once in is closed and all buffered
// blocks have drained.
func (s *Sequencer) Run(ctx context.Context, in <-chan provider.Tagged) <-chan domain.Block {
	out := infinity.NewChannel[domain.Block]()

	go func() {
		defer out.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case tagged, ok := <-in:
				if !ok {
					s.drain(ctx, out.In())
					return
				}
				s.ingest(tagged)
				s.emitWhileFull(ctx, out.In())
			}
		}
	}()

	return out.Out()
}

// ingest applies the dedup and out-of-order tolerance rules for a single
// incoming block.
func (s *Sequencer) ingest(tagged provider.Tagged) {
	h := tagged.Block.Height

	if s.hasLast && h <= s.lastOut {
		util.RecordSequencerDrop(tagged.Source)
		util.Info("sequencer dropped stale block", "height", h, "last_emitted", s.lastOut, "source", tagged.Source)
		return
	}

	if _, exists := s.pending[h]; exists {
		util.RecordSequencerDrop(tagged.Source)
		util.Info("sequencer dropped duplicate pending block", "height", h, "source", tagged.Source)
		return
	}

	s.pending[h] = tagged.Block
	heap.Push(&s.heap, h)
	util.SetSequencerWindow(s.cfg.ChainID, len(s.pending))
}

// emitWhileFull pops and emits the smallest pending height whenever the
// window has reached capacity.
func (s *Sequencer) emitWhileFull(ctx context.Context, out chan<- domain.Block) {
	for len(s.pending) >= s.cfg.Capacity {
		if !s.emitOne(ctx, out) {
			return
		}
	}
}

// emitOne pops and emits the smallest pending block. Returns false if
// context cancellation interrupted the send.
func (s *Sequencer) emitOne(ctx context.Context, out chan<- domain.Block) bool {
	if len(s.heap) == 0 {
		return false
	}

	h := heap.Pop(&s.heap).(uint64)
	block := s.pending[h]
	delete(s.pending, h)
	s.lastOut = h
	s.hasLast = true
	util.SetSequencerWindow(s.cfg.ChainID, len(s.pending))

	select {
	case out <- block:
		return true
	case <-ctx.Done():
		return false
	}
}

// drain emits all remaining buffered blocks in ascending order once the
// upstream channel has closed.
func (s *Sequencer) drain(ctx context.Context, out chan<- domain.Block) {
	for len(s.heap) > 0 {
		if !s.emitOne(ctx, out) {
			return
		}
	}
}
