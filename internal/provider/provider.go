// Package provider owns the set of active source streams for a chain and
// fans them into a single unbounded output, tagging each block with the
// name of the source that produced it.
package provider

import (
	"context"
	"sync"

	infinity "github.com/Code-Hex/go-infinity-channel"
	"github.com/croncatio/tm-indexer/internal/domain"
	"github.com/croncatio/tm-indexer/internal/source"
	"github.com/croncatio/tm-indexer/internal/util"
)

// Tagged pairs a block with the name of the source that produced it.
type Tagged struct {
	Source string
	Block  domain.Block
}

// System fans in an arbitrary number of named source streams into one
// unbounded output channel. A single source erroring out tears down only
// that source; the system keeps running until every source has ended or
// its context is canceled.
type System struct {
	out *infinity.Channel[Tagged]

	mu      sync.Mutex
	wg      sync.WaitGroup
	sources []source.Source
}

// NewSystem creates an empty provider system.
func NewSystem() *System {
	return &System{out: infinity.NewChannel[Tagged]()}
}

// AddSource registers src with the system. Call before Run.
func (s *System) AddSource(src source.Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources = append(s.sources, src)
}

// Out returns the channel every fanned-in block is delivered on.
func (s *System) Out() <-chan Tagged {
	return s.out.Out()
}

// Run starts one reader goroutine per registered source and blocks until
// all of them have ended or ctx is canceled, then closes the output.
func (s *System) Run(ctx context.Context) {
	s.mu.Lock()
	sources := append([]source.Source(nil), s.sources...)
	s.mu.Unlock()

	for _, src := range sources {
		s.wg.Add(1)
		go s.readSource(ctx, src)
	}

	s.wg.Wait()
	s.out.Close()
}

func (s *System) readSource(ctx context.Context, src source.Source) {
	defer s.wg.Done()

	items := src.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			util.Info("provider source torn down by context cancellation", "source", src.Name())
			return
		case item, ok := <-items:
			if !ok {
				util.Info("provider source ended", "source", src.Name())
				return
			}
			if item.Err != nil {
				util.Warn("provider source failed, tearing down this source only",
					"source", src.Name(),
					"error", item.Err.Error(),
				)
				return
			}
			s.out.In() <- Tagged{Source: src.Name(), Block: item.Block}
		}
	}
}
