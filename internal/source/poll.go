package source

import (
	"context"
	"time"

	"github.com/croncatio/tm-indexer/internal/rpc"
	"github.com/croncatio/tm-indexer/internal/util"
)

// PollSource repeatedly fetches the latest block on a fixed period.
// Duplicate heights across successive polls are expected; the sequencer
// discards them.
type PollSource struct {
	name   string
	client rpc.Client
	period time.Duration
}

// NewPollSource builds a polling Source named name, fronting client and
// polling every period.
func NewPollSource(name string, client rpc.Client, period time.Duration) *PollSource {
	return &PollSource{name: name, client: client, period: period}
}

// Name implements Source.
func (s *PollSource) Name() string { return s.name }

// Run implements Source.
func (s *PollSource) Run(ctx context.Context) <-chan Item {
	out := make(chan Item)

	go func() {
		defer close(out)

		ticker := time.NewTicker(s.period)
		defer ticker.Stop()

		for {
			block, err := s.client.LatestBlock(ctx)
			if err != nil {
				util.Error("polling source failed to fetch latest block", "source", s.name, "error", err.Error())
				select {
				case out <- Item{Err: err}:
				case <-ctx.Done():
				}
				return
			}

			select {
			case out <- Item{Block: block}:
			case <-ctx.Done():
				return
			}

			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
