package source

import (
	"context"

	"github.com/croncatio/tm-indexer/internal/rpc"
	"github.com/croncatio/tm-indexer/internal/util"
)

// WSSource subscribes to a node's "new block" websocket event stream.
// Events without a block payload, or 60s of silence, are fatal to the
// stream — the caller (the provider system) tears this source down and
// the outer supervisor decides whether to reconnect.
type WSSource struct {
	name   string
	client rpc.Client
}

// NewWSSource builds a websocket-backed Source named name, fronting client.
func NewWSSource(name string, client rpc.Client) *WSSource {
	return &WSSource{name: name, client: client}
}

// Name implements Source.
func (s *WSSource) Name() string { return s.name }

// Run implements Source.
func (s *WSSource) Run(ctx context.Context) <-chan Item {
	out := make(chan Item)

	go func() {
		defer close(out)

		events, err := s.client.Subscribe(ctx)
		if err != nil {
			util.Error("websocket source failed to subscribe", "source", s.name, "error", err.Error())
			out <- Item{Err: err}
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				if ev.Err != nil {
					util.Error("websocket source stream ended", "source", s.name, "error", ev.Err.Error())
					out <- Item{Err: ev.Err}
					return
				}
				out <- Item{Block: ev.Block}
			}
		}
	}()

	return out
}
