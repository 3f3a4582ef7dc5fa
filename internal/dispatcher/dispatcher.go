// Package dispatcher fans a single sequenced block stream out to any
// number of subscribers through bounded, lossy broadcast channels. A slow
// subscriber loses its oldest buffered block rather than blocking the
// whole pipeline; the indexer worker treats gaps this causes as normal,
// since the gap filler recovers them later.
package dispatcher

import (
	"context"
	"sync"

	"github.com/croncatio/tm-indexer/internal/domain"
	"github.com/croncatio/tm-indexer/internal/util"
)

// BufferSize is the fixed capacity of each subscriber's buffer.
const BufferSize = 512

// Dispatcher reads sequenced blocks and broadcasts them to subscribers.
type Dispatcher struct {
	mu          sync.Mutex
	subscribers map[string]chan domain.Block
}

// New creates an empty Dispatcher.
func New() *Dispatcher {
	return &Dispatcher{subscribers: make(map[string]chan domain.Block)}
}

// Subscribe registers a new subscriber under name and returns its receive
// channel. name keys Unsubscribe and labels drop metrics and logs; it must
// be unique.
func (d *Dispatcher) Subscribe(name string) <-chan domain.Block {
	d.mu.Lock()
	defer d.mu.Unlock()

	ch := make(chan domain.Block, BufferSize)
	d.subscribers[name] = ch
	return ch
}

// Unsubscribe removes and closes a subscriber's channel.
func (d *Dispatcher) Unsubscribe(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if ch, ok := d.subscribers[name]; ok {
		close(ch)
		delete(d.subscribers, name)
	}
}

// Run reads from in and broadcasts every block to all current
// subscribers until in is closed or ctx is canceled, then closes every
// subscriber channel.
func (d *Dispatcher) Run(ctx context.Context, in <-chan domain.Block) {
	defer d.closeAll()

	for {
		select {
		case <-ctx.Done():
			return
		case block, ok := <-in:
			if !ok {
				return
			}
			d.broadcast(block)
		}
	}
}

// broadcast delivers block to every subscriber, evicting the oldest
// buffered block from any subscriber whose buffer is full.
func (d *Dispatcher) broadcast(block domain.Block) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for name, ch := range d.subscribers {
		select {
		case ch <- block:
		default:
			select {
			case <-ch:
				util.RecordDispatcherDrop(name)
				util.Warn("dispatcher subscriber buffer full, dropped oldest block", "subscriber", name)
			default:
			}
			select {
			case ch <- block:
			default:
				util.RecordDispatcherDrop(name)
				util.Warn("dispatcher subscriber buffer still full after eviction, dropping new block", "subscriber", name)
			}
		}
	}
}

func (d *Dispatcher) closeAll() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for name, ch := range d.subscribers {
		close(ch)
		delete(d.subscribers, name)
	}
}
