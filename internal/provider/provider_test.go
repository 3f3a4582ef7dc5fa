package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/croncatio/tm-indexer/internal/domain"
	"github.com/croncatio/tm-indexer/internal/source"
	"github.com/stretchr/testify/assert"
)

type fakeSource struct {
	name  string
	items chan source.Item
}

func newFakeSource(name string) *fakeSource {
	return &fakeSource{name: name, items: make(chan source.Item, 8)}
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Run(ctx context.Context) <-chan source.Item {
	return f.items
}

func TestSystem(t *testing.T) {
	t.Run("fans in blocks from multiple sources tagged by name", func(t *testing.T) {
		sys := NewSystem()

		a := newFakeSource("ws-a")
		b := newFakeSource("ws-b")
		sys.AddSource(a)
		sys.AddSource(b)

		a.items <- source.Item{Block: domain.Block{Height: 1}}
		b.items <- source.Item{Block: domain.Block{Height: 2}}
		close(a.items)
		close(b.items)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		done := make(chan struct{})
		go func() {
			sys.Run(ctx)
			close(done)
		}()

		seen := map[string]uint64{}
		timeout := time.After(time.Second)
	collect:
		for len(seen) < 2 {
			select {
			case tagged, ok := <-sys.Out():
				if !ok {
					break collect
				}
				seen[tagged.Source] = tagged.Block.Height
			case <-timeout:
				break collect
			}
		}

		assert.Equal(t, uint64(1), seen["ws-a"])
		assert.Equal(t, uint64(2), seen["ws-b"])

		<-done
	})

	t.Run("one source's error tears down only that source", func(t *testing.T) {
		sys := NewSystem()

		healthy := newFakeSource("ws-healthy")
		failing := newFakeSource("ws-failing")
		sys.AddSource(healthy)
		sys.AddSource(failing)

		failing.items <- source.Item{Err: errors.New("stream ended")}
		close(failing.items)
		healthy.items <- source.Item{Block: domain.Block{Height: 10}}
		close(healthy.items)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		done := make(chan struct{})
		go func() {
			sys.Run(ctx)
			close(done)
		}()

		select {
		case tagged := <-sys.Out():
			assert.Equal(t, "ws-healthy", tagged.Source)
			assert.Equal(t, uint64(10), tagged.Block.Height)
		case <-time.After(time.Second):
			t.Fatal("expected a block from the healthy source")
		}

		<-done
	})

	t.Run("terminates when context is canceled", func(t *testing.T) {
		sys := NewSystem()
		sys.AddSource(newFakeSource("ws-idle"))

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			sys.Run(ctx)
			close(done)
		}()

		cancel()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("system did not terminate after context cancellation")
		}
	})
}
