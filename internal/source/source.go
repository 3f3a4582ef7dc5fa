// Package source adapts a single RPC connection into a lazy, infinite
// sequence of domain.Block values. Both adapters share the contract that
// a fatal stream error terminates the sequence; duplicate or out-of-order
// heights are expected downstream and are the sequencer's responsibility.
package source

import (
	"context"

	"github.com/croncatio/tm-indexer/internal/domain"
)

// Item is a single value produced by a Source: either a block or a
// terminal error that ends the stream.
type Item struct {
	Block domain.Block
	Err   error
}

// Source produces a named, infinite sequence of blocks for one chain.
type Source interface {
	// Name identifies this source for logging, metrics, and the
	// provider system's tagging of fanned-in blocks.
	Name() string

	// Run starts producing blocks onto the returned channel until ctx is
	// canceled or a fatal error occurs, at which point the channel is
	// closed (the last Item carries the error, if any).
	Run(ctx context.Context) <-chan Item
}
