// Package domain holds the types shared across every pipeline stage:
// source adapters, the provider system, the sequencer, the dispatcher,
// the indexer worker and the gap filler all speak Block/Transaction.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// RawBlock is the opaque Tendermint block payload a Block carries only
// to derive NumTxs from; nothing downstream of the sequencer inspects it.
type RawBlock struct {
	Txs [][]byte
}

// Block is the domain representation of a single block on a single chain.
// Identity in the pipeline is Height; identity in storage is (Height, ChainID).
type Block struct {
	Height  uint64
	ChainID string
	Time    time.Time
	Hash    string
	NumTxs  uint64
	Payload *RawBlock
}

// Event is a typed, key-value-attributed message emitted by transaction execution.
type Event struct {
	Type       string
	Attributes []Attribute
}

// Attribute is a single key/value pair on an Event.
type Attribute struct {
	Key   string
	Value string
}

// Transaction is the domain representation of a single transaction within a block.
type Transaction struct {
	ID        uuid.UUID
	BlockID   uuid.UUID
	Height    uint64
	Hash      string
	Code      uint32
	GasWanted string
	GasUsed   string
	Events    []Event
	Log       string
	Info      string
}
