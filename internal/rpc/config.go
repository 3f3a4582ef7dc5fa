package rpc

import (
	"fmt"
	"time"
)

// Config holds configuration for a single chain's RPC client.
type Config struct {
	// RPCURL is the Tendermint RPC endpoint (ws:// or http://).
	RPCURL string

	// ConnectionTimeout bounds establishing the client connection.
	ConnectionTimeout time.Duration

	// SubscribeTimeout bounds a single blocking wait for a subscription event.
	SubscribeTimeout time.Duration

	// PollTimeout bounds a single latest-block poll call.
	PollTimeout time.Duration

	// TxSearchTimeout bounds a single tx_search page fetch.
	TxSearchTimeout time.Duration
}

// NewConfig builds a Config for rpcURL with the spec's fixed per-operation timeouts.
func NewConfig(rpcURL string) (*Config, error) {
	if rpcURL == "" {
		return nil, fmt.Errorf("rpc url cannot be empty")
	}

	return &Config{
		RPCURL:            rpcURL,
		ConnectionTimeout: 10 * time.Second,
		SubscribeTimeout:  60 * time.Second,
		PollTimeout:       30 * time.Second,
		TxSearchTimeout:   60 * time.Second,
	}, nil
}
