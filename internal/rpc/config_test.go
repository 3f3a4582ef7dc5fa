package rpc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	t.Run("builds config with fixed timeouts", func(t *testing.T) {
		cfg, err := NewConfig("http://localhost:26657")
		require.NoError(t, err)

		assert.Equal(t, "http://localhost:26657", cfg.RPCURL)
		assert.Equal(t, 10*time.Second, cfg.ConnectionTimeout)
		assert.Equal(t, 60*time.Second, cfg.SubscribeTimeout)
		assert.Equal(t, 30*time.Second, cfg.PollTimeout)
		assert.Equal(t, 60*time.Second, cfg.TxSearchTimeout)
	})

	t.Run("rejects empty url", func(t *testing.T) {
		_, err := NewConfig("")
		assert.Error(t, err)
	})
}
