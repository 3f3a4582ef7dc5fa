package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDiscover(t *testing.T) {
	t.Run("returns empty slice when no configs present", func(t *testing.T) {
		dir := t.TempDir()
		chains, err := Discover(dir)
		require.NoError(t, err)
		assert.Empty(t, chains)
		assert.NotNil(t, chains)
	})

	t.Run("parses a well-formed config", func(t *testing.T) {
		dir := t.TempDir()
		writeConfig(t, dir, "uni.config.yaml", `
name: uni-testnet
chain_id: uni-5
sources:
  - name: "RPC Primary"
    type: websocket
    url: "wss://rpc.example.com:443"
filters:
  - type: "message"
    attributes:
      - key: "action"
        value: "MsgExecuteContract"
`)

		chains, err := Discover(dir)
		require.NoError(t, err)
		require.Len(t, chains, 1)

		chain := chains[0]
		assert.Equal(t, "uni-testnet", chain.Name)
		assert.Equal(t, "uni-5", chain.ChainID)
		require.Len(t, chain.Sources, 1)
		assert.Equal(t, "rpc-primary", chain.Sources[0].Name)
		assert.Equal(t, SourceWebsocket, chain.Sources[0].Type)
		require.Len(t, chain.Filters, 1)
		assert.Equal(t, "message", chain.Filters[0].TypePattern)
	})

	t.Run("accepts chain-id alias", func(t *testing.T) {
		dir := t.TempDir()
		writeConfig(t, dir, "alias.config.yaml", `
name: aliased
chain-id: uni-5
sources:
  - name: primary
    type: ws
    url: "ws://localhost:26657"
`)

		chains, err := Discover(dir)
		require.NoError(t, err)
		require.Len(t, chains, 1)
		assert.Equal(t, "uni-5", chains[0].ChainID)
	})

	t.Run("accepts ws and http source type aliases", func(t *testing.T) {
		dir := t.TempDir()
		writeConfig(t, dir, "aliases.config.yaml", `
name: aliased
chain_id: uni-5
sources:
  - name: a
    type: ws
    url: "ws://localhost:26657"
  - name: b
    type: http
    url: "http://localhost:26657"
`)

		chains, err := Discover(dir)
		require.NoError(t, err)
		require.Len(t, chains, 1)
		require.Len(t, chains[0].Sources, 2)
		assert.Equal(t, SourceWebsocket, chains[0].Sources[0].Type)
		assert.Equal(t, SourcePolling, chains[0].Sources[1].Type)
	})

	t.Run("rejects unknown source type", func(t *testing.T) {
		dir := t.TempDir()
		writeConfig(t, dir, "bad.config.yaml", `
name: bad
chain_id: uni-5
sources:
  - name: a
    type: carrier-pigeon
    url: "http://localhost:26657"
`)

		_, err := Discover(dir)
		assert.Error(t, err)
	})

	t.Run("rejects missing chain_id", func(t *testing.T) {
		dir := t.TempDir()
		writeConfig(t, dir, "bad.config.yaml", `
name: bad
sources:
  - name: a
    type: websocket
    url: "ws://localhost:26657"
`)

		_, err := Discover(dir)
		assert.Error(t, err)
	})

	t.Run("rejects config with no sources", func(t *testing.T) {
		dir := t.TempDir()
		writeConfig(t, dir, "bad.config.yaml", `
name: bad
chain_id: uni-5
sources: []
`)

		_, err := Discover(dir)
		assert.Error(t, err)
	})
}

func TestSourceDisplayName(t *testing.T) {
	cases := []struct {
		name string
		src  Source
		want string
	}{
		{
			name: "explicit port",
			src:  Source{Name: "primary", Type: SourceWebsocket, URL: "wss://rpc.example.com:8080"},
			want: "websocket-primary-rpc.example.com:8080",
		},
		{
			name: "https default port",
			src:  Source{Name: "primary", Type: SourcePolling, URL: "https://rpc.example.com"},
			want: "polling-primary-rpc.example.com:443",
		},
		{
			name: "http default port",
			src:  Source{Name: "primary", Type: SourcePolling, URL: "http://rpc.example.com"},
			want: "polling-primary-rpc.example.com:80",
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, c.src.DisplayName())
		})
	}
}
