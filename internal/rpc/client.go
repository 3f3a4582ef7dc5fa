package rpc

import (
	"context"
	"fmt"
	"strings"
	"time"

	rpchttp "github.com/cometbft/cometbft/rpc/client/http"
	coretypes "github.com/cometbft/cometbft/rpc/core/types"
	tmtypes "github.com/cometbft/cometbft/types"
	"github.com/croncatio/tm-indexer/internal/domain"
	"github.com/croncatio/tm-indexer/internal/util"
)

// newBlockQuery is the subscription query for the "new block" event.
const newBlockQuery = "tm.event='NewBlock'"

const subscriberName = "tm-indexer"

// BlockEvent is a single item delivered by Client.Subscribe: either a
// decoded block or a terminal error that ends the subscription.
type BlockEvent struct {
	Block domain.Block
	Err   error
}

// Client is the RPC surface the source adapters, indexer worker and gap
// filler consume. It wraps a single Tendermint-compatible node connection.
type Client interface {
	// Subscribe opens a "new block" event subscription. The returned
	// channel is closed when the subscription ends (context cancellation,
	// receive timeout, or a fatal transport error); the last BlockEvent
	// before close carries the terminal error, if any.
	Subscribe(ctx context.Context) (<-chan BlockEvent, error)

	// LatestBlock fetches the chain's current head block.
	LatestBlock(ctx context.Context) (domain.Block, error)

	// Block fetches the block at a specific height.
	Block(ctx context.Context, height uint64) (domain.Block, error)

	// TxSearch fetches one page of transactions for a block height.
	// Returns the page's transactions and the total transaction count
	// reported by the node for that height.
	TxSearch(ctx context.Context, height uint64, page int) ([]domain.Transaction, int, error)

	// Close releases the underlying connection.
	Close() error
}

// cometClient implements Client against cometbft/cometbft's rpc/client/http.
type cometClient struct {
	http    *rpchttp.HTTP
	config  *Config
	chainID string
}

// NewClient dials config.RPCURL and returns a Client. chainID only labels
// the connection's log lines; decoded blocks carry the chain id from their
// own header.
func NewClient(config *Config, chainID string) (Client, error) {
	if config == nil {
		return nil, fmt.Errorf("rpc config cannot be nil")
	}

	util.Info("connecting to tendermint rpc",
		"chain_id", chainID,
		"url_length", len(config.RPCURL),
	)

	httpClient, err := rpchttp.New(config.RPCURL, "/websocket")
	if err != nil {
		util.RecordRPCError(errorTypeToMetricsLabel(ErrConnect))
		util.Error("failed to construct rpc client", "error", err.Error())
		return nil, NewTypedRPCError(ErrConnect, "failed to construct rpc client", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.ConnectionTimeout)
	defer cancel()

	if err := httpClient.Start(ctx); err != nil {
		util.RecordRPCError(errorTypeToMetricsLabel(ErrConnect))
		util.Error("failed to start rpc client", "error", err.Error())
		return nil, NewTypedRPCError(ErrConnect, "failed to start rpc client", err)
	}

	util.Info("connected to tendermint rpc", "chain_id", chainID)

	return &cometClient{http: httpClient, config: config, chainID: chainID}, nil
}

// Close implements Client.
func (c *cometClient) Close() error {
	if c.http == nil {
		return nil
	}
	if err := c.http.Stop(); err != nil {
		return err
	}
	util.Info("rpc client connection closed", "chain_id", c.chainID)
	return nil
}

// Subscribe implements Client.
func (c *cometClient) Subscribe(ctx context.Context) (<-chan BlockEvent, error) {
	sub, err := c.http.Subscribe(ctx, subscriberName, newBlockQuery)
	if err != nil {
		util.RecordRPCError(errorTypeToMetricsLabel(ErrSubscribe))
		return nil, NewTypedRPCError(ErrSubscribe, "subscribe to new block event rejected", err)
	}

	out := make(chan BlockEvent)

	go func() {
		defer close(out)
		defer func() {
			unsubCtx, cancel := context.WithTimeout(context.Background(), c.config.ConnectionTimeout)
			defer cancel()
			_ = c.http.Unsubscribe(unsubCtx, subscriberName, newBlockQuery)
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case result, ok := <-sub:
				if !ok {
					return
				}
				block, err := decodeNewBlockEvent(result)
				if err != nil {
					util.RecordRPCError(errorTypeToMetricsLabel(ErrEventWithoutBlock))
					out <- BlockEvent{Err: err}
					return
				}
				out <- BlockEvent{Block: block}
			case <-time.After(c.config.SubscribeTimeout):
				util.RecordRPCError(errorTypeToMetricsLabel(ErrTimeout))
				out <- BlockEvent{Err: NewTypedRPCError(ErrTimeout, "no new block event within subscribe timeout", nil)}
				return
			}
		}
	}()

	return out, nil
}

func decodeNewBlockEvent(result coretypes.ResultEvent) (domain.Block, error) {
	data, ok := result.Data.(tmtypes.EventDataNewBlock)
	if !ok || data.Block == nil {
		return domain.Block{}, NewTypedRPCError(ErrEventWithoutBlock, "new block event carried no block payload", nil)
	}
	return blockFromTM(data.Block), nil
}

// LatestBlock implements Client.
func (c *cometClient) LatestBlock(ctx context.Context) (domain.Block, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.config.PollTimeout)
	defer cancel()

	result, err := c.http.Block(reqCtx, nil)
	if err != nil {
		util.RecordRPCError(errorTypeToMetricsLabel(classifyError(err)))
		return domain.Block{}, NewRPCError("failed to fetch latest block", err)
	}
	if result.Block == nil {
		return domain.Block{}, NewTypedRPCError(ErrTransport, "latest block response carried no block", nil)
	}

	return blockFromTM(result.Block), nil
}

// Block implements Client.
func (c *cometClient) Block(ctx context.Context, height uint64) (domain.Block, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.config.PollTimeout)
	defer cancel()

	h := int64(height)
	result, err := c.http.Block(reqCtx, &h)
	if err != nil {
		util.RecordRPCError(errorTypeToMetricsLabel(classifyError(err)))
		return domain.Block{}, NewRPCError(fmt.Sprintf("failed to fetch block at height %d", height), err)
	}
	if result.Block == nil {
		return domain.Block{}, NewTypedRPCError(ErrTransport, "block response carried no block", nil)
	}

	return blockFromTM(result.Block), nil
}

// TxSearch implements Client.
func (c *cometClient) TxSearch(ctx context.Context, height uint64, page int) ([]domain.Transaction, int, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.config.TxSearchTimeout)
	defer cancel()

	query := fmt.Sprintf("tx.height=%d", height)
	prove := true
	perPage := 100
	order := "asc"

	result, err := c.http.TxSearch(reqCtx, query, prove, &page, &perPage, order)
	if err != nil {
		util.RecordRPCError(errorTypeToMetricsLabel(classifyError(err)))
		return nil, 0, NewRPCError(fmt.Sprintf("tx_search failed for height %d page %d", height, page), err)
	}

	txs := make([]domain.Transaction, 0, len(result.Txs))
	for _, rt := range result.Txs {
		txs = append(txs, transactionFromTM(rt, height))
	}

	return txs, result.TotalCount, nil
}

func blockFromTM(b *tmtypes.Block) domain.Block {
	txs := make([][]byte, len(b.Data.Txs))
	for i, tx := range b.Data.Txs {
		txs[i] = []byte(tx)
	}

	return domain.Block{
		Height:  uint64(b.Height),
		ChainID: b.Header.ChainID,
		Time:    b.Time,
		Hash:    strings.ToLower(b.Hash().String()),
		NumTxs:  uint64(len(b.Data.Txs)),
		Payload: &domain.RawBlock{
			Txs: txs,
		},
	}
}

func transactionFromTM(rt *coretypes.ResultTx, height uint64) domain.Transaction {
	events := make([]domain.Event, 0, len(rt.TxResult.Events))
	for _, ev := range rt.TxResult.Events {
		attrs := make([]domain.Attribute, 0, len(ev.Attributes))
		for _, a := range ev.Attributes {
			attrs = append(attrs, domain.Attribute{Key: a.Key, Value: a.Value})
		}
		events = append(events, domain.Event{Type: ev.Type, Attributes: attrs})
	}

	return domain.Transaction{
		Height:    height,
		Hash:      strings.ToLower(rt.Hash.String()),
		Code:      rt.TxResult.Code,
		GasWanted: fmt.Sprintf("%d", rt.TxResult.GasWanted),
		GasUsed:   fmt.Sprintf("%d", rt.TxResult.GasUsed),
		Events:    events,
		Log:       rt.TxResult.Log,
		Info:      rt.TxResult.Info,
	}
}
