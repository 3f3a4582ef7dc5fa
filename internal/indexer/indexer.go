package indexer

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"

	"github.com/croncatio/tm-indexer/internal/domain"
	"github.com/croncatio/tm-indexer/internal/filter"
	"github.com/croncatio/tm-indexer/internal/rpc"
	"github.com/croncatio/tm-indexer/internal/util"
)

// BlockStore is the persistence surface ProcessBlock needs: inserting a
// block row and its transactions. internal/store.Adapter implements this.
type BlockStore interface {
	InsertBlock(ctx context.Context, block domain.Block) error
	InsertTransaction(ctx context.Context, chainID string, tx domain.Transaction) error
}

// Fetcher is the RPC surface ProcessBlock needs to paginate a block's
// transactions. rpc.Client implements this.
type Fetcher interface {
	TxSearch(ctx context.Context, height uint64, page int) ([]domain.Transaction, int, error)
}

// errEmptyPage signals tx_search returned zero transactions before
// num_txs was reached; spec.md §4.5 treats this as retryable.
var errEmptyPage = rpc.NewTypedRPCError(rpc.ErrEmptyPage, "no transactions found from RPC for block with transactions", nil)

// ProcessBlock runs the per-block indexing routine spec.md §4.5 describes:
// a chain-id guard, an idempotent block insert under the block-level retry
// policy, and (when the block carries transactions) a paginated tx fetch,
// filter, and insert under the tx-level retry policy.
func ProcessBlock(ctx context.Context, store BlockStore, fetcher Fetcher, filters *filter.Set, chainID string, block domain.Block) error {
	if block.ChainID != chainID {
		util.Warn("block chain_id mismatch, skipping",
			"expected_chain_id", chainID,
			"block_chain_id", block.ChainID,
			"height", block.Height)
		return nil
	}

	insertErr := backoff.Retry(func() error {
		return store.InsertBlock(ctx, block)
	}, backoff.WithContext(blockBackOff(), ctx))
	if insertErr != nil {
		return fmt.Errorf("insert block %d after retries: %w", block.Height, insertErr)
	}

	util.RecordBlockIndexed(chainID)

	if block.NumTxs == 0 {
		return nil
	}

	return indexTransactions(ctx, store, fetcher, filters, chainID, block)
}

// indexTransactions fetches, filters, and persists a block's transactions
// under the tx-level retry policy.
func indexTransactions(ctx context.Context, store BlockStore, fetcher Fetcher, filters *filter.Set, chainID string, block domain.Block) error {
	var txs []domain.Transaction

	fetchErr := backoff.Retry(func() error {
		accumulated, err := fetchAllPages(ctx, fetcher, block.Height, block.NumTxs)
		if err != nil {
			return err
		}
		txs = accumulated
		return nil
	}, backoff.WithContext(txBackOff(), ctx))
	if fetchErr != nil {
		return fmt.Errorf("fetch transactions for block %d after retries: %w", block.Height, fetchErr)
	}

	for _, tx := range txs {
		if filters != nil && !filters.Matches(tx) {
			continue
		}

		if err := store.InsertTransaction(ctx, chainID, tx); err != nil {
			return fmt.Errorf("insert transaction %s for block %d: %w", tx.Hash, block.Height, err)
		}
		util.RecordTxIndexed(chainID, 1)
	}

	return nil
}

// fetchAllPages pages through tx_search(height, page, size=100, ascending)
// until the accumulated count reaches numTxs. An empty page before that
// point is a retryable error.
func fetchAllPages(ctx context.Context, fetcher Fetcher, height uint64, numTxs uint64) ([]domain.Transaction, error) {
	var accumulated []domain.Transaction
	page := 1

	for uint64(len(accumulated)) < numTxs {
		txs, _, err := fetcher.TxSearch(ctx, height, page)
		if err != nil {
			return nil, err
		}

		if len(txs) == 0 {
			return nil, errEmptyPage
		}

		accumulated = append(accumulated, txs...)
		page++
	}

	return accumulated, nil
}

// IsPermanent reports whether err is a rpc.RPCError whose type is not
// retryable, used by callers deciding whether to surface a terminal error
// immediately rather than let the retry budget run out.
func IsPermanent(err error) bool {
	var rpcErr *rpc.RPCError
	if errors.As(err, &rpcErr) {
		return !rpcErr.Type.Retryable()
	}
	return false
}
