package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/croncatio/tm-indexer/internal/db"
	"github.com/croncatio/tm-indexer/internal/domain"
)

// uniqueViolation is the Postgres SQLSTATE for a unique-constraint failure.
const uniqueViolation = "23505"

// Adapter implements the indexer worker's and gap filler's persistence
// needs against a single Postgres pool.
type Adapter struct {
	pool *db.Pool
}

// NewAdapter wraps a connected pool for use by the indexer and gap filler.
func NewAdapter(pool *db.Pool) *Adapter {
	return &Adapter{pool: pool}
}

// InsertBlock inserts a block row keyed by (height, chain_id). A
// unique-violation on that key is swallowed as idempotent success; any
// other error is returned for the caller's retry policy to handle.
func (a *Adapter) InsertBlock(ctx context.Context, block domain.Block) error {
	id := uuid.New()

	_, err := a.pool.Exec(ctx, `
		INSERT INTO block (id, height, time, chain_id, hash, num_txs)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, id, block.Height, block.Time, block.ChainID, block.Hash, block.NumTxs)

	if err != nil {
		if isUniqueViolation(err) {
			slog.Debug("block already indexed, treating as success",
				slog.Uint64("height", block.Height),
				slog.String("chain_id", block.ChainID))
			return nil
		}
		return fmt.Errorf("insert block %d/%s: %w", block.Height, block.ChainID, err)
	}

	return nil
}

// blockID looks up the surrogate UUID of a persisted block by its
// (height, chain_id) identity, needed to satisfy the transaction foreign key.
func (a *Adapter) blockID(ctx context.Context, height uint64, chainID string) (uuid.UUID, error) {
	var id uuid.UUID
	err := a.pool.QueryRow(ctx, `
		SELECT id FROM block WHERE height = $1 AND chain_id = $2
	`, height, chainID).Scan(&id)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("lookup block id for %d/%s: %w", height, chainID, err)
	}
	return id, nil
}

// InsertTransaction inserts a single transaction, resolving its parent
// block's surrogate UUID by (height, chainID) if tx.BlockID is the zero value.
func (a *Adapter) InsertTransaction(ctx context.Context, chainID string, tx domain.Transaction) error {
	blockID := tx.BlockID
	if blockID == (uuid.UUID{}) {
		id, err := a.blockID(ctx, tx.Height, chainID)
		if err != nil {
			return err
		}
		blockID = id
	}

	id := tx.ID
	if id == (uuid.UUID{}) {
		id = uuid.New()
	}

	events, err := encodeEvents(tx.Events)
	if err != nil {
		return fmt.Errorf("encode events for tx %s: %w", tx.Hash, err)
	}

	_, err = a.pool.Exec(ctx, `
		INSERT INTO transaction (id, block_id, height, hash, code, gas_wanted, gas_used, events, log, info)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, id, blockID, tx.Height, tx.Hash, tx.Code, tx.GasWanted, tx.GasUsed, events, tx.Log, tx.Info)

	if err != nil {
		return fmt.Errorf("insert transaction %s for block %d: %w", tx.Hash, tx.Height, err)
	}

	return nil
}

// GetBlockGaps finds contiguous missing height ranges for chainID among
// blocks recorded within the last lookbackDays, by joining each block row
// against the next higher row of the same chain.
func (a *Adapter) GetBlockGaps(ctx context.Context, chainID string, lookbackDays int) ([]BlockGap, error) {
	rows, err := a.pool.Query(ctx, `
		WITH windowed AS (
			SELECT
				height,
				time,
				LEAD(height) OVER (PARTITION BY chain_id ORDER BY height) AS next_height
			FROM block
			WHERE chain_id = $1
			  AND time >= NOW() - ($2 * INTERVAL '1 day')
		)
		SELECT time, height + 1 AS gap_start, next_height - 1 AS gap_end
		FROM windowed
		WHERE next_height IS NOT NULL AND next_height > height + 1
		ORDER BY gap_start
	`, chainID, lookbackDays)
	if err != nil {
		return nil, fmt.Errorf("query block gaps for %s: %w", chainID, err)
	}
	defer rows.Close()

	var gaps []BlockGap
	for rows.Next() {
		var g BlockGap
		if err := rows.Scan(&g.StartTime, &g.Start, &g.End); err != nil {
			return nil, fmt.Errorf("scan block gap for %s: %w", chainID, err)
		}
		gaps = append(gaps, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate block gaps for %s: %w", chainID, err)
	}

	return gaps, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	return false
}
