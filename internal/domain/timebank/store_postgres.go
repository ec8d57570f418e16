package timebank

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// PostgresStore keeps ledger snapshots as one JSONB row per user.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Load(ctx context.Context, userID uuid.UUID) (*LedgerState, error) {
	var data []byte
	err := s.db.GetContext(ctx, &data, `SELECT state FROM timebank_snapshots WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var state LedgerState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	return &state, nil
}

func (s *PostgresStore) Save(ctx context.Context, userID uuid.UUID, state *LedgerState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO timebank_snapshots (user_id, state, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE SET state = $2, updated_at = now()
	`, userID, data)
	return err
}

// PostgresArchive appends every transaction to an append-only table so full
// history survives eviction from the bounded in-state log.
type PostgresArchive struct {
	db *sqlx.DB
}

func NewPostgresArchive(db *sqlx.DB) *PostgresArchive {
	return &PostgresArchive{db: db}
}

func (a *PostgresArchive) Append(ctx context.Context, userID uuid.UUID, tx Transaction) error {
	meta, err := json.Marshal(tx.Metadata)
	if err != nil {
		return err
	}
	var sourceID interface{}
	if tx.SourceID != "" {
		sourceID = tx.SourceID
	}
	_, err = a.db.ExecContext(ctx, `
		INSERT INTO timebank_transactions (id, user_id, type, amount, balance_after, source_type, source_id, metadata, created_at_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`, tx.ID, userID, string(tx.Type), tx.Amount, tx.BalanceAfter, string(tx.SourceType), sourceID, meta, tx.Timestamp)
	return err
}
