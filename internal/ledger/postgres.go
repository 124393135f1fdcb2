package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresJournal appends confirmed transactions to PostgreSQL for auditing.
// It is write-only: ledger state is always rebuilt from the seed on start.
type PostgresJournal struct {
	db *pgxpool.Pool
}

// NewPostgresJournal constructs a Postgres-backed journal.
func NewPostgresJournal(db *pgxpool.Pool) *PostgresJournal {
	return &PostgresJournal{db: db}
}

// EnsureSchema creates the journal table when missing.
func (j *PostgresJournal) EnsureSchema(ctx context.Context) error {
	_, err := j.db.Exec(ctx, `CREATE TABLE IF NOT EXISTS ledger_journal (
        id            UUID PRIMARY KEY,
        from_account  TEXT NOT NULL,
        to_account    TEXT NOT NULL,
        from_label    TEXT NOT NULL,
        to_label      TEXT NOT NULL,
        amount        NUMERIC NOT NULL,
        kind          TEXT NOT NULL,
        block_height  BIGINT NOT NULL,
        status        TEXT NOT NULL,
        gas_fee       NUMERIC NOT NULL,
        parameters    JSONB NOT NULL DEFAULT '{}'::jsonb,
        created_at    TIMESTAMPTZ NOT NULL
    )`)
	if err != nil {
		return fmt.Errorf("create ledger_journal: %w", err)
	}
	return nil
}

// Record inserts the transaction. Replays of the same id are ignored.
func (j *PostgresJournal) Record(ctx context.Context, tx Transaction) error {
	id, err := uuid.Parse(tx.ID)
	if err != nil {
		return fmt.Errorf("journal id: %w", err)
	}
	params, err := json.Marshal(tx.Parameters)
	if err != nil {
		return fmt.Errorf("journal parameters: %w", err)
	}
	_, err = j.db.Exec(ctx, `INSERT INTO ledger_journal
        (id, from_account, to_account, from_label, to_label, amount, kind, block_height, status, gas_fee, parameters, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
        ON CONFLICT (id) DO NOTHING`,
		id, tx.FromID, tx.ToID, tx.From, tx.To, tx.Amount.String(), string(tx.Type),
		int64(tx.BlockHeight), tx.Status, tx.GasFee.String(), params, tx.Timestamp.UTC())
	return err
}
