package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/submission-hub/submission-hub/internal/domain/snapshot"
)

// NewPool creates a pgx connection pool.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	return pgxpool.NewWithConfig(ctx, config)
}

// SnapshotRepository implements snapshot.Store on Postgres.
type SnapshotRepository struct {
	pool *pgxpool.Pool
}

func NewSnapshotRepository(pool *pgxpool.Pool) *SnapshotRepository {
	return &SnapshotRepository{pool: pool}
}

// EnsureSchema creates the snapshot table if it does not exist.
func (r *SnapshotRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS envelope_snapshots (
			envelope_uuid UUID PRIMARY KEY,
			envelope_id TEXT NOT NULL,
			callback TEXT NOT NULL DEFAULT '',
			state TEXT NOT NULL,
			extended_state JSONB,
			version INT NOT NULL,
			persisted_at TIMESTAMPTZ NOT NULL
		)
	`)
	return err
}

func (r *SnapshotRepository) Persist(ctx context.Context, records []snapshot.Record) error {
	var errs []error
	for _, rec := range records {
		_, err := r.pool.Exec(ctx, `
			INSERT INTO envelope_snapshots (envelope_uuid, envelope_id, callback, state, extended_state, version, persisted_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			ON CONFLICT (envelope_uuid) DO UPDATE SET
				envelope_id=EXCLUDED.envelope_id,
				callback=EXCLUDED.callback,
				state=EXCLUDED.state,
				extended_state=EXCLUDED.extended_state,
				version=EXCLUDED.version,
				persisted_at=EXCLUDED.persisted_at
		`, rec.EnvelopeUUID, rec.EnvelopeID, rec.Callback, rec.State, rec.ExtendedState, rec.Version, rec.PersistedAt)
		if err != nil {
			errs = append(errs, fmt.Errorf("persist snapshot %s: %w", rec.EnvelopeUUID, err))
		}
	}
	return errors.Join(errs...)
}

func (r *SnapshotRepository) RetrieveAll(ctx context.Context) ([]snapshot.Record, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT envelope_uuid, envelope_id, callback, state, extended_state, version, persisted_at
		FROM envelope_snapshots
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []snapshot.Record
	for rows.Next() {
		var rec snapshot.Record
		var ext json.RawMessage
		if err := rows.Scan(&rec.EnvelopeUUID, &rec.EnvelopeID, &rec.Callback, &rec.State, &ext, &rec.Version, &rec.PersistedAt); err != nil {
			return nil, err
		}
		rec.ExtendedState = ext
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *SnapshotRepository) Delete(ctx context.Context, ids ...uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx, `DELETE FROM envelope_snapshots WHERE envelope_uuid = ANY($1)`, ids)
	return err
}

func (r *SnapshotRepository) DeleteAll(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM envelope_snapshots`)
	return err
}
