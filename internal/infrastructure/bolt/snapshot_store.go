package bolt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"github.com/submission-hub/submission-hub/internal/domain/snapshot"
)

var bucketSnapshots = []byte("envelope_snapshots")

// SnapshotStore implements snapshot.Store on an embedded bbolt database.
// Suits single-node deployments where Postgres is not available.
type SnapshotStore struct {
	db *bbolt.DB
}

// Open opens (or creates) the database at path and ensures the bucket exists.
func Open(path string) (*SnapshotStore, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening snapshot database: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSnapshots)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SnapshotStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SnapshotStore) Close() error {
	return s.db.Close()
}

func (s *SnapshotStore) Persist(ctx context.Context, records []snapshot.Record) error {
	var errs []error
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSnapshots)
		for _, r := range records {
			val, err := json.Marshal(r)
			if err != nil {
				errs = append(errs, fmt.Errorf("encode snapshot %s: %w", r.EnvelopeUUID, err))
				continue
			}
			if err := b.Put(r.EnvelopeUUID[:], val); err != nil {
				errs = append(errs, fmt.Errorf("persist snapshot %s: %w", r.EnvelopeUUID, err))
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return errors.Join(errs...)
}

func (s *SnapshotStore) RetrieveAll(ctx context.Context) ([]snapshot.Record, error) {
	var out []snapshot.Record
	var errs []error
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSnapshots)
		return b.ForEach(func(k, v []byte) error {
			var r snapshot.Record
			if err := json.Unmarshal(v, &r); err != nil {
				errs = append(errs, fmt.Errorf("decode snapshot %x: %w", k, err))
				return nil
			}
			out = append(out, r)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, errors.Join(errs...)
}

func (s *SnapshotStore) Delete(ctx context.Context, ids ...uuid.UUID) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSnapshots)
		for _, id := range ids {
			if err := b.Delete(id[:]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SnapshotStore) DeleteAll(ctx context.Context) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketSnapshots); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketSnapshots)
		return err
	})
}
