package snapshot

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// CurrentVersion is the snapshot record format version.
const CurrentVersion = 1

// Record is an opaque, versioned serialization of one envelope state machine:
// enough to reconstruct an equivalent machine on recovery.
type Record struct {
	EnvelopeUUID  uuid.UUID       `json:"envelopeUuid"`
	EnvelopeID    string          `json:"envelopeId"`
	Callback      string          `json:"callbackLocation,omitempty"`
	State         string          `json:"state"`
	ExtendedState json.RawMessage `json:"extendedState,omitempty"`
	Version       int             `json:"version"`
	PersistedAt   time.Time       `json:"persistedAt"`
}

// Store is a durable store for machine snapshots, keyed by envelope UUID.
// Persist overwrites existing records for the same key. Implementations keep
// going past individual record failures and report them joined.
type Store interface {
	Persist(ctx context.Context, records []Record) error
	RetrieveAll(ctx context.Context) ([]Record, error)
	Delete(ctx context.Context, ids ...uuid.UUID) error
	DeleteAll(ctx context.Context) error
}
