package envelope

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// extendedState is the versioned serialized form of a machine's trackers.
type extendedState struct {
	Documents DocumentSnapshot `json:"documents"`
	Assays    ProgressSnapshot `json:"assays"`
	Bundles   ProgressSnapshot `json:"bundles"`
}

// MarshalExtendedState serializes the machine's trackers for persistence.
func (m *StateMachine) MarshalExtendedState() (json.RawMessage, error) {
	ext := extendedState{
		Documents: m.Documents.Snapshot(),
		Assays:    m.Assays.Snapshot(),
		Bundles:   m.Bundles.Snapshot(),
	}
	return json.Marshal(ext)
}

// RestoreStateMachine reconstructs a machine from persisted parts. The
// returned machine has no observer; the lifecycle manager installs one when
// it adopts the machine.
func RestoreStateMachine(envUUID uuid.UUID, envID, callback, state string, ext json.RawMessage, logger zerolog.Logger) (*StateMachine, error) {
	st, err := ParseState(state)
	if err != nil {
		return nil, err
	}
	m := NewStateMachine(Reference{ID: envID, UUID: envUUID, Callback: callback}, logger)
	m.forceState(st)
	if len(ext) > 0 {
		var parsed extendedState
		if err := json.Unmarshal(ext, &parsed); err != nil {
			return nil, fmt.Errorf("decode extended state: %w", err)
		}
		if err := m.Documents.restore(parsed.Documents); err != nil {
			return nil, fmt.Errorf("restore document tracker: %w", err)
		}
		m.Assays.restore(parsed.Assays)
		m.Bundles.restore(parsed.Bundles)
	}
	return m, nil
}

// Reconcile folds the core service's externally-reported state into a
// restored machine. The core service wins only when its state is
// chronologically after the persisted one, and only during recovery.
func (m *StateMachine) Reconcile(external State) bool {
	if !external.After(m.State()) {
		return false
	}
	m.forceState(external)
	return true
}
