package envelope

import (
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateMachine_SnapshotRoundTrip(t *testing.T) {
	ref := Reference{ID: "env-9", UUID: uuid.New(), Callback: "/submissionEnvelopes/env-9"}
	m := NewStateMachine(ref, zerolog.Nop())
	require.True(t, m.Fire(EventContentAdded))
	require.True(t, m.Fire(EventValidationStarted))

	d1, d2 := uuid.New(), uuid.New()
	m.Documents.SetState(d1, StateValid)
	m.Documents.SetState(d2, StateValidating)
	m.Assays.Reset(5)
	m.Assays.SetComplete("assay-1")
	m.Bundles.Reset(2)

	ext, err := m.MarshalExtendedState()
	require.NoError(t, err)

	restored, err := RestoreStateMachine(ref.UUID, ref.ID, ref.Callback, string(m.State()), ext, zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, m.EnvelopeUUID, restored.EnvelopeUUID)
	assert.Equal(t, m.EnvelopeID, restored.EnvelopeID)
	assert.Equal(t, m.Callback, restored.Callback)
	assert.Equal(t, StateValidating, restored.State())

	docs := restored.Documents.Snapshot()
	assert.Equal(t, StateValid, docs.Documents[d1.String()])
	assert.Equal(t, StateValidating, docs.Documents[d2.String()])
	assert.Equal(t, 1, docs.Completed)

	assert.Equal(t, 5, restored.Assays.Expected())
	assert.Equal(t, 1, restored.Assays.Completed())
	assert.Equal(t, 2, restored.Bundles.Expected())
}

func TestRestoreStateMachine_RejectsUnknownState(t *testing.T) {
	_, err := RestoreStateMachine(uuid.New(), "env-1", "", "LIMBO", nil, zerolog.Nop())
	require.Error(t, err)
}

func TestStateMachine_Reconcile(t *testing.T) {
	t.Run("later external state wins", func(t *testing.T) {
		ref := Reference{ID: "env-1", UUID: uuid.New()}
		m, err := RestoreStateMachine(ref.UUID, ref.ID, "", string(StateSubmitted), nil, zerolog.Nop())
		require.NoError(t, err)

		assert.True(t, m.Reconcile(StateProcessing))
		assert.Equal(t, StateProcessing, m.State())
	})

	t.Run("earlier external state is ignored", func(t *testing.T) {
		ref := Reference{ID: "env-1", UUID: uuid.New()}
		m, err := RestoreStateMachine(ref.UUID, ref.ID, "", string(StateSubmitted), nil, zerolog.Nop())
		require.NoError(t, err)

		assert.False(t, m.Reconcile(StateDraft))
		assert.Equal(t, StateSubmitted, m.State())
	})
}
