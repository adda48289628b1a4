package envelope

import (
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMachine(t *testing.T) *StateMachine {
	t.Helper()
	ref := Reference{ID: "env-1", UUID: uuid.New(), Callback: "/submissionEnvelopes/env-1"}
	return NewStateMachine(ref, zerolog.Nop())
}

func TestStateMachine_FullLifecycle(t *testing.T) {
	m := newTestMachine(t)
	require.Equal(t, StatePending, m.State())

	steps := []struct {
		event Event
		want  State
	}{
		{EventContentAdded, StateDraft},
		{EventValidationStarted, StateValidating},
		{EventDocumentsValid, StateValid},
		{EventSubmissionRequested, StateSubmitted},
		{EventProcessingStarted, StateProcessing},
		{EventCleanupStarted, StateCleanup},
		{EventAllTasksComplete, StateComplete},
	}
	for _, step := range steps {
		require.True(t, m.Fire(step.event), "event %s should be accepted", step.event)
		require.Equal(t, step.want, m.State())
	}
	assert.True(t, m.Terminal())
}

func TestStateMachine_ArchiveExportLegs(t *testing.T) {
	m := newTestMachine(t)
	for _, ev := range []Event{
		EventContentAdded, EventValidationStarted, EventDocumentsValid,
		EventSubmissionRequested, EventProcessingStarted,
	} {
		require.True(t, m.Fire(ev))
	}

	require.True(t, m.Fire(EventArchivingStarted))
	require.Equal(t, StateArchiving, m.State())
	require.True(t, m.Fire(EventArchivingComplete))
	require.True(t, m.Fire(EventExportingStarted))
	require.True(t, m.Fire(EventExportComplete))
	require.Equal(t, StateExported, m.State())
	require.True(t, m.Fire(EventCleanupStarted))
	require.True(t, m.Fire(EventAllTasksComplete))
	assert.True(t, m.Terminal())
}

func TestStateMachine_RejectsIllegalTransition(t *testing.T) {
	m := newTestMachine(t)
	require.True(t, m.Fire(EventContentAdded))
	require.Equal(t, StateDraft, m.State())

	// submission from DRAFT is not legal: rejected, state unchanged, no error
	assert.False(t, m.Fire(EventSubmissionRequested))
	assert.Equal(t, StateDraft, m.State())
}

func TestStateMachine_EditsReopenValidation(t *testing.T) {
	m := newTestMachine(t)
	require.True(t, m.Fire(EventContentAdded))
	require.True(t, m.Fire(EventValidationStarted))
	require.True(t, m.Fire(EventDocumentsValid))
	require.Equal(t, StateValid, m.State())

	require.True(t, m.Fire(EventContentAdded))
	assert.Equal(t, StateDraft, m.State())
}

func TestStateMachine_ProcessingFailedRetries(t *testing.T) {
	m := newTestMachine(t)
	for _, ev := range []Event{
		EventContentAdded, EventValidationStarted, EventDocumentsValid,
		EventSubmissionRequested, EventProcessingStarted,
	} {
		require.True(t, m.Fire(ev))
	}

	require.True(t, m.Fire(EventProcessingFailed))
	assert.Equal(t, StateSubmitted, m.State())
	require.True(t, m.Fire(EventProcessingStarted))
	assert.Equal(t, StateProcessing, m.State())
}

func TestStateMachine_GuardBlocksValidWithInvalidDocuments(t *testing.T) {
	m := newTestMachine(t)
	require.True(t, m.Fire(EventContentAdded))
	require.True(t, m.Fire(EventValidationStarted))

	m.Documents.SetState(uuid.New(), StateValid)
	m.Documents.SetState(uuid.New(), StateInvalid)

	assert.False(t, m.Fire(EventDocumentsValid))
	assert.Equal(t, StateValidating, m.State())

	assert.True(t, m.Fire(EventDocumentsInvalid))
	assert.Equal(t, StateInvalid, m.State())
}

func TestStateMachine_GuardBlocksValidWithPendingDocuments(t *testing.T) {
	m := newTestMachine(t)
	require.True(t, m.Fire(EventContentAdded))
	require.True(t, m.Fire(EventValidationStarted))

	m.Documents.SetState(uuid.New(), StateValid)
	m.Documents.SetState(uuid.New(), StateValidating)

	assert.False(t, m.Fire(EventDocumentsValid))
	assert.Equal(t, StateValidating, m.State())
}

func TestStateMachine_ObserverSeesEveryAcceptedTransition(t *testing.T) {
	m := newTestMachine(t)

	type call struct {
		from, to State
		event    Event
	}
	var calls []call
	m.SetObserver(func(_ *StateMachine, from, to State, ev Event) {
		calls = append(calls, call{from, to, ev})
	})

	require.True(t, m.Fire(EventContentAdded))
	require.False(t, m.Fire(EventSubmissionRequested)) // rejected, no callback
	require.True(t, m.Fire(EventValidationStarted))

	require.Len(t, calls, 2)
	assert.Equal(t, call{StatePending, StateDraft, EventContentAdded}, calls[0])
	assert.Equal(t, call{StateDraft, StateValidating, EventValidationStarted}, calls[1])
}

func TestEvaluateGuard(t *testing.T) {
	t.Run("empty guard passes", func(t *testing.T) {
		ok, err := EvaluateGuard("", nil)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("counter comparison", func(t *testing.T) {
		ok, err := EvaluateGuard("completed >= expected", map[string]interface{}{
			"completed": float64(3), "expected": float64(3),
		})
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("non-boolean result is an error", func(t *testing.T) {
		_, err := EvaluateGuard("1 + 1", nil)
		require.Error(t, err)
	})
}
