package monitor

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/submission-hub/submission-hub/internal/domain/envelope"
	"github.com/submission-hub/submission-hub/internal/domain/snapshot"
	"github.com/submission-hub/submission-hub/internal/infrastructure/ingest"
	ingestMocks "github.com/submission-hub/submission-hub/internal/infrastructure/ingest/mocks"
	"github.com/submission-hub/submission-hub/internal/infrastructure/memory"
)

func newTestService(t *testing.T) (*Service, *ingestMocks.MockClient, *memory.SnapshotStore) {
	t.Helper()
	ctrl := gomock.NewController(t)
	client := ingestMocks.NewMockClient(ctrl)
	store := memory.NewSnapshotStore()
	return NewService(client, store, zerolog.Nop()), client, store
}

func envRef() envelope.Reference {
	return envelope.Reference{ID: "env-1", UUID: uuid.New(), Callback: "/submissionEnvelopes/env-1"}
}

func TestService_MonitorIsIdempotent(t *testing.T) {
	svc, client, _ := newTestService(t)
	ref := envRef()

	m1 := svc.Monitor(ref)
	m2 := svc.Monitor(ref)
	assert.Same(t, m1, m2)
	assert.Len(t, svc.Machines(), 1)

	// exactly one observer fires per transition, never one per Monitor call
	client.EXPECT().
		PatchEnvelopeState(gomock.Any(), gomock.Any(), envelope.StateDraft).
		Return(nil).
		Times(1)
	assert.True(t, svc.SendEvent(ref.UUID, envelope.EventContentAdded))
}

func TestService_SendEvent(t *testing.T) {
	t.Run("unmonitored envelope", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		assert.False(t, svc.SendEvent(uuid.New(), envelope.EventContentAdded))
	})

	t.Run("illegal transition rejected without side effects", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		ref := envRef()
		m := svc.Monitor(ref)

		// no PatchEnvelopeState expected: the machine never transitions
		assert.False(t, svc.SendEvent(ref.UUID, envelope.EventSubmissionRequested))
		assert.Equal(t, envelope.StatePending, m.State())
	})
}

func TestService_StopMonitoring(t *testing.T) {
	svc, _, store := newTestService(t)
	ref := envRef()
	svc.Monitor(ref)
	require.NoError(t, store.Persist(context.Background(), []snapshot.Record{{
		EnvelopeUUID: ref.UUID, EnvelopeID: ref.ID, State: "PENDING", Version: 1,
	}}))

	svc.StopMonitoring(ref.UUID)

	_, ok := svc.FindMachine(ref.UUID)
	assert.False(t, ok)
	records, err := store.RetrieveAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records, "stopping must drop the durable snapshot")

	// absence is not an error
	svc.StopMonitoring(ref.UUID)
}

func TestService_TerminalStateRetiresMachine(t *testing.T) {
	svc, client, _ := newTestService(t)
	ref := envRef()
	svc.Monitor(ref)

	client.EXPECT().
		PatchEnvelopeState(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil).
		AnyTimes()

	for _, ev := range []envelope.Event{
		envelope.EventContentAdded,
		envelope.EventValidationStarted,
		envelope.EventDocumentsValid,
		envelope.EventSubmissionRequested,
		envelope.EventProcessingStarted,
		envelope.EventCleanupStarted,
		envelope.EventAllTasksComplete,
	} {
		require.True(t, svc.SendEvent(ref.UUID, ev), "event %s", ev)
	}

	_, ok := svc.FindMachine(ref.UUID)
	assert.False(t, ok, "machine must be gone after COMPLETE")
}

func TestService_EnvelopeGoneStopsMonitoring(t *testing.T) {
	svc, client, _ := newTestService(t)
	ref := envRef()
	svc.Monitor(ref)

	client.EXPECT().
		PatchEnvelopeState(gomock.Any(), gomock.Any(), envelope.StateDraft).
		Return(ingest.ErrNotFound)

	require.True(t, svc.SendEvent(ref.UUID, envelope.EventContentAdded))
	_, ok := svc.FindMachine(ref.UUID)
	assert.False(t, ok, "a 404 from the core service means the envelope is gone")
}

func TestService_NotifyDocumentState(t *testing.T) {
	t.Run("all documents valid fires one envelope event", func(t *testing.T) {
		svc, client, _ := newTestService(t)
		ref := envRef()
		m := svc.Monitor(ref)

		client.EXPECT().PatchEnvelopeState(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
		require.True(t, svc.SendEvent(ref.UUID, envelope.EventContentAdded))
		require.True(t, svc.SendEvent(ref.UUID, envelope.EventValidationStarted))
		m.Documents.Reset(2)

		d1 := envelope.DocumentReference{ID: "doc-1", UUID: uuid.New()}
		d2 := envelope.DocumentReference{ID: "doc-2", UUID: uuid.New()}

		svc.NotifyDocumentState(d1, ref, envelope.StateValid)
		assert.Equal(t, envelope.StateValidating, m.State(), "one of two documents is not decisive")

		svc.NotifyDocumentState(d2, ref, envelope.StateValid)
		assert.Equal(t, envelope.StateValid, m.State())
	})

	t.Run("invalid document fires documents-invalid", func(t *testing.T) {
		svc, client, _ := newTestService(t)
		ref := envRef()
		m := svc.Monitor(ref)

		client.EXPECT().PatchEnvelopeState(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
		require.True(t, svc.SendEvent(ref.UUID, envelope.EventContentAdded))
		require.True(t, svc.SendEvent(ref.UUID, envelope.EventValidationStarted))

		svc.NotifyDocumentState(envelope.DocumentReference{ID: "doc-1", UUID: uuid.New()}, ref, envelope.StateInvalid)
		assert.Equal(t, envelope.StateInvalid, m.State())
	})

	t.Run("draft document reopens editing", func(t *testing.T) {
		svc, client, _ := newTestService(t)
		ref := envRef()
		m := svc.Monitor(ref)

		client.EXPECT().PatchEnvelopeState(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
		require.True(t, svc.SendEvent(ref.UUID, envelope.EventContentAdded))
		require.True(t, svc.SendEvent(ref.UUID, envelope.EventValidationStarted))
		require.True(t, svc.SendEvent(ref.UUID, envelope.EventDocumentsValid))
		require.Equal(t, envelope.StateValid, m.State())

		svc.NotifyDocumentState(envelope.DocumentReference{ID: "doc-1", UUID: uuid.New()}, ref, envelope.StateDraft)
		assert.Equal(t, envelope.StateDraft, m.State())
	})

	t.Run("unmonitored envelope is ignored", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		svc.NotifyDocumentState(
			envelope.DocumentReference{ID: "doc-1", UUID: uuid.New()},
			envRef(),
			envelope.StateValid,
		)
	})
}

func TestService_ProcessingProgressDrivesArchiving(t *testing.T) {
	svc, client, _ := newTestService(t)
	ref := envRef()
	m := svc.Monitor(ref)

	client.EXPECT().PatchEnvelopeState(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	for _, ev := range []envelope.Event{
		envelope.EventContentAdded,
		envelope.EventValidationStarted,
		envelope.EventDocumentsValid,
		envelope.EventSubmissionRequested,
		envelope.EventProcessingStarted,
	} {
		require.True(t, svc.SendEvent(ref.UUID, ev))
	}

	svc.TrackProcessing(ref.UUID, "assay-1", 3)
	svc.TrackProcessing(ref.UUID, "assay-2", 3)
	svc.TrackProcessing(ref.UUID, "assay-3", 3)

	svc.TrackCompleted(ref.UUID, "assay-1", 3)
	svc.TrackCompleted(ref.UUID, "assay-2", 3)
	assert.Equal(t, envelope.StateProcessing, m.State())

	svc.TrackCompleted(ref.UUID, "assay-3", 3)
	assert.Equal(t, envelope.StateArchiving, m.State(), "completing the set triggers archiving")
}

func TestService_CleanupProgressCompletesEnvelope(t *testing.T) {
	svc, client, _ := newTestService(t)
	ref := envRef()
	m := svc.Monitor(ref)

	client.EXPECT().PatchEnvelopeState(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	for _, ev := range []envelope.Event{
		envelope.EventContentAdded,
		envelope.EventValidationStarted,
		envelope.EventDocumentsValid,
		envelope.EventSubmissionRequested,
		envelope.EventProcessingStarted,
		envelope.EventCleanupStarted,
	} {
		require.True(t, svc.SendEvent(ref.UUID, ev))
	}
	require.Equal(t, envelope.StateCleanup, m.State())

	svc.TrackProcessing(ref.UUID, "bundle-1", 2)
	svc.TrackCompleted(ref.UUID, "bundle-1", 2)
	require.Equal(t, envelope.StateCleanup, m.State())

	svc.TrackCompleted(ref.UUID, "bundle-2", 2)
	_, ok := svc.FindMachine(ref.UUID)
	assert.False(t, ok, "cleanup completion ends the lifecycle and retires the machine")
}

func TestService_TrackerSnapshot(t *testing.T) {
	svc, _, _ := newTestService(t)
	ref := envRef()
	m := svc.Monitor(ref)

	d := uuid.New()
	m.Documents.SetState(d, envelope.StateValidating)

	snap, ok := svc.TrackerSnapshot(ref.UUID)
	require.True(t, ok)
	assert.Equal(t, envelope.StateValidating, snap.Documents[d.String()])

	_, ok = svc.TrackerSnapshot(uuid.New())
	assert.False(t, ok)
}
