// Package monitor owns the live state machines: one per monitored submission
// envelope, keyed by the envelope UUID. It is the only component that
// creates, mutates, and destroys machines.
package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/submission-hub/submission-hub/internal/domain/envelope"
	"github.com/submission-hub/submission-hub/internal/domain/snapshot"
	"github.com/submission-hub/submission-hub/internal/infrastructure/ingest"
)

const patchTimeout = 10 * time.Second

// Service is the state machine lifecycle manager. The live table mutex is
// scoped to table operations only; core service calls happen outside it.
type Service struct {
	mu       sync.Mutex
	machines map[uuid.UUID]*envelope.StateMachine

	client ingest.Client
	store  snapshot.Store
	logger zerolog.Logger
}

func NewService(client ingest.Client, store snapshot.Store, logger zerolog.Logger) *Service {
	return &Service{
		machines: make(map[uuid.UUID]*envelope.StateMachine),
		client:   client,
		store:    store,
		logger:   logger.With().Str("service", "monitor").Logger(),
	}
}

// Monitor creates and starts a machine for the envelope if none exists.
// Idempotent: monitoring an already-monitored envelope returns the existing
// machine, with no duplicate observer.
func (s *Service) Monitor(ref envelope.Reference) *envelope.StateMachine {
	s.mu.Lock()
	if m, ok := s.machines[ref.UUID]; ok {
		s.mu.Unlock()
		return m
	}
	m := envelope.NewStateMachine(ref, s.logger)
	m.SetObserver(s.onTransition)
	s.machines[ref.UUID] = m
	s.mu.Unlock()

	s.logger.Info().
		Str("envelope_uuid", ref.UUID.String()).
		Str("envelope_id", ref.ID).
		Msg("monitoring envelope")
	return m
}

// Adopt registers a machine rehydrated by recovery. It returns false when a
// machine for the same envelope is already live.
func (s *Service) Adopt(m *envelope.StateMachine) bool {
	s.mu.Lock()
	if _, ok := s.machines[m.EnvelopeUUID]; ok {
		s.mu.Unlock()
		return false
	}
	m.SetObserver(s.onTransition)
	s.machines[m.EnvelopeUUID] = m
	s.mu.Unlock()

	s.logger.Info().
		Str("envelope_uuid", m.EnvelopeUUID.String()).
		Str("state", string(m.State())).
		Msg("resumed monitoring envelope")
	return true
}

// StopMonitoring removes the envelope's machine and drops its durable
// snapshot. A missing machine is logged, not an error: there is nothing for
// the caller to do about it.
func (s *Service) StopMonitoring(envelopeUUID uuid.UUID) {
	s.mu.Lock()
	_, ok := s.machines[envelopeUUID]
	delete(s.machines, envelopeUUID)
	s.mu.Unlock()

	if !ok {
		s.logger.Debug().
			Str("envelope_uuid", envelopeUUID.String()).
			Msg("no machine to stop")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), patchTimeout)
	defer cancel()
	if err := s.store.Delete(ctx, envelopeUUID); err != nil {
		s.logger.Warn().Err(err).
			Str("envelope_uuid", envelopeUUID.String()).
			Msg("failed to delete snapshot")
	}
	s.logger.Info().
		Str("envelope_uuid", envelopeUUID.String()).
		Msg("stopped monitoring envelope")
}

// StopMonitoringMachine removes a machine by identity. A different live
// machine under the same UUID is left alone.
func (s *Service) StopMonitoringMachine(m *envelope.StateMachine) {
	s.mu.Lock()
	live, ok := s.machines[m.EnvelopeUUID]
	if ok && live != m {
		s.mu.Unlock()
		s.logger.Debug().
			Str("envelope_uuid", m.EnvelopeUUID.String()).
			Msg("machine identity mismatch, not stopping")
		return
	}
	s.mu.Unlock()
	if ok {
		s.StopMonitoring(m.EnvelopeUUID)
	}
}

// FindMachine looks up a live machine.
func (s *Service) FindMachine(envelopeUUID uuid.UUID) (*envelope.StateMachine, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.machines[envelopeUUID]
	return m, ok
}

// Machines returns a copy of the live machine set.
func (s *Service) Machines() []*envelope.StateMachine {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*envelope.StateMachine, 0, len(s.machines))
	for _, m := range s.machines {
		out = append(out, m)
	}
	return out
}

// SendEvent delivers an event to the named machine and reports whether the
// machine accepted the transition. Events illegal in the current state are
// rejected quietly.
func (s *Service) SendEvent(envelopeUUID uuid.UUID, ev envelope.Event) bool {
	m, ok := s.FindMachine(envelopeUUID)
	if !ok {
		s.logger.Warn().
			Str("envelope_uuid", envelopeUUID.String()).
			Str("event", string(ev)).
			Msg("event for unmonitored envelope ignored")
		return false
	}
	return m.Fire(ev)
}

// NotifyDocumentState records a document's latest validation state on the
// envelope's tracker and synthesizes the derived envelope event the update
// implies. Updates for unmonitored envelopes are logged and ignored.
func (s *Service) NotifyDocumentState(doc envelope.DocumentReference, env envelope.Reference, newState envelope.State) {
	m, ok := s.FindMachine(env.UUID)
	if !ok {
		s.logger.Warn().
			Str("envelope_uuid", env.UUID.String()).
			Str("document_uuid", doc.UUID.String()).
			Msg("document update for unmonitored envelope ignored")
		return
	}
	m.Documents.SetState(doc.UUID, newState)

	switch newState {
	case envelope.StateDraft:
		m.Fire(envelope.EventContentAdded)
	case envelope.StateValidating:
		m.Fire(envelope.EventValidationStarted)
	case envelope.StateInvalid:
		m.Fire(envelope.EventDocumentsInvalid)
	case envelope.StateValid:
		// one decisive envelope-level signal once every document is valid
		if m.Documents.AllValid() {
			m.Fire(envelope.EventDocumentsValid)
		}
	}
}

// TrackProcessing records that a constituent of the envelope started
// processing, revising the expected total when the message carries a new one.
func (s *Service) TrackProcessing(envelopeUUID uuid.UUID, constituentID string, total int) {
	m, ok := s.FindMachine(envelopeUUID)
	if !ok {
		s.logger.Warn().
			Str("envelope_uuid", envelopeUUID.String()).
			Str("constituent_id", constituentID).
			Msg("progress update for unmonitored envelope ignored")
		return
	}
	t := s.trackerFor(m)
	if total > 0 && total != t.Expected() {
		t.Reset(total)
	}
	t.SetProcessing(constituentID)
}

// TrackCompleted records a constituent's completion and, when this update is
// the one that completes the set, synthesizes the envelope-level event:
// processing progress drives archiving, cleanup progress ends the lifecycle.
func (s *Service) TrackCompleted(envelopeUUID uuid.UUID, constituentID string, total int) {
	m, ok := s.FindMachine(envelopeUUID)
	if !ok {
		s.logger.Warn().
			Str("envelope_uuid", envelopeUUID.String()).
			Str("constituent_id", constituentID).
			Msg("progress update for unmonitored envelope ignored")
		return
	}
	t := s.trackerFor(m)
	if total > 0 && total != t.Expected() {
		t.Reset(total)
	}
	if !t.SetComplete(constituentID) {
		return
	}
	switch m.State() {
	case envelope.StateProcessing:
		m.Fire(envelope.EventArchivingStarted)
	case envelope.StateCleanup:
		m.Fire(envelope.EventAllTasksComplete)
	}
}

// trackerFor picks the tracker the envelope's current stage feeds: cleanup
// progress counts bundles, everything earlier counts assays.
func (s *Service) trackerFor(m *envelope.StateMachine) *envelope.ProgressTracker {
	if m.State() == envelope.StateCleanup {
		return m.Bundles
	}
	return m.Assays
}

// TrackerSnapshot is the diagnostics read: the envelope's document tracker
// contents, or not-found when no machine is live.
func (s *Service) TrackerSnapshot(envelopeUUID uuid.UUID) (envelope.DocumentSnapshot, bool) {
	m, ok := s.FindMachine(envelopeUUID)
	if !ok {
		return envelope.DocumentSnapshot{}, false
	}
	return m.Documents.Snapshot(), true
}

// onTransition runs synchronously in the worker lane that fired the event:
// it mirrors the new state to the core service and retires terminal machines.
func (s *Service) onTransition(m *envelope.StateMachine, from, to envelope.State, ev envelope.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), patchTimeout)
	defer cancel()
	if err := s.client.PatchEnvelopeState(ctx, m.Reference(), to); err != nil {
		if errors.Is(err, ingest.ErrNotFound) {
			s.logger.Info().
				Str("envelope_uuid", m.EnvelopeUUID.String()).
				Msg("envelope gone from core service, stopping monitor")
			s.StopMonitoring(m.EnvelopeUUID)
			return
		}
		s.logger.Error().Err(err).
			Str("envelope_uuid", m.EnvelopeUUID.String()).
			Str("state", string(to)).
			Msg("failed to patch envelope state")
	}
	if to.Terminal() {
		s.StopMonitoring(m.EnvelopeUUID)
	}
}
