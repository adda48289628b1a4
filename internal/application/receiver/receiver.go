// Package receiver turns inbound broker messages into lifecycle manager
// operations, routing every operation through the worker lane owned by its
// envelope so per-envelope ordering holds, and passing document updates
// through the windowed buffer so bursts coalesce.
package receiver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/submission-hub/submission-hub/internal/application/monitor"
	"github.com/submission-hub/submission-hub/internal/domain/envelope"
	"github.com/submission-hub/submission-hub/internal/infrastructure/buffer"
	"github.com/submission-hub/submission-hub/internal/infrastructure/dispatch"
	"github.com/submission-hub/submission-hub/internal/infrastructure/ingest"
)

const resolveTimeout = 10 * time.Second

// DocumentUpdate is a buffered document state change, resolved before
// buffering so the flush path stays off the network.
type DocumentUpdate struct {
	Document envelope.DocumentReference
	Envelope envelope.Reference
	State    envelope.State
}

// Receiver handles inbound messages. A returned error means the message can
// never succeed and must be rejected without requeue.
type Receiver struct {
	pool    *dispatch.Pool
	updates *buffer.Buffer[DocumentUpdate]
	monitor *monitor.Service
	client  ingest.Client
	logger  zerolog.Logger
}

func New(pool *dispatch.Pool, mon *monitor.Service, client ingest.Client, window time.Duration, logger zerolog.Logger) *Receiver {
	r := &Receiver{
		pool:    pool,
		monitor: mon,
		client:  client,
		logger:  logger.With().Str("service", "receiver").Logger(),
	}
	r.updates = buffer.New(window, r.applyDocumentUpdate, logger)
	return r
}

// Updates exposes the windowed buffer so the flush ticker can drive it.
func (r *Receiver) Updates() *buffer.Buffer[DocumentUpdate] { return r.updates }

// EnvelopeCreated begins monitoring the new envelope.
func (r *Receiver) EnvelopeCreated(ref envelope.Reference) error {
	r.pool.Submit(ref.UUID.String(), func() {
		r.monitor.Monitor(ref)
	})
	return nil
}

// StateUpdateRequested derives the event that drives toward the requested
// state and delivers it. An unknown state string fails fast: the message can
// never succeed. A legal-but-rejected transition is only logged.
func (r *Receiver) StateUpdateRequested(ref envelope.Reference, requestedState string) error {
	st, err := envelope.ParseState(requestedState)
	if err != nil {
		return err
	}
	ev, err := envelope.EventForState(st)
	if err != nil {
		return err
	}
	r.pool.Submit(ref.UUID.String(), func() {
		r.monitor.Monitor(ref)
		if !r.monitor.SendEvent(ref.UUID, ev) {
			r.logger.Info().
				Str("envelope_uuid", ref.UUID.String()).
				Str("requested_state", string(st)).
				Str("event", string(ev)).
				Msg("requested state transition not accepted")
		}
	})
	return nil
}

// DocumentStateUpdated resolves the document's envelope against the core
// service, then buffers the update for the delay window. Resolution happens
// here, on the consumer's thread, so a failing core call rejects the message
// instead of poisoning a worker lane.
func (r *Receiver) DocumentStateUpdated(doc envelope.DocumentReference, validationState string) error {
	st, err := envelope.ParseState(validationState)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()
	env, err := r.client.ResolveEnvelopeForDocument(ctx, doc.UUID)
	if err != nil {
		if errors.Is(err, ingest.ErrNotFound) {
			r.logger.Info().
				Str("document_uuid", doc.UUID.String()).
				Msg("document or its envelope gone from core service, dropping update")
			return nil
		}
		return fmt.Errorf("resolve envelope for document %s: %w", doc.UUID, err)
	}
	r.updates.Add(DocumentUpdate{Document: doc, Envelope: *env, State: st})
	return nil
}

// applyDocumentUpdate is the buffer's flush handler: it hands the coalesced
// update to the envelope's lane.
func (r *Receiver) applyDocumentUpdate(u DocumentUpdate) {
	r.pool.Submit(u.Envelope.UUID.String(), func() {
		r.monitor.NotifyDocumentState(u.Document, u.Envelope, u.State)
	})
}

// DocumentProcessing records a constituent starting work.
func (r *Receiver) DocumentProcessing(envelopeUUID uuid.UUID, constituentID string, total int) error {
	r.pool.Submit(envelopeUUID.String(), func() {
		r.monitor.TrackProcessing(envelopeUUID, constituentID, total)
	})
	return nil
}

// DocumentCompleted records a constituent finishing work.
func (r *Receiver) DocumentCompleted(envelopeUUID uuid.UUID, constituentID string, total int) error {
	r.pool.Submit(envelopeUUID.String(), func() {
		r.monitor.TrackCompleted(envelopeUUID, constituentID, total)
	})
	return nil
}
