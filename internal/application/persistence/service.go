// Package persistence keeps the live machine set durable across restarts and
// reconciles recovered machines against the core service, which stays
// authoritative for final envelope state.
package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/submission-hub/submission-hub/internal/application/monitor"
	"github.com/submission-hub/submission-hub/internal/domain/envelope"
	"github.com/submission-hub/submission-hub/internal/domain/snapshot"
	"github.com/submission-hub/submission-hub/internal/infrastructure/ingest"
)

// Service snapshots live machines on a schedule and restores them on startup.
type Service struct {
	store   snapshot.Store
	monitor *monitor.Service
	client  ingest.Client
	logger  zerolog.Logger
}

func NewService(store snapshot.Store, mon *monitor.Service, client ingest.Client, logger zerolog.Logger) *Service {
	return &Service{
		store:   store,
		monitor: mon,
		client:  client,
		logger:  logger.With().Str("service", "persistence").Logger(),
	}
}

// PersistAll snapshots every live machine. A failure for one machine is
// logged and the batch continues; the returned count is machines snapshotted.
func (s *Service) PersistAll(ctx context.Context) int {
	machines := s.monitor.Machines()
	records := make([]snapshot.Record, 0, len(machines))
	now := time.Now().UTC()
	for _, m := range machines {
		ext, err := m.MarshalExtendedState()
		if err != nil {
			s.logger.Error().Err(err).
				Str("envelope_uuid", m.EnvelopeUUID.String()).
				Msg("failed to serialize machine, skipping")
			continue
		}
		records = append(records, snapshot.Record{
			EnvelopeUUID:  m.EnvelopeUUID,
			EnvelopeID:    m.EnvelopeID,
			Callback:      m.Callback,
			State:         string(m.State()),
			ExtendedState: ext,
			Version:       snapshot.CurrentVersion,
			PersistedAt:   now,
		})
	}
	if len(records) == 0 {
		return 0
	}
	if err := s.store.Persist(ctx, records); err != nil {
		s.logger.Error().Err(err).Msg("snapshot batch had failures")
	}
	s.logger.Debug().Int("machines", len(records)).Msg("persisted live machines")
	return len(records)
}

// Load restores machines from the durable store. Each snapshot is resolved
// against the core service first: a not-found envelope means the snapshot is
// stale, so it is deleted and not resumed. When the core service reports a
// state chronologically after the persisted one, the machine resumes at the
// reported state. Failures are per-snapshot, never fatal to the rest.
func (s *Service) Load(ctx context.Context) int {
	records, err := s.store.RetrieveAll(ctx)
	if err != nil {
		if records == nil {
			s.logger.Error().Err(err).Msg("failed to read snapshot store")
			return 0
		}
		s.logger.Warn().Err(err).Msg("some snapshots were unreadable, recovering the rest")
	}

	resumed := 0
	for _, rec := range records {
		ref, err := s.client.ResolveEnvelope(ctx, rec.EnvelopeUUID)
		if err != nil {
			if errors.Is(err, ingest.ErrNotFound) {
				s.logger.Info().
					Str("envelope_uuid", rec.EnvelopeUUID.String()).
					Msg("persisted envelope gone from core service, deleting snapshot")
				if derr := s.store.Delete(ctx, rec.EnvelopeUUID); derr != nil {
					s.logger.Warn().Err(derr).
						Str("envelope_uuid", rec.EnvelopeUUID.String()).
						Msg("failed to delete stale snapshot")
				}
				continue
			}
			s.logger.Error().Err(err).
				Str("envelope_uuid", rec.EnvelopeUUID.String()).
				Msg("could not resolve persisted envelope, skipping")
			continue
		}

		m, err := envelope.RestoreStateMachine(rec.EnvelopeUUID, rec.EnvelopeID, rec.Callback, rec.State, rec.ExtendedState, s.logger)
		if err != nil {
			s.logger.Error().Err(err).
				Str("envelope_uuid", rec.EnvelopeUUID.String()).
				Msg("could not rehydrate machine, skipping")
			continue
		}
		if ref.Callback != "" {
			m.Callback = ref.Callback
		}
		if ref.CachedState != "" && m.Reconcile(ref.CachedState) {
			s.logger.Info().
				Str("envelope_uuid", rec.EnvelopeUUID.String()).
				Str("persisted", rec.State).
				Str("reported", string(ref.CachedState)).
				Msg("core service state is later, advancing machine")
		}
		if m.Terminal() {
			// finished while this service was down: nothing to resume
			if derr := s.store.Delete(ctx, rec.EnvelopeUUID); derr != nil {
				s.logger.Warn().Err(derr).
					Str("envelope_uuid", rec.EnvelopeUUID.String()).
					Msg("failed to delete completed snapshot")
			}
			continue
		}
		if s.monitor.Adopt(m) {
			resumed++
		}
	}
	s.logger.Info().Int("resumed", resumed).Int("snapshots", len(records)).Msg("recovery complete")
	return resumed
}
