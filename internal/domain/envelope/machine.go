package envelope

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// transitions is the canonical lifecycle table. There is exactly one state
// set and one event set; the historical narrow subsets are folded in.
var transitions = map[State]map[Event]State{
	StatePending: {
		EventContentAdded: StateDraft,
	},
	StateDraft: {
		EventValidationStarted: StateValidating,
	},
	StateValidating: {
		EventDocumentsValid:   StateValid,
		EventDocumentsInvalid: StateInvalid,
	},
	StateValid: {
		EventContentAdded:        StateDraft,
		EventSubmissionRequested: StateSubmitted,
	},
	StateInvalid: {
		EventContentAdded: StateDraft,
	},
	StateSubmitted: {
		EventProcessingStarted: StateProcessing,
	},
	StateProcessing: {
		EventProcessingFailed: StateSubmitted,
		EventArchivingStarted: StateArchiving,
		EventCleanupStarted:   StateCleanup,
	},
	StateArchiving: {
		EventArchivingComplete: StateArchived,
	},
	StateArchived: {
		EventExportingStarted: StateExporting,
	},
	StateExporting: {
		EventExportComplete: StateExported,
	},
	StateExported: {
		EventCleanupStarted: StateCleanup,
	},
	StateCleanup: {
		EventAllTasksComplete: StateComplete,
	},
	StateComplete: {},
}

type guardKey struct {
	from  State
	event Event
}

// defaultGuards gate transitions on the machine's extended state. Validation
// outcomes must agree with the document tracker.
var defaultGuards = map[guardKey]string{
	{StateValidating, EventDocumentsValid}:   "documentsCompleted >= documentsExpected && !anyInvalid",
	{StateCleanup, EventAllTasksComplete}:    "bundlesCompleted >= bundlesExpected",
	{StateProcessing, EventArchivingStarted}: "assaysCompleted >= assaysExpected",
}

// Observer is invoked synchronously on every accepted transition, within the
// worker lane that fired the event.
type Observer func(m *StateMachine, from, to State, ev Event)

// StateMachine tracks one submission envelope's lifecycle. The lifecycle
// manager is its sole owner; events for a given envelope all arrive on one
// worker lane, so Fire never races with itself.
type StateMachine struct {
	EnvelopeUUID uuid.UUID
	EnvelopeID   string
	Callback     string

	mu    sync.RWMutex
	state State

	Documents *DocumentTracker
	Assays    *ProgressTracker
	Bundles   *ProgressTracker

	observer Observer
	guards   map[guardKey]string
	logger   zerolog.Logger
}

// NewStateMachine creates a machine in PENDING for the referenced envelope.
func NewStateMachine(ref Reference, logger zerolog.Logger) *StateMachine {
	return &StateMachine{
		EnvelopeUUID: ref.UUID,
		EnvelopeID:   ref.ID,
		Callback:     ref.Callback,
		state:        StatePending,
		Documents:    NewDocumentTracker(0),
		Assays:       NewProgressTracker(0),
		Bundles:      NewProgressTracker(0),
		guards:       defaultGuards,
		logger:       logger.With().Str("envelope_uuid", ref.UUID.String()).Logger(),
	}
}

// SetObserver registers the transition observer. At most one observer is
// registered, at creation time, before any event is fired.
func (m *StateMachine) SetObserver(obs Observer) {
	m.observer = obs
}

// State returns the current lifecycle state.
func (m *StateMachine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Terminal reports whether the machine reached its terminal state.
func (m *StateMachine) Terminal() bool {
	return m.State().Terminal()
}

// Fire delivers an event. It returns whether the transition was accepted:
// an event with no matching transition in the current state, or whose guard
// rejects, is not an error, just non-accepted.
func (m *StateMachine) Fire(ev Event) bool {
	m.mu.Lock()
	from := m.state
	to, ok := transitions[from][ev]
	if !ok {
		m.mu.Unlock()
		m.logger.Debug().
			Str("state", string(from)).
			Str("event", string(ev)).
			Msg("event not legal in current state")
		return false
	}
	if guard, ok := m.guards[guardKey{from, ev}]; ok {
		pass, err := EvaluateGuard(guard, m.guardParams())
		if err != nil {
			m.mu.Unlock()
			m.logger.Warn().Err(err).Str("guard", guard).Msg("guard evaluation failed")
			return false
		}
		if !pass {
			m.mu.Unlock()
			m.logger.Debug().
				Str("state", string(from)).
				Str("event", string(ev)).
				Msg("guard rejected transition")
			return false
		}
	}
	m.state = to
	m.mu.Unlock()

	m.logger.Info().
		Str("from", string(from)).
		Str("to", string(to)).
		Str("event", string(ev)).
		Msg("envelope transitioned")

	if m.observer != nil {
		m.observer(m, from, to, ev)
	}
	return true
}

// forceState overrides the current state without firing the observer. Used
// only by recovery reconciliation, where the core service's reported state
// wins over the persisted one.
func (m *StateMachine) forceState(st State) {
	m.mu.Lock()
	m.state = st
	m.mu.Unlock()
}

func (m *StateMachine) guardParams() map[string]interface{} {
	// govaluate arithmetic is float64
	return map[string]interface{}{
		"documentsExpected":  float64(m.Documents.Expected()),
		"documentsCompleted": float64(m.Documents.Completed()),
		"anyInvalid":         m.Documents.AnyInvalid(),
		"assaysExpected":     float64(m.Assays.Expected()),
		"assaysCompleted":    float64(m.Assays.Completed()),
		"bundlesExpected":    float64(m.Bundles.Expected()),
		"bundlesCompleted":   float64(m.Bundles.Completed()),
	}
}

// Reference rebuilds the envelope reference this machine was created from,
// with the current state as the advisory cached state.
func (m *StateMachine) Reference() Reference {
	return Reference{
		ID:          m.EnvelopeID,
		UUID:        m.EnvelopeUUID,
		CachedState: m.State(),
		Callback:    m.Callback,
	}
}
