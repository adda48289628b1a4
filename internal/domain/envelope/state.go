package envelope

import (
	"fmt"
	"strings"
)

// State represents envelope lifecycle state.
type State string

const (
	StatePending    State = "PENDING"
	StateDraft      State = "DRAFT"
	StateValidating State = "VALIDATING"
	StateValid      State = "VALID"
	StateInvalid    State = "INVALID"
	StateSubmitted  State = "SUBMITTED"
	StateProcessing State = "PROCESSING"
	StateArchiving  State = "ARCHIVING"
	StateArchived   State = "ARCHIVED"
	StateExporting  State = "EXPORTING"
	StateExported   State = "EXPORTED"
	StateCleanup    State = "CLEANUP"
	StateComplete   State = "COMPLETE"
)

// stateOrder defines the chronological ordering of the lifecycle. VALID and
// INVALID share an ordinal: they are alternative outcomes of validation, not
// successive stages.
var stateOrder = map[State]int{
	StatePending:    0,
	StateDraft:      1,
	StateValidating: 2,
	StateValid:      3,
	StateInvalid:    3,
	StateSubmitted:  4,
	StateProcessing: 5,
	StateArchiving:  6,
	StateArchived:   7,
	StateExporting:  8,
	StateExported:   9,
	StateCleanup:    10,
	StateComplete:   11,
}

// ParseState maps a state string to a State. Unknown strings are an error:
// a message naming a state outside the known set can never succeed.
func ParseState(s string) (State, error) {
	st := State(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := stateOrder[st]; !ok {
		return "", fmt.Errorf("unrecognized envelope state: %q", s)
	}
	return st, nil
}

// After reports whether s is chronologically after other in the lifecycle.
func (s State) After(other State) bool {
	return stateOrder[s] > stateOrder[other]
}

// Terminal reports whether the state ends monitoring.
func (s State) Terminal() bool {
	return s == StateComplete
}

// Event represents an envelope lifecycle event.
type Event string

const (
	EventContentAdded        Event = "CONTENT_ADDED"
	EventValidationStarted   Event = "VALIDATION_STARTED"
	EventDocumentsValid      Event = "DOCUMENTS_VALID"
	EventDocumentsInvalid    Event = "DOCUMENTS_INVALID"
	EventSubmissionRequested Event = "SUBMISSION_REQUESTED"
	EventProcessingStarted   Event = "PROCESSING_STARTED"
	EventProcessingFailed    Event = "PROCESSING_FAILED"
	EventArchivingStarted    Event = "ARCHIVING_STARTED"
	EventArchivingComplete   Event = "ARCHIVING_COMPLETE"
	EventExportingStarted    Event = "EXPORTING_STARTED"
	EventExportComplete      Event = "EXPORT_COMPLETE"
	EventCleanupStarted      Event = "CLEANUP_STARTED"
	EventAllTasksComplete    Event = "ALL_TASKS_COMPLETE"
)

var knownEvents = map[Event]struct{}{
	EventContentAdded:        {},
	EventValidationStarted:   {},
	EventDocumentsValid:      {},
	EventDocumentsInvalid:    {},
	EventSubmissionRequested: {},
	EventProcessingStarted:   {},
	EventProcessingFailed:    {},
	EventArchivingStarted:    {},
	EventArchivingComplete:   {},
	EventExportingStarted:    {},
	EventExportComplete:      {},
	EventCleanupStarted:      {},
	EventAllTasksComplete:    {},
}

// ParseEvent maps an event string to an Event. Unknown strings are an error.
func ParseEvent(s string) (Event, error) {
	ev := Event(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := knownEvents[ev]; !ok {
		return "", fmt.Errorf("unrecognized envelope event: %q", s)
	}
	return ev, nil
}

// eventForState maps a requested target state to the event that drives the
// machine toward it.
var eventForState = map[State]Event{
	StateDraft:      EventContentAdded,
	StateValidating: EventValidationStarted,
	StateValid:      EventDocumentsValid,
	StateInvalid:    EventDocumentsInvalid,
	StateSubmitted:  EventSubmissionRequested,
	StateProcessing: EventProcessingStarted,
	StateArchiving:  EventArchivingStarted,
	StateArchived:   EventArchivingComplete,
	StateExporting:  EventExportingStarted,
	StateExported:   EventExportComplete,
	StateCleanup:    EventCleanupStarted,
	StateComplete:   EventAllTasksComplete,
}

// EventForState derives the event that requests a transition to the target
// state. Requesting PENDING has no driving event and is an error.
func EventForState(target State) (Event, error) {
	ev, ok := eventForState[target]
	if !ok {
		return "", fmt.Errorf("no event drives envelope state %s", target)
	}
	return ev, nil
}
