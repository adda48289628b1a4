package envelope

import "github.com/google/uuid"

// Reference identifies and locates a submission envelope in the core service.
// CachedState is advisory only: the core service owns the canonical state.
type Reference struct {
	ID          string    `json:"id"`
	UUID        uuid.UUID `json:"uuid"`
	CachedState State     `json:"state,omitempty"`
	Callback    string    `json:"callbackLocation,omitempty"`
}

// DocumentReference identifies and locates a metadata document.
type DocumentReference struct {
	ID       string    `json:"id"`
	UUID     uuid.UUID `json:"uuid"`
	Callback string    `json:"callbackLocation,omitempty"`
}
