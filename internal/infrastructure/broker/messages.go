package broker

// Inbound message payloads, one per routing key. Field names follow the core
// service's JSON contract.

// EnvelopeCreatedMessage announces a new submission envelope to monitor.
type EnvelopeCreatedMessage struct {
	Type     string `json:"type"`
	ID       string `json:"id"`
	UUID     string `json:"uuid"`
	Callback string `json:"callbackLocation"`
}

// StateUpdateRequestMessage asks the tracker to drive an envelope toward a
// requested lifecycle state.
type StateUpdateRequestMessage struct {
	ID             string `json:"id"`
	UUID           string `json:"uuid"`
	Callback       string `json:"callbackLocation"`
	RequestedState string `json:"requestedState"`
}

// DocumentStateUpdatedMessage reports a metadata document's new validation
// state.
type DocumentStateUpdatedMessage struct {
	Type            string `json:"type"`
	ID              string `json:"id"`
	UUID            string `json:"uuid"`
	Callback        string `json:"callbackLocation"`
	ValidationState string `json:"validationState"`
	EnvelopeID      string `json:"envelopeId"`
}

// DocumentProgressMessage reports a constituent of an envelope starting or
// finishing work, with the expected total for the set.
type DocumentProgressMessage struct {
	DocumentID   string `json:"documentId"`
	EnvelopeUUID string `json:"envelopeUuid"`
	Index        int    `json:"index"`
	Total        int    `json:"total"`
}
