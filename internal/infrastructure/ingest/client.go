// Package ingest talks to the core service that owns canonical envelope and
// document state. This service mirrors that state, it never overrides it.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/submission-hub/submission-hub/internal/domain/envelope"
)

// ErrNotFound marks a referenced entity that no longer exists in the core
// service. Callers stop monitoring and drop stale snapshots on this error;
// any other failure means the message that triggered the call is rejected
// without requeue.
var ErrNotFound = errors.New("ingest: resource not found")

// Client resolves entity references against the core service and patches
// envelope state.
type Client interface {
	ResolveEnvelope(ctx context.Context, envelopeUUID uuid.UUID) (*envelope.Reference, error)
	ResolveDocument(ctx context.Context, documentUUID uuid.UUID) (*envelope.DocumentReference, error)
	// ResolveEnvelopeForDocument follows the document's envelope link.
	ResolveEnvelopeForDocument(ctx context.Context, documentUUID uuid.UUID) (*envelope.Reference, error)
	PatchEnvelopeState(ctx context.Context, ref envelope.Reference, state envelope.State) error
}

// HTTPClient implements Client over the core service's REST API, traversing
// self links where the API exposes them.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	logger  zerolog.Logger
}

func NewHTTPClient(baseURL string, timeout time.Duration, logger zerolog.Logger) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With().Str("service", "ingest-client").Logger(),
	}
}

type envelopeResource struct {
	ID              string `json:"id"`
	UUID            string `json:"uuid"`
	SubmissionState string `json:"submissionState"`
	Links           links  `json:"_links"`
}

type documentResource struct {
	ID    string `json:"id"`
	UUID  string `json:"uuid"`
	Links links  `json:"_links"`
}

type links struct {
	Self     link `json:"self"`
	Envelope link `json:"submissionEnvelope"`
}

type link struct {
	Href string `json:"href"`
}

func (c *HTTPClient) ResolveEnvelope(ctx context.Context, envelopeUUID uuid.UUID) (*envelope.Reference, error) {
	url := fmt.Sprintf("%s/submissionEnvelopes/%s", c.baseURL, envelopeUUID)
	var res envelopeResource
	if err := c.getJSON(ctx, url, &res); err != nil {
		return nil, err
	}
	return envelopeRefFromResource(res)
}

func (c *HTTPClient) ResolveDocument(ctx context.Context, documentUUID uuid.UUID) (*envelope.DocumentReference, error) {
	url := fmt.Sprintf("%s/metadataDocuments/%s", c.baseURL, documentUUID)
	var res documentResource
	if err := c.getJSON(ctx, url, &res); err != nil {
		return nil, err
	}
	id, err := uuid.Parse(res.UUID)
	if err != nil {
		return nil, fmt.Errorf("document %s: malformed uuid in response: %w", documentUUID, err)
	}
	return &envelope.DocumentReference{ID: res.ID, UUID: id, Callback: res.Links.Self.Href}, nil
}

func (c *HTTPClient) ResolveEnvelopeForDocument(ctx context.Context, documentUUID uuid.UUID) (*envelope.Reference, error) {
	url := fmt.Sprintf("%s/metadataDocuments/%s", c.baseURL, documentUUID)
	var doc documentResource
	if err := c.getJSON(ctx, url, &doc); err != nil {
		return nil, err
	}
	if doc.Links.Envelope.Href == "" {
		return nil, fmt.Errorf("document %s has no envelope link", documentUUID)
	}
	var res envelopeResource
	if err := c.getJSON(ctx, doc.Links.Envelope.Href, &res); err != nil {
		return nil, err
	}
	return envelopeRefFromResource(res)
}

func (c *HTTPClient) PatchEnvelopeState(ctx context.Context, ref envelope.Reference, state envelope.State) error {
	url := ref.Callback
	if url == "" {
		url = fmt.Sprintf("%s/submissionEnvelopes/%s", c.baseURL, ref.UUID)
	}
	body, err := json.Marshal(map[string]string{"submissionState": string(state)})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer drain(resp)
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("envelope %s: %w", ref.UUID, ErrNotFound)
	case resp.StatusCode >= 300:
		return fmt.Errorf("patch envelope %s state: unexpected status %d", ref.UUID, resp.StatusCode)
	}
	return nil
}

func (c *HTTPClient) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer drain(resp)
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", url, ErrNotFound)
	case resp.StatusCode >= 300:
		return fmt.Errorf("%s: unexpected status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func envelopeRefFromResource(res envelopeResource) (*envelope.Reference, error) {
	id, err := uuid.Parse(res.UUID)
	if err != nil {
		return nil, fmt.Errorf("malformed envelope uuid in response: %w", err)
	}
	ref := &envelope.Reference{ID: res.ID, UUID: id, Callback: res.Links.Self.Href}
	if res.SubmissionState != "" {
		st, err := envelope.ParseState(res.SubmissionState)
		if err != nil {
			return nil, err
		}
		ref.CachedState = st
	}
	return ref, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
