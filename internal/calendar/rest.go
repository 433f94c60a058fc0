package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// RESTBackend talks to an external scheduling service over HTTP. The
// service contract is a thin JSON API: GET /availability and POST /events.
type RESTBackend struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewRESTBackend creates a backend against the given scheduling service
func NewRESTBackend(baseURL, token string, timeout time.Duration) *RESTBackend {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RESTBackend{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type availabilityResponse struct {
	Slots []Slot `json:"slots"`
}

// Availability queries the remote service for free slots
func (r *RESTBackend) Availability(ctx context.Context, from, to time.Time, slotLen time.Duration) ([]Slot, error) {
	query := url.Values{}
	query.Set("from", from.Format(time.RFC3339))
	query.Set("to", to.Format(time.RFC3339))
	query.Set("slot_minutes", fmt.Sprintf("%d", int(slotLen.Minutes())))

	var resp availabilityResponse
	if err := r.doJSON(ctx, http.MethodGet, "/availability?"+query.Encode(), nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch availability: %w", err)
	}
	return resp.Slots, nil
}

type createEventRequest struct {
	Title    string    `json:"title"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Attendee string    `json:"attendee,omitempty"`
	Notes    string    `json:"notes,omitempty"`
}

// CreateEvent books an event on the remote service. A 409 maps to
// ErrSlotTaken.
func (r *RESTBackend) CreateEvent(ctx context.Context, input EventInput) (*Event, error) {
	req := createEventRequest{
		Title:    input.Title,
		Start:    input.Start,
		End:      input.End,
		Attendee: input.Attendee,
		Notes:    input.Notes,
	}
	var event Event
	if err := r.doJSON(ctx, http.MethodPost, "/events", req, &event); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	return &event, nil
}

func (r *RESTBackend) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if r.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+r.token)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	httpResp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	switch {
	case httpResp.StatusCode == http.StatusConflict:
		return ErrSlotTaken
	case httpResp.StatusCode >= 300:
		return fmt.Errorf("calendar service returned status %d: %s", httpResp.StatusCode, respBody)
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
