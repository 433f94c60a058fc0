package calendar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLocation(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func TestMemoryBackendAvailability(t *testing.T) {
	backend := NewMemoryBackend()
	from := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	to := from.Add(2 * time.Hour)

	slots, err := backend.Availability(context.Background(), from, to, 30*time.Minute)
	require.NoError(t, err)
	assert.Len(t, slots, 4)

	// book 09:30-10:00 and the slot disappears
	_, err = backend.CreateEvent(context.Background(), EventInput{
		Title: "Cleaning",
		Start: from.Add(30 * time.Minute),
		End:   from.Add(time.Hour),
	})
	require.NoError(t, err)

	slots, err = backend.Availability(context.Background(), from, to, 30*time.Minute)
	require.NoError(t, err)
	require.Len(t, slots, 3)
	assert.Equal(t, from, slots[0].Start)
	assert.Equal(t, from.Add(time.Hour), slots[1].Start)
}

func TestMemoryBackendRejectsOverlap(t *testing.T) {
	backend := NewMemoryBackend()
	start := time.Date(2026, 9, 1, 14, 0, 0, 0, time.UTC)

	_, err := backend.CreateEvent(context.Background(), EventInput{
		Title: "Checkup", Start: start, End: start.Add(30 * time.Minute),
	})
	require.NoError(t, err)

	// partial overlap
	_, err = backend.CreateEvent(context.Background(), EventInput{
		Title: "Walk-in", Start: start.Add(15 * time.Minute), End: start.Add(45 * time.Minute),
	})
	require.ErrorIs(t, err, ErrSlotTaken)

	// back-to-back is fine
	_, err = backend.CreateEvent(context.Background(), EventInput{
		Title: "Next", Start: start.Add(30 * time.Minute), End: start.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Len(t, backend.Events(), 2)
}

func TestParseLocalTimeNaiveUsesLocation(t *testing.T) {
	loc := mustLocation(t, "Europe/Istanbul")

	parsed, err := parseLocalTime("2026-09-01T14:00", loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 9, 1, 14, 0, 0, 0, loc), parsed)

	// explicit offsets win over the location
	parsed, err = parseLocalTime("2026-09-01T14:00:00Z", loc)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(time.Date(2026, 9, 1, 14, 0, 0, 0, time.UTC)))

	_, err = parseLocalTime("tomorrow at 2pm", loc)
	require.Error(t, err)
}

func TestCreateEventHandlerBooksInLocalTime(t *testing.T) {
	loc := mustLocation(t, "Europe/Istanbul")
	backend := NewMemoryBackend()
	handler := NewCreateEventHandler(backend, loc)

	result, err := handler.Execute(context.Background(), json.RawMessage(
		`{"title":"Dental checkup","start":"2026-09-01T14:00","attendee":"Ada"}`))
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Contains(t, result.Message, "Dental checkup")
	assert.NotEmpty(t, result.Payload["event_id"])

	events := backend.Events()
	require.Len(t, events, 1)
	assert.Equal(t, time.Date(2026, 9, 1, 14, 0, 0, 0, loc), events[0].Start)
	// default 30 minute duration
	assert.Equal(t, 30*time.Minute, events[0].End.Sub(events[0].Start))
}

func TestCreateEventHandlerReportsConflictAsFailure(t *testing.T) {
	backend := NewMemoryBackend()
	handler := NewCreateEventHandler(backend, time.UTC)

	args := json.RawMessage(`{"title":"First","start":"2026-09-01T10:00"}`)
	result, err := handler.Execute(context.Background(), args)
	require.NoError(t, err)
	require.True(t, result.Success)

	// same slot again: a failed result, not an error
	result, err = handler.Execute(context.Background(), json.RawMessage(
		`{"title":"Second","start":"2026-09-01T10:00"}`))
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "already booked")
}

func TestCreateEventHandlerValidatesArguments(t *testing.T) {
	handler := NewCreateEventHandler(NewMemoryBackend(), time.UTC)

	_, err := handler.Execute(context.Background(), json.RawMessage(`{"start":"2026-09-01T10:00"}`))
	require.Error(t, err)

	_, err = handler.Execute(context.Background(), json.RawMessage(`{"title":"X","start":"nope"}`))
	require.Error(t, err)

	_, err = handler.Execute(context.Background(), json.RawMessage(`not json`))
	require.Error(t, err)
}

func TestAvailabilityHandler(t *testing.T) {
	backend := NewMemoryBackend()
	handler := NewAvailabilityHandler(backend, time.UTC)

	result, err := handler.Execute(context.Background(), json.RawMessage(
		`{"from":"2026-09-01T09:00","to":"2026-09-01T11:00","slot_minutes":60}`))
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "2 free slots found", result.Message)

	slots, ok := result.Payload["slots"].([]map[string]string)
	require.True(t, ok)
	require.Len(t, slots, 2)
	assert.Equal(t, "2026-09-01T09:00:00Z", slots[0]["start"])
}

func TestHandlerSchemas(t *testing.T) {
	avail := NewAvailabilityHandler(NewMemoryBackend(), nil)
	create := NewCreateEventHandler(NewMemoryBackend(), nil)

	assert.Equal(t, "check_availability", avail.Schema().Name)
	assert.Equal(t, "create_calendar_event", create.Schema().Name)
	assert.Equal(t, "calendar_booking", avail.Flag())
	assert.Equal(t, "calendar_booking", create.Flag())

	for _, schema := range []json.RawMessage{avail.Schema().Parameters, create.Schema().Parameters} {
		var decoded map[string]any
		require.NoError(t, json.Unmarshal(schema, &decoded))
		assert.Equal(t, "object", decoded["type"])
	}
}

func TestRESTBackend(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/availability":
			assert.Equal(t, "30", r.URL.Query().Get("slot_minutes"))
			json.NewEncoder(w).Encode(availabilityResponse{Slots: []Slot{{
				Start: time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC),
				End:   time.Date(2026, 9, 1, 9, 30, 0, 0, time.UTC),
			}}})
		case "/events":
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			var req createEventRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			if req.Title == "conflict" {
				http.Error(w, "slot taken", http.StatusConflict)
				return
			}
			json.NewEncoder(w).Encode(Event{ID: "ev_1", Title: req.Title, Start: req.Start, End: req.End})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	backend := NewRESTBackend(server.URL, "tok", 5*time.Second)

	slots, err := backend.Availability(context.Background(),
		time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC),
		30*time.Minute)
	require.NoError(t, err)
	require.Len(t, slots, 1)

	event, err := backend.CreateEvent(context.Background(), EventInput{
		Title: "Checkup",
		Start: time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 9, 1, 9, 30, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, "ev_1", event.ID)

	_, err = backend.CreateEvent(context.Background(), EventInput{
		Title: "conflict",
		Start: time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 9, 1, 9, 30, 0, 0, time.UTC),
	})
	require.ErrorIs(t, err, ErrSlotTaken)
}
