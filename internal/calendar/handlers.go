package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/deskmate/deskmate/internal/models"
)

const defaultSlotMinutes = 30

// parseLocalTime accepts a timestamp with or without a zone offset. Naive
// timestamps are interpreted in the business's timezone.
func parseLocalTime(value string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	for _, layout := range []string{"2006-01-02T15:04", "2006-01-02 15:04"} {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}

// AvailabilityHandler exposes free-slot lookup as an assistant tool
type AvailabilityHandler struct {
	backend  Backend
	location *time.Location
}

// NewAvailabilityHandler builds the check_availability tool. loc defaults
// to UTC.
func NewAvailabilityHandler(backend Backend, loc *time.Location) *AvailabilityHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &AvailabilityHandler{backend: backend, location: loc}
}

func (h *AvailabilityHandler) Name() string { return "check_availability" }

func (h *AvailabilityHandler) Flag() string { return models.ToolCalendarBooking }

func (h *AvailabilityHandler) Schema() models.ToolSchema {
	return models.ToolSchema{
		Name:        h.Name(),
		Description: "List free appointment slots within a date range. Timestamps without a timezone are interpreted in the business's local time.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"from": {"type": "string", "description": "Range start, e.g. 2026-09-01T09:00"},
				"to": {"type": "string", "description": "Range end, e.g. 2026-09-01T18:00"},
				"slot_minutes": {"type": "integer", "description": "Slot length in minutes, default 30"}
			},
			"required": ["from", "to"]
		}`),
	}
}

type availabilityArgs struct {
	From        string `json:"from"`
	To          string `json:"to"`
	SlotMinutes int    `json:"slot_minutes"`
}

// Execute runs the availability lookup
func (h *AvailabilityHandler) Execute(ctx context.Context, args json.RawMessage) (*models.ToolCallResult, error) {
	var parsed availabilityArgs
	if err := json.Unmarshal(args, &parsed); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	from, err := parseLocalTime(parsed.From, h.location)
	if err != nil {
		return nil, fmt.Errorf("invalid 'from': %w", err)
	}
	to, err := parseLocalTime(parsed.To, h.location)
	if err != nil {
		return nil, fmt.Errorf("invalid 'to': %w", err)
	}
	slotMinutes := parsed.SlotMinutes
	if slotMinutes <= 0 {
		slotMinutes = defaultSlotMinutes
	}

	slots, err := h.backend.Availability(ctx, from, to, time.Duration(slotMinutes)*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("availability lookup failed: %w", err)
	}

	rendered := make([]map[string]string, 0, len(slots))
	for _, slot := range slots {
		rendered = append(rendered, map[string]string{
			"start": slot.Start.In(h.location).Format(time.RFC3339),
			"end":   slot.End.In(h.location).Format(time.RFC3339),
		})
	}
	return &models.ToolCallResult{
		Success: true,
		Message: fmt.Sprintf("%d free slots found", len(slots)),
		Payload: map[string]any{"slots": rendered},
	}, nil
}

// CreateEventHandler exposes booking as an assistant tool
type CreateEventHandler struct {
	backend  Backend
	location *time.Location
}

// NewCreateEventHandler builds the create_calendar_event tool. loc
// defaults to UTC.
func NewCreateEventHandler(backend Backend, loc *time.Location) *CreateEventHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &CreateEventHandler{backend: backend, location: loc}
}

func (h *CreateEventHandler) Name() string { return "create_calendar_event" }

func (h *CreateEventHandler) Flag() string { return models.ToolCalendarBooking }

func (h *CreateEventHandler) Schema() models.ToolSchema {
	return models.ToolSchema{
		Name:        h.Name(),
		Description: "Book an appointment. Timestamps without a timezone are interpreted in the business's local time.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"title": {"type": "string", "description": "Short appointment title"},
				"start": {"type": "string", "description": "Start time, e.g. 2026-09-01T14:00"},
				"end": {"type": "string", "description": "End time; defaults to 30 minutes after start"},
				"attendee": {"type": "string", "description": "Customer name or contact"},
				"notes": {"type": "string", "description": "Optional notes"}
			},
			"required": ["title", "start"]
		}`),
	}
}

type createEventArgs struct {
	Title    string `json:"title"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Attendee string `json:"attendee"`
	Notes    string `json:"notes"`
}

// Execute books the event. A taken slot is a tool-level failure, not an
// error: the result is fed back so the model can offer alternatives.
func (h *CreateEventHandler) Execute(ctx context.Context, args json.RawMessage) (*models.ToolCallResult, error) {
	var parsed createEventArgs
	if err := json.Unmarshal(args, &parsed); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if parsed.Title == "" {
		return nil, errors.New("missing required field 'title'")
	}
	start, err := parseLocalTime(parsed.Start, h.location)
	if err != nil {
		return nil, fmt.Errorf("invalid 'start': %w", err)
	}
	end := start.Add(defaultSlotMinutes * time.Minute)
	if parsed.End != "" {
		end, err = parseLocalTime(parsed.End, h.location)
		if err != nil {
			return nil, fmt.Errorf("invalid 'end': %w", err)
		}
	}

	event, err := h.backend.CreateEvent(ctx, EventInput{
		Title:    parsed.Title,
		Start:    start,
		End:      end,
		Attendee: parsed.Attendee,
		Notes:    parsed.Notes,
	})
	if err != nil {
		if errors.Is(err, ErrSlotTaken) {
			return &models.ToolCallResult{
				Success: false,
				Message: "That slot is already booked. Please pick another time.",
			}, nil
		}
		return nil, fmt.Errorf("booking failed: %w", err)
	}

	return &models.ToolCallResult{
		Success: true,
		Message: fmt.Sprintf("Booked %q from %s to %s", event.Title,
			event.Start.In(h.location).Format(time.RFC3339),
			event.End.In(h.location).Format(time.RFC3339)),
		Payload: map[string]any{"event_id": event.ID},
	}, nil
}
