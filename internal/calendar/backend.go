// Package calendar provides scheduling backends and the booking tools
// exposed to assistants.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrSlotTaken is returned when an event overlaps an existing booking
var ErrSlotTaken = errors.New("requested slot is already booked")

// Event is a confirmed calendar entry
type Event struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Attendee  string    `json:"attendee,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// EventInput describes an event to create
type EventInput struct {
	Title    string
	Start    time.Time
	End      time.Time
	Attendee string
	Notes    string
}

// Slot is a bookable window
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Backend is a scheduling source of truth
type Backend interface {
	// Availability returns free slots between from and to, split into
	// slotLen windows.
	Availability(ctx context.Context, from, to time.Time, slotLen time.Duration) ([]Slot, error)
	// CreateEvent books an event, failing with ErrSlotTaken on overlap
	CreateEvent(ctx context.Context, input EventInput) (*Event, error)
}

// MemoryBackend keeps events in memory. Used in tests and as the default
// when no external calendar is configured.
type MemoryBackend struct {
	mu     sync.RWMutex
	events []Event
}

// NewMemoryBackend creates an empty in-memory calendar
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// Availability walks the window in slotLen steps and drops slots that
// collide with an existing event
func (m *MemoryBackend) Availability(ctx context.Context, from, to time.Time, slotLen time.Duration) ([]Slot, error) {
	if slotLen <= 0 {
		return nil, fmt.Errorf("slot length must be positive, got %s", slotLen)
	}
	if !from.Before(to) {
		return nil, fmt.Errorf("invalid window: %s is not before %s", from, to)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var free []Slot
	for start := from; start.Add(slotLen).Compare(to) <= 0; start = start.Add(slotLen) {
		end := start.Add(slotLen)
		taken := false
		for _, ev := range m.events {
			if overlaps(start, end, ev.Start, ev.End) {
				taken = true
				break
			}
		}
		if !taken {
			free = append(free, Slot{Start: start, End: end})
		}
	}
	return free, nil
}

// CreateEvent books the slot if it is free
func (m *MemoryBackend) CreateEvent(ctx context.Context, input EventInput) (*Event, error) {
	if !input.Start.Before(input.End) {
		return nil, fmt.Errorf("invalid event window: %s is not before %s", input.Start, input.End)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, ev := range m.events {
		if overlaps(input.Start, input.End, ev.Start, ev.End) {
			return nil, fmt.Errorf("%w: conflicts with %q (%s)", ErrSlotTaken, ev.Title, ev.Start.Format(time.RFC3339))
		}
	}

	event := Event{
		ID:        uuid.NewString(),
		Title:     input.Title,
		Start:     input.Start,
		End:       input.End,
		Attendee:  input.Attendee,
		Notes:     input.Notes,
		CreatedAt: time.Now(),
	}
	m.events = append(m.events, event)
	sort.Slice(m.events, func(i, j int) bool {
		return m.events[i].Start.Before(m.events[j].Start)
	})
	return &event, nil
}

// Events returns a copy of all booked events, ordered by start time
func (m *MemoryBackend) Events() []Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}
