package models

import (
	"strings"
	"unicode"
)

// Canonical capability flag names. Flags use snake_case only; legacy
// camelCase keys are converted on ingest by NormalizeFlags.
const (
	ToolCalendarBooking = "calendar_booking"
	ToolWebSearch       = "web_search"
	ToolFAQLookup       = "faq_lookup"
	ToolLeadCapture     = "lead_capture"
)

// Personality captures the configured conversational style of an agent
type Personality struct {
	Tone               string  `json:"tone" yaml:"tone"`             // e.g. "friendly", "professional"
	Formality          string  `json:"formality" yaml:"formality"`   // e.g. "casual", "formal"
	Verbosity          string  `json:"verbosity" yaml:"verbosity"`   // e.g. "concise", "detailed"
	Temperature        float64 `json:"temperature" yaml:"temperature"`
	CustomInstructions string  `json:"custom_instructions" yaml:"custom_instructions"`
}

// DaySchedule is the opening window for a single weekday
type DaySchedule struct {
	Open   string `json:"open" yaml:"open"`   // "09:00"
	Close  string `json:"close" yaml:"close"` // "18:00"
	Closed bool   `json:"closed" yaml:"closed"`
}

// Product is one catalog entry exposed to the agent
type Product struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Price       string `json:"price" yaml:"price"`
}

// FAQEntry is one configured question/answer pair
type FAQEntry struct {
	Question string `json:"question" yaml:"question"`
	Answer   string `json:"answer" yaml:"answer"`
}

// AgentProfile is an immutable-per-call snapshot of one business's agent
// configuration. The engine only reads it; persistence is the caller's
// concern.
type AgentProfile struct {
	Name            string `json:"name" yaml:"name"`
	Role            string `json:"role" yaml:"role"`
	Sector          string `json:"sector" yaml:"sector"`
	Location        string `json:"location" yaml:"location"`
	Address         string `json:"address" yaml:"address"`
	Website         string `json:"website" yaml:"website"`
	TaskDescription string `json:"task_description" yaml:"task_description"`

	Products []Product  `json:"products" yaml:"products"`
	FAQ      []FAQEntry `json:"faq" yaml:"faq"`

	WorkingHours  map[string]DaySchedule `json:"working_hours" yaml:"working_hours"` // keys: "monday".."sunday"
	HolidayPolicy string                 `json:"holiday_policy" yaml:"holiday_policy"`
	SocialHandles map[string]string      `json:"social_handles" yaml:"social_handles"`

	Personality Personality `json:"personality" yaml:"personality"`

	ToolsEnabled        map[string]bool `json:"tools_enabled" yaml:"tools_enabled"`
	IntegrationsEnabled map[string]bool `json:"integrations_enabled" yaml:"integrations_enabled"`

	Temperature float64 `json:"temperature" yaml:"temperature"`
	Model       string  `json:"model" yaml:"model"`
	Timezone    string  `json:"timezone" yaml:"timezone"` // IANA name, e.g. "Europe/Istanbul"
}

// Weekdays in canonical rendering order
var Weekdays = []string{
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
}

// NormalizeFlags converts legacy camelCase flag keys ("webSearch") to the
// canonical snake_case form ("web_search"). Keys already in snake_case pass
// through unchanged. Returns a new map; the input is not modified.
func NormalizeFlags(flags map[string]bool) map[string]bool {
	if flags == nil {
		return nil
	}
	out := make(map[string]bool, len(flags))
	for k, v := range flags {
		out[toSnake(k)] = v
	}
	return out
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 && s[i-1] != '_' {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
