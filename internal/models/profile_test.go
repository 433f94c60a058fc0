package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeFlags(t *testing.T) {
	in := map[string]bool{
		"webSearch":       true,
		"calendarBooking": true,
		"faq_lookup":      false,
		"leadCapture":     false,
	}

	out := NormalizeFlags(in)

	assert.Equal(t, map[string]bool{
		"web_search":       true,
		"calendar_booking": true,
		"faq_lookup":       false,
		"lead_capture":     false,
	}, out)

	// Input must stay untouched
	assert.True(t, in["webSearch"])
	assert.NotContains(t, in, "web_search")
}

func TestNormalizeFlagsNil(t *testing.T) {
	assert.Nil(t, NormalizeFlags(nil))
}
