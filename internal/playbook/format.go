package playbook

import (
	"fmt"
	"sort"
	"strings"

	"github.com/deskmate/deskmate/internal/models"
)

// unspecified is rendered for any optional profile field that is empty, so
// the document structure stays identical regardless of how much of the
// profile is filled in.
const unspecified = "unspecified"

func orUnspecified(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return unspecified
	}
	return s
}

func titleDay(day string) string {
	if day == "" {
		return day
	}
	return strings.ToUpper(day[:1]) + day[1:]
}

// formatWeeklyHours renders the working hours map in fixed Monday-first
// order, one line per day.
func formatWeeklyHours(hours map[string]models.DaySchedule) string {
	var b strings.Builder
	for _, day := range models.Weekdays {
		sched, ok := hours[day]
		switch {
		case !ok:
			fmt.Fprintf(&b, "- %s: %s\n", titleDay(day), unspecified)
		case sched.Closed:
			fmt.Fprintf(&b, "- %s: closed\n", titleDay(day))
		default:
			fmt.Fprintf(&b, "- %s: %s-%s\n", titleDay(day),
				orUnspecified(sched.Open), orUnspecified(sched.Close))
		}
	}
	return b.String()
}

// formatSocialHandles renders handles sorted by platform name for
// deterministic output.
func formatSocialHandles(handles map[string]string) string {
	if len(handles) == 0 {
		return unspecified + "\n"
	}
	platforms := make([]string, 0, len(handles))
	for p := range handles {
		platforms = append(platforms, p)
	}
	sort.Strings(platforms)

	var b strings.Builder
	for _, p := range platforms {
		fmt.Fprintf(&b, "- %s: %s\n", p, handles[p])
	}
	return b.String()
}

func formatProducts(products []models.Product) string {
	if len(products) == 0 {
		return unspecified + "\n"
	}
	var b strings.Builder
	for _, p := range products {
		fmt.Fprintf(&b, "- %s", orUnspecified(p.Name))
		if strings.TrimSpace(p.Price) != "" {
			fmt.Fprintf(&b, " (%s)", p.Price)
		}
		if strings.TrimSpace(p.Description) != "" {
			fmt.Fprintf(&b, ": %s", p.Description)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func formatFAQ(faq []models.FAQEntry) string {
	if len(faq) == 0 {
		return unspecified + "\n"
	}
	var b strings.Builder
	for _, entry := range faq {
		fmt.Fprintf(&b, "Q: %s\nA: %s\n", orUnspecified(entry.Question), orUnspecified(entry.Answer))
	}
	return b.String()
}

// formatEnabledFlags renders only the flags that are switched on, sorted,
// after normalizing key naming.
func formatEnabledFlags(flags map[string]bool) string {
	normalized := models.NormalizeFlags(flags)
	enabled := make([]string, 0, len(normalized))
	for name, on := range normalized {
		if on {
			enabled = append(enabled, name)
		}
	}
	if len(enabled) == 0 {
		return "none\n"
	}
	sort.Strings(enabled)
	var b strings.Builder
	for _, name := range enabled {
		fmt.Fprintf(&b, "- %s\n", name)
	}
	return b.String()
}
