// Package playbook compiles structured business configuration into the
// natural-language operating prompt ("playbook") for a remote model.
//
// Internally a playbook is an ordered list of named sections; the
// marker-delimited string form is only produced at the boundary, so partial
// updates never have to guess at structure they did not serialize.
package playbook

import (
	"strings"

	"github.com/deskmate/deskmate/internal/models"
)

// Section is one named, delimited block of the instruction document
type Section struct {
	Name string
	Body string
}

// Document is a compiled instruction document
type Document struct {
	Sections []Section
}

// CompileAll builds every section in the fixed canonical order. Compiling
// the same profile twice yields byte-identical output, which makes the
// result safe as a cache-key input and for no-op update detection.
func CompileAll(p models.AgentProfile) Document {
	doc := Document{Sections: make([]Section, 0, len(sectionOrder))}
	for _, name := range sectionOrder {
		doc.Sections = append(doc.Sections, Section{Name: name, Body: builders[name](p)})
	}
	return doc
}

// Section returns the named section, if present
func (d Document) Section(name string) (Section, bool) {
	for _, s := range d.Sections {
		if s.Name == name {
			return s, true
		}
	}
	return Section{}, false
}

// String serializes the document to the marker-delimited wire form
func (d Document) String() string {
	var b strings.Builder
	for _, s := range d.Sections {
		b.WriteString(beginMarker(s.Name))
		b.WriteString("\n")
		b.WriteString(s.Body)
	}
	return b.String()
}

// ReplaceSection splices a freshly built section into a previously
// serialized document, touching only the bytes between the section's begin
// marker and the next section's begin marker. If either marker cannot be
// located (hand-edited or incompatible document), the whole document is
// recompiled instead: a full rebuild is always safe, a malformed splice is
// not. The second return value reports whether a full rebuild happened.
func ReplaceSection(serialized, name string, p models.AgentProfile) (string, bool) {
	idx := sectionIndex(name)
	if idx < 0 {
		return CompileAll(p).String(), true
	}

	begin := beginMarker(name)
	start := strings.Index(serialized, begin)
	if start < 0 {
		return CompileAll(p).String(), true
	}

	end := len(serialized)
	if idx+1 < len(sectionOrder) {
		next := beginMarker(sectionOrder[idx+1])
		rel := strings.Index(serialized[start:], next)
		if rel < 0 {
			return CompileAll(p).String(), true
		}
		end = start + rel
	}

	var b strings.Builder
	b.WriteString(serialized[:start])
	b.WriteString(begin)
	b.WriteString("\n")
	b.WriteString(builders[name](p))
	b.WriteString(serialized[end:])
	return b.String(), false
}

func sectionIndex(name string) int {
	for i, n := range sectionOrder {
		if n == name {
			return i
		}
	}
	return -1
}

// SectionNames returns the canonical section order
func SectionNames() []string {
	out := make([]string, len(sectionOrder))
	copy(out, sectionOrder)
	return out
}
