// Package engine wires playbook compilation, provider calls, caching,
// metering and tool dispatch into the conversational core.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/deskmate/deskmate/internal/models"
)

// Handler is a tool the model can invoke. Execute returns an error only
// for malformed arguments or infrastructure failures; domain-level
// failures (slot taken, nothing found) come back as a result with
// Success=false so the model can react to them.
type Handler interface {
	Name() string
	Flag() string
	Schema() models.ToolSchema
	Execute(ctx context.Context, args json.RawMessage) (*models.ToolCallResult, error)
}

// Registry holds the available tool handlers
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds a handler, rejecting duplicate names
func (r *Registry) Register(h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[h.Name()]; exists {
		return fmt.Errorf("tool %q already registered", h.Name())
	}
	r.handlers[h.Name()] = h
	return nil
}

// Get looks up a handler by tool name
func (r *Registry) Get(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns all registered tool names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SchemasFor returns the schemas of handlers whose capability flag is
// enabled on the profile, in stable name order. Flags are normalized
// first so legacy camelCase profiles keep working.
func (r *Registry) SchemasFor(profile models.AgentProfile) []models.ToolSchema {
	flags := models.NormalizeFlags(profile.ToolsEnabled)

	r.mu.RLock()
	defer r.mu.RUnlock()

	var schemas []models.ToolSchema
	for _, h := range r.handlers {
		if flags[h.Flag()] {
			schemas = append(schemas, h.Schema())
		}
	}
	sort.Slice(schemas, func(i, j int) bool { return schemas[i].Name < schemas[j].Name })
	return schemas
}
