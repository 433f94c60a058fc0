package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/deskmate/deskmate/internal/models"
)

// FAQHandler answers questions from the profile's curated FAQ list using
// simple keyword overlap. The model rephrases the raw answer for the
// customer, so exact retrieval quality matters more than prose.
type FAQHandler struct {
	entries []models.FAQEntry
}

// NewFAQHandler builds the faq_lookup tool over the given entries
func NewFAQHandler(entries []models.FAQEntry) *FAQHandler {
	return &FAQHandler{entries: entries}
}

func (h *FAQHandler) Name() string { return "faq_lookup" }

func (h *FAQHandler) Flag() string { return models.ToolFAQLookup }

func (h *FAQHandler) Schema() models.ToolSchema {
	return models.ToolSchema{
		Name:        h.Name(),
		Description: "Look up the business's curated FAQ entries for a customer question.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"question": {"type": "string", "description": "The customer's question"}
			},
			"required": ["question"]
		}`),
	}
}

func tokenize(s string) map[string]bool {
	out := make(map[string]bool)
	for _, word := range strings.Fields(strings.ToLower(s)) {
		word = strings.Trim(word, ".,!?;:\"'()")
		if len(word) > 2 {
			out[word] = true
		}
	}
	return out
}

func overlapScore(query, candidate map[string]bool) int {
	score := 0
	for word := range query {
		if candidate[word] {
			score++
		}
	}
	return score
}

// Execute scores each entry against the question and returns the best
// matches
func (h *FAQHandler) Execute(ctx context.Context, args json.RawMessage) (*models.ToolCallResult, error) {
	var parsed struct {
		Question string `json:"question"`
	}
	if err := json.Unmarshal(args, &parsed); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if strings.TrimSpace(parsed.Question) == "" {
		return nil, errors.New("missing required field 'question'")
	}

	query := tokenize(parsed.Question)
	type scored struct {
		entry models.FAQEntry
		score int
	}
	var matches []scored
	for _, entry := range h.entries {
		if s := overlapScore(query, tokenize(entry.Question+" "+entry.Answer)); s > 0 {
			matches = append(matches, scored{entry, s})
		}
	}
	if len(matches) == 0 {
		return &models.ToolCallResult{
			Success: false,
			Message: "No FAQ entry matches this question.",
		}, nil
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score > matches[j].score })
	if len(matches) > 3 {
		matches = matches[:3]
	}
	rendered := make([]map[string]string, 0, len(matches))
	for _, m := range matches {
		rendered = append(rendered, map[string]string{
			"question": m.entry.Question,
			"answer":   m.entry.Answer,
		})
	}
	return &models.ToolCallResult{
		Success: true,
		Message: fmt.Sprintf("%d matching entries", len(rendered)),
		Payload: map[string]any{"entries": rendered},
	}, nil
}

// Lead is a captured sales contact
type Lead struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Contact   string    `json:"contact"`
	Interest  string    `json:"interest,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// LeadStore persists captured leads
type LeadStore interface {
	SaveLead(ctx context.Context, lead Lead) error
}

// MemoryLeadStore keeps leads in memory
type MemoryLeadStore struct {
	mu    sync.Mutex
	leads []Lead
}

// NewMemoryLeadStore creates an empty store
func NewMemoryLeadStore() *MemoryLeadStore {
	return &MemoryLeadStore{}
}

// SaveLead appends the lead
func (s *MemoryLeadStore) SaveLead(ctx context.Context, lead Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leads = append(s.leads, lead)
	return nil
}

// Leads returns a copy of all captured leads
func (s *MemoryLeadStore) Leads() []Lead {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Lead, len(s.leads))
	copy(out, s.leads)
	return out
}

// LeadCaptureHandler records customer contact details for follow-up
type LeadCaptureHandler struct {
	store LeadStore
}

// NewLeadCaptureHandler builds the lead_capture tool
func NewLeadCaptureHandler(store LeadStore) *LeadCaptureHandler {
	return &LeadCaptureHandler{store: store}
}

func (h *LeadCaptureHandler) Name() string { return "lead_capture" }

func (h *LeadCaptureHandler) Flag() string { return models.ToolLeadCapture }

func (h *LeadCaptureHandler) Schema() models.ToolSchema {
	return models.ToolSchema{
		Name:        h.Name(),
		Description: "Record a potential customer's contact details for follow-up by the sales team.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"name": {"type": "string", "description": "Customer name"},
				"contact": {"type": "string", "description": "Phone number or email"},
				"interest": {"type": "string", "description": "Product or service of interest"},
				"notes": {"type": "string", "description": "Optional context"}
			},
			"required": ["name", "contact"]
		}`),
	}
}

// Execute validates and persists the lead
func (h *LeadCaptureHandler) Execute(ctx context.Context, args json.RawMessage) (*models.ToolCallResult, error) {
	var parsed struct {
		Name     string `json:"name"`
		Contact  string `json:"contact"`
		Interest string `json:"interest"`
		Notes    string `json:"notes"`
	}
	if err := json.Unmarshal(args, &parsed); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if parsed.Name == "" || parsed.Contact == "" {
		return nil, errors.New("both 'name' and 'contact' are required")
	}

	lead := Lead{
		ID:        uuid.NewString(),
		Name:      parsed.Name,
		Contact:   parsed.Contact,
		Interest:  parsed.Interest,
		Notes:     parsed.Notes,
		CreatedAt: time.Now(),
	}
	if err := h.store.SaveLead(ctx, lead); err != nil {
		return nil, fmt.Errorf("failed to save lead: %w", err)
	}
	return &models.ToolCallResult{
		Success: true,
		Message: fmt.Sprintf("Lead recorded for %s", lead.Name),
		Payload: map[string]any{"lead_id": lead.ID},
	}, nil
}

// SearchResult is one hit from a web search
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// SearchBackend runs web searches
type SearchBackend interface {
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
}

// RESTSearchBackend queries a search service that answers
// GET /search?q=...&limit=N with {"results":[{title,url,snippet}]}
type RESTSearchBackend struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewRESTSearchBackend creates a backend against the given search service
func NewRESTSearchBackend(baseURL, apiKey string, timeout time.Duration) *RESTSearchBackend {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RESTSearchBackend{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Search queries the remote service
func (b *RESTSearchBackend) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", fmt.Sprintf("%d", limit))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if b.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	httpResp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search service returned status %d: %s", httpResp.StatusCode, body)
	}

	var decoded struct {
		Results []SearchResult `json:"results"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return decoded.Results, nil
}

// WebSearchHandler exposes web search as an assistant tool
type WebSearchHandler struct {
	backend SearchBackend
}

// NewWebSearchHandler builds the web_search tool
func NewWebSearchHandler(backend SearchBackend) *WebSearchHandler {
	return &WebSearchHandler{backend: backend}
}

func (h *WebSearchHandler) Name() string { return "web_search" }

func (h *WebSearchHandler) Flag() string { return models.ToolWebSearch }

func (h *WebSearchHandler) Schema() models.ToolSchema {
	return models.ToolSchema{
		Name:        h.Name(),
		Description: "Search the web for current information the business profile does not cover.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {"type": "string", "description": "Search query"}
			},
			"required": ["query"]
		}`),
	}
}

// Execute runs the search and returns the top hits
func (h *WebSearchHandler) Execute(ctx context.Context, args json.RawMessage) (*models.ToolCallResult, error) {
	var parsed struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(args, &parsed); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if strings.TrimSpace(parsed.Query) == "" {
		return nil, errors.New("missing required field 'query'")
	}

	results, err := h.backend.Search(ctx, parsed.Query, 5)
	if err != nil {
		return nil, fmt.Errorf("web search failed: %w", err)
	}
	if len(results) == 0 {
		return &models.ToolCallResult{
			Success: false,
			Message: "No search results found.",
		}, nil
	}
	rendered := make([]map[string]string, 0, len(results))
	for _, result := range results {
		rendered = append(rendered, map[string]string{
			"title":   result.Title,
			"url":     result.URL,
			"snippet": result.Snippet,
		})
	}
	return &models.ToolCallResult{
		Success: true,
		Message: fmt.Sprintf("%d results", len(rendered)),
		Payload: map[string]any{"results": rendered},
	}, nil
}
