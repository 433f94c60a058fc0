package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/deskmate/deskmate/internal/cache"
	"github.com/deskmate/deskmate/internal/metering"
	"github.com/deskmate/deskmate/internal/models"
	"github.com/deskmate/deskmate/internal/provider"
)

// AssistantAPI is the hosted-assistant surface of the provider
type AssistantAPI interface {
	CreateAssistant(ctx context.Context, spec provider.AssistantSpec) (string, error)
	ModifyAssistant(ctx context.Context, assistantID string, spec provider.AssistantSpec) error
	DeleteAssistant(ctx context.Context, assistantID string) error
	UploadFile(ctx context.Context, filename string, content []byte) (string, error)
	CreateVectorStore(ctx context.Context, name string, fileIDs []string) (string, error)
}

// Config tunes the engine
type Config struct {
	DefaultModel    string        `yaml:"default_model"`
	Temperature     float64       `yaml:"temperature"`
	ConversationTTL time.Duration `yaml:"conversation_ttl"`
	GenerationTTL   time.Duration `yaml:"generation_ttl"`
	RetryAttempts   int           `yaml:"retry_attempts"`
	RetryBackoff    time.Duration `yaml:"retry_backoff"`
}

// DefaultConfig returns production defaults
func DefaultConfig() Config {
	return Config{
		DefaultModel:    "gpt-4o-mini",
		Temperature:     0.7,
		ConversationTTL: 10 * time.Minute,
		GenerationTTL:   24 * time.Hour,
		RetryAttempts:   3,
		RetryBackoff:    500 * time.Millisecond,
	}
}

// Engine is the conversational core: it compiles playbooks into hosted
// assistants, runs tool-calling turns, caches repeated work and meters
// every provider call.
type Engine struct {
	chat       provider.ChatClient
	assistants AssistantAPI
	cache      cache.Store
	meter      *metering.Meter
	journal    *metering.Journal
	registry   *Registry
	logger     *slog.Logger
	config     Config

	mu            sync.Mutex
	states        map[string]*assistantState
	filterStoreID string
}

type assistantState struct {
	profile      models.AgentProfile
	instructions string
}

// Option configures optional engine collaborators
type Option func(*Engine)

// WithJournal enables the durable audit journal
func WithJournal(journal *metering.Journal) Option {
	return func(e *Engine) { e.journal = journal }
}

// WithAssistants enables hosted-assistant lifecycle operations
func WithAssistants(api AssistantAPI) Option {
	return func(e *Engine) { e.assistants = api }
}

// New creates an engine. chat, store, meter and registry are required;
// the assistant API and journal are optional.
func New(chat provider.ChatClient, store cache.Store, meter *metering.Meter, registry *Registry, config Config, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if registry == nil {
		registry = NewRegistry()
	}
	e := &Engine{
		chat:     chat,
		cache:    store,
		meter:    meter,
		registry: registry,
		logger:   logger,
		config:   config,
		states:   make(map[string]*assistantState),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry exposes the tool registry for wiring handlers
func (e *Engine) Registry() *Registry { return e.registry }

// Generate produces text for a standalone prompt. Results are cached by
// prompt and model, and transient provider failures are retried because
// generation is idempotent.
func (e *Engine) Generate(ctx context.Context, prompt, model string) (string, error) {
	if model == "" {
		model = e.config.DefaultModel
	}
	key := cache.Key(prompt, model)

	if text, ok, err := e.cache.Get(ctx, key); err != nil {
		e.logger.Warn("cache read failed", "error", err)
	} else if ok {
		e.recordCall(ctx, models.CallTypeGeneration, model, models.Usage{}, true, 0, true, "")
		return text, nil
	}

	started := time.Now()
	resp, err := provider.ChatWithRetry(ctx, e.chat, provider.ChatRequest{
		Model:       model,
		Messages:    []models.Message{{Role: models.RoleUser, Content: prompt}},
		Temperature: e.config.Temperature,
	}, e.config.RetryAttempts, e.config.RetryBackoff)
	if err != nil {
		e.recordCall(ctx, models.CallTypeGeneration, model, models.Usage{}, false, time.Since(started), false, err.Error())
		return "", fmt.Errorf("generation failed: %w", err)
	}

	e.recordCall(ctx, models.CallTypeGeneration, resp.Model, resp.Usage, false, time.Since(started), true, "")

	// a cancelled context must not poison the cache with partial work
	if ctx.Err() == nil {
		if err := e.cache.Put(ctx, key, resp.Message.Content, e.config.GenerationTTL); err != nil {
			e.logger.Warn("cache write failed", "error", err)
		}
	}
	return resp.Message.Content, nil
}

// Stats reports usage over the given window
func (e *Engine) Stats(window time.Duration) metering.Stats {
	return e.meter.Stats(window)
}

func (e *Engine) recordCall(ctx context.Context, callType models.CallType, model string, usage models.Usage, cacheHit bool, duration time.Duration, success bool, errMsg string) {
	metric := models.UsageMetric{
		Model:    model,
		Usage:    usage,
		CallType: callType,
		CacheHit: cacheHit,
	}
	e.meter.Record(metric)

	if e.journal != nil {
		record := metering.Record{
			Kind:      metering.KindProviderCall,
			Operation: string(callType),
			Model:     model,
			Tokens:    usage.TotalTokens,
			CostUSD:   metering.Cost(model, usage),
			CacheHit:  cacheHit,
			Duration:  duration,
			Success:   success,
			Error:     errMsg,
		}
		if err := e.journal.Append(ctx, record); err != nil {
			e.logger.Warn("audit journal append failed", "error", err)
		}
	}
}
