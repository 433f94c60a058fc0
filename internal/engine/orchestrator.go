package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/deskmate/deskmate/internal/cache"
	"github.com/deskmate/deskmate/internal/metering"
	"github.com/deskmate/deskmate/internal/models"
	"github.com/deskmate/deskmate/internal/provider"
)

// Conversation turn states. A turn makes at most two provider calls:
// the initial one (tools offered) and, when tools ran, exactly one
// follow-up with tools withheld so the model cannot chain calls.
type turnState int

const (
	stateAwaitingModel turnState = iota
	stateModelResponded
	stateExecutingTools
	stateAwaitingFollowup
	stateDone
)

// fallbackReply is the generic apology used when the follow-up call fails
// after tools already ran. Raw provider errors never reach the customer.
const fallbackReply = "I'm sorry, something went wrong on my end while finishing that up. Could you try again in a moment?"

// ConverseRequest is one user turn against a configured assistant
type ConverseRequest struct {
	Profile      models.AgentProfile
	Instructions string // compiled system prompt
	History      []models.Message
	UserMessage  string
	Model        string // empty means the engine default
}

// ConverseResult is the outcome of a turn
type ConverseResult struct {
	Reply        string
	Messages     []models.Message // new messages this turn, in order
	ToolResults  []models.ToolCallResult
	Usage        models.Usage
	CacheHit     bool
	FallbackUsed bool
}

// Converse runs a full conversational turn, dispatching any tool calls
// the model requests. Turns without tools enabled are served from the
// response cache when possible; turns that may call tools are never
// cached or retried because tool execution has side effects.
func (e *Engine) Converse(ctx context.Context, req ConverseRequest) (*ConverseResult, error) {
	model := req.Model
	if model == "" {
		model = e.config.DefaultModel
	}
	temperature := req.Profile.Personality.Temperature
	if temperature == 0 {
		temperature = e.config.Temperature
	}

	schemas := e.registry.SchemasFor(req.Profile)
	cacheable := len(schemas) == 0

	messages := make([]models.Message, 0, len(req.History)+2)
	messages = append(messages, models.Message{Role: models.RoleSystem, Content: req.Instructions})
	messages = append(messages, req.History...)
	userMsg := models.Message{Role: models.RoleUser, Content: req.UserMessage, Timestamp: time.Now()}
	messages = append(messages, userMsg)

	var cacheKey string
	if cacheable {
		cacheKey = turnCacheKey(req.Instructions, req.History, req.UserMessage, model)
		if text, ok, err := e.cache.Get(ctx, cacheKey); err != nil {
			e.logger.Warn("cache read failed", "error", err)
		} else if ok {
			e.recordCall(ctx, models.CallTypeConversation, model, models.Usage{}, true, 0, true, "")
			reply := models.Message{Role: models.RoleAssistant, Content: text, Timestamp: time.Now()}
			return &ConverseResult{
				Reply:    text,
				Messages: []models.Message{userMsg, reply},
				CacheHit: true,
			}, nil
		}
	}

	result := &ConverseResult{Messages: []models.Message{userMsg}}
	state := stateAwaitingModel
	var assistantMsg models.Message

	for state != stateDone {
		switch state {
		case stateAwaitingModel:
			started := time.Now()
			resp, err := e.chat.Chat(ctx, provider.ChatRequest{
				Model:       model,
				Messages:    messages,
				Tools:       schemas,
				Temperature: temperature,
			})
			if err != nil {
				e.recordCall(ctx, models.CallTypeConversation, model, models.Usage{}, false, time.Since(started), false, err.Error())
				return nil, fmt.Errorf("conversation turn failed: %w", err)
			}
			e.recordCall(ctx, models.CallTypeConversation, resp.Model, resp.Usage, false, time.Since(started), true, "")
			result.Usage = addUsage(result.Usage, resp.Usage)
			assistantMsg = resp.Message
			state = stateModelResponded

		case stateModelResponded:
			if len(assistantMsg.ToolCalls) == 0 {
				result.Reply = assistantMsg.Content
				result.Messages = append(result.Messages, assistantMsg)
				if cacheable && ctx.Err() == nil {
					if err := e.cache.Put(ctx, cacheKey, result.Reply, e.config.ConversationTTL); err != nil {
						e.logger.Warn("cache write failed", "error", err)
					}
				}
				state = stateDone
				break
			}
			messages = append(messages, assistantMsg)
			result.Messages = append(result.Messages, assistantMsg)
			state = stateExecutingTools

		case stateExecutingTools:
			for _, call := range assistantMsg.ToolCalls {
				toolResult := e.dispatchTool(ctx, call)
				result.ToolResults = append(result.ToolResults, *toolResult)

				payload, err := json.Marshal(toolResult)
				if err != nil {
					payload = []byte(fmt.Sprintf(`{"success":false,"message":%q}`, err.Error()))
				}
				toolMsg := models.Message{
					Role:       models.RoleTool,
					Content:    string(payload),
					ToolCallID: call.ID,
					Timestamp:  time.Now(),
				}
				messages = append(messages, toolMsg)
				result.Messages = append(result.Messages, toolMsg)
			}
			state = stateAwaitingFollowup

		case stateAwaitingFollowup:
			// tools withheld: the model must answer with text now
			started := time.Now()
			resp, err := e.chat.Chat(ctx, provider.ChatRequest{
				Model:       model,
				Messages:    messages,
				Temperature: temperature,
			})
			if err != nil {
				e.recordCall(ctx, models.CallTypeToolFollowup, model, models.Usage{}, false, time.Since(started), false, err.Error())
				e.logger.Error("follow-up call failed, using fallback reply", "error", err)
				result.Reply = fallbackReply
				result.FallbackUsed = true
				result.Messages = append(result.Messages, models.Message{
					Role: models.RoleAssistant, Content: fallbackReply, Timestamp: time.Now(),
				})
				state = stateDone
				break
			}
			e.recordCall(ctx, models.CallTypeToolFollowup, resp.Model, resp.Usage, false, time.Since(started), true, "")
			result.Usage = addUsage(result.Usage, resp.Usage)
			result.Reply = resp.Message.Content
			result.Messages = append(result.Messages, resp.Message)
			state = stateDone
		}
	}

	return result, nil
}

// dispatchTool runs one tool call. Failures become unsuccessful results
// fed back to the model rather than errors aborting the turn.
func (e *Engine) dispatchTool(ctx context.Context, call models.ToolCall) *models.ToolCallResult {
	started := time.Now()

	var result *models.ToolCallResult
	handler, ok := e.registry.Get(call.Name)
	if !ok {
		result = &models.ToolCallResult{
			Success: false,
			Message: fmt.Sprintf("unknown tool %q", call.Name),
		}
	} else {
		var err error
		result, err = handler.Execute(ctx, call.Arguments)
		if err != nil {
			e.logger.Warn("tool execution failed", "tool", call.Name, "error", err)
			result = &models.ToolCallResult{
				Success: false,
				Message: fmt.Sprintf("tool %s failed: %v", call.Name, err),
			}
		} else if result == nil {
			// handlers are caller-injected; tolerate a nil, nil return
			result = &models.ToolCallResult{
				Success: false,
				Message: fmt.Sprintf("tool %s returned no result", call.Name),
			}
		}
	}
	result.ToolCallID = call.ID

	e.logger.Debug("tool dispatched",
		"tool", call.Name, "success", result.Success, "duration", time.Since(started))

	if e.journal != nil {
		record := metering.Record{
			Kind:      metering.KindToolDispatch,
			Operation: call.Name,
			Duration:  time.Since(started),
			Success:   result.Success,
		}
		if !result.Success {
			record.Error = result.Message
		}
		if err := e.journal.Append(ctx, record); err != nil {
			e.logger.Warn("audit journal append failed", "error", err)
		}
	}
	return result
}

// turnCacheKey folds everything that shapes the reply into the cache key
func turnCacheKey(instructions string, history []models.Message, userMessage, model string) string {
	var b strings.Builder
	b.WriteString(instructions)
	for _, m := range history {
		b.WriteByte('\n')
		b.WriteString(m.Role)
		b.WriteByte(':')
		b.WriteString(m.Content)
	}
	b.WriteByte('\n')
	b.WriteString(userMessage)
	return cache.Key(b.String(), model)
}

func addUsage(a, b models.Usage) models.Usage {
	return models.Usage{
		PromptTokens:     a.PromptTokens + b.PromptTokens,
		CompletionTokens: a.CompletionTokens + b.CompletionTokens,
		TotalTokens:      a.TotalTokens + b.TotalTokens,
	}
}
