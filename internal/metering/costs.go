package metering

import "github.com/deskmate/deskmate/internal/models"

// modelCost is USD per 1K tokens, split by prompt/completion
type modelCost struct {
	Prompt     float64
	Completion float64
}

// modelCosts is the single source of truth for per-model pricing. Models
// not listed here are metered with zero cost rather than guessed.
var modelCosts = map[string]modelCost{
	"gpt-4o":        {Prompt: 0.0025, Completion: 0.01},
	"gpt-4o-mini":   {Prompt: 0.00015, Completion: 0.0006},
	"gpt-4-turbo":   {Prompt: 0.01, Completion: 0.03},
	"gpt-3.5-turbo": {Prompt: 0.0005, Completion: 0.0015},
}

// Cost derives the USD cost of one call from its reported token usage
func Cost(model string, usage models.Usage) float64 {
	c, ok := modelCosts[model]
	if !ok {
		return 0
	}
	return float64(usage.PromptTokens)/1000*c.Prompt +
		float64(usage.CompletionTokens)/1000*c.Completion
}
