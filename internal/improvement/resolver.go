package improvement

import (
	"context"

	"github.com/jonathan/skill-improver/internal/types"
)

// FallbackPrompt is the code-defined prompt used when a skill has no
// registered version.
type FallbackPrompt struct {
	SystemInstruction string `json:"system_instruction"`
	UserPrompt        string `json:"user_prompt"`
}

// EffectivePrompt returns the active version's prompt, or the fallback when
// the skill is unregistered or the store cannot be read. Store errors are
// logged, not returned.
func (e *Engine) EffectivePrompt(ctx context.Context, skillID string, fallback FallbackPrompt) types.ResolvedPrompt {
	active, err := e.ActiveVersion(ctx, skillID)
	if err != nil {
		e.logger.Warn().Err(err).Str("skill_id", skillID).Msg("failed to resolve prompt from registry")
	}
	if err == nil && active != nil {
		return types.ResolvedPrompt{
			SystemInstruction: active.SystemInstruction,
			UserPrompt:        active.UserPromptTemplate,
			Version:           active.Version,
			Source:            types.PromptFromRegistry,
		}
	}
	return types.ResolvedPrompt{
		SystemInstruction: fallback.SystemInstruction,
		UserPrompt:        fallback.UserPrompt,
		Version:           1,
		Source:            types.PromptFromFallback,
	}
}
