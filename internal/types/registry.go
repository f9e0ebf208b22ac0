package types

import "github.com/go-playground/validator/v10"

// RegisterSkillInput creates the first version of a skill.
type RegisterSkillInput struct {
	SkillID            string        `json:"skill_id" validate:"required,max=200"`
	SystemInstruction  string        `json:"system_instruction" validate:"required"`
	UserPromptTemplate string        `json:"user_prompt_template"`
	CreatedBy          VersionAuthor `json:"created_by" validate:"omitempty,oneof=system user ai-improvement"`
}

// Validate validates the RegisterSkillInput using the validator.
func (r *RegisterSkillInput) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// PromptSource says where a resolved prompt came from.
type PromptSource string

const (
	PromptFromRegistry PromptSource = "registry"
	PromptFromFallback PromptSource = "fallback"
)

// ResolvedPrompt is the prompt a skill execution should use.
type ResolvedPrompt struct {
	SystemInstruction string       `json:"system_instruction"`
	UserPrompt        string       `json:"user_prompt"`
	Version           int          `json:"version"`
	Source            PromptSource `json:"source"`
}
