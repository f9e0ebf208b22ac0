package improvement

import "fmt"

// ValidationError wraps a rejected grade or registration input.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid input: %v", e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// SkillExistsError is returned when registering a skill that already has versions.
type SkillExistsError struct {
	SkillID string
}

func (e *SkillExistsError) Error() string {
	return fmt.Sprintf("skill already registered: %s", e.SkillID)
}
