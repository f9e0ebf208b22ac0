package improvement

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/jonathan/skill-improver/internal/prompts"
	"github.com/jonathan/skill-improver/internal/types"
)

const (
	excerptRunes      = 500
	systemFieldName   = "systemInstruction"
	themeChangeImpact = "Address common user complaint pattern"
)

// cannedBlock is a block of instructions appended to a system instruction.
type cannedBlock struct {
	addition  string
	rationale string
}

// dimensionBlock returns the canned block for a weak dimension. Every
// dimension has one.
func dimensionBlock(dim types.QualityDimension) (cannedBlock, bool) {
	switch dim {
	case types.DimensionRelevance, types.DimensionAccuracy, types.DimensionCompleteness,
		types.DimensionClarity, types.DimensionActionability, types.DimensionProfessionalism:
		return cannedBlock{
			addition:  prompts.MustGet(prompts.DimensionsFile, string(dim)+"-addition"),
			rationale: prompts.MustGet(prompts.DimensionsFile, string(dim)+"-rationale"),
		}, true
	}
	return cannedBlock{}, false
}

// themeBlock returns the canned block for a feedback theme. Only too-long,
// too-short and too-generic have one; the rest are skipped.
func themeBlock(theme types.FeedbackTheme) (cannedBlock, bool) {
	switch theme {
	case types.ThemeTooLong, types.ThemeTooShort, types.ThemeTooGeneric:
		return cannedBlock{
			addition:  prompts.MustGet(prompts.ThemesFile, string(theme)+"-addition"),
			rationale: prompts.MustGet(prompts.ThemesFile, string(theme)+"-rationale"),
		}, true
	case types.ThemeNotRelevant, types.ThemeFormatIssues, types.ThemeToneIssues:
		return cannedBlock{}, false
	}
	return cannedBlock{}, false
}

// GenerateProposedChanges maps a diagnosis onto system-instruction edits for
// the given version: one per weak dimension (medium confidence), then one per
// feedback theme that has a canned block (high confidence). A nil version
// yields no changes.
func GenerateProposedChanges(current *types.SkillVersion, analysis types.IssueAnalysis) []types.ProposedChange {
	changes := []types.ProposedChange{}
	if current == nil {
		return changes
	}

	for _, dim := range analysis.WeakestDimensions {
		block, ok := dimensionBlock(dim)
		if !ok {
			continue
		}
		changes = append(changes, appendInstruction(current, block,
			fmt.Sprintf("Expected to improve %s scores by 0.5-1.0 points", dim),
			types.ConfidenceMedium))
	}

	for _, theme := range analysis.FeedbackThemes {
		block, ok := themeBlock(theme.Theme)
		if !ok {
			continue
		}
		changes = append(changes, appendInstruction(current, block, themeChangeImpact, types.ConfidenceHigh))
	}

	return changes
}

func appendInstruction(current *types.SkillVersion, block cannedBlock, impact string, confidence types.Confidence) types.ProposedChange {
	applied := current.SystemInstruction + "\n\n" + block.addition
	return types.ProposedChange{
		ID:             uuid.NewString(),
		ChangeType:     types.ChangeSystemInstruction,
		Field:          systemFieldName,
		OldValue:       tailExcerpt(current.SystemInstruction, excerptRunes),
		NewValue:       tailExcerpt(applied, excerptRunes),
		AppliedValue:   applied,
		Rationale:      block.rationale,
		ExpectedImpact: impact,
		Confidence:     confidence,
	}
}

// tailExcerpt keeps the last n runes of s, marking a cut with a leading "...".
func tailExcerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return "..." + string(r[len(r)-n:])
}
