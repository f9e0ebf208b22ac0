package improvement

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/skill-improver/internal/prompts"
	"github.com/jonathan/skill-improver/internal/types"
)

func TestGenerateProposedChanges(t *testing.T) {
	current := &types.SkillVersion{ID: "v1", SkillID: "s1", Version: 1, SystemInstruction: "You write cover letters."}
	analysis := types.IssueAnalysis{
		WeakestDimensions: []types.QualityDimension{types.DimensionClarity},
		FeedbackThemes: []types.ThemeSummary{
			{Theme: types.ThemeTooLong, Frequency: 4},
			{Theme: types.ThemeFormatIssues, Frequency: 2},
		},
	}

	changes := GenerateProposedChanges(current, analysis)
	require.Len(t, changes, 2, "format-issues has no canned block")

	clarity := changes[0]
	assert.Equal(t, types.ChangeSystemInstruction, clarity.ChangeType)
	assert.Equal(t, "systemInstruction", clarity.Field)
	assert.Equal(t, types.ConfidenceMedium, clarity.Confidence)
	assert.Equal(t, "Expected to improve clarity scores by 0.5-1.0 points", clarity.ExpectedImpact)
	assert.Equal(t, prompts.MustGet(prompts.DimensionsFile, "clarity-rationale"), clarity.Rationale)
	assert.Equal(t, "You write cover letters.", clarity.OldValue)
	assert.Equal(t, "You write cover letters.\n\n"+prompts.MustGet(prompts.DimensionsFile, "clarity-addition"), clarity.AppliedValue)
	assert.NotEmpty(t, clarity.ID)

	tooLong := changes[1]
	assert.Equal(t, types.ConfidenceHigh, tooLong.Confidence)
	assert.Equal(t, "Address common user complaint pattern", tooLong.ExpectedImpact)
	assert.True(t, strings.HasSuffix(tooLong.AppliedValue, prompts.MustGet(prompts.ThemesFile, "too-long-addition")))
	assert.NotEqual(t, clarity.ID, tooLong.ID)
}

func TestGenerateProposedChanges_NoVersion(t *testing.T) {
	changes := GenerateProposedChanges(nil, types.IssueAnalysis{
		WeakestDimensions: []types.QualityDimension{types.DimensionAccuracy},
	})
	assert.NotNil(t, changes)
	assert.Empty(t, changes)
}

func TestGenerateProposedChanges_ExcerptsLongInstruction(t *testing.T) {
	current := &types.SkillVersion{SystemInstruction: strings.Repeat("é", 600)}
	changes := GenerateProposedChanges(current, types.IssueAnalysis{
		FeedbackThemes: []types.ThemeSummary{{Theme: types.ThemeTooShort}},
	})
	require.Len(t, changes, 1)

	c := changes[0]
	assert.True(t, strings.HasPrefix(c.OldValue, "..."))
	assert.Len(t, []rune(c.OldValue), 503)
	assert.True(t, strings.HasPrefix(c.NewValue, "..."))
	assert.Equal(t, current.SystemInstruction+"\n\n"+prompts.MustGet(prompts.ThemesFile, "too-short-addition"), c.FullValue())
}

func TestTailExcerpt(t *testing.T) {
	assert.Equal(t, "short", tailExcerpt("short", 10))
	assert.Equal(t, "...ghij", tailExcerpt("abcdefghij", 4))
}

func TestDimensionBlock_EveryDimension(t *testing.T) {
	for _, d := range types.AllDimensions {
		block, ok := dimensionBlock(d)
		assert.True(t, ok, d)
		assert.NotEmpty(t, block.addition, d)
		assert.NotEmpty(t, block.rationale, d)
	}
}
