// Package types provides type definitions for structured data used throughout the skill-improver system.
//
//nolint:revive // types is a standard Go package name pattern
package types

// QualityDimension is one of the fixed axes a grade can score.
type QualityDimension string

const (
	DimensionRelevance       QualityDimension = "relevance"       // Output matches the user's intent
	DimensionAccuracy        QualityDimension = "accuracy"        // Information is correct and reliable
	DimensionCompleteness    QualityDimension = "completeness"    // All aspects of the request are addressed
	DimensionClarity         QualityDimension = "clarity"         // Output is clear and well-organized
	DimensionActionability   QualityDimension = "actionability"   // Output provides actionable guidance
	DimensionProfessionalism QualityDimension = "professionalism" // Tone and format are professional
)

// AllDimensions lists every dimension in canonical evaluation order.
var AllDimensions = []QualityDimension{
	DimensionRelevance,
	DimensionAccuracy,
	DimensionCompleteness,
	DimensionClarity,
	DimensionActionability,
	DimensionProfessionalism,
}

// Valid reports whether d is one of the known dimensions.
func (d QualityDimension) Valid() bool {
	switch d {
	case DimensionRelevance, DimensionAccuracy, DimensionCompleteness,
		DimensionClarity, DimensionActionability, DimensionProfessionalism:
		return true
	}
	return false
}

// FeedbackTheme identifies one keyword family the pattern analyzer looks for.
type FeedbackTheme string

const (
	ThemeTooLong      FeedbackTheme = "too-long"
	ThemeTooShort     FeedbackTheme = "too-short"
	ThemeNotRelevant  FeedbackTheme = "not-relevant"
	ThemeTooGeneric   FeedbackTheme = "too-generic"
	ThemeFormatIssues FeedbackTheme = "format-issues"
	ThemeToneIssues   FeedbackTheme = "tone-issues"
)

// AllThemes lists every feedback theme in table order.
var AllThemes = []FeedbackTheme{
	ThemeTooLong,
	ThemeTooShort,
	ThemeNotRelevant,
	ThemeTooGeneric,
	ThemeFormatIssues,
	ThemeToneIssues,
}

// Label returns the human-readable theme description shown to reviewers.
func (t FeedbackTheme) Label() string {
	switch t {
	case ThemeTooLong:
		return "Output is too long/verbose"
	case ThemeTooShort:
		return "Output is too short/lacking detail"
	case ThemeNotRelevant:
		return "Output not relevant to request"
	case ThemeTooGeneric:
		return "Output is too generic"
	case ThemeFormatIssues:
		return "Formatting or structure issues"
	case ThemeToneIssues:
		return "Tone or style needs adjustment"
	}
	return string(t)
}
