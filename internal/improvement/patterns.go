package improvement

import (
	"sort"
	"strings"

	"github.com/jonathan/skill-improver/internal/types"
)

const (
	minFeedbackTexts   = 3
	minThemeFrequency  = 2
	maxThemeExamples   = 3
	maxExampleRunes    = 200
	feedbackTriggerMin = 3
)

// FeedbackPattern is one recurring theme found in free-text feedback.
type FeedbackPattern struct {
	Theme     types.FeedbackTheme `json:"theme"`
	Label     string              `json:"label"`
	Frequency int                 `json:"frequency"`
	Examples  []string            `json:"examples"`
}

// themeKeywords returns the literal, lower-case substrings that signal a theme.
func themeKeywords(theme types.FeedbackTheme) []string {
	switch theme {
	case types.ThemeTooLong:
		return []string{"too long", "verbose", "shorter", "concise", "wordy"}
	case types.ThemeTooShort:
		return []string{"too short", "more detail", "lacking", "incomplete", "not enough"}
	case types.ThemeNotRelevant:
		return []string{"not relevant", "off topic", "wrong", "different", "didn't ask"}
	case types.ThemeTooGeneric:
		return []string{"generic", "specific", "customized", "personalized", "template"}
	case types.ThemeFormatIssues:
		return []string{"format", "structure", "layout", "organize", "readable"}
	case types.ThemeToneIssues:
		return []string{"tone", "formal", "casual", "professional", "style"}
	}
	return nil
}

func matchesTheme(lowerText string, theme types.FeedbackTheme) bool {
	for _, kw := range themeKeywords(theme) {
		if strings.Contains(lowerText, kw) {
			return true
		}
	}
	return false
}

// DetectFeedbackPatterns matches each grade's feedback text against the
// keyword families and returns themes seen at least twice, most frequent
// first. Fewer than three grades with text yields no patterns.
func DetectFeedbackPatterns(grades []types.SkillGrade) []FeedbackPattern {
	texts := make([]string, 0, len(grades))
	for i := range grades {
		if text := grades[i].FeedbackText(); text != "" {
			texts = append(texts, text)
		}
	}
	if len(texts) < minFeedbackTexts {
		return []FeedbackPattern{}
	}

	// order records first sighting so ties keep a stable, input-driven order
	var order []types.FeedbackTheme
	found := map[types.FeedbackTheme]*FeedbackPattern{}
	for _, text := range texts {
		lower := strings.ToLower(text)
		for _, theme := range types.AllThemes {
			if !matchesTheme(lower, theme) {
				continue
			}
			p, ok := found[theme]
			if !ok {
				p = &FeedbackPattern{Theme: theme, Label: theme.Label(), Examples: []string{}}
				found[theme] = p
				order = append(order, theme)
			}
			p.Frequency++
			if len(p.Examples) < maxThemeExamples {
				p.Examples = append(p.Examples, truncateRunes(text, maxExampleRunes))
			}
		}
	}

	patterns := make([]FeedbackPattern, 0, len(order))
	for _, theme := range order {
		if p := found[theme]; p.Frequency >= minThemeFrequency {
			patterns = append(patterns, *p)
		}
	}
	sort.SliceStable(patterns, func(i, j int) bool {
		return patterns[i].Frequency > patterns[j].Frequency
	})
	return patterns
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
