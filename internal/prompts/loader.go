// Package prompts provides a loader for the canned prompt blocks the
// improvement engine appends to skill instructions. Blocks are stored as
// JSON files and embedded at compile time.
package prompts

import (
	"embed"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"sync"
)

// Prompt files.
const (
	DimensionsFile = "dimensions.json"
	ThemesFile     = "themes.json"
)

//go:embed *.json
var promptFiles embed.FS

// catalog parses every embedded file on first use. The set is fixed at
// compile time so it never needs invalidating.
var catalog = sync.OnceValues(func() (map[string]map[string]string, error) {
	entries, err := promptFiles.ReadDir(".")
	if err != nil {
		return nil, fmt.Errorf("failed to list prompt files: %w", err)
	}
	files := make(map[string]map[string]string, len(entries))
	for _, entry := range entries {
		data, err := promptFiles.ReadFile(entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read prompt file %s: %w", entry.Name(), err)
		}
		var blocks map[string]string
		if err := json.Unmarshal(data, &blocks); err != nil {
			return nil, fmt.Errorf("failed to parse prompt file %s: %w", entry.Name(), err)
		}
		files[entry.Name()] = blocks
	}
	return files, nil
})

func file(filename string) (map[string]string, error) {
	files, err := catalog()
	if err != nil {
		return nil, err
	}
	blocks, ok := files[filename]
	if !ok {
		return nil, fmt.Errorf("unknown prompt file %s", filename)
	}
	return blocks, nil
}

// Get retrieves a prompt by filename and key.
// The filename should not include the path (e.g., "themes.json").
// Returns an error if the file or key is not found.
func Get(filename, key string) (string, error) {
	blocks, err := file(filename)
	if err != nil {
		return "", err
	}

	prompt, exists := blocks[key]
	if !exists {
		return "", fmt.Errorf("prompt key %q not found in %s", key, filename)
	}

	return prompt, nil
}

// MustGet retrieves a prompt by filename and key, panicking if not found.
// Use this for prompts that are required at initialization time.
func MustGet(filename, key string) string {
	prompt, err := Get(filename, key)
	if err != nil {
		panic(fmt.Sprintf("failed to load prompt: %v", err))
	}
	return prompt
}

// Lookup is Get without the error: ok is false when the key is absent.
func Lookup(filename, key string) (string, bool) {
	prompt, err := Get(filename, key)
	if err != nil {
		return "", false
	}
	return prompt, true
}

var placeholder = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Interpolate replaces {{key}} placeholders with values. Placeholders with
// no value (or a nil value) are left in place.
func Interpolate(template string, values map[string]any) string {
	return placeholder.ReplaceAllStringFunc(template, func(match string) string {
		key := placeholder.FindStringSubmatch(match)[1]
		v, ok := values[key]
		if !ok || v == nil {
			return match
		}
		return fmt.Sprint(v)
	})
}

// List returns all available prompt keys in a file, sorted.
func List(filename string) ([]string, error) {
	blocks, err := file(filename)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(blocks))
	for key := range blocks {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}
