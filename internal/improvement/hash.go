package improvement

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// HashInputs fingerprints a skill's inputs for SkillGrade.InputsHash.
// Map keys are marshaled in sorted order, so equal inputs hash equally.
func HashInputs(inputs map[string]any) (string, error) {
	data, err := json.Marshal(inputs)
	if err != nil {
		return "", fmt.Errorf("failed to marshal inputs: %w", err)
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}
