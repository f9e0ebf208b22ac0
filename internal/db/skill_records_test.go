package db

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/skill-improver/internal/store"
	"github.com/jonathan/skill-improver/internal/types"
)

func TestDecodeRecord_Valid(t *testing.T) {
	v, err := decodeRecord[types.SkillVersion]([]byte(`{"id":"v1","skill_id":"s1","version":2,"is_active":true}`), store.KeyVersions)
	require.NoError(t, err)
	assert.Equal(t, "v1", v.ID)
	assert.Equal(t, 2, v.Version)
	assert.True(t, v.IsActive)
}

func TestDecodeRecord_Corrupt(t *testing.T) {
	_, err := decodeRecord[types.SkillGrade]([]byte(`{"id":`), store.KeyGrades)
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrCorrupt))
	assert.Contains(t, err.Error(), store.KeyGrades)
}

func TestSchema_EnforcesSingleActiveVersion(t *testing.T) {
	assert.Contains(t, schema, "WHERE is_active")
	assert.Contains(t, schema, "UNIQUE (skill_id, version)")
}
