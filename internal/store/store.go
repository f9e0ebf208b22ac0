// Package store defines the record store the improvement engine persists to,
// with in-memory and Badger-backed implementations.
package store

import (
	"context"
	"errors"

	"github.com/jonathan/skill-improver/internal/types"
)

// ErrCorrupt marks a persisted collection that exists but cannot be decoded.
// Loads return it wrapped so callers can tell "unreadable" from "empty".
var ErrCorrupt = errors.New("corrupt record collection")

// Collection keys, shared by every key-value backend.
const (
	KeyGrades   = "skill_grades"
	KeyVersions = "skill_versions"
	KeyRequests = "improvement_requests"
)

// Store is durable persistence for grades, versions and improvement requests.
// Loads of a missing collection return an empty slice and no error.
type Store interface {
	LoadGrades(ctx context.Context) ([]types.SkillGrade, error)
	AppendGrade(ctx context.Context, grade types.SkillGrade) error

	LoadVersions(ctx context.Context) ([]types.SkillVersion, error)
	ReplaceVersions(ctx context.Context, versions []types.SkillVersion) error

	LoadRequests(ctx context.Context) ([]types.ImprovementRequest, error)
	ReplaceRequests(ctx context.Context, requests []types.ImprovementRequest) error
}
