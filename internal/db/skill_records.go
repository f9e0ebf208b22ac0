package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jonathan/skill-improver/internal/store"
	"github.com/jonathan/skill-improver/internal/types"
)

var _ store.Store = (*DB)(nil)

// LoadGrades returns every grade in insertion order.
func (db *DB) LoadGrades(ctx context.Context) ([]types.SkillGrade, error) {
	rows, err := db.pool.Query(ctx, `SELECT content FROM skill_grades ORDER BY seq`)
	if err != nil {
		return []types.SkillGrade{}, fmt.Errorf("failed to load grades: %w", err)
	}
	grades, err := scanContent[types.SkillGrade](rows, store.KeyGrades)
	if err != nil {
		return []types.SkillGrade{}, err
	}
	return grades, nil
}

// AppendGrade inserts one grade.
func (db *DB) AppendGrade(ctx context.Context, grade types.SkillGrade) error {
	content, err := json.Marshal(grade)
	if err != nil {
		return fmt.Errorf("failed to marshal grade: %w", err)
	}
	_, err = db.pool.Exec(ctx,
		`INSERT INTO skill_grades (id, skill_id, skill_version_id, graded_at, content)
		 VALUES ($1, $2, $3, $4, $5)`,
		grade.ID, grade.SkillID, grade.SkillVersionID, grade.GradedAt, content,
	)
	if err != nil {
		return fmt.Errorf("failed to append grade %s: %w", grade.ID, err)
	}
	return nil
}

// LoadVersions returns every skill version in stored order.
func (db *DB) LoadVersions(ctx context.Context) ([]types.SkillVersion, error) {
	rows, err := db.pool.Query(ctx, `SELECT content FROM skill_versions ORDER BY position`)
	if err != nil {
		return []types.SkillVersion{}, fmt.Errorf("failed to load versions: %w", err)
	}
	versions, err := scanContent[types.SkillVersion](rows, store.KeyVersions)
	if err != nil {
		return []types.SkillVersion{}, err
	}
	return versions, nil
}

// ReplaceVersions rewrites the version collection in a single transaction.
func (db *DB) ReplaceVersions(ctx context.Context, versions []types.SkillVersion) error {
	return pgx.BeginFunc(ctx, db.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM skill_versions`); err != nil {
			return fmt.Errorf("failed to clear versions: %w", err)
		}
		batch := &pgx.Batch{}
		for i, v := range versions {
			content, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("failed to marshal version %s: %w", v.ID, err)
			}
			batch.Queue(
				`INSERT INTO skill_versions (id, skill_id, version, is_active, position, content)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				v.ID, v.SkillID, v.Version, v.IsActive, i, content,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to write versions: %w", err)
		}
		return nil
	})
}

// LoadRequests returns every improvement request in stored order.
func (db *DB) LoadRequests(ctx context.Context) ([]types.ImprovementRequest, error) {
	rows, err := db.pool.Query(ctx, `SELECT content FROM improvement_requests ORDER BY position`)
	if err != nil {
		return []types.ImprovementRequest{}, fmt.Errorf("failed to load improvement requests: %w", err)
	}
	requests, err := scanContent[types.ImprovementRequest](rows, store.KeyRequests)
	if err != nil {
		return []types.ImprovementRequest{}, err
	}
	return requests, nil
}

// ReplaceRequests rewrites the request collection in a single transaction.
func (db *DB) ReplaceRequests(ctx context.Context, requests []types.ImprovementRequest) error {
	return pgx.BeginFunc(ctx, db.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM improvement_requests`); err != nil {
			return fmt.Errorf("failed to clear improvement requests: %w", err)
		}
		batch := &pgx.Batch{}
		for i, r := range requests {
			content, err := json.Marshal(r)
			if err != nil {
				return fmt.Errorf("failed to marshal improvement request %s: %w", r.ID, err)
			}
			batch.Queue(
				`INSERT INTO improvement_requests (id, skill_id, status, triggered_at, position, content)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				r.ID, r.SkillID, string(r.Status), r.TriggeredAt, i, content,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to write improvement requests: %w", err)
		}
		return nil
	})
}

// scanContent decodes the JSONB content column of every row. A row that
// does not decode marks the whole collection corrupt.
func scanContent[T any](rows pgx.Rows, collection string) ([]T, error) {
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", collection, err)
		}
		item, err := decodeRecord[T](raw, collection)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", collection, err)
	}
	return out, nil
}

func decodeRecord[T any](raw []byte, collection string) (T, error) {
	var item T
	if err := json.Unmarshal(raw, &item); err != nil {
		return item, fmt.Errorf("%w: %s: %v", store.ErrCorrupt, collection, err)
	}
	return item, nil
}
