package sqlite

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/uzsupport/murojaat/store"
)

// UpsertDepartmentProfile inserts or updates one point of the department
// vector index, keyed by (department_id, lang). The embedding is stored
// as JSON text.
func (d *DB) UpsertDepartmentProfile(ctx context.Context, upsert *store.DepartmentProfile) (*store.DepartmentProfile, error) {
	embeddingJSON, err := json.Marshal(upsert.Embedding)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal embedding")
	}

	stmt := `
		INSERT INTO department_profile (department_id, lang, name, description, keywords, embedding, model, updated_ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (department_id, lang)
		DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			keywords = EXCLUDED.keywords,
			embedding = EXCLUDED.embedding,
			model = EXCLUDED.model,
			updated_ts = EXCLUDED.updated_ts
		RETURNING id, updated_ts
	`

	err = d.db.QueryRowContext(ctx, stmt,
		upsert.DepartmentID,
		upsert.Lang,
		upsert.Name,
		upsert.Description,
		upsert.Keywords,
		string(embeddingJSON),
		upsert.Model,
		time.Now().Unix(),
	).Scan(&upsert.ID, &upsert.UpdatedTs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert department profile")
	}

	return upsert, nil
}

// CountDepartmentProfiles returns the number of indexed points.
func (d *DB) CountDepartmentProfiles(ctx context.Context) (int, error) {
	var count int
	err := d.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM department_profile WHERE embedding IS NOT NULL`).Scan(&count)
	if err != nil {
		return 0, errors.Wrap(err, "failed to count department profiles")
	}
	return count, nil
}

// SearchDepartmentProfiles scans the index and computes cosine similarity
// in the application layer. O(n) over the catalog, acceptable for the
// dev driver. Each department appears at most once (best-scoring language
// profile); results are ordered by descending score with ties broken by
// ascending department id.
func (d *DB) SearchDepartmentProfiles(ctx context.Context, search *store.SearchDepartmentProfiles) ([]*store.DepartmentCandidate, error) {
	limit := search.Limit
	if limit <= 0 {
		limit = 3
	}

	query := `
		SELECT dp.department_id, dp.name, dp.description, dp.embedding
		FROM department_profile dp
		INNER JOIN department d ON d.id = dp.department_id AND d.is_active = 1
		WHERE dp.embedding IS NOT NULL
	`
	args := []any{}
	if search.Lang != "" {
		query += ` AND dp.lang = ?`
		args = append(args, search.Lang)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to search department profiles")
	}
	defer rows.Close()

	best := map[int32]*store.DepartmentCandidate{}
	for rows.Next() {
		var candidate store.DepartmentCandidate
		var embeddingJSON string
		if err := rows.Scan(&candidate.DepartmentID, &candidate.Name, &candidate.Description, &embeddingJSON); err != nil {
			return nil, errors.Wrap(err, "failed to scan department profile")
		}

		var embedding []float32
		if err := json.Unmarshal([]byte(embeddingJSON), &embedding); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal embedding")
		}

		candidate.Score = cosineSimilarity(search.Vector, embedding)
		if prev, ok := best[candidate.DepartmentID]; !ok || candidate.Score > prev.Score {
			c := candidate
			best[candidate.DepartmentID] = &c
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	candidates := make([]*store.DepartmentCandidate, 0, len(best))
	for _, candidate := range best {
		candidates = append(candidates, candidate)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].DepartmentID < candidates[j].DepartmentID
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
