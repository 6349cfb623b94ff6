package postgres

import (
	"context"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/uzsupport/murojaat/store"
)

// UpsertDepartmentProfile inserts or updates one point of the department
// vector index, keyed by (department_id, lang) so re-running ingestion
// with an unchanged catalog never creates duplicate points.
func (d *DB) UpsertDepartmentProfile(ctx context.Context, upsert *store.DepartmentProfile) (*store.DepartmentProfile, error) {
	stmt := `
		INSERT INTO department_profile (department_id, lang, name, description, keywords, embedding, model, updated_ts)
		VALUES (` + placeholders(8) + `)
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

	vector := pgvector.NewVector(upsert.Embedding)
	err := d.db.QueryRowContext(ctx, stmt,
		upsert.DepartmentID,
		upsert.Lang,
		upsert.Name,
		upsert.Description,
		upsert.Keywords,
		vector,
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

// SearchDepartmentProfiles performs cosine similarity search using pgvector.
// Each department appears at most once (best-scoring language profile);
// results are ordered by descending score with ties broken by ascending
// department id.
func (d *DB) SearchDepartmentProfiles(ctx context.Context, search *store.SearchDepartmentProfiles) ([]*store.DepartmentCandidate, error) {
	limit := search.Limit
	if limit <= 0 {
		limit = 3
	}

	vector := pgvector.NewVector(search.Vector)
	args := []any{vector}
	langFilter := ""
	if search.Lang != "" {
		langFilter = "AND dp.lang = " + placeholder(2)
		args = append(args, search.Lang)
	}

	// The <=> operator computes cosine distance (1 - cosine similarity),
	// so the inner query orders by distance ASC per department.
	query := `
		SELECT department_id, name, description, score FROM (
			SELECT DISTINCT ON (dp.department_id)
				dp.department_id,
				dp.name,
				dp.description,
				1 - (dp.embedding <=> ` + placeholder(1) + `) AS score
			FROM department_profile dp
			INNER JOIN department d ON d.id = dp.department_id AND d.is_active
			WHERE dp.embedding IS NOT NULL ` + langFilter + `
			ORDER BY dp.department_id, dp.embedding <=> ` + placeholder(1) + `
		) ranked
		ORDER BY score DESC, department_id ASC
		LIMIT ` + placeholder(len(args)+1)

	args = append(args, limit)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to search department profiles")
	}
	defer rows.Close()

	candidates := []*store.DepartmentCandidate{}
	for rows.Next() {
		var candidate store.DepartmentCandidate
		err := rows.Scan(
			&candidate.DepartmentID,
			&candidate.Name,
			&candidate.Description,
			&candidate.Score,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan department candidate")
		}
		candidates = append(candidates, &candidate)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return candidates, nil
}
