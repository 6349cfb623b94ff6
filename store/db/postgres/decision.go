package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/uzsupport/murojaat/store"
)

// UpsertInjectionRecord writes the safety-screen audit row. A retried
// write for the same message updates the existing row instead of
// creating a duplicate.
func (d *DB) UpsertInjectionRecord(ctx context.Context, upsert *store.InjectionRecord) (*store.InjectionRecord, error) {
	stmt := `
		INSERT INTO injection_record (message_uid, verdict, score, detail, created_ts)
		VALUES (` + placeholders(5) + `)
		ON CONFLICT (message_uid)
		DO UPDATE SET
			verdict = EXCLUDED.verdict,
			score = EXCLUDED.score,
			detail = EXCLUDED.detail
		RETURNING id, created_ts
	`

	err := d.db.QueryRowContext(ctx, stmt,
		upsert.MessageUID,
		upsert.Verdict,
		upsert.Score,
		upsert.Detail,
		time.Now().Unix(),
	).Scan(&upsert.ID, &upsert.CreatedTs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert injection record")
	}

	return upsert, nil
}

// UpsertDecisionRecord writes the full pipeline audit row, keyed by
// message UID with upsert semantics.
func (d *DB) UpsertDecisionRecord(ctx context.Context, upsert *store.DecisionRecord) (*store.DecisionRecord, error) {
	candidatesJSON, err := json.Marshal(upsert.TopCandidates)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal candidates")
	}
	embeddingJSON, err := json.Marshal(upsert.RawEmbedding)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal embedding")
	}

	stmt := `
		INSERT INTO decision_record (
			message_uid, session_uid, prompt, message_type, routing_confidence,
			suggested_department_id, suggested_department_name, reason, raw_model_output,
			vector_similarity_score, top_candidates, raw_embedding, is_injection, state,
			process_duration_ms, created_ts, updated_ts
		)
		VALUES (` + placeholders(17) + `)
		ON CONFLICT (message_uid)
		DO UPDATE SET
			prompt = EXCLUDED.prompt,
			message_type = EXCLUDED.message_type,
			routing_confidence = EXCLUDED.routing_confidence,
			suggested_department_id = EXCLUDED.suggested_department_id,
			suggested_department_name = EXCLUDED.suggested_department_name,
			reason = EXCLUDED.reason,
			raw_model_output = EXCLUDED.raw_model_output,
			vector_similarity_score = EXCLUDED.vector_similarity_score,
			top_candidates = EXCLUDED.top_candidates,
			raw_embedding = EXCLUDED.raw_embedding,
			is_injection = EXCLUDED.is_injection,
			state = EXCLUDED.state,
			process_duration_ms = EXCLUDED.process_duration_ms,
			updated_ts = EXCLUDED.updated_ts
		RETURNING id, created_ts, updated_ts
	`

	now := time.Now().Unix()
	err = d.db.QueryRowContext(ctx, stmt,
		upsert.MessageUID,
		upsert.SessionUID,
		upsert.Prompt,
		upsert.MessageType,
		upsert.RoutingConfidence,
		upsert.SuggestedDepartmentID,
		upsert.SuggestedDepartmentName,
		upsert.Reason,
		upsert.RawModelOutput,
		upsert.VectorSimilarityScore,
		candidatesJSON,
		embeddingJSON,
		upsert.IsInjection,
		upsert.State,
		upsert.ProcessDurationMs,
		now,
		now,
	).Scan(&upsert.ID, &upsert.CreatedTs, &upsert.UpdatedTs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert decision record")
	}

	return upsert, nil
}

// GetDecisionRecordByMessageUID returns the audit row for a message, or
// nil when none exists.
func (d *DB) GetDecisionRecordByMessageUID(ctx context.Context, messageUID string) (*store.DecisionRecord, error) {
	query := `
		SELECT
			id, message_uid, session_uid, prompt, message_type, routing_confidence,
			suggested_department_id, suggested_department_name, reason, raw_model_output,
			vector_similarity_score, top_candidates, raw_embedding, is_injection, state,
			corrected_by_operator, operator_uid, operator_department_id,
			operator_department_name, operator_explanation,
			process_duration_ms, created_ts, updated_ts
		FROM decision_record
		WHERE message_uid = ` + placeholder(1)

	var record store.DecisionRecord
	var candidatesJSON, embeddingJSON []byte
	err := d.db.QueryRowContext(ctx, query, messageUID).Scan(
		&record.ID,
		&record.MessageUID,
		&record.SessionUID,
		&record.Prompt,
		&record.MessageType,
		&record.RoutingConfidence,
		&record.SuggestedDepartmentID,
		&record.SuggestedDepartmentName,
		&record.Reason,
		&record.RawModelOutput,
		&record.VectorSimilarityScore,
		&candidatesJSON,
		&embeddingJSON,
		&record.IsInjection,
		&record.State,
		&record.CorrectedByOperator,
		&record.OperatorUID,
		&record.OperatorDepartmentID,
		&record.OperatorDepartmentName,
		&record.OperatorExplanation,
		&record.ProcessDurationMs,
		&record.CreatedTs,
		&record.UpdatedTs,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get decision record")
	}

	if len(candidatesJSON) > 0 {
		if err := json.Unmarshal(candidatesJSON, &record.TopCandidates); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal candidates")
		}
	}
	if len(embeddingJSON) > 0 {
		if err := json.Unmarshal(embeddingJSON, &record.RawEmbedding); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal embedding")
		}
	}

	return &record, nil
}
