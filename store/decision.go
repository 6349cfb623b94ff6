package store

// InjectionRecord is the audit row for a safety-screen positive verdict.
// Written exactly once per message (upsert keyed by message UID).
type InjectionRecord struct {
	ID         int32
	MessageUID string
	Verdict    bool
	Score      float64
	Detail     string
	CreatedTs  int64
}

// DecisionRecord is the audit row capturing the full pipeline outcome for
// one message. Upsert keyed by message UID so retried writes never create
// duplicates. The operator-override fields are left unset by the pipeline;
// they belong to the manual-correction feature.
type DecisionRecord struct {
	ID         int32
	MessageUID string
	SessionUID string

	// Arbitration
	Prompt                  string
	MessageType             string // complaint | suggestion | inquiry
	RoutingConfidence       float64
	SuggestedDepartmentID   *int32
	SuggestedDepartmentName string
	Reason                  string
	RawModelOutput          string // retained in full on invalid output

	// Retrieval debug info
	VectorSimilarityScore float64
	TopCandidates         []*DepartmentCandidate // capped at 3, descending score
	RawEmbedding          []float32

	// Flags and outcome
	IsInjection bool
	State       string // terminal pipeline state

	// Operator override (out of scope for the pipeline, always default here)
	CorrectedByOperator     bool
	OperatorUID             *string
	OperatorDepartmentID    *int32
	OperatorDepartmentName  *string
	OperatorExplanation     *string

	ProcessDurationMs int64
	CreatedTs         int64
	UpdatedTs         int64
}
