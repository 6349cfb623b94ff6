package routing

// State is a stop on the per-message pipeline state machine.
//
//	RECEIVED → (assigned? → ROUTED_DIRECT)
//	RECEIVED → SCREENING → BLOCKED
//	                     → EMBEDDING → RETRIEVING → ARBITRATING → ROUTED
//	                                                            → MANUAL_REVIEW
//	any provider failure after bounded retry → PIPELINE_ERROR
//
// Terminal states are ROUTED_DIRECT, BLOCKED, ROUTED, MANUAL_REVIEW and
// PIPELINE_ERROR; each leaves an audit record.
type State string

const (
	StateReceived     State = "RECEIVED"
	StateRoutedDirect State = "ROUTED_DIRECT"
	StateScreening    State = "SCREENING"
	StateBlocked      State = "BLOCKED"
	StateEmbedding    State = "EMBEDDING"
	StateRetrieving   State = "RETRIEVING"
	StateArbitrating  State = "ARBITRATING"
	StateRouted       State = "ROUTED"
	StateManualReview State = "MANUAL_REVIEW"
	StateError        State = "PIPELINE_ERROR"
)

// Audit reason markers for non-routed terminal outcomes. Operators
// filter on these, so each failure class keeps a distinct value.
const (
	ReasonEmptyIndex          = "empty_index"
	ReasonMalformedOutput     = "malformed_model_output"
	ReasonUnknownDepartment   = "unknown_department"
	ReasonLowConfidence       = "low_confidence"
	ReasonUnsupportedLanguage = "unsupported_language"
	ReasonProviderError       = "provider_error"
)
