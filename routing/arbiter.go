package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/uzsupport/murojaat/ai"
	"github.com/uzsupport/murojaat/store"
)

// Decision is the strictly-validated shape the model must return.
type Decision struct {
	DepartmentName    string  `json:"department_name"`
	RoutingConfidence float64 `json:"routing_confidence"`
	Reason            string  `json:"reason"`
	MessageType       string  `json:"message_type"` // complaint | suggestion | inquiry
}

// ArbiterResult is a tagged result: either a valid decision resolved to
// a real department, or an invalid one carrying the raw model output and
// the reason it was rejected. Model output is never trusted as a bare
// mapping.
type ArbiterResult struct {
	Valid bool

	// Set when Valid.
	Decision   *Decision
	Department *store.Department
	// Override is true when the chosen department was not in the
	// candidate list (the model used its own judgment).
	Override bool

	// Always set.
	Prompt string
	Raw    string

	// Set when !Valid: ReasonMalformedOutput or ReasonUnknownDepartment.
	InvalidReason string
	InvalidDetail string
}

// Arbiter sends message + candidates to the chat model and validates the
// structured routing decision it returns.
type Arbiter struct {
	llm   ai.LLMService
	store *store.Store
}

// NewArbiter creates an arbiter over the given chat model and catalog.
func NewArbiter(llm ai.LLMService, s *store.Store) *Arbiter {
	return &Arbiter{llm: llm, store: s}
}

const arbiterSystemPrompt = `You are a routing assistant for a citizen support service.
You receive a support message and a list of candidate departments produced by a
semantic similarity search over department profiles. Each candidate carries a
name, a similarity score between 0 and 1, and a description. The top candidate
is usually, but not always, correct: confirm it or override it with any other
existing department using your own judgment, and justify the choice.

Respond with a single JSON object and nothing else:
{"department_name": "<exact department name>", "routing_confidence": <0.0-1.0>, "reason": "<one or two sentences>", "message_type": "complaint" | "suggestion" | "inquiry"}`

var validMessageTypes = map[string]bool{
	"complaint":  true,
	"suggestion": true,
	"inquiry":    true,
}

// Arbitrate runs one arbitration round. A non-nil error is always a
// *ProviderError (chat completion failure); parse and validation
// failures come back as an Invalid result instead, because they are not
// retryable and must still be audited.
func (a *Arbiter) Arbitrate(ctx context.Context, text string, candidates []*store.DepartmentCandidate, opts *ai.ChatOptions) (*ArbiterResult, error) {
	prompt := buildArbiterUserPrompt(text, candidates)

	raw, err := a.llm.Chat(ctx, []ai.Message{
		ai.SystemPrompt(arbiterSystemPrompt),
		ai.UserMessage(prompt),
	}, opts)
	if err != nil {
		return nil, &ProviderError{Stage: string(StateArbitrating), Err: err}
	}

	result := &ArbiterResult{Prompt: prompt, Raw: raw}

	decision, err := parseDecision(raw)
	if err != nil {
		slog.Warn("arbiter: rejecting model output", "error", err)
		result.InvalidReason = ReasonMalformedOutput
		result.InvalidDetail = err.Error()
		return result, nil
	}

	department, err := a.store.GetDepartmentByName(ctx, decision.DepartmentName)
	if err != nil {
		return nil, &ProviderError{Stage: string(StateArbitrating), Err: err}
	}
	if department == nil {
		slog.Warn("arbiter: model named unknown department", "name", decision.DepartmentName)
		result.InvalidReason = ReasonUnknownDepartment
		result.InvalidDetail = (&UnknownDepartmentError{Name: decision.DepartmentName}).Error()
		return result, nil
	}

	result.Valid = true
	result.Decision = decision
	result.Department = department
	result.Override = !inCandidates(candidates, department.ID)
	if result.Override {
		slog.Info("arbiter: accepted override outside candidate list",
			"department_id", department.ID,
			"department", department.Name,
		)
	}
	return result, nil
}

func buildArbiterUserPrompt(text string, candidates []*store.DepartmentCandidate) string {
	var sb strings.Builder
	sb.WriteString("Support message:\n")
	sb.WriteString(text)
	sb.WriteString("\n\nCandidate departments from semantic similarity search:\n")
	for i, c := range candidates {
		sb.WriteString(fmt.Sprintf("%d. %s (similarity %.2f): %s\n", i+1, c.Name, c.Score, c.Description))
	}
	sb.WriteString("\nPick the department that should handle this message.")
	return sb.String()
}

// parseDecision parses and validates the model output. Markdown code
// fences around the JSON are tolerated; everything else is strict.
func parseDecision(raw string) (*Decision, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var decision Decision
	if err := json.Unmarshal([]byte(cleaned), &decision); err != nil {
		return nil, &MalformedOutputError{Raw: raw, Err: err}
	}

	if decision.DepartmentName == "" {
		return nil, &MalformedOutputError{Raw: raw, Err: fmt.Errorf("missing department_name")}
	}
	if decision.RoutingConfidence < 0 || decision.RoutingConfidence > 1 {
		return nil, &MalformedOutputError{Raw: raw, Err: fmt.Errorf("routing_confidence %v out of [0,1]", decision.RoutingConfidence)}
	}
	if !validMessageTypes[decision.MessageType] {
		return nil, &MalformedOutputError{Raw: raw, Err: fmt.Errorf("invalid message_type %q", decision.MessageType)}
	}
	return &decision, nil
}

func inCandidates(candidates []*store.DepartmentCandidate, departmentID int32) bool {
	for _, c := range candidates {
		if c.DepartmentID == departmentID {
			return true
		}
	}
	return false
}
