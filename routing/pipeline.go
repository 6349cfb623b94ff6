// Package routing implements the classification-and-routing pipeline:
// precheck gate, safety screen, embedding, candidate retrieval, LLM
// arbitration, audit persistence, and dispatch.
package routing

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"golang.org/x/sync/semaphore"

	"github.com/uzsupport/murojaat/ai"
	"github.com/uzsupport/murojaat/ai/safety"
	"github.com/uzsupport/murojaat/internal/profile"
	"github.com/uzsupport/murojaat/plugin/notify"
	"github.com/uzsupport/murojaat/store"
)

const (
	// Retry policy for provider failures: up to maxAttempts total, with
	// exponential backoff between them.
	maxAttempts      = 2
	retryBackoffBase = 500 * time.Millisecond

	// Audit writes must survive inbound-context cancellation; they run on
	// a detached context with this budget.
	persistTimeout = 5 * time.Second
)

// Result is the routing outcome returned to the transport layer.
type Result struct {
	State        State
	DepartmentID *int32
	Reason       string
}

// Pipeline orchestrates one routing run per message. Stages within a
// run are strictly ordered; concurrent runs for different messages are
// capped by a weighted semaphore.
type Pipeline struct {
	profile    *profile.Profile
	store      *store.Store
	embedder   ai.EmbeddingService
	screener   safety.Screener
	retriever  *CandidateRetriever
	arbiter    *Arbiter
	dispatcher *Dispatcher
	sink       notify.Sink
	sem        *semaphore.Weighted
}

// NewPipeline wires the pipeline from process-wide singleton services.
func NewPipeline(
	instanceProfile *profile.Profile,
	s *store.Store,
	embedder ai.EmbeddingService,
	llm ai.LLMService,
	screener safety.Screener,
	sink notify.Sink,
) *Pipeline {
	maxConcurrent := instanceProfile.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}

	return &Pipeline{
		profile:    instanceProfile,
		store:      s,
		embedder:   embedder,
		screener:   screener,
		retriever:  NewCandidateRetriever(s),
		arbiter:    NewArbiter(llm, s),
		dispatcher: NewDispatcher(s, sink),
		sink:       sink,
		sem:        semaphore.NewWeighted(maxConcurrent),
	}
}

// Route runs the full pipeline for one message. Provider failures are
// retried within the bound and then downgraded to a terminal state; the
// returned error is non-nil only when not even an audit record could be
// attempted (store unreachable at the precheck read).
func (p *Pipeline) Route(ctx context.Context, session *store.Session, message *store.Message, opts *ai.ChatOptions) (*Result, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer p.sem.Release(1)

	runID := shortuuid.New()
	start := time.Now()
	logger := slog.With("run_id", runID, "message_uid", message.UID, "session_uid", session.UID)

	record := &store.DecisionRecord{
		MessageUID: message.UID,
		SessionUID: session.UID,
	}

	// Precheck: read the assignment state fresh, immediately before any
	// AI call. It can change between message receipt and this run.
	fresh, err := p.store.GetSessionByUID(ctx, session.UID)
	if err != nil {
		return nil, err
	}
	if fresh != nil && fresh.IsAssigned() {
		departmentID := *fresh.AssignedDepartmentID
		logger.Info("pipeline: session already assigned, notify-only", "department_id", departmentID)

		if err := p.dispatcher.NotifyOnly(ctx, message, departmentID); err != nil {
			logger.Warn("pipeline: notify-only dispatch failed", "error", err)
		}

		record.State = string(StateRoutedDirect)
		record.SuggestedDepartmentID = &departmentID
		record.Reason = "session already assigned"
		p.persist(ctx, logger, record, start)
		return p.finish(StateRoutedDirect, &Result{State: StateRoutedDirect, DepartmentID: &departmentID}), nil
	}

	// Screening.
	verdict := p.timedScreen(message.Text)
	if verdict.Flagged {
		logger.Warn("pipeline: injection detected", "score", verdict.Score, "detail", verdict.Detail)
		p.persistInjection(ctx, logger, message.UID, verdict)
		if err := p.sink.EmergencyAlert(ctx, "Adversarial message blocked: "+message.UID); err != nil {
			logger.Warn("pipeline: emergency alert failed", "error", err)
		}

		record.State = string(StateBlocked)
		record.IsInjection = true
		record.Reason = verdict.Detail
		p.persist(ctx, logger, record, start)
		return p.finish(StateBlocked, &Result{State: StateBlocked, Reason: verdict.Detail}), nil
	}

	// Language gate: only Latin-script Uzbek and Cyrillic-script Russian
	// are supported downstream.
	lang, supported := DetectLanguage(message.Text)
	if !supported {
		logger.Info("pipeline: unsupported language, manual review")
		record.State = string(StateManualReview)
		record.Reason = ReasonUnsupportedLanguage
		p.persist(ctx, logger, record, start)
		return p.finish(StateManualReview, &Result{State: StateManualReview, Reason: ReasonUnsupportedLanguage}), nil
	}

	// Embedding.
	var vector []float32
	err = p.withRetry(ctx, logger, string(StateEmbedding), func() error {
		stageStart := time.Now()
		v, embedErr := p.embedder.Embed(ctx, message.Text)
		stageLatency.WithLabelValues(string(StateEmbedding)).Observe(time.Since(stageStart).Seconds())
		if embedErr != nil {
			return &ProviderError{Stage: string(StateEmbedding), Err: embedErr}
		}
		vector = v
		return nil
	})
	if err != nil {
		return p.failProvider(ctx, logger, record, start, StateEmbedding, err), nil
	}
	record.RawEmbedding = vector

	// Retrieval.
	var candidates []*store.DepartmentCandidate
	err = p.withRetry(ctx, logger, string(StateRetrieving), func() error {
		stageStart := time.Now()
		c, retrieveErr := p.retriever.Retrieve(ctx, vector, lang)
		stageLatency.WithLabelValues(string(StateRetrieving)).Observe(time.Since(stageStart).Seconds())
		if retrieveErr != nil {
			return retrieveErr
		}
		candidates = c
		return nil
	})
	if errors.Is(err, ErrEmptyIndex) {
		logger.Warn("pipeline: department index is empty, manual review")
		record.State = string(StateManualReview)
		record.Reason = ReasonEmptyIndex
		p.persist(ctx, logger, record, start)
		return p.finish(StateManualReview, &Result{State: StateManualReview, Reason: ReasonEmptyIndex}), nil
	}
	if err != nil {
		return p.failProvider(ctx, logger, record, start, StateRetrieving, err), nil
	}
	record.TopCandidates = candidates
	record.VectorSimilarityScore = candidates[0].Score

	// Arbitration.
	var arbiterResult *ArbiterResult
	err = p.withRetry(ctx, logger, string(StateArbitrating), func() error {
		stageStart := time.Now()
		r, arbitrateErr := p.arbiter.Arbitrate(ctx, message.Text, candidates, opts)
		stageLatency.WithLabelValues(string(StateArbitrating)).Observe(time.Since(stageStart).Seconds())
		if arbitrateErr != nil {
			return arbitrateErr
		}
		arbiterResult = r
		return nil
	})
	if err != nil {
		return p.failProvider(ctx, logger, record, start, StateArbitrating, err), nil
	}
	record.Prompt = arbiterResult.Prompt
	record.RawModelOutput = arbiterResult.Raw

	if !arbiterResult.Valid {
		logger.Warn("pipeline: invalid arbiter decision, manual review",
			"reason", arbiterResult.InvalidReason,
			"detail", arbiterResult.InvalidDetail,
		)
		record.State = string(StateManualReview)
		record.Reason = arbiterResult.InvalidReason
		p.persist(ctx, logger, record, start)
		return p.finish(StateManualReview, &Result{State: StateManualReview, Reason: arbiterResult.InvalidReason}), nil
	}

	decision := arbiterResult.Decision
	department := arbiterResult.Department
	record.MessageType = decision.MessageType
	record.RoutingConfidence = decision.RoutingConfidence
	record.SuggestedDepartmentID = &department.ID
	record.SuggestedDepartmentName = department.Name
	record.Reason = decision.Reason

	// Confidence policy: a valid, resolvable decision below the
	// configured floor is withheld from auto-routing. Zero disables the
	// floor.
	if p.profile.MinConfidence > 0 && decision.RoutingConfidence < p.profile.MinConfidence {
		logger.Info("pipeline: confidence below floor, manual review",
			"confidence", decision.RoutingConfidence,
			"floor", p.profile.MinConfidence,
		)
		record.State = string(StateManualReview)
		p.persist(ctx, logger, record, start)
		return p.finish(StateManualReview, &Result{State: StateManualReview, Reason: ReasonLowConfidence}), nil
	}

	record.State = string(StateRouted)
	p.persist(ctx, logger, record, start)

	if err := p.dispatcher.Dispatch(ctx, session, message, department.ID); err != nil {
		// The decision is already durable; delivery trouble is logged,
		// not surfaced to the message source.
		logger.Error("pipeline: dispatch failed", "department_id", department.ID, "error", err)
	}

	logger.Info("pipeline: routed",
		"department_id", department.ID,
		"department", department.Name,
		"confidence", decision.RoutingConfidence,
		"message_type", decision.MessageType,
		"override", arbiterResult.Override,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return p.finish(StateRouted, &Result{State: StateRouted, DepartmentID: &department.ID}), nil
}

func (p *Pipeline) timedScreen(text string) safety.Verdict {
	stageStart := time.Now()
	verdict := p.screener.Screen(text)
	stageLatency.WithLabelValues(string(StateScreening)).Observe(time.Since(stageStart).Seconds())
	screenVerdicts.WithLabelValues(boolLabel(verdict.Flagged)).Inc()
	return verdict
}

// withRetry retries fn on ProviderError, up to the attempt bound, with
// exponential backoff. Any other error passes through immediately.
func (p *Pipeline) withRetry(ctx context.Context, logger *slog.Logger, stage string, fn func() error) error {
	backoff := retryBackoffBase
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		var providerErr *ProviderError
		if !errors.As(err, &providerErr) {
			return err
		}
		if attempt == maxAttempts {
			break
		}

		providerRetries.WithLabelValues(stage).Inc()
		logger.Warn("pipeline: provider failure, retrying",
			"stage", stage,
			"attempt", attempt,
			"backoff", backoff.String(),
			"error", err,
		)
		select {
		case <-ctx.Done():
			return err
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return err
}

// failProvider records the terminal provider failure and downgrades it
// to a PIPELINE_ERROR result, never a raw fault to the caller.
func (p *Pipeline) failProvider(ctx context.Context, logger *slog.Logger, record *store.DecisionRecord, start time.Time, stage State, err error) *Result {
	logger.Error("pipeline: provider failure, retries exhausted", "stage", string(stage), "error", err)
	record.State = string(StateError)
	record.Reason = ReasonProviderError + ":" + string(stage)
	p.persist(ctx, logger, record, start)
	return p.finish(StateError, &Result{State: StateError, Reason: ReasonProviderError})
}

// persist writes the decision record on a detached context so audit
// history survives inbound cancellation.
func (p *Pipeline) persist(ctx context.Context, logger *slog.Logger, record *store.DecisionRecord, start time.Time) {
	record.ProcessDurationMs = time.Since(start).Milliseconds()

	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if _, err := p.store.UpsertDecisionRecord(persistCtx, record); err != nil {
		logger.Error("pipeline: failed to persist decision record", "error", err)
	}
}

func (p *Pipeline) persistInjection(ctx context.Context, logger *slog.Logger, messageUID string, verdict safety.Verdict) {
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if _, err := p.store.UpsertInjectionRecord(persistCtx, &store.InjectionRecord{
		MessageUID: messageUID,
		Verdict:    verdict.Flagged,
		Score:      verdict.Score,
		Detail:     verdict.Detail,
	}); err != nil {
		logger.Error("pipeline: failed to persist injection record", "error", err)
	}
}

func (p *Pipeline) finish(state State, result *Result) *Result {
	pipelineOutcomes.WithLabelValues(string(state)).Inc()
	return result
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
