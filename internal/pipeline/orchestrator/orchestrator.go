// internal/pipeline/orchestrator/orchestrator.go
package orchestrator

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	stderrors "support-triage/internal/common/errors"
	"support-triage/internal/common/logger"
	"support-triage/internal/common/metrics"
	"support-triage/internal/common/observability"
	"support-triage/internal/models"
)

// Fixed user-visible strings. Appending the handoff sentence is idempotent:
// a response already ending in it is never extended again.
const (
	earlyExitMessage = "This looks like something our support team should handle directly. I'm connecting you with a human agent right away."

	handoffSentence = "I'm connecting you with a human agent to assist you further."

	apologyMessage = "I apologize, but I'm experiencing a technical issue right now. A support agent will be with you shortly."

	escalateSuggestionText = "Escalate to a senior support agent immediately."

	reviewSuggestionText = "Review the draft response before sending it to the customer."

	outageSuggestionText = "Technical issue in the AI pipeline - escalate to the support team."
)

// Analyzer, Retriever, Generator, and Suggester are the stage surfaces the
// orchestrator sequences. The concrete implementations live in the sibling
// pipeline packages; tests inject fakes.
type Analyzer interface {
	Analyze(ctx context.Context, query string) *models.AnalysisResult
}

type Retriever interface {
	Retrieve(ctx context.Context, query, tenantID string) *models.RetrievalResult
}

type Generator interface {
	Generate(ctx context.Context, query string, retrieval *models.RetrievalResult) *models.GenerationResult
}

type Suggester interface {
	Suggest(ctx context.Context, query string, passages []string, combinedConfidence float64) []models.Suggestion
}

// StatusStore persists conversation status transitions. Only red transitions
// are written by this workflow; lifecycle beyond that is external.
type StatusStore interface {
	UpdateConversationStatus(ctx context.Context, conversationID string, severity models.Severity, assignedAgentID string) (*models.ConversationRecord, error)
}

// Notifier delivers escalation notifications to the agent desk.
type Notifier interface {
	NotifyEscalation(ctx context.Context, turn *models.ConversationTurn, result *models.WorkflowResult) error
}

// ResultCache is the advisory response cache consulted before running the
// pipeline. A nil cache is valid and disables caching.
type ResultCache interface {
	Get(ctx context.Context, key string) *models.WorkflowResult
	Set(ctx context.Context, key string, result *models.WorkflowResult)
}

// CacheKeyFunc derives the tenant-scoped cache key for a turn.
type CacheKeyFunc func(tenantID, query string, priorMessages []models.Message) string

// Config holds the tunable thresholds of the handoff state machine.
type Config struct {
	AnalyzerWeight      float64
	GeneratorWeight     float64
	RedThreshold        float64
	YellowThreshold     float64
	EarlyExitConfidence float64
	CombinedMax         float64
	// EagerRetrieval launches retrieval concurrently with analysis. The
	// retrieval result is discarded when the early exit fires, trading model
	// cost for latency. Off by default.
	EagerRetrieval bool
}

// DefaultConfig returns the canonical weighting and thresholds.
func DefaultConfig() *Config {
	return &Config{
		AnalyzerWeight:      0.6,
		GeneratorWeight:     0.4,
		RedThreshold:        0.5,
		YellowThreshold:     0.7,
		EarlyExitConfidence: 0.3,
		CombinedMax:         0.95,
	}
}

// Orchestrator drives one conversation turn through analysis, retrieval,
// generation, severity classification, and the resulting side effects. It
// holds no per-turn state and is safe for concurrent use.
type Orchestrator struct {
	config    *Config
	analyzer  Analyzer
	retriever Retriever
	generator Generator
	suggester Suggester
	store     StatusStore
	notifier  Notifier
	cache     ResultCache
	cacheKey  CacheKeyFunc
	obs       *observability.Observability
	errs      *stderrors.ErrorHandler
	logger    logger.Logger
}

// Option configures optional collaborators.
type Option func(*Orchestrator)

// WithCache attaches the advisory response cache.
func WithCache(cache ResultCache, keyFn CacheKeyFunc) Option {
	return func(o *Orchestrator) {
		o.cache = cache
		o.cacheKey = keyFn
	}
}

// WithNotifier attaches the escalation notifier.
func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

// WithObservability attaches the OTel recorder.
func WithObservability(obs *observability.Observability) Option {
	return func(o *Orchestrator) { o.obs = obs }
}

func New(config *Config, analyzer Analyzer, retriever Retriever, generator Generator, suggester Suggester, store StatusStore, log logger.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		config:    config,
		analyzer:  analyzer,
		retriever: retriever,
		generator: generator,
		suggester: suggester,
		store:     store,
		logger:    log.WithFields(map[string]interface{}{"component": "orchestrator"}),
	}
	o.errs = stderrors.NewErrorHandler(o.logger)
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ProcessTurn runs the full handoff workflow for one turn. It never returns
// an error and never panics outward: any failure that escapes the stage-level
// fallbacks is converted into the fixed red escalation result.
func (o *Orchestrator) ProcessTurn(ctx context.Context, turn *models.ConversationTurn) (result *models.WorkflowResult) {
	metrics.TurnsActive.Inc()
	defer metrics.TurnsActive.Dec()

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("pipeline panic recovered", map[string]interface{}{
				"conversationId": turn.ConversationID,
				"panic":          r,
			})
			result = o.failureResult()
		}
		metrics.TurnsProcessed.WithLabelValues(string(result.Severity)).Inc()
		if o.obs != nil {
			o.obs.RecordTurnProcessed(ctx, string(result.Severity))
		}
	}()

	var key string
	if o.cache != nil && o.cacheKey != nil {
		key = o.cacheKey(turn.TenantID, turn.UserQuery, turn.PriorMessages)
		if cached := o.cache.Get(ctx, key); cached != nil {
			o.logger.Debug("cache hit", map[string]interface{}{
				"conversationId": turn.ConversationID,
			})
			return cached
		}
	}

	result = o.runPipeline(ctx, turn)

	// Only confident autonomous answers are worth caching; anything that
	// needed an agent is conversation-specific.
	if key != "" && result.Severity == models.SeverityGreen {
		o.cache.Set(ctx, key, result)
	}

	return result
}

func (o *Orchestrator) runPipeline(ctx context.Context, turn *models.ConversationTurn) *models.WorkflowResult {
	var analysis *models.AnalysisResult
	var retrieval *models.RetrievalResult

	if o.config.EagerRetrieval {
		// Analysis and retrieval are independent of each other; only
		// generation depends on retrieval output.
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			analysis = o.timedAnalyze(gctx, turn.UserQuery)
			return nil
		})
		g.Go(func() error {
			retrieval = o.timedRetrieve(gctx, turn.UserQuery, turn.TenantID)
			return nil
		})
		_ = g.Wait()

		if o.shouldShortCircuit(analysis) {
			return o.escalateEarly(ctx, turn, analysis)
		}
	} else {
		analysis = o.timedAnalyze(ctx, turn.UserQuery)
		if o.shouldShortCircuit(analysis) {
			return o.escalateEarly(ctx, turn, analysis)
		}
		retrieval = o.timedRetrieve(ctx, turn.UserQuery, turn.TenantID)
	}

	generation := o.timedGenerate(ctx, turn.UserQuery, retrieval)
	if generation.Failed {
		// The model gave nothing usable; the stage fallbacks would still
		// produce a blended confidence, but there is no answer behind it.
		metrics.Escalations.WithLabelValues("outage").Inc()
		o.logger.Error("generation produced no model output", map[string]interface{}{
			"conversationId": turn.ConversationID,
		})
		return o.failureResult()
	}

	combined := o.combineConfidence(analysis.AIConfidence, generation.SelfConfidence)
	needsHuman := analysis.NeedsImmediateHuman || generation.SuggestsHumanHelp
	severity := o.classify(combined, needsHuman)

	result := &models.WorkflowResult{
		Response:    generation.ResponseText,
		Severity:    severity,
		Confidence:  combined,
		Suggestions: []models.Suggestion{},
		Sources:     retrieval.Sources,
	}

	if severity == models.SeverityYellow {
		start := time.Now()
		result.Suggestions = o.suggester.Suggest(ctx, turn.UserQuery, retrieval.Passages, combined)
		o.recordStage(ctx, "suggest", start, "ok")
		// A yellow turn always carries at least one suggestion, even when
		// the suggestion threshold is configured below the yellow one.
		if len(result.Suggestions) == 0 {
			result.Suggestions = []models.Suggestion{{
				ID:         "suggestion-1",
				Text:       reviewSuggestionText,
				Confidence: 0.8,
			}}
		}
	}

	if severity == models.SeverityRed {
		if len(result.Suggestions) == 0 {
			result.Suggestions = []models.Suggestion{{
				ID:         "suggestion-1",
				Text:       escalateSuggestionText,
				Confidence: 0.95,
			}}
		}
		trigger := "low_confidence"
		if needsHuman {
			trigger = "human_flag"
		}
		metrics.Escalations.WithLabelValues(trigger).Inc()
		o.escalate(ctx, turn, result)
	}

	if result.Suggestions == nil {
		result.Suggestions = []models.Suggestion{}
	}

	o.logger.Info("turn processed", map[string]interface{}{
		"conversationId": turn.ConversationID,
		"tenantId":       turn.TenantID,
		"severity":       string(severity),
		"confidence":     combined,
		"needsHuman":     needsHuman,
		"usedFallback":   retrieval.UsedFallback,
	})

	return result
}

func (o *Orchestrator) shouldShortCircuit(analysis *models.AnalysisResult) bool {
	return analysis.NeedsImmediateHuman && analysis.AIConfidence < o.config.EarlyExitConfidence
}

// escalateEarly handles the cost-saving short circuit: the turn is already
// known to need a human, so generation never runs.
func (o *Orchestrator) escalateEarly(ctx context.Context, turn *models.ConversationTurn, analysis *models.AnalysisResult) *models.WorkflowResult {
	metrics.Escalations.WithLabelValues("early_exit").Inc()

	result := &models.WorkflowResult{
		Response:   earlyExitMessage,
		Severity:   models.SeverityRed,
		Confidence: models.Clamp01(analysis.AIConfidence),
		Suggestions: []models.Suggestion{{
			ID:         "suggestion-1",
			Text:       escalateSuggestionText,
			Confidence: 0.95,
		}},
		Sources: []models.SourceRef{},
	}

	o.escalate(ctx, turn, result)

	o.logger.Info("turn short-circuited to red", map[string]interface{}{
		"conversationId": turn.ConversationID,
		"intent":         analysis.Intent,
		"aiConfidence":   analysis.AIConfidence,
	})

	return result
}

// escalate performs the red-transition side effects: persist the status,
// notify the agent desk, and append the handoff sentence once. Side-effect
// failures are logged and swallowed; escalation must never fail the turn.
func (o *Orchestrator) escalate(ctx context.Context, turn *models.ConversationTurn, result *models.WorkflowResult) {
	if o.store != nil && turn.ConversationID != "" {
		if _, err := o.store.UpdateConversationStatus(ctx, turn.ConversationID, models.SeverityRed, ""); err != nil {
			metrics.StageFailures.WithLabelValues("persist", "STATUS_UPDATE_FAILED").Inc()
			o.errs.HandleStageError("persist", turn.ConversationID, err)
		}
	}

	if o.notifier != nil {
		if err := o.notifier.NotifyEscalation(ctx, turn, result); err != nil {
			metrics.StageFailures.WithLabelValues("notify", "NOTIFICATION_SEND_FAILED").Inc()
			o.errs.HandleStageError("notify", turn.ConversationID, err)
		}
	}

	if !strings.HasSuffix(result.Response, handoffSentence) {
		result.Response = strings.TrimSpace(result.Response) + " " + handoffSentence
	}
}

// combineConfidence blends the analyzer and generator signals. The analyzer
// weight is higher because its judgment of whether the topic itself is
// escalation-prone outranks the generator's opinion of its own prose.
func (o *Orchestrator) combineConfidence(analyzerConf, generatorConf float64) float64 {
	combined := o.config.AnalyzerWeight*models.Clamp01(analyzerConf) + o.config.GeneratorWeight*models.Clamp01(generatorConf)
	if combined > o.config.CombinedMax {
		combined = o.config.CombinedMax
	}
	return models.Clamp01(combined)
}

func (o *Orchestrator) classify(combined float64, needsHuman bool) models.Severity {
	if needsHuman || combined < o.config.RedThreshold {
		return models.SeverityRed
	}
	if combined < o.config.YellowThreshold {
		return models.SeverityYellow
	}
	return models.SeverityGreen
}

// failureResult is the orchestrator-level catch-all: a fixed red response the
// caller can always act on.
func (o *Orchestrator) failureResult() *models.WorkflowResult {
	return &models.WorkflowResult{
		Response:   apologyMessage,
		Severity:   models.SeverityRed,
		Confidence: 0.0,
		Suggestions: []models.Suggestion{{
			ID:         "suggestion-1",
			Text:       outageSuggestionText,
			Confidence: 1.0,
		}},
		Sources: []models.SourceRef{},
	}
}

func (o *Orchestrator) timedAnalyze(ctx context.Context, query string) *models.AnalysisResult {
	start := time.Now()
	result := o.analyzer.Analyze(ctx, query)
	o.recordStage(ctx, "analyze", start, "ok")
	return result
}

func (o *Orchestrator) timedRetrieve(ctx context.Context, query, tenantID string) *models.RetrievalResult {
	start := time.Now()
	result := o.retriever.Retrieve(ctx, query, tenantID)
	outcome := "ok"
	if result.UsedFallback {
		outcome = "fallback"
	}
	o.recordStage(ctx, "retrieve", start, outcome)
	return result
}

func (o *Orchestrator) timedGenerate(ctx context.Context, query string, retrieval *models.RetrievalResult) *models.GenerationResult {
	start := time.Now()
	result := o.generator.Generate(ctx, query, retrieval)
	o.recordStage(ctx, "generate", start, "ok")
	return result
}

func (o *Orchestrator) recordStage(ctx context.Context, stage string, start time.Time, outcome string) {
	elapsed := time.Since(start)
	metrics.StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
	if o.obs != nil {
		o.obs.RecordStageDuration(ctx, stage, elapsed, outcome)
	}
}
