// Package orchestrator implements the Orchestrator (C11): the end-to-end
// per-turn pipeline wiring Classifier, HybridRetriever, PromptLibrary,
// SessionStore, ChatModel, and MessageStore behind a single entry point.
package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/internal/classifier"
	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/internal/observability"
	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/internal/ports"
	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/internal/prompt"
	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/internal/retriever"
	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/internal/session"
	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/pkg/models"
)

// Retriever is the subset of HybridRetriever the orchestrator calls.
type Retriever interface {
	Search(ctx context.Context, query string, category models.Category) string
}

// SessionStore is the subset of SessionStore the orchestrator calls.
type SessionStore interface {
	GetOrCreate(ctx context.Context, sessionID string, category models.Category) (*models.Session, error)
	Append(ctx context.Context, sessionID string, category models.Category, userText, botText string, processingMs int64) error
	Stats(ctx context.Context, sessionID string) (models.SessionStats, error)
}

// Config configures the ChatModel call budget.
type Config struct {
	ChatModelTimeout time.Duration
}

// Orchestrator wires every per-turn collaborator together.
type Orchestrator struct {
	classifier *classifier.Classifier
	retriever  Retriever
	prompts    *prompt.Library
	sessions   SessionStore
	messages   ports.MessageStore
	chatModel  ports.ChatModel
	cfg        Config
	logger     zerolog.Logger
}

// New creates an Orchestrator.
func New(cls *classifier.Classifier, retr Retriever, prompts *prompt.Library, sessions SessionStore, messages ports.MessageStore, chatModel ports.ChatModel, cfg Config) *Orchestrator {
	if cfg.ChatModelTimeout <= 0 {
		cfg.ChatModelTimeout = 45 * time.Second
	}
	return &Orchestrator{
		classifier: cls,
		retriever:  retr,
		prompts:    prompts,
		sessions:   sessions,
		messages:   messages,
		chatModel:  chatModel,
		cfg:        cfg,
		logger:     observability.Logger("orchestrator"),
	}
}

// HandleTurn implements the handle_turn contract from spec §4.6.
func (o *Orchestrator) HandleTurn(ctx context.Context, sessionID, query string) models.TurnResult {
	turnStart := time.Now()
	query = strings.TrimSpace(query)

	var timings models.Timings
	var errFlag bool

	// Step 0: empty query short-circuits to general, no retrieval (spec §8
	// boundary behavior).
	if query == "" {
		return o.respondWithoutRetrieval(ctx, sessionID, models.CategoryGeneral, "", turnStart)
	}

	// Step 1: classify, carrying the session's primary category when known.
	classifyStart := time.Now()
	sess, err := o.sessions.GetOrCreate(ctx, sessionID, models.CategoryGeneral)
	if err != nil {
		o.logger.Warn().Err(err).Str("session_id", sessionID).Msg("session unavailable, proceeding without carried category")
		sess = &models.Session{SessionID: sessionID, PrimaryCategory: models.CategoryGeneral}
	}
	category := o.classifier.Classify(ctx, query, sess.PrimaryCategory)
	timings.ClassifyMs = time.Since(classifyStart).Milliseconds()
	observability.LogEvent(o.logger, observability.EventClassified, map[string]interface{}{
		"session_id": sessionID, "category": string(category),
	})

	// Step 2: retrieve.
	retrieveStart := time.Now()
	context_ := o.retriever.Search(ctx, query, category)
	timings.RetrieveMs = time.Since(retrieveStart).Milliseconds()

	// Step 3: precedent-not-found sentinel short-circuits before ChatModel.
	if strings.HasPrefix(context_, retriever.SentinelPrecedentNotFound) {
		observability.LogEvent(o.logger, observability.EventPrecedentNotFound, map[string]interface{}{
			"session_id": sessionID,
			"citation":   strings.TrimPrefix(context_, retriever.SentinelPrecedentNotFound),
		})
		return o.finish(ctx, sessionID, query, category, prompt.PrecedentNotFoundResponse, false, timings, turnStart, errFlag)
	}

	// Step 4: session history for prompt assembly (already loaded in step 1).
	history := session.History(sess)

	// Step 5: assemble and call ChatModel exactly once.
	synthesizeStart := time.Now()
	tpl := o.prompts.TemplateFor(category)
	system, user := o.prompts.Assemble(tpl, history, query, context_)

	genCtx, cancel := context.WithTimeout(ctx, o.cfg.ChatModelTimeout)
	response, err := o.chatModel.Generate(genCtx, system, user)
	cancel()
	timings.SynthesizeMs = time.Since(synthesizeStart).Milliseconds()

	if err != nil {
		o.logger.Warn().Err(err).Str("session_id", sessionID).Msg("chat model call failed, using canned fallback")
		observability.LogEvent(o.logger, observability.EventSynthesisFallback, map[string]interface{}{
			"session_id": sessionID, "category": string(category),
		})
		response = o.prompts.Fallback(category)
		errFlag = true
	}

	return o.finish(ctx, sessionID, query, category, response, context_ != "", timings, turnStart, errFlag)
}

// respondWithoutRetrieval handles the empty-query boundary: classifies
// trivially to general and skips HybridRetriever entirely (spec §8).
func (o *Orchestrator) respondWithoutRetrieval(ctx context.Context, sessionID string, category models.Category, query string, turnStart time.Time) models.TurnResult {
	response := o.prompts.Fallback(category)
	return o.finish(ctx, sessionID, query, category, response, false, models.Timings{}, turnStart, false)
}

// finish appends the turn to SessionStore and MessageStore (best-effort)
// and builds the TurnResult (spec §4.6 steps 6-7).
func (o *Orchestrator) finish(ctx context.Context, sessionID, query string, category models.Category, response string, contextUsed bool, timings models.Timings, turnStart time.Time, errFlag bool) models.TurnResult {
	processingMs := time.Since(turnStart).Milliseconds()

	if err := o.sessions.Append(ctx, sessionID, category, query, response, processingMs); err != nil {
		o.logger.Warn().Err(err).Str("session_id", sessionID).Msg("session append failed")
	}

	if o.messages != nil {
		if err := o.messages.Append(ctx, sessionID, models.Message{Role: "user", Text: query, Timestamp: turnStart}); err != nil {
			o.logMessageAppendFailure(sessionID, err)
		}
		if err := o.messages.Append(ctx, sessionID, models.Message{Role: "bot", Text: response, Timestamp: time.Now()}); err != nil {
			o.logMessageAppendFailure(sessionID, err)
		}
	}

	stats, err := o.sessions.Stats(ctx, sessionID)
	if err != nil {
		o.logger.Warn().Err(err).Str("session_id", sessionID).Msg("session stats unavailable")
	}

	return models.TurnResult{
		Category:         category,
		Response:         response,
		ContextUsed:      contextUsed,
		ProcessingTimeMs: processingMs,
		Breakdown:        timings,
		SessionStats:     stats,
		Error:            errFlag,
	}
}

func (o *Orchestrator) logMessageAppendFailure(sessionID string, err error) {
	o.logger.Warn().Err(err).Str("session_id", sessionID).Msg("message store append failed")
	observability.LogEvent(o.logger, observability.EventMessageAppendFail, map[string]interface{}{"session_id": sessionID})
}
