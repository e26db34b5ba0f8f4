package engine

import (
	"context"
	"encoding/json"
	"time"

	apperrors "support-engine/internal/common/errors"
	"support-engine/internal/common/logger"
	"support-engine/internal/common/metrics"
	"support-engine/internal/support/alert"
	"support-engine/internal/support/answer"
	"support-engine/internal/support/guard"
	"support-engine/internal/support/query"
	"support-engine/internal/support/retrieval"
	"support-engine/internal/support/store"
	"support-engine/internal/support/triage"
)

const (
	maxSources   = 3
	alertTimeout = 10 * time.Second
)

// TicketWriter persists tickets.
type TicketWriter interface {
	InsertTicket(ctx context.Context, ticket *store.Ticket) error
}

// Alerter delivers operator notifications for a created ticket.
type Alerter interface {
	Notify(ctx context.Context, ticket *store.Ticket, category triage.Category)
}

// Engine wires retrieval, synthesis, triage, guards and persistence into the
// answer-first pipeline.
type Engine struct {
	retriever *retrieval.Retriever
	synth     *answer.Synthesizer
	tickets   TicketWriter
	limiter   *guard.RateLimiter
	deduper   *guard.Deduper
	alerter   Alerter
	logger    logger.Logger
}

func New(retriever *retrieval.Retriever, synth *answer.Synthesizer, tickets TicketWriter, limiter *guard.RateLimiter, deduper *guard.Deduper, alerter Alerter, log logger.Logger) *Engine {
	return &Engine{
		retriever: retriever,
		synth:     synth,
		tickets:   tickets,
		limiter:   limiter,
		deduper:   deduper,
		alerter:   alerter,
		logger:    log.WithFields(map[string]interface{}{"component": "engine"}),
	}
}

// AnswerResult is the outcome of a question-only request.
type AnswerResult struct {
	Resolved  bool                  `json:"resolved"`
	Answered  *Answered             `json:"answered,omitempty"`
	Triage    triage.Decision       `json:"triage"`
	Gate      *retrieval.GateResult `json:"gate,omitempty"`
	QueryUsed string                `json:"query_used,omitempty"`
}

// HandleTicket runs the full submission pipeline. The knowledge base gets
// first shot unless the message carries a signal that must reach a human;
// only then do the guards and ticket persistence run.
func (e *Engine) HandleTicket(ctx context.Context, in *TicketInput) (*Resolution, error) {
	if in.Forced && in.Anonymous() {
		return nil, apperrors.NewContactRequiredError()
	}

	gatePassed := false
	if !triage.ShouldSkipAnswer(in.Message, in.Forced) {
		answered, gate := e.attemptAnswer(ctx, in.AppSlug, in.Message, in.Route, in.History)
		if gate != nil {
			gatePassed = gate.Passed
		}
		if answered != nil {
			return &Resolution{Resolved: true, Answered: answered}, nil
		}
	}

	decision := triage.Classify(in.Message, gatePassed)
	if in.Forced {
		decision.Reason = triage.ReasonForced
	}

	if err := e.checkGuards(ctx, in); err != nil {
		return nil, err
	}

	ticket, err := e.persistTicket(ctx, in, decision)
	if err != nil {
		return nil, err
	}

	if e.alerter != nil && alert.ShouldAlert(decision.Category, ticket.Severity) {
		// Detached from the request so a slow channel never holds the
		// response open.
		go func(t store.Ticket, category triage.Category) {
			alertCtx, cancel := context.WithTimeout(context.Background(), alertTimeout)
			defer cancel()
			e.alerter.Notify(alertCtx, &t, category)
		}(*ticket, decision.Category)
	}

	return &Resolution{
		Resolved: false,
		Ticket: &TicketResult{
			TicketID: ticket.ID,
			Triage:   decision,
			Severity: ticket.Severity,
		},
	}, nil
}

// HandleAnswer answers a question without ever creating a ticket.
func (e *Engine) HandleAnswer(ctx context.Context, in *AnswerInput) (*AnswerResult, error) {
	answered, gate := e.attemptAnswer(ctx, in.AppSlug, in.Message, in.Route, in.History)
	if answered != nil {
		return &AnswerResult{
			Resolved:  true,
			Answered:  answered,
			Triage:    answered.Triage,
			Gate:      gate,
			QueryUsed: answered.QueryUsed,
		}, nil
	}

	gatePassed := gate != nil && gate.Passed
	return &AnswerResult{
		Resolved: false,
		Triage:   triage.Classify(in.Message, gatePassed),
		Gate:     gate,
	}, nil
}

// attemptAnswer retrieves, gates and synthesizes. A nil Answered means the
// knowledge base could not resolve the question; the gate result (when a
// candidate existed) feeds soft-signal classification.
func (e *Engine) attemptAnswer(ctx context.Context, appSlug, message, route string, history []query.Turn) (*Answered, *retrieval.GateResult) {
	contextQuery := query.FromHistory(history, message)

	hits, used := e.retriever.Retrieve(ctx, appSlug, message, route, contextQuery)
	if len(hits) == 0 {
		if synonym, ok := retrieval.SynonymFallback(message); ok {
			e.logger.Debug("retrying retrieval with synonym query", map[string]interface{}{
				"synonym": synonym,
			})
			// The substitute replaces the user's wording entirely, so the
			// gate and the reported query both use it.
			hits, used = e.retriever.Retrieve(ctx, appSlug, synonym, route, "")
		}
	}
	if len(hits) == 0 {
		metrics.AnswersTotal.WithLabelValues("no_hits").Inc()
		return nil, nil
	}

	top := hits[0]
	gate := retrieval.EvaluateGate(used, top.SearchableText(), top.Score)
	if !gate.Passed {
		metrics.AnswersTotal.WithLabelValues("gate_failed").Inc()
		return nil, &gate
	}

	result := e.synth.Synthesize(ctx, message, top)

	sources := make([]Source, 0, maxSources)
	for _, h := range hits {
		sources = append(sources, Source{ID: h.ID, Title: h.Title})
		if len(sources) == maxSources {
			break
		}
	}

	metrics.AnswersTotal.WithLabelValues("answered").Inc()
	return &Answered{
		Answer:    result.Text,
		Generated: result.Generated,
		Sources:   sources,
		Triage: triage.Decision{
			Category:   triage.CategoryUserError,
			Action:     triage.ActionAnswerNow,
			Reason:     triage.ReasonKBHit,
			Confidence: gate.Lexical,
		},
		Gate:      gate,
		QueryUsed: used,
	}, &gate
}

// checkGuards applies rate limiting and dedup. Guard storage failures fail
// open so infrastructure trouble never blocks a ticket.
func (e *Engine) checkGuards(ctx context.Context, in *TicketInput) error {
	allowed, retryAfter, err := e.limiter.Allow(ctx, in.ClientIP)
	if err != nil {
		e.logger.Warn("rate limit check failed open", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if !allowed {
		metrics.GuardRejections.WithLabelValues("rate_limit").Inc()
		return apperrors.NewRateLimitedError(retryAfter)
	}

	clientID := in.UserID
	if clientID == "" {
		clientID = in.ClientIP
	}
	fresh, err := e.deduper.Check(ctx, in.AppSlug, clientID, in.Message)
	if err != nil {
		e.logger.Warn("dedup check failed open", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if !fresh {
		metrics.GuardRejections.WithLabelValues("duplicate").Inc()
		return apperrors.NewDuplicateSubmissionError()
	}
	return nil
}

func (e *Engine) persistTicket(ctx context.Context, in *TicketInput, decision triage.Decision) (*store.Ticket, error) {
	// The stored details payload is the client's, with the triage decision
	// embedded alongside it.
	payload := make(map[string]interface{}, len(in.Details)+1)
	for k, v := range in.Details {
		payload[k] = v
	}
	payload["triage"] = decision

	details, err := json.Marshal(payload)
	if err != nil {
		details = []byte("{}")
	}

	ticket := &store.Ticket{
		AppSlug:       in.AppSlug,
		Message:       in.Message,
		Severity:      store.NormalizeSeverity(in.Severity),
		PageURL:       in.PageURL,
		Route:         in.Route,
		UserAgent:     in.UserAgent,
		ClientIP:      in.ClientIP,
		SentryEventID: in.SentryEventID,
		UserID:        in.UserID,
		UserEmail:     in.UserEmail,
		Details:       details,
	}

	if err := e.tickets.InsertTicket(ctx, ticket); err != nil {
		e.logger.Error("ticket insert failed", map[string]interface{}{
			"appSlug": in.AppSlug,
			"error":   err.Error(),
		})
		return nil, apperrors.NewStorageError(err.Error())
	}

	metrics.TicketsCreated.WithLabelValues(string(decision.Category), string(ticket.Severity)).Inc()
	e.logger.Info("ticket created", map[string]interface{}{
		"ticketId": ticket.ID,
		"appSlug":  in.AppSlug,
		"category": string(decision.Category),
		"severity": string(ticket.Severity),
	})
	return ticket, nil
}
