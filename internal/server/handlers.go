// Package server exposes the support pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	apperrors "support-engine/internal/common/errors"
	"support-engine/internal/common/logger"
	"support-engine/internal/common/metrics"
	"support-engine/internal/common/validation"
	"support-engine/internal/support/engine"
	"support-engine/internal/support/guard"
	"support-engine/internal/support/retrieval"
	"support-engine/internal/support/store"
)

// Pipeline is the engine surface the handlers call.
type Pipeline interface {
	HandleTicket(ctx context.Context, in *engine.TicketInput) (*engine.Resolution, error)
	HandleAnswer(ctx context.Context, in *engine.AnswerInput) (*engine.AnswerResult, error)
}

// DocFetcher loads a single knowledge-base document.
type DocFetcher interface {
	Get(ctx context.Context, id string) (*retrieval.Hit, error)
}

// EventWriter persists telemetry events.
type EventWriter interface {
	InsertEvent(ctx context.Context, event *store.Event) error
}

// ReportRunner triggers an on-demand aggregation.
type ReportRunner interface {
	Run(ctx context.Context, appSlug string, lookback time.Duration) (*store.Report, error)
}

// HealthCheck pings one dependency.
type HealthCheck func(ctx context.Context) error

// Handler carries the support HTTP endpoints.
type Handler struct {
	pipeline   Pipeline
	docs       DocFetcher
	events     EventWriter
	reports    ReportRunner
	limiter    *guard.RateLimiter
	health     map[string]HealthCheck
	adminToken string
	lookback   time.Duration
	logger     logger.Logger
}

func NewHandler(pipeline Pipeline, docs DocFetcher, events EventWriter, reports ReportRunner, limiter *guard.RateLimiter, health map[string]HealthCheck, adminToken string, lookback time.Duration, log logger.Logger) *Handler {
	return &Handler{
		pipeline:   pipeline,
		docs:       docs,
		events:     events,
		reports:    reports,
		limiter:    limiter,
		health:     health,
		adminToken: adminToken,
		lookback:   lookback,
		logger:     log.WithFields(map[string]interface{}{"component": "http"}),
	}
}

// SubmitTicket handles POST /support/ticket.
func (h *Handler) SubmitTicket(c *fiber.Ctx) error {
	var in engine.TicketInput
	if err := c.BodyParser(&in); err != nil {
		return h.writeError(c, "ticket", apperrors.NewValidationError("invalid request body"))
	}

	if err := validateSubmission(in.AppSlug, in.Message, string(in.Severity), in.UserEmail); err != nil {
		return h.writeError(c, "ticket", err)
	}

	in.ClientIP = c.IP()
	if in.UserAgent == "" {
		in.UserAgent = c.Get("User-Agent")
	}

	res, err := h.pipeline.HandleTicket(c.Context(), &in)
	if err != nil {
		return h.writeError(c, "ticket", err)
	}

	metrics.RequestsTotal.WithLabelValues("ticket", "ok").Inc()
	return c.JSON(res)
}

// Answer handles POST /support/answer. Never creates a ticket.
func (h *Handler) Answer(c *fiber.Ctx) error {
	var in engine.AnswerInput
	if err := c.BodyParser(&in); err != nil {
		return h.writeError(c, "answer", apperrors.NewValidationError("invalid request body"))
	}

	if err := validateSubmission(in.AppSlug, in.Message, "", ""); err != nil {
		return h.writeError(c, "answer", err)
	}

	res, err := h.pipeline.HandleAnswer(c.Context(), &in)
	if err != nil {
		return h.writeError(c, "answer", err)
	}

	metrics.RequestsTotal.WithLabelValues("answer", "ok").Inc()
	return c.JSON(res)
}

var telemetrySchema = validation.JSONSchema{
	Type: "object",
	Properties: map[string]validation.Property{
		"app_slug": {Type: "string", MinLength: intPtr(1)},
		"kind":     {Type: "string", MinLength: intPtr(1), MaxLength: intPtr(64)},
		"payload":  {Type: "object"},
	},
	Required: []string{"app_slug", "kind"},
}

func intPtr(v int) *int { return &v }

// Telemetry handles POST /support/telemetry. Rate limited per client IP.
func (h *Handler) Telemetry(c *fiber.Ctx) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(c.Body(), &raw); err != nil {
		return h.writeError(c, "telemetry", apperrors.NewValidationError("invalid request body"))
	}
	if vr := validation.ValidateInput(raw, telemetrySchema); !vr.Valid {
		return h.writeError(c, "telemetry", apperrors.NewValidationError(validation.JoinErrors(vr)))
	}

	appSlug, _ := raw["app_slug"].(string)
	kind, _ := raw["kind"].(string)
	if !validation.ValidateAppSlug(appSlug) {
		return h.writeError(c, "telemetry", apperrors.NewInvalidAppSlugError(appSlug))
	}

	var payload json.RawMessage
	if raw["payload"] != nil {
		payload, _ = json.Marshal(raw["payload"])
	}

	allowed, retryAfter, err := h.limiter.Allow(c.Context(), c.IP())
	if err != nil {
		h.logger.Warn("telemetry rate check failed open", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if !allowed {
		metrics.GuardRejections.WithLabelValues("rate_limit").Inc()
		return h.writeError(c, "telemetry", apperrors.NewRateLimitedError(retryAfter))
	}

	event := &store.Event{
		AppSlug:  appSlug,
		Kind:     kind,
		Payload:  payload,
		ClientIP: c.IP(),
	}
	if err := h.events.InsertEvent(c.Context(), event); err != nil {
		return h.writeError(c, "telemetry", apperrors.NewStorageError(err.Error()))
	}

	metrics.RequestsTotal.WithLabelValues("telemetry", "ok").Inc()
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"id": event.ID})
}

// RunTriage handles POST /support/triage. Admin only.
func (h *Handler) RunTriage(c *fiber.Ctx) error {
	if token := bearerToken(c); h.adminToken == "" || token != h.adminToken {
		return h.writeError(c, "triage", apperrors.NewUnauthorizedError("admin token required"))
	}

	appSlug := c.Query("app_slug", "*")
	if !validation.ValidateAppSlug(appSlug) {
		return h.writeError(c, "triage", apperrors.NewInvalidAppSlugError(appSlug))
	}

	lookback := h.lookback
	if hours := c.QueryInt("hours"); hours > 0 {
		lookback = time.Duration(hours) * time.Hour
	}

	report, err := h.reports.Run(c.Context(), appSlug, lookback)
	if err != nil {
		return h.writeError(c, "triage", apperrors.NewInternalError(err))
	}

	metrics.RequestsTotal.WithLabelValues("triage", "ok").Inc()
	return c.JSON(report)
}

// GetDocument handles GET /support/doc/:id.
func (h *Handler) GetDocument(c *fiber.Ctx) error {
	id := c.Params("id")

	doc, err := h.docs.Get(c.Context(), id)
	if err != nil {
		if errors.Is(err, retrieval.ErrDocumentNotFound) {
			return h.writeError(c, "doc", apperrors.NewDocumentNotFoundError(id))
		}
		return h.writeError(c, "doc", apperrors.NewInternalError(err))
	}

	metrics.RequestsTotal.WithLabelValues("doc", "ok").Inc()
	return c.JSON(doc)
}

// Health handles GET /support/health. Any failed dependency ping degrades the
// status to 503.
func (h *Handler) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	status := fiber.StatusOK
	deps := fiber.Map{}
	for name, check := range h.health {
		if err := check(ctx); err != nil {
			deps[name] = "down"
			status = fiber.StatusServiceUnavailable
		} else {
			deps[name] = "up"
		}
	}

	body := fiber.Map{"dependencies": deps}
	if status == fiber.StatusOK {
		body["status"] = "healthy"
	} else {
		body["status"] = "degraded"
	}
	return c.Status(status).JSON(body)
}

// ==========================
// Helpers
// ==========================

func validateSubmission(appSlug, message, severity, email string) error {
	if !validation.ValidateAppSlug(appSlug) {
		return apperrors.NewInvalidAppSlugError(appSlug)
	}
	if message == "" {
		return apperrors.NewValidationError("message is required")
	}
	if severity != "" && !store.ValidSeverity(store.Severity(severity)) {
		return apperrors.NewValidationError("severity must be one of low, medium, high, critical")
	}
	if email != "" && !validation.ValidateEmail(email) {
		return apperrors.NewValidationError("user_email is not a valid address")
	}
	return nil
}

func bearerToken(c *fiber.Ctx) string {
	const prefix = "Bearer "
	auth := c.Get("Authorization")
	if len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
		return auth[len(prefix):]
	}
	return ""
}

func (h *Handler) writeError(c *fiber.Ctx, endpoint string, err error) error {
	var stdErr *apperrors.StandardError
	if !errors.As(err, &stdErr) {
		stdErr = apperrors.NewInternalError(err)
	}

	status := apperrors.HTTPStatus(stdErr.Code)
	if stdErr.Code == apperrors.ErrCodeRateLimited {
		if retry := apperrors.RetryAfterSeconds(stdErr); retry > 0 {
			c.Set("Retry-After", strconv.Itoa(retry))
		}
	}

	if status >= 500 {
		h.logger.Error("request failed", map[string]interface{}{
			"endpoint": endpoint,
			"code":     string(stdErr.Code),
			"details":  stdErr.Details,
		})
	}

	metrics.RequestsTotal.WithLabelValues(endpoint, "error").Inc()
	return c.Status(status).JSON(fiber.Map{"error": stdErr})
}
