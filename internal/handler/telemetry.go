package handler

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/campaignforge/telemetry/internal/persistence"
	apperrors "github.com/campaignforge/telemetry/internal/pkg/errors"
	"github.com/campaignforge/telemetry/internal/validator"
)

// Tracer is the part of tracelog.Logger the handler drives
type Tracer interface {
	StartTrace(ctx context.Context, label string) string
	TraceEvent(ctx context.Context, traceID, message string, data ...any)
	EndTrace(ctx context.Context, traceID string)
	FailTrace(ctx context.Context, traceID string, cause error)
	StartGroup(ctx context.Context, label string) context.Context
	EndGroup(ctx context.Context) context.Context
	Success(ctx context.Context, msg string, meta ...any)
	ActiveTraces() int
}

// OutcomeCounter reports persistence outcomes
type OutcomeCounter interface {
	Counts() persistence.Counts
	Sink() string
}

// TelemetryHandler exposes the trace pipeline over HTTP
type TelemetryHandler struct {
	tracer   Tracer
	outcomes OutcomeCounter
	enabled  bool
	logger   *zap.Logger
}

// NewTelemetryHandler creates a new telemetry handler. outcomes may be nil
// when persistence is disabled.
func NewTelemetryHandler(tracer Tracer, outcomes OutcomeCounter, enabled bool, logger *zap.Logger) *TelemetryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TelemetryHandler{
		tracer:   tracer,
		outcomes: outcomes,
		enabled:  enabled,
		logger:   logger,
	}
}

// StatsResponse is the body of GET /api/telemetry/stats
type StatsResponse struct {
	Enabled      bool               `json:"enabled"`
	Sink         string             `json:"sink"`
	ActiveTraces int                `json:"active_traces"`
	Outcomes     persistence.Counts `json:"outcomes"`
}

// ProbeEvent is one event recorded by a probe
type ProbeEvent struct {
	Message string         `json:"message" validate:"required,max=256"`
	Data    map[string]any `json:"data"`
}

// ProbeRequest is the body of POST /api/telemetry/probe
type ProbeRequest struct {
	Label  string       `json:"label" validate:"required,max=128"`
	Group  string       `json:"group" validate:"max=128"`
	Events []ProbeEvent `json:"events" validate:"max=100,dive"`
	// Fail ends the trace with status error
	Fail bool `json:"fail"`
}

// ProbeResponse is returned after a probe trace has ended
type ProbeResponse struct {
	TraceID string `json:"trace_id"`
	Events  int    `json:"events"`
	Status  string `json:"status"`
}

var errProbeFailure = errors.New("probe requested failure")

// Stats handles GET /api/telemetry/stats
func (h *TelemetryHandler) Stats(c *fiber.Ctx) error {
	resp := StatsResponse{
		Enabled:      h.enabled,
		Sink:         "none",
		ActiveTraces: h.tracer.ActiveTraces(),
	}
	if h.outcomes != nil {
		resp.Sink = h.outcomes.Sink()
		resp.Outcomes = h.outcomes.Counts()
	}
	return c.JSON(resp)
}

// Probe handles POST /api/telemetry/probe. It records one trace inside the
// request scope so the configured sink receives a real write.
func (h *TelemetryHandler) Probe(c *fiber.Ctx) error {
	var req ProbeRequest
	if err := c.BodyParser(&req); err != nil {
		return appErrorResponse(c, apperrors.BadRequest("Invalid request body"))
	}
	if err := validator.Validate(req); err != nil {
		if validator.IsValidationError(err) {
			return validationErrorResponse(c, err)
		}
		h.logger.Error("probe validation", zap.Error(err))
		return appErrorResponse(c, apperrors.Internal("Request validation failed"))
	}

	ctx := c.UserContext()
	if req.Group != "" {
		ctx = h.tracer.StartGroup(ctx, req.Group)
		defer h.tracer.EndGroup(ctx)
	}

	traceID := h.tracer.StartTrace(ctx, req.Label)
	for _, ev := range req.Events {
		if ev.Data != nil {
			h.tracer.TraceEvent(ctx, traceID, ev.Message, ev.Data)
		} else {
			h.tracer.TraceEvent(ctx, traceID, ev.Message)
		}
	}

	status := "success"
	if req.Fail {
		status = "error"
		h.tracer.FailTrace(ctx, traceID, errProbeFailure)
	} else {
		h.tracer.EndTrace(ctx, traceID)
		h.tracer.Success(ctx, "probe recorded", map[string]any{"trace_id": traceID})
	}

	return c.Status(fiber.StatusAccepted).JSON(ProbeResponse{
		TraceID: traceID,
		Events:  len(req.Events),
		Status:  status,
	})
}

// RegisterRoutes registers telemetry routes
func (h *TelemetryHandler) RegisterRoutes(router fiber.Router) {
	telemetry := router.Group("/telemetry")
	telemetry.Get("/stats", h.Stats)
	telemetry.Post("/probe", h.Probe)
}
