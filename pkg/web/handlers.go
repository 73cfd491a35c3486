// Package web provides the HTTP API for event ingestion and flow management.
package web

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dukex/marketflow/pkg/engine"
	"github.com/dukex/marketflow/pkg/models"
	"github.com/dukex/marketflow/pkg/persistence"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

const defaultLogsLimit = 50

type APIHandlers struct {
	engine      *engine.Engine
	persistence persistence.Persistence
	validator   *validator.Validate
	schemas     map[string]map[string]any
	logger      *slog.Logger
}

func NewAPIHandlers(
	eng *engine.Engine,
	persistence persistence.Persistence,
	validator *validator.Validate,
	schemas map[string]map[string]any,
	logger *slog.Logger,
) *APIHandlers {
	return &APIHandlers{
		engine:      eng,
		persistence: persistence,
		validator:   validator,
		schemas:     schemas,
		logger:      logger.With("module", "api"),
	}
}

// Register mounts the API routes on router.
func (h *APIHandlers) Register(router fiber.Router) {
	router.Get("/health", h.HealthCheck)
	router.Post("/events", h.PostEvent)

	f := router.Group("/flows")
	f.Get("/", h.GetFlows)
	f.Get("/:id", h.GetFlow)
	f.Put("/:id", h.PutFlow)
	f.Delete("/:id", h.DeleteFlow)
	f.Post("/:id/activate", h.ActivateFlow)
	f.Post("/:id/deactivate", h.DeactivateFlow)
	f.Get("/:id/stats", h.GetFlowStats)
	f.Get("/:id/logs", h.GetFlowLogs)
	f.Delete("/:id/traversals/:subject", h.CancelTraversal)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	httpStatus := http.StatusOK
	persistenceCheck := "ok"

	if err := h.persistence.HealthCheck(c.Context()); err != nil {
		status = "unhealthy"
		httpStatus = http.StatusInternalServerError
		persistenceCheck = err.Error()
	}

	return c.Status(httpStatus).JSON(HealthResponse{
		Status: status,
		Checkers: fiber.Map{
			"persistence":          persistenceCheck,
			"in_flight_traversals": h.engine.InFlight(),
		},
		Timestamp: time.Now().UTC(),
	})
}

// PostEvent ingests a domain event. Matching flows start in the background,
// so a 202 says the event was accepted, not that any message went out.
func (h *APIHandlers) PostEvent(c fiber.Ctx) error {
	var req EventRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if err := validateEventData(h.schemas, req.EventType, req.EventData); err != nil {
		return badRequest(c, err.Error())
	}

	err := h.engine.TriggerEvent(c.Context(), req.EventType, req.ExecutionContext())
	if err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status":     "accepted",
		"event_type": req.EventType,
	})
}

func (h *APIHandlers) GetFlows(c fiber.Ctx) error {
	flows, err := h.persistence.Flows(c.Context())
	if err != nil {
		return handleError(c, err)
	}

	if active := c.Query("active"); active != "" {
		wantActive, err := strconv.ParseBool(active)
		if err != nil {
			return badRequest(c, "Invalid query parameters: "+err.Error())
		}

		filtered := make([]*models.Flow, 0, len(flows))

		for _, flow := range flows {
			if flow.IsRunnable() == wantActive {
				filtered = append(filtered, flow)
			}
		}

		flows = filtered
	}

	return c.JSON(flows)
}

func (h *APIHandlers) GetFlow(c fiber.Ctx) error {
	flow, err := h.persistence.FlowByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(flow)
}

// PutFlow creates or replaces a flow definition. Non-draft graphs are
// validated before they are stored; a running flow keeps its active flag.
func (h *APIHandlers) PutFlow(c fiber.Ctx) error {
	id := c.Params("id")

	var req FlowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	flow, err := h.persistence.FlowByID(c.Context(), id)
	status := fiber.StatusOK

	switch {
	case persistence.IsFlowNotFound(err):
		flow = &models.Flow{ID: id}
		status = fiber.StatusCreated
	case err != nil:
		return handleError(c, err)
	}

	flow.Name = req.Name
	flow.Description = req.Description
	flow.Channel = req.Channel
	flow.IsDraft = req.IsDraft
	flow.ReplaceGraph(req.Nodes, req.Edges)

	if !flow.IsDraft {
		if err := models.ValidateGraph(flow); err != nil {
			return handleError(c, err)
		}
	}

	if err := h.persistence.SaveFlow(c.Context(), flow); err != nil {
		return handleError(c, err)
	}

	h.logger.InfoContext(c.Context(), "flow saved", "flow_id", flow.ID, "draft", flow.IsDraft)

	return c.Status(status).JSON(flow)
}

func (h *APIHandlers) DeleteFlow(c fiber.Ctx) error {
	id := c.Params("id")

	if _, err := h.persistence.FlowByID(c.Context(), id); err != nil {
		return handleError(c, err)
	}

	if err := h.persistence.DeleteFlow(c.Context(), id); err != nil {
		return handleError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) ActivateFlow(c fiber.Ctx) error {
	flow, err := h.engine.Activate(c.Context(), c.Params("id"))
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(flow)
}

func (h *APIHandlers) DeactivateFlow(c fiber.Ctx) error {
	flow, err := h.engine.Deactivate(c.Context(), c.Params("id"))
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(flow)
}

func (h *APIHandlers) GetFlowStats(c fiber.Ctx) error {
	id := c.Params("id")

	if _, err := h.persistence.FlowByID(c.Context(), id); err != nil {
		return handleError(c, err)
	}

	stats, err := h.engine.Stats(c.Context(), id)
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(StatsResponse{FlowID: id, FlowStats: stats})
}

func (h *APIHandlers) GetFlowLogs(c fiber.Ctx) error {
	id := c.Params("id")

	limit := defaultLogsLimit

	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			return badRequest(c, "limit must be a positive integer")
		}

		limit = parsed
	}

	if _, err := h.persistence.FlowByID(c.Context(), id); err != nil {
		return handleError(c, err)
	}

	logs, err := h.persistence.ExecutionLogs().LogsByFlow(c.Context(), id, limit)
	if err != nil {
		return handleError(c, err)
	}

	if logs == nil {
		logs = []*models.ExecutionLog{}
	}

	return c.JSON(logs)
}

func (h *APIHandlers) CancelTraversal(c fiber.Ctx) error {
	if !h.engine.Cancel(c.Params("id"), c.Params("subject")) {
		return notFound(c, "No traversal in flight for this subject")
	}

	return c.SendStatus(fiber.StatusAccepted)
}
