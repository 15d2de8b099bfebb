// Package api exposes the booking service over HTTP with server-sent events.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	booking "github.com/jongalloway/travel-booking-agents"
	"github.com/jongalloway/travel-booking-agents/model"
	"github.com/jongalloway/travel-booking-agents/service/approval"
	"github.com/labstack/echo/v4"
)

// Service is the subset of booking.Service the handlers use.
type Service interface {
	StartRun(ctx context.Context, req *booking.RunRequest) (*booking.Run, error)
	SubmitDecision(ctx context.Context, checkpointID, action, note string) (bool, error)
	PendingApprovals(ctx context.Context, runID string) ([]*approval.Checkpoint, error)
	ActiveRuns(ctx context.Context, topologies ...string) ([]*booking.RunStatus, error)
}

// DecisionRequest is the body of POST /api/approvals/:id.
type DecisionRequest struct {
	Action string `json:"action"`
	Note   string `json:"note,omitempty"`
}

// Handler serves the HTTP API.
type Handler struct {
	service Service
	metrics http.Handler
	logger  *slog.Logger
}

// NewHandler creates a handler. metrics may be nil.
func NewHandler(service Service, metrics http.Handler, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, metrics: metrics, logger: logger}
}

// RegisterRoutes registers the API routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// Runs
	e.GET("/api/runs/stream", h.StreamRun)
	e.POST("/api/runs", h.CreateRun)
	e.GET("/api/runs", h.ListRuns)

	// Approvals
	e.GET("/api/approvals", h.ListApprovals)
	e.POST("/api/approvals/:id", h.SubmitDecision)

	e.GET("/healthz", h.Health)
	if h.metrics != nil {
		e.GET("/metrics", echo.WrapHandler(h.metrics))
	}
}

// StreamRun starts a run from query parameters and streams its events.
// GET /api/runs/stream?request=&topology=&approval=&diagnostics=&dryRun=
func (h *Handler) StreamRun(c echo.Context) error {
	req := &booking.RunRequest{
		Request:          c.QueryParam("request"),
		Topology:         c.QueryParam("topology"),
		ApprovalRequired: queryBool(c, "approval"),
		Diagnostics:      queryBool(c, "diagnostics"),
		DryRun:           queryBool(c, "dryRun"),
	}
	return h.stream(c, req)
}

// CreateRun starts a run from a JSON body and streams its events.
// POST /api/runs
func (h *Handler) CreateRun(c echo.Context) error {
	req := &booking.RunRequest{}
	if err := json.NewDecoder(c.Request().Body).Decode(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	return h.stream(c, req)
}

func (h *Handler) stream(c echo.Context, req *booking.RunRequest) error {
	ctx := c.Request().Context()
	run, err := h.service.StartRun(ctx, req)
	if err != nil {
		if errors.Is(err, booking.ErrEmptyRequest) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		h.logger.Error("failed to start run", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to start run"})
	}

	header := c.Response().Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	header.Set("X-Run-Id", run.ID)
	c.Response().WriteHeader(http.StatusOK)
	flush(c)

	for evt := range run.Events {
		if err := writeEvent(c, evt); err != nil {
			h.logger.Warn("failed to send event", "run", run.ID, "seq", evt.Seq, "error", err)
			return nil
		}
	}
	return nil
}

// writeEvent writes one "event: <kind>\ndata: <json>\n\n" frame.
func writeEvent(c echo.Context, evt *model.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if _, err = fmt.Fprintf(c.Response(), "event: %s\ndata: %s\n\n", evt.Kind, data); err != nil {
		return err
	}
	flush(c)
	return nil
}

func flush(c echo.Context) {
	if flusher, ok := c.Response().Writer.(http.Flusher); ok {
		flusher.Flush()
	}
}

// SubmitDecision resolves an approval checkpoint.
// POST /api/approvals/:id
func (h *Handler) SubmitDecision(c echo.Context) error {
	var req DecisionRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	ok, err := h.service.SubmitDecision(c.Request().Context(), c.Param("id"), req.Action, req.Note)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]interface{}{"ok": false, "error": "checkpoint not found or already resolved"})
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

// ListApprovals returns pending checkpoints, optionally for one run.
// GET /api/approvals?runId=
func (h *Handler) ListApprovals(c echo.Context) error {
	pending, err := h.service.PendingApprovals(c.Request().Context(), c.QueryParam("runId"))
	if err != nil {
		h.logger.Error("failed to list approvals", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list approvals"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"approvals": pending})
}

// ListRuns returns in-flight runs.
// GET /api/runs?topology=
func (h *Handler) ListRuns(c echo.Context) error {
	var topologies []string
	if value := c.QueryParam("topology"); value != "" {
		topologies = strings.Split(value, ",")
	}
	runs, err := h.service.ActiveRuns(c.Request().Context(), topologies...)
	if err != nil {
		h.logger.Error("failed to list runs", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list runs"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"runs": runs})
}

// Health reports liveness.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func queryBool(c echo.Context, name string) bool {
	ok, _ := strconv.ParseBool(c.QueryParam(name))
	return ok
}
