package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/stackpilot/internal/store"
	"github.com/mohammad-safakhou/stackpilot/internal/workflow"
)

type workflowGenerator interface {
	Generate(ctx context.Context, query string) (workflow.Outcome, error)
}

type workflowStore interface {
	GetWorkflow(ctx context.Context, id string) (store.WorkflowRecord, error)
	ListRecentWorkflows(ctx context.Context, limit int) ([]store.WorkflowRecord, error)
}

type WorkflowsHandler struct {
	Generator workflowGenerator
	Store     workflowStore
}

func (h *WorkflowsHandler) Register(g *echo.Group) {
	g.POST("/generate", h.generate)
	g.GET("", h.list)
	g.GET("/:id", h.get)
}

// Generate workflow
//
//	@Summary		Recommend a tool workflow
//	@Description	Builds a multi-step workflow from the catalog for a natural-language request
//	@Tags			workflows
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		GenerateWorkflowRequest	true	"Query"
//	@Success		200		{object}	workflow.Outcome
//	@Failure		400		{object}	HTTPError
//	@Failure		500		{object}	HTTPError
//	@Failure		502		{object}	HTTPError
//	@Router			/api/workflows/generate [post]
func (h *WorkflowsHandler) generate(c echo.Context) error {
	var req GenerateWorkflowRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}
	out, err := h.Generator.Generate(c.Request().Context(), req.Query)
	if err != nil {
		var invalid workflow.InvalidRequestError
		switch {
		case errors.As(err, &invalid):
			return echo.NewHTTPError(http.StatusBadRequest, invalid.Reason)
		case errors.Is(err, workflow.ErrGeneration):
			return echo.NewHTTPError(http.StatusBadGateway, "workflow generation failed").SetInternal(err)
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to load tool catalog").SetInternal(err)
		}
	}
	return c.JSON(http.StatusOK, out)
}

// Get workflow
//
//	@Summary	Fetch a stored workflow
//	@Tags		workflows
//	@Produce	json
//	@Param		id	path		string	true	"Workflow id"
//	@Success	200	{object}	WorkflowResponse
//	@Failure	404	{object}	HTTPError
//	@Router		/api/workflows/{id} [get]
func (h *WorkflowsHandler) get(c echo.Context) error {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "workflow not found")
	}
	rec, err := h.Store.GetWorkflow(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "workflow not found")
		}
		return err
	}
	res, err := workflow.DecodeResult(rec.Payload)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, WorkflowResponse{
		ID:        rec.ID,
		Query:     rec.Query,
		Workflow:  res.Workflow,
		Tools:     res.Tools,
		CreatedAt: rec.CreatedAt,
	})
}

// List workflows
//
//	@Summary	Recently generated workflows
//	@Tags		workflows
//	@Produce	json
//	@Param		limit	query		int	false	"Max results (default 20, max 100)"
//	@Success	200		{array}		WorkflowSummary
//	@Router		/api/workflows [get]
func (h *WorkflowsHandler) list(c echo.Context) error {
	recs, err := h.Store.ListRecentWorkflows(c.Request().Context(), queryInt(c, "limit"))
	if err != nil {
		return err
	}
	out := make([]WorkflowSummary, 0, len(recs))
	for _, r := range recs {
		out = append(out, WorkflowSummary{ID: r.ID, Query: r.Query, Title: r.Title, CreatedAt: r.CreatedAt})
	}
	return c.JSON(http.StatusOK, out)
}

// queryInt reads an integer query parameter; missing or invalid values are zero.
func queryInt(c echo.Context, name string) int {
	n, err := strconv.Atoi(c.QueryParam(name))
	if err != nil {
		return 0
	}
	return n
}
