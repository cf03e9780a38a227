// Package httpapi contains the HTTP handlers for the workflow service.
package httpapi

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/petrijr/resposta/internal/ingest"
	"github.com/petrijr/resposta/pkg/api"
)

// DefaultSearchTopK is used when a search request does not set top_k.
const DefaultSearchTopK = 5

// Config holds the dependencies for the API server. Engine and Knowledge
// are required; Writer is nil when the knowledge source is read-only,
// and the documents endpoint then answers 501.
type Config struct {
	Engine    api.Engine
	Knowledge api.KnowledgeSource
	Writer    api.KnowledgeWriter
	Metrics   *api.BasicMetrics
	Logger    *slog.Logger
}

// Server holds the dependencies for the API server.
type Server struct {
	engine    api.Engine
	knowledge api.KnowledgeSource
	writer    api.KnowledgeWriter
	metrics   *api.BasicMetrics
	logger    *slog.Logger
}

// NewServer creates a new Server.
func NewServer(cfg Config) *Server {
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = &api.BasicMetrics{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine:    cfg.Engine,
		knowledge: cfg.Knowledge,
		writer:    cfg.Writer,
		metrics:   metrics,
		logger:    logger,
	}
}

// Routes builds the echo instance with all handlers mounted.
func (s *Server) Routes() *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Recover())

	e.GET("/healthz", s.Health)

	v1 := e.Group("/api/v1")
	v1.POST("/workflows", s.CreateWorkflow)
	v1.POST("/workflows/upload", s.CreateWorkflowFromUpload)
	v1.GET("/workflows", s.ListWorkflows)
	v1.GET("/workflows/:id", s.GetWorkflow)
	v1.GET("/workflows/:id/events", s.ListWorkflowEvents)
	v1.GET("/workflows/:id/artifact", s.GetWorkflowArtifact)
	v1.POST("/knowledge/documents", s.AddKnowledgeDocuments)
	v1.GET("/knowledge/search", s.SearchKnowledge)
	v1.GET("/metrics", s.Metrics)

	return e
}

type createWorkflowResponse struct {
	WorkflowID string `json:"workflow_id"`
}

// CreateWorkflow submits a new workflow from a JSON request
// (POST /api/v1/workflows)
func (s *Server) CreateWorkflow(c echo.Context) error {
	ctx := c.Request().Context()

	var req api.CreateWorkflowRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}

	wf, err := s.engine.CreateWorkflow(ctx, req)
	if err != nil {
		return s.mapError(err)
	}

	s.logger.InfoContext(ctx, "workflow_submitted",
		slog.String("workflow_id", wf.ID),
		slog.String("pipeline", wf.Pipeline))

	return c.JSON(http.StatusAccepted, createWorkflowResponse{WorkflowID: wf.ID})
}

// CreateWorkflowFromUpload submits a new workflow from an uploaded
// document (POST /api/v1/workflows/upload, multipart form)
func (s *Server) CreateWorkflowFromUpload(c echo.Context) error {
	ctx := c.Request().Context()

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "missing file field: "+err.Error())
	}

	f, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "open upload: "+err.Error())
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "read upload: "+err.Error())
	}

	text, err := ingest.ExtractText(fileHeader.Filename, data)
	if err != nil {
		if errors.Is(err, ingest.ErrUnsupportedFormat) {
			return echo.NewHTTPError(http.StatusUnsupportedMediaType, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, "extract document text: "+err.Error())
	}

	wf, err := s.engine.CreateWorkflow(ctx, api.CreateWorkflowRequest{
		ClientName:          c.FormValue("client_name"),
		Industry:            c.FormValue("industry"),
		SourceDocumentText:  &text,
		RequirementsSummary: c.FormValue("requirements_summary"),
	})
	if err != nil {
		return s.mapError(err)
	}

	s.logger.InfoContext(ctx, "workflow_submitted",
		slog.String("workflow_id", wf.ID),
		slog.String("pipeline", wf.Pipeline),
		slog.String("filename", fileHeader.Filename))

	return c.JSON(http.StatusAccepted, createWorkflowResponse{WorkflowID: wf.ID})
}

// ListWorkflows returns workflows, optionally filtered by state and
// pipeline (GET /api/v1/workflows)
func (s *Server) ListWorkflows(c echo.Context) error {
	ctx := c.Request().Context()

	opts := api.WorkflowListOptions{
		State:    api.State(c.QueryParam("state")),
		Pipeline: c.QueryParam("pipeline"),
	}

	workflows, err := s.engine.ListWorkflows(ctx, opts)
	if err != nil {
		return s.mapError(err)
	}

	return c.JSON(http.StatusOK, workflows)
}

// GetWorkflow returns the latest snapshot of one workflow
// (GET /api/v1/workflows/:id)
func (s *Server) GetWorkflow(c echo.Context) error {
	ctx := c.Request().Context()

	wf, err := s.engine.GetWorkflow(ctx, c.Param("id"))
	if err != nil {
		return s.mapError(err)
	}

	return c.JSON(http.StatusOK, wf)
}

// ListWorkflowEvents returns a workflow's transition history
// (GET /api/v1/workflows/:id/events)
func (s *Server) ListWorkflowEvents(c echo.Context) error {
	ctx := c.Request().Context()

	events, err := s.engine.ListEvents(ctx, c.Param("id"))
	if err != nil {
		return s.mapError(err)
	}

	return c.JSON(http.StatusOK, events)
}

// GetWorkflowArtifact returns the rendered document of a ready workflow
// (GET /api/v1/workflows/:id/artifact)
func (s *Server) GetWorkflowArtifact(c echo.Context) error {
	ctx := c.Request().Context()

	data, err := s.engine.GetArtifact(ctx, c.Param("id"))
	if err != nil {
		return s.mapError(err)
	}

	return c.Blob(http.StatusOK, "text/markdown; charset=utf-8", data)
}

type addDocumentsRequest struct {
	Documents []api.KnowledgeDocument `json:"documents"`
}

type addDocumentsResponse struct {
	Added int `json:"added"`
}

// AddKnowledgeDocuments adds documents to the knowledge base
// (POST /api/v1/knowledge/documents)
func (s *Server) AddKnowledgeDocuments(c echo.Context) error {
	ctx := c.Request().Context()

	if s.writer == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "knowledge source is read-only")
	}

	var req addDocumentsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}
	if len(req.Documents) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "no documents given")
	}

	if err := s.writer.Add(ctx, req.Documents); err != nil {
		return s.mapError(err)
	}

	s.logger.InfoContext(ctx, "knowledge_documents_added",
		slog.Int("count", len(req.Documents)))

	return c.JSON(http.StatusOK, addDocumentsResponse{Added: len(req.Documents)})
}

type searchResponse struct {
	Passages []api.SourcePassage `json:"passages"`
}

// SearchKnowledge runs a retrieval query against the knowledge base
// (GET /api/v1/knowledge/search?q=&top_k=)
func (s *Server) SearchKnowledge(c echo.Context) error {
	ctx := c.Request().Context()

	query := c.QueryParam("q")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing query parameter q")
	}

	topK := DefaultSearchTopK
	if raw := c.QueryParam("top_k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "top_k must be a positive integer")
		}
		topK = n
	}

	passages, err := s.knowledge.Search(ctx, query, topK)
	if err != nil {
		return s.mapError(err)
	}

	return c.JSON(http.StatusOK, searchResponse{Passages: passages})
}

// Health reports liveness (GET /healthz)
func (s *Server) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Metrics returns the engine metrics snapshot (GET /api/v1/metrics)
func (s *Server) Metrics(c echo.Context) error {
	return c.JSON(http.StatusOK, s.metrics.Snapshot())
}

// mapError translates engine sentinels into HTTP errors.
func (s *Server) mapError(err error) error {
	switch {
	case errors.Is(err, api.ErrInvalidRequest):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, api.ErrWorkflowNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, api.ErrArtifactNotReady):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		s.logger.Error("request failed", slog.String("error", err.Error()))
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
