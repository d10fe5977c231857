// Package httpapi provides the HTTP API for docusearchd.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/fyrsmithlabs/contextd/internal/codec"
	"github.com/fyrsmithlabs/contextd/internal/domain"
	"github.com/fyrsmithlabs/contextd/internal/ingestion"
	"github.com/fyrsmithlabs/contextd/internal/search"
	"github.com/fyrsmithlabs/contextd/internal/vectorstore"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Config holds HTTP server configuration.
type Config struct {
	Host    string
	Port    int
	Version string
}

// ApplyDefaults fills unset fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
}

// Server provides HTTP endpoints for docusearchd.
type Server struct {
	echo      *echo.Echo
	pipeline  *ingestion.Pipeline
	search    *search.Engine
	store     vectorstore.Client
	structCdc *codec.StructureCodec
	logger    *zap.Logger
	config    Config
	metrics   *Metrics
}

// NewServer creates a new HTTP server wired to the ingestion pipeline,
// search engine, and vector store client.
func NewServer(pipeline *ingestion.Pipeline, searchEngine *search.Engine, store vectorstore.Client, logger *zap.Logger, config Config) (*Server, error) {
	if pipeline == nil || searchEngine == nil || store == nil {
		return nil, fmt.Errorf("pipeline, search engine, and store are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	metrics := NewMetrics(logger)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(metrics.Middleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})

	s := &Server{
		echo:      e,
		pipeline:  pipeline,
		search:    searchEngine,
		store:     store,
		structCdc: codec.NewStructureCodec(),
		logger:    logger,
		config:    config,
		metrics:   metrics,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/documents", s.handleSubmitDocument)
	v1.GET("/documents/:doc_id", s.handleDocumentStatus)
	v1.DELETE("/documents/:doc_id", s.handleDeleteDocument)
	v1.POST("/search", s.handleSearch)
	v1.GET("/documents/:doc_id/pages/:page/structure", s.handlePageStructure)
	v1.GET("/documents/:doc_id/chunks/:chunk_id", s.handleChunkDetail)
}

func (s *Server) handleHealth(c echo.Context) error {
	ctx := c.Request().Context()
	status := "ok"
	if err := s.store.Heartbeat(ctx); err != nil {
		s.logger.Warn("store heartbeat failed", zap.Error(err))
		status = "degraded"
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, map[string]string{"status": status})
}

func (s *Server) handleSubmitDocument(c echo.Context) error {
	var req SubmitDocumentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.Content) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "content field is required")
	}
	docID := req.DocID
	if docID == "" {
		docID = uuid.NewString()
	}

	doc, err := s.pipeline.Submit(c.Request().Context(), docID, req.Filename, req.Content)
	if err != nil {
		if errors.Is(err, ingestion.ErrQueueFull) {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "ingestion queue full")
		}
		s.logger.Error("submit failed", zap.String("doc.id", docID), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to submit document")
	}

	return c.JSON(http.StatusAccepted, SubmitDocumentResponse{
		DocID:  doc.ID,
		Status: string(doc.Status),
	})
}

func (s *Server) handleDocumentStatus(c echo.Context) error {
	docID := c.Param("doc_id")
	doc, err := s.pipeline.Status(docID)
	if err != nil {
		if errors.Is(err, ingestion.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "document not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to read status")
	}
	return c.JSON(http.StatusOK, DocumentStatusResponse{
		DocID:      doc.ID,
		Status:     string(doc.Status),
		PageCount:  doc.PageCount,
		ChunkCount: doc.ChunkCount,
		Error:      doc.Error,
	})
}

func (s *Server) handleDeleteDocument(c echo.Context) error {
	docID := c.Param("doc_id")
	ctx := c.Request().Context()

	if err := s.pipeline.Cancel(docID); err != nil && !errors.Is(err, ingestion.ErrNotFound) && !errors.Is(err, ingestion.ErrAlreadyTerminal) {
		s.logger.Warn("cancel before delete failed", zap.String("doc.id", docID), zap.Error(err))
	}

	filter := vectorstore.NewFilterBuilder().Eq("doc_id", docID).Build()
	if err := s.store.DeleteBy(ctx, vectorstore.CollectionVisual, filter); err != nil {
		s.logger.Error("delete visual records failed", zap.String("doc.id", docID), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to delete document")
	}
	if err := s.store.DeleteBy(ctx, vectorstore.CollectionText, filter); err != nil {
		s.logger.Error("delete text records failed", zap.String("doc.id", docID), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to delete document")
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleSearch(c echo.Context) error {
	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	q := search.Query{
		Text:     req.Query,
		Mode:     search.Mode(req.Mode),
		NResults: req.NResults,
		Filter:   buildFilter(req.Filters),
	}

	start := time.Now()
	results, err := s.search.Search(c.Request().Context(), q)
	elapsed := time.Since(start)
	if err != nil {
		switch {
		case errors.Is(err, search.ErrEmptyQuery):
			return echo.NewHTTPError(http.StatusBadRequest, "query field is required")
		case errors.Is(err, search.ErrDeadlineExceeded):
			return echo.NewHTTPError(http.StatusGatewayTimeout, "search deadline exceeded")
		case errors.Is(err, search.ErrInvalidConfig):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		default:
			s.logger.Error("search failed", zap.Error(err))
			return echo.NewHTTPError(http.StatusInternalServerError, "search failed")
		}
	}

	items := toSearchResultItems(results.Hits)
	return c.JSON(http.StatusOK, SearchResponse{
		Query:        req.Query,
		TotalResults: len(items),
		SearchMode:   string(q.Mode),
		SearchTimeMs: float64(elapsed.Microseconds()) / 1000.0,
		Results:      items,
		Partial:      results.Partial,
	})
}

// CoordinateSystem describes the pixel space bounding boxes are expressed
// in, scoped to one page's rendered image.
type CoordinateSystem struct {
	Origin      string `json:"origin"`
	Units       string `json:"units"`
	ImageWidth  int    `json:"image_width"`
	ImageHeight int    `json:"image_height"`
}

// PageStructureResponse is the decoded structure scoped to a single page.
type PageStructureResponse struct {
	DocID            string                 `json:"doc_id"`
	Page             int                    `json:"page"`
	HasStructure     bool                   `json:"has_structure"`
	CoordinateSystem CoordinateSystem       `json:"coordinate_system"`
	Headings         []domain.Heading       `json:"headings"`
	Chunks           []domain.ChunkContext  `json:"chunks"`
}

func (s *Server) handlePageStructure(c echo.Context) error {
	ctx := c.Request().Context()
	docID := c.Param("doc_id")
	page, err := strconv.Atoi(c.Param("page"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "page must be an integer")
	}

	records, err := s.store.GetMany(ctx, vectorstore.CollectionVisual, []string{ingestion.VisualRecordID(docID, page)})
	if err != nil {
		s.logger.Error("fetching page record failed", zap.String("doc.id", docID), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load page structure")
	}
	if len(records) == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "page not found")
	}
	meta := records[0].Metadata

	hasStructure, _ := meta["has_structure"].(bool)
	resp := PageStructureResponse{
		DocID:        docID,
		Page:         page,
		HasStructure: hasStructure,
		CoordinateSystem: CoordinateSystem{
			Origin:      "top-left",
			Units:       "pixels",
			ImageWidth:  int(toInt64(meta["image_width"])),
			ImageHeight: int(toInt64(meta["image_height"])),
		},
	}
	if !hasStructure {
		return c.JSON(http.StatusOK, resp)
	}

	encoded, _ := meta["structure"].(string)
	var structure domain.DocumentStructure
	if err := s.structCdc.DecodeStructure(encoded, &structure); err != nil {
		s.logger.Error("decoding structure failed", zap.String("doc.id", docID), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to decode document structure")
	}
	for _, h := range structure.Headings {
		if h.Page == page {
			resp.Headings = append(resp.Headings, h)
		}
	}
	for _, ch := range structure.Chunks {
		if ch.Page == page {
			resp.Chunks = append(resp.Chunks, ch)
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// ChunkDetailResponse is the full metadata record for one text chunk.
type ChunkDetailResponse struct {
	ChunkID         string              `json:"chunk_id"`
	DocID           string              `json:"doc_id"`
	FullText        string              `json:"full_text"`
	SectionPath     string              `json:"section_path"`
	ParentHeading   string              `json:"parent_heading"`
	BBox            *domain.BoundingBox `json:"bbox,omitempty"`
	Page            int                 `json:"page"`
	PageNums        []int               `json:"page_nums"`
	RelatedTables   []string            `json:"related_tables"`
	RelatedPictures []string            `json:"related_pictures"`
}

func (s *Server) handleChunkDetail(c echo.Context) error {
	ctx := c.Request().Context()
	docID := c.Param("doc_id")
	chunkID := c.Param("chunk_id")

	records, err := s.store.GetMany(ctx, vectorstore.CollectionText, []string{chunkID})
	if err != nil {
		s.logger.Error("fetching chunk record failed", zap.String("doc.id", docID), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load chunk")
	}
	if len(records) == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "chunk not found")
	}
	meta := records[0].Metadata
	if gotDocID, _ := meta["doc_id"].(string); gotDocID != docID {
		return echo.NewHTTPError(http.StatusNotFound, "chunk not found")
	}

	resp := ChunkDetailResponse{
		ChunkID:       chunkID,
		DocID:         docID,
		FullText:      stringOrEmpty(meta["full_text"]),
		SectionPath:   stringOrEmpty(meta["section_path"]),
		ParentHeading: stringOrEmpty(meta["parent_heading"]),
		Page:          int(toInt64(meta["page"])),
	}
	if raw, ok := meta["bbox"].(string); ok && raw != "" {
		var bbox domain.BoundingBox
		if err := json.Unmarshal([]byte(raw), &bbox); err == nil {
			resp.BBox = &bbox
		}
	}
	_ = json.Unmarshal([]byte(stringOrEmpty(meta["page_nums"])), &resp.PageNums)
	_ = json.Unmarshal([]byte(stringOrEmpty(meta["related_tables"])), &resp.RelatedTables)
	_ = json.Unmarshal([]byte(stringOrEmpty(meta["related_pictures"])), &resp.RelatedPictures)

	return c.JSON(http.StatusOK, resp)
}

func stringOrEmpty(v interface{}) string {
	s, _ := v.(string)
	return s
}

// toInt64 coerces a vector store metadata value back to int64. Records
// round-trip numeric metadata as int64, float64, or occasionally json.Number
// depending on the store backend's decoding, so all three are handled.
func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	default:
		return 0
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
