package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dispatcher/internal/dispatch"
	"dispatcher/internal/logger"
	"dispatcher/internal/metrics"
	"dispatcher/internal/models"
	"dispatcher/internal/store"
	"dispatcher/internal/triage"
)

// DispatchHandler serves the dispatch REST API
type DispatchHandler struct {
	coordinator *dispatch.Coordinator
	timeout     time.Duration
}

// NewDispatchHandler creates a new dispatch API handler
func NewDispatchHandler(coordinator *dispatch.Coordinator, timeout time.Duration) *DispatchHandler {
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &DispatchHandler{
		coordinator: coordinator,
		timeout:     timeout,
	}
}

// NewRouter builds a gin engine with logging, recovery and every route registered
func NewRouter(h *DispatchHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logger.GinMiddleware(logger.L()))
	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers the API routes
func (h *DispatchHandler) RegisterRoutes(r *gin.Engine) {
	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", h.HandleHealthCheck)

		cases := v1.Group("/cases")
		cases.POST("", h.HandleCreateCase)
		cases.GET("", h.HandleListCases)
		cases.GET("/:id", h.HandleGetCase)
		cases.DELETE("/:id", h.HandleDeleteCase)
		cases.GET("/:id/backup", h.HandleBackup)

		hospitals := v1.Group("/hospitals")
		hospitals.GET("", h.HandleListHospitals)
		hospitals.PUT("/:name", h.HandleUpsertHospital)
		hospitals.DELETE("/:name", h.HandleDeleteHospital)
		hospitals.GET("/:name/status", h.HandleHospitalStatus)

		v1.GET("/dispatch", h.HandleSnapshot)
		v1.POST("/dispatch/recompute", h.HandleRecompute)
		v1.GET("/stats", h.HandleStats)
	}

	r.GET("/metrics", gin.WrapH(metrics.Handler()))
}

func (h *DispatchHandler) ctx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.timeout)
}

// respondError maps domain errors onto HTTP status codes
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrInvalidCase),
		errors.Is(err, models.ErrInvalidHospital),
		errors.Is(err, models.ErrDuplicateHospital):
		status = http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}

	if status == http.StatusInternalServerError {
		logger.L().Error("request_failed", "path", c.FullPath(), "err", err)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// createCaseRequest is a case plus optional structured triage answers used when
// severity is omitted
type createCaseRequest struct {
	models.Case
	Intake *triage.Intake `json:"intake,omitempty"`
}

// HandleCreateCase stores a new case and returns it with its assignment
func (h *DispatchHandler) HandleCreateCase(c *gin.Context) {
	var req createCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON: " + err.Error()})
		return
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	created, err := h.coordinator.CreateCase(ctx, req.Case, req.Intake)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// HandleListCases lists cases newest first, optionally filtered by ?severity=
func (h *DispatchHandler) HandleListCases(c *gin.Context) {
	var severity models.Severity
	if raw := c.Query("severity"); raw != "" {
		s, err := models.ParseSeverity(raw)
		if err != nil {
			respondError(c, err)
			return
		}
		severity = s
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	cases, err := h.coordinator.ListCases(ctx, severity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cases)
}

// HandleGetCase returns one case
func (h *DispatchHandler) HandleGetCase(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	cs, err := h.coordinator.GetCase(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cs)
}

// HandleDeleteCase removes a case
func (h *DispatchHandler) HandleDeleteCase(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	if err := h.coordinator.DeleteCase(ctx, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleBackup finds an alternative hospital for a case
func (h *DispatchHandler) HandleBackup(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	res, err := h.coordinator.Backup(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// HandleListHospitals returns the hospital registry
func (h *DispatchHandler) HandleListHospitals(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	hospitals, err := h.coordinator.ListHospitals(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, hospitals)
}

// HandleUpsertHospital creates or replaces the hospital named in the path
func (h *DispatchHandler) HandleUpsertHospital(c *gin.Context) {
	var hospital models.Hospital
	if err := c.ShouldBindJSON(&hospital); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON: " + err.Error()})
		return
	}
	hospital.Name = c.Param("name")

	ctx, cancel := h.ctx(c)
	defer cancel()

	saved, err := h.coordinator.UpsertHospital(ctx, hospital)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

// HandleDeleteHospital removes a hospital from the registry
func (h *DispatchHandler) HandleDeleteHospital(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	if err := h.coordinator.DeleteHospital(ctx, c.Param("name")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleHospitalStatus returns occupancy and capability availability of a hospital
func (h *DispatchHandler) HandleHospitalStatus(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	status, err := h.coordinator.HospitalStatus(ctx, c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// HandleSnapshot returns the latest dispatch snapshot
func (h *DispatchHandler) HandleSnapshot(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	snap, err := h.coordinator.Snapshot(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// HandleRecompute forces a new dispatch pass
func (h *DispatchHandler) HandleRecompute(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	snap, err := h.coordinator.Recompute(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// HandleStats returns case statistics
func (h *DispatchHandler) HandleStats(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	stats, err := h.coordinator.Stats(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// HandleHealthCheck provides a basic health check endpoint
func (h *DispatchHandler) HandleHealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
