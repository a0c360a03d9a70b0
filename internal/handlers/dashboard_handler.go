package handlers

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/evolvere-edu/evolvere-api/internal/services"
	"github.com/evolvere-edu/evolvere-api/internal/utils"
)

type DashboardHandler struct {
	BaseHandler
	service     services.DashboardService
	performance services.PerformanceService
}

func NewDashboardHandler(service services.DashboardService, performance services.PerformanceService, logger utils.Logger) *DashboardHandler {
	return &DashboardHandler{
		BaseHandler: NewBaseHandler(logger),
		service:     service,
		performance: performance,
	}
}

// ===== DASHBOARD ENDPOINTS =====

// GetSummary returns the dashboard of the caller's role
// @Summary Get dashboard summary
// @Description Staff get platform counts, teachers their classes, students their progress
// @Tags dashboard
// @Produce json
// @Success 200 {object} services.DashboardSummary
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /dashboard [get]
func (h *DashboardHandler) GetSummary(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	h.LogRequest(c, "Getting dashboard summary", "role", actor.Role.String())

	summary, err := h.service.Summary(c.Request.Context(), actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// GetUpcoming lists open forms the student still has to answer
// @Summary Upcoming forms
// @Tags dashboard
// @Produce json
// @Success 200 {array} models.Form
// @Router /dashboard/upcoming [get]
func (h *DashboardHandler) GetUpcoming(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	forms, err := h.service.Upcoming(c.Request.Context(), actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, forms)
}

// ===== PERFORMANCE ENDPOINTS =====

func (h *DashboardHandler) MyPerformance(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	perf, err := h.performance.Student(c.Request.Context(), actor, actor.ID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, perf)
}

// StudentPerformance returns one student's results
// @Summary Student performance
// @Description Allowed for the student, staff and teachers of the student's classes
// @Tags performance
// @Produce json
// @Param id path uint true "Student ID"
// @Success 200 {object} services.StudentPerformance
// @Failure 403 {object} ErrorResponse
// @Router /performance/students/{id} [get]
func (h *DashboardHandler) StudentPerformance(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	perf, err := h.performance.Student(c.Request.Context(), actor, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, perf)
}

// ClassPerformance returns form averages and the student ranking
// @Summary Class performance
// @Tags performance
// @Produce json
// @Param id path uint true "Class ID"
// @Success 200 {object} services.ClassPerformance
// @Router /performance/classes/{id} [get]
func (h *DashboardHandler) ClassPerformance(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	perf, err := h.performance.Class(c.Request.Context(), actor, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, perf)
}

func (h *DashboardHandler) ExportClassPerformance(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	var buf bytes.Buffer
	name, err := h.performance.ExportClass(c.Request.Context(), actor, id, &buf)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	sendSpreadsheet(c, name, &buf)
}
