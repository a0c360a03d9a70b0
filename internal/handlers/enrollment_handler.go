package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/evolvere-edu/evolvere-api/internal/models"
	"github.com/evolvere-edu/evolvere-api/internal/repositories"
	"github.com/evolvere-edu/evolvere-api/internal/services"
	"github.com/evolvere-edu/evolvere-api/internal/utils"
)

type EnrollmentHandler struct {
	BaseHandler
	service services.EnrollmentService
}

func NewEnrollmentHandler(service services.EnrollmentService, logger utils.Logger) *EnrollmentHandler {
	return &EnrollmentHandler{
		BaseHandler: NewBaseHandler(logger),
		service:     service,
	}
}

// CreateEnrollment requests or grants a class enrollment
// @Summary Enroll in a class
// @Description Students request their own enrollment (pending). The class teacher or staff enroll a student directly (approved).
// @Tags enrollments
// @Accept json
// @Produce json
// @Param enrollment body services.EnrollmentCreateRequest true "Class and optional student"
// @Success 201 {object} models.Enrollment
// @Failure 409 {object} ErrorResponse "Already enrolled"
// @Router /enrollments [post]
func (h *EnrollmentHandler) CreateEnrollment(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req services.EnrollmentCreateRequest
	if !h.bindJSON(c, &req) {
		return
	}
	enrollment, err := h.service.Create(c.Request.Context(), actor, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, enrollment)
}

func (h *EnrollmentHandler) ListEnrollments(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	filters := repositories.EnrollmentFilters{ListOptions: listOptions(c)}
	if filters.ClassID, ok = h.queryUint(c, "class_id"); !ok {
		return
	}
	if filters.StudentID, ok = h.queryUint(c, "student_id"); !ok {
		return
	}
	if raw := c.Query("status"); raw != "" {
		status := models.EnrollmentStatus(raw)
		filters.Status = &status
	}

	enrollments, err := h.service.List(c.Request.Context(), actor, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, enrollments)
}

// UpdateEnrollmentStatus approves, rejects or cancels
// @Summary Change enrollment status
// @Tags enrollments
// @Accept json
// @Produce json
// @Param id path uint true "Enrollment ID"
// @Param status body services.EnrollmentStatusRequest true "New status"
// @Success 200 {object} models.Enrollment
// @Failure 400 {object} ErrorResponse "Invalid transition"
// @Failure 403 {object} ErrorResponse
// @Router /enrollments/{id} [patch]
func (h *EnrollmentHandler) UpdateEnrollmentStatus(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	var req services.EnrollmentStatusRequest
	if !h.bindJSON(c, &req) {
		return
	}
	enrollment, err := h.service.UpdateStatus(c.Request.Context(), actor, id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, enrollment)
}

func (h *EnrollmentHandler) DeleteEnrollment(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	if err := h.service.Delete(c.Request.Context(), actor, id); err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.respondMessage(c, http.StatusOK, "Deleted", nil)
}
