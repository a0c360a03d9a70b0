package handlers

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/evolvere-edu/evolvere-api/internal/i18n"
	"github.com/evolvere-edu/evolvere-api/internal/services"
	"github.com/evolvere-edu/evolvere-api/internal/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type FormHandler struct {
	BaseHandler
	service services.FormService
}

func NewFormHandler(service services.FormService, logger utils.Logger) *FormHandler {
	return &FormHandler{
		BaseHandler: NewBaseHandler(logger),
		service:     service,
	}
}

// CreateForm creates a form with its questions
// @Summary Create form
// @Description Creates a timed form for a class. Each multiple choice or true/false question needs exactly one correct option.
// @Tags forms
// @Accept json
// @Produce json
// @Param form body services.FormRequest true "Form definition"
// @Success 201 {object} services.FormDetail
// @Failure 400 {object} ErrorResponse "Validation failed, see details for correct_{index} and options_{index}"
// @Failure 403 {object} ErrorResponse
// @Router /form [post]
func (h *FormHandler) CreateForm(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req services.FormRequest
	if !h.bindJSON(c, &req) {
		return
	}
	form, err := h.service.Create(c.Request.Context(), actor, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, form)
}

// ListForms lists the forms visible to the caller
// @Summary List forms
// @Tags forms
// @Produce json
// @Param class_id query int false "Class"
// @Param status query string false "open or closed"
// @Param search query string false "Title search"
// @Success 200 {object} models.ListResponse[services.FormSummary]
// @Router /form [get]
func (h *FormHandler) ListForms(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	opts := listOptions(c)
	filters := services.FormListFilters{
		Pagination: opts.Pagination,
		Search:     opts.Search,
		Status:     c.Query("status"),
	}
	if filters.ClassID, ok = h.queryUint(c, "class_id"); !ok {
		return
	}
	forms, err := h.service.List(c.Request.Context(), actor, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, forms)
}

// GetForm returns the definition. Students never see the correct flags.
func (h *FormHandler) GetForm(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	form, err := h.service.Get(c.Request.Context(), actor, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, form)
}

// UpdateForm replaces the definition
// @Summary Update form
// @Tags forms
// @Accept json
// @Produce json
// @Param id path uint true "Form ID"
// @Param form body services.FormRequest true "Form definition"
// @Success 200 {object} services.FormDetail
// @Failure 422 {object} ErrorResponse "Form already has submissions"
// @Router /form/{id} [put]
func (h *FormHandler) UpdateForm(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	var req services.FormRequest
	if !h.bindJSON(c, &req) {
		return
	}
	form, err := h.service.Update(c.Request.Context(), actor, id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, form)
}

func (h *FormHandler) DeleteForm(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	h.LogRequest(c, "Deleting form", "form_id", id)
	if err := h.service.Delete(c.Request.Context(), actor, id); err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.respondMessage(c, http.StatusOK, "Deleted", nil)
}

// ===== ANSWERING =====

// StartForm starts the countdown
// @Summary Start form
// @Description Creates the in-progress submission, or returns the running one
// @Tags forms
// @Produce json
// @Param id path uint true "Form ID"
// @Success 200 {object} services.StartResponse
// @Failure 409 {object} ErrorResponse "Already submitted"
// @Failure 422 {object} ErrorResponse "Form closed"
// @Router /form/{id}/start [post]
func (h *FormHandler) StartForm(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	started, err := h.service.Start(c.Request.Context(), actor, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, started)
}

func (h *FormHandler) TimeLeft(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	left, err := h.service.TimeLeft(c.Request.Context(), actor, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, left)
}

// SubmitForm scores the answers
// @Summary Submit answers
// @Tags forms
// @Accept json
// @Produce json
// @Param id path uint true "Form ID"
// @Param answers body services.SubmitRequest true "Answers"
// @Success 200 {object} SuccessResponse{data=services.ResultResponse}
// @Failure 409 {object} ErrorResponse "ALREADY_SUBMITTED"
// @Failure 410 {object} ErrorResponse "SUBMISSION_EXPIRED"
// @Router /form/{id}/submit [post]
func (h *FormHandler) SubmitForm(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	var req services.SubmitRequest
	if !h.bindJSON(c, &req) {
		return
	}
	result, err := h.service.Submit(c.Request.Context(), actor, id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{
		Message: i18n.Td(c.Request.Context(), "FormSubmitted", map[string]any{
			"Percent": fmt.Sprintf("%.2f", result.PercentCorrect),
		}),
		Data: result,
	})
}

func (h *FormHandler) Result(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	result, err := h.service.Result(c.Request.Context(), actor, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Results lists every submission of the form with class statistics.
func (h *FormHandler) Results(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	results, err := h.service.Results(c.Request.Context(), actor, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

func (h *FormHandler) ExportResults(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	var buf bytes.Buffer
	name, err := h.service.ExportResults(c.Request.Context(), actor, id, &buf)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	sendSpreadsheet(c, name, &buf)
}

// sendSpreadsheet writes a generated workbook as a download. Workbooks are
// built in memory so a failure can still produce a JSON error.
func sendSpreadsheet(c *gin.Context, name string, buf *bytes.Buffer) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
