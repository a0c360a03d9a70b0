package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/evolvere-edu/evolvere-api/internal/repositories"
	"github.com/evolvere-edu/evolvere-api/internal/services"
	"github.com/evolvere-edu/evolvere-api/internal/utils"
)

// CatalogHandler serves courses, subjects and classes.
type CatalogHandler struct {
	BaseHandler
	courses  services.CourseService
	subjects services.SubjectService
	classes  services.ClassService
}

func NewCatalogHandler(courses services.CourseService, subjects services.SubjectService, classes services.ClassService, logger utils.Logger) *CatalogHandler {
	return &CatalogHandler{
		BaseHandler: NewBaseHandler(logger),
		courses:     courses,
		subjects:    subjects,
		classes:     classes,
	}
}

// ===== COURSES =====

// ListCourses lists courses
// @Summary List courses
// @Tags courses
// @Produce json
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Param search query string false "Name search"
// @Param coordinator_id query int false "Coordinator"
// @Success 200 {object} models.ListResponse[models.Course]
// @Router /courses [get]
func (h *CatalogHandler) ListCourses(c *gin.Context) {
	filters := repositories.CourseFilters{ListOptions: listOptions(c)}
	var ok bool
	if filters.CoordinatorID, ok = h.queryUint(c, "coordinator_id"); !ok {
		return
	}
	courses, err := h.courses.List(c.Request.Context(), filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, courses)
}

func (h *CatalogHandler) GetCourse(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	course, err := h.courses.GetByID(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, course)
}

func (h *CatalogHandler) CreateCourse(c *gin.Context) {
	var req services.CourseRequest
	if !h.bindJSON(c, &req) {
		return
	}
	course, err := h.courses.Create(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.respondMessage(c, http.StatusCreated, "Saved", course)
}

func (h *CatalogHandler) UpdateCourse(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	var req services.CourseRequest
	if !h.bindJSON(c, &req) {
		return
	}
	course, err := h.courses.Update(c.Request.Context(), id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.respondMessage(c, http.StatusOK, "Saved", course)
}

func (h *CatalogHandler) DeleteCourse(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	if err := h.courses.Delete(c.Request.Context(), id); err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.respondMessage(c, http.StatusOK, "Deleted", nil)
}

// ===== SUBJECTS =====

// ListSubjects lists subjects
// @Summary List subjects
// @Tags subjects
// @Produce json
// @Param course_id query int false "Course"
// @Param search query string false "Name search"
// @Success 200 {object} models.ListResponse[models.Subject]
// @Router /subjects [get]
func (h *CatalogHandler) ListSubjects(c *gin.Context) {
	filters := repositories.SubjectFilters{ListOptions: listOptions(c)}
	var ok bool
	if filters.CourseID, ok = h.queryUint(c, "course_id"); !ok {
		return
	}
	subjects, err := h.subjects.List(c.Request.Context(), filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, subjects)
}

func (h *CatalogHandler) GetSubject(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	subject, err := h.subjects.GetByID(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, subject)
}

func (h *CatalogHandler) CreateSubject(c *gin.Context) {
	var req services.SubjectRequest
	if !h.bindJSON(c, &req) {
		return
	}
	subject, err := h.subjects.Create(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.respondMessage(c, http.StatusCreated, "Saved", subject)
}

func (h *CatalogHandler) UpdateSubject(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	var req services.SubjectRequest
	if !h.bindJSON(c, &req) {
		return
	}
	subject, err := h.subjects.Update(c.Request.Context(), id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.respondMessage(c, http.StatusOK, "Saved", subject)
}

// DeleteSubject removes a subject without classes
// @Summary Delete subject
// @Tags subjects
// @Param id path uint true "Subject ID"
// @Success 200 {object} SuccessResponse
// @Failure 422 {object} ErrorResponse "Subject still has classes"
// @Router /subjects/{id} [delete]
func (h *CatalogHandler) DeleteSubject(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	if err := h.subjects.Delete(c.Request.Context(), id); err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.respondMessage(c, http.StatusOK, "Deleted", nil)
}

func (h *CatalogHandler) SubjectClasses(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	classes, err := h.subjects.ListClasses(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, classes)
}

// ===== CLASSES =====

// ListClasses lists the classes visible to the caller
// @Summary List classes
// @Description Teachers see the classes they teach, students their approved classes
// @Tags classes
// @Produce json
// @Param subject_id query int false "Subject"
// @Param teacher_id query int false "Teacher"
// @Success 200 {object} models.ListResponse[models.Class]
// @Router /classes [get]
func (h *CatalogHandler) ListClasses(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	filters := repositories.ClassFilters{ListOptions: listOptions(c)}
	if filters.SubjectID, ok = h.queryUint(c, "subject_id"); !ok {
		return
	}
	if filters.TeacherID, ok = h.queryUint(c, "teacher_id"); !ok {
		return
	}
	classes, err := h.classes.List(c.Request.Context(), actor, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, classes)
}

func (h *CatalogHandler) GetClass(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	class, err := h.classes.GetByID(c.Request.Context(), actor, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, class)
}

func (h *CatalogHandler) CreateClass(c *gin.Context) {
	var req services.ClassRequest
	if !h.bindJSON(c, &req) {
		return
	}
	class, err := h.classes.Create(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.respondMessage(c, http.StatusCreated, "Saved", class)
}

func (h *CatalogHandler) UpdateClass(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	var req services.ClassRequest
	if !h.bindJSON(c, &req) {
		return
	}
	class, err := h.classes.Update(c.Request.Context(), id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.respondMessage(c, http.StatusOK, "Saved", class)
}

func (h *CatalogHandler) DeleteClass(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	if err := h.classes.Delete(c.Request.Context(), id); err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.respondMessage(c, http.StatusOK, "Deleted", nil)
}

func (h *CatalogHandler) ClassStudents(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	students, err := h.classes.Students(c.Request.Context(), actor, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, students)
}
