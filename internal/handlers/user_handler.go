package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/evolvere-edu/evolvere-api/internal/models"
	"github.com/evolvere-edu/evolvere-api/internal/repositories"
	"github.com/evolvere-edu/evolvere-api/internal/services"
	"github.com/evolvere-edu/evolvere-api/internal/utils"
)

type UserHandler struct {
	BaseHandler
	service services.UserService
	medals  services.MedalService
}

func NewUserHandler(service services.UserService, medals services.MedalService, logger utils.Logger) *UserHandler {
	return &UserHandler{
		BaseHandler: NewBaseHandler(logger),
		service:     service,
		medals:      medals,
	}
}

// ListUsers lists users with optional filtering
// @Summary List users
// @Description Get a paginated list of users
// @Tags users
// @Produce json
// @Param page query int false "Page number (default: 1)"
// @Param limit query int false "Page size (default: 20, max: 100)"
// @Param search query string false "Name, username or email"
// @Param role query int false "Role (1 admin, 2 coordinator, 3 teacher, 4 student)"
// @Param status query string false "Registration status"
// @Success 200 {object} models.ListResponse[models.User]
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 403 {object} ErrorResponse "Forbidden"
// @Router /user [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	h.LogRequest(c, "Listing users")

	filters, ok := h.parseUserFilters(c)
	if !ok {
		return
	}
	users, err := h.service.List(c.Request.Context(), actor, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *UserHandler) parseUserFilters(c *gin.Context) (repositories.UserFilters, bool) {
	filters := repositories.UserFilters{ListOptions: listOptions(c)}
	if raw := c.Query("role"); raw != "" {
		n, err := strconv.Atoi(raw)
		role := models.UserRole(n)
		if err != nil || !role.Valid() {
			h.RespondWithError(c, http.StatusBadRequest, CodeInvalidRequest, "InvalidRequest", "invalid role")
			return filters, false
		}
		filters.Role = &role
	}
	if raw := c.Query("status"); raw != "" {
		status := models.RegistrationStatus(raw)
		filters.Status = &status
	}
	return filters, true
}

// GetUser returns one user.
func (h *UserHandler) GetUser(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	user, err := h.service.GetByID(c.Request.Context(), actor, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) GetMe(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	user, err := h.service.GetByID(c.Request.Context(), actor, actor.ID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateMe updates the signed in user's name and email
// @Summary Update own profile
// @Tags users
// @Accept json
// @Produce json
// @Param profile body services.ProfileUpdateRequest true "Profile fields"
// @Success 200 {object} SuccessResponse{data=models.User}
// @Router /user/me [put]
func (h *UserHandler) UpdateMe(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req services.ProfileUpdateRequest
	if !h.bindJSON(c, &req) {
		return
	}
	user, err := h.service.UpdateProfile(c.Request.Context(), actor, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.respondMessage(c, http.StatusOK, "Saved", user)
}

func (h *UserHandler) ChangePassword(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req services.PasswordChangeRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if err := h.service.ChangePassword(c.Request.Context(), actor, &req); err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.respondMessage(c, http.StatusOK, "PasswordChanged", nil)
}

// CreateUser creates an approved user
// @Summary Create user
// @Tags users
// @Accept json
// @Produce json
// @Param user body services.UserCreateRequest true "User data"
// @Success 201 {object} SuccessResponse{data=models.User}
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /user [post]
func (h *UserHandler) CreateUser(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req services.UserCreateRequest
	if !h.bindJSON(c, &req) {
		return
	}
	user, err := h.service.Create(c.Request.Context(), actor, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.respondMessage(c, http.StatusCreated, "Saved", user)
}

func (h *UserHandler) UpdateUser(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	var req services.UserUpdateRequest
	if !h.bindJSON(c, &req) {
		return
	}
	user, err := h.service.Update(c.Request.Context(), actor, id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.respondMessage(c, http.StatusOK, "Saved", user)
}

func (h *UserHandler) DeleteUser(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	h.LogRequest(c, "Deleting user", "user_id", id)
	if err := h.service.Delete(c.Request.Context(), actor, id); err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.respondMessage(c, http.StatusOK, "Deleted", nil)
}

// UpdateStatus approves or rejects a registration
// @Summary Decide registration
// @Description Moves a registration to approved or rejected and emails the user
// @Tags users
// @Accept json
// @Produce json
// @Param id path uint true "User ID"
// @Param status body services.UserStatusRequest true "New status"
// @Success 200 {object} SuccessResponse{data=models.User}
// @Failure 400 {object} ErrorResponse "Invalid transition"
// @Router /user/{id}/status [patch]
func (h *UserHandler) UpdateStatus(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	var req services.UserStatusRequest
	if !h.bindJSON(c, &req) {
		return
	}
	user, err := h.service.UpdateStatus(c.Request.Context(), actor, id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.respondMessage(c, http.StatusOK, "Saved", user)
}

// ===== FILES =====

// UploadPhoto replaces the avatar
// @Summary Upload profile photo
// @Tags users
// @Accept multipart/form-data
// @Produce json
// @Param photo formData file true "jpeg, png or webp"
// @Success 200 {object} SuccessResponse{data=models.User}
// @Failure 413 {object} ErrorResponse
// @Failure 415 {object} ErrorResponse
// @Router /user/me/photo [post]
func (h *UserHandler) UploadPhoto(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	file, ok := h.formFile(c, "photo")
	if !ok {
		return
	}
	defer file.Close()

	user, err := h.service.UploadPhoto(c.Request.Context(), actor, file)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.respondMessage(c, http.StatusOK, "PhotoUpdated", user)
}

func (h *UserHandler) DeletePhoto(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	user, err := h.service.DeletePhoto(c.Request.Context(), actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.respondMessage(c, http.StatusOK, "PhotoRemoved", user)
}

func (h *UserHandler) GetPhoto(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	file, err := h.service.OpenPhoto(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	sendFile(c, file, true)
}

func (h *UserHandler) UploadDiploma(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	file, ok := h.formFile(c, "diploma")
	if !ok {
		return
	}
	defer file.Close()

	user, err := h.service.UploadDiploma(c.Request.Context(), actor, file)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.respondMessage(c, http.StatusOK, "DiplomaUploaded", user)
}

func (h *UserHandler) GetDiploma(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	file, err := h.service.OpenDiploma(c.Request.Context(), actor, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	sendFile(c, file, false)
}

// ImportUsers creates students from a spreadsheet
// @Summary Bulk import students
// @Description Reads an xlsx file with the header username, email, name, password
// @Tags users
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "xlsx workbook"
// @Success 200 {object} services.ImportResult
// @Router /user/import [post]
func (h *UserHandler) ImportUsers(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	file, ok := h.formFile(c, "file")
	if !ok {
		return
	}
	defer file.Close()

	result, err := h.service.Import(c.Request.Context(), actor, file)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// UserMedals lists the medals another user has earned.
func (h *UserHandler) UserMedals(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	medals, err := h.medals.UserMedals(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, medals)
}
