package handlers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/evolvere-edu/evolvere-api/internal/i18n"
	"github.com/evolvere-edu/evolvere-api/internal/models"
	"github.com/evolvere-edu/evolvere-api/internal/repositories"
	"github.com/evolvere-edu/evolvere-api/internal/services"
	"github.com/evolvere-edu/evolvere-api/internal/storage"
	"github.com/evolvere-edu/evolvere-api/internal/utils"
	"github.com/evolvere-edu/evolvere-api/internal/validator"
)

// ErrorResponse is the body of every failed request. The client shows
// Message as a flash and reacts to Code.
type ErrorResponse struct {
	Message string      `json:"message"`
	Code    string      `json:"code,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Error codes the client understands.
const (
	CodeSessionExpired       = "SESSION_EXPIRED"
	CodeForbiddenRole        = "FORBIDDEN_ROLE"
	CodeForbidden            = "FORBIDDEN"
	CodeValidation           = "VALIDATION_FAILED"
	CodeInvalidRequest       = "INVALID_REQUEST"
	CodeNotFound             = "NOT_FOUND"
	CodeConflict             = "CONFLICT"
	CodeBusinessRule         = "BUSINESS_RULE"
	CodeInvalidCredentials   = "INVALID_CREDENTIALS"
	CodeRegistrationPending  = "REGISTRATION_PENDING"
	CodeRegistrationRejected = "REGISTRATION_REJECTED"
	CodeAlreadySubmitted     = "ALREADY_SUBMITTED"
	CodeSubmissionExpired    = "SUBMISSION_EXPIRED"
	CodeFormClosed           = "FORM_CLOSED"
	CodeFormLocked           = "FORM_LOCKED"
	CodeUnsupportedFile      = "UNSUPPORTED_FILE"
	CodeFileTooLarge         = "FILE_TOO_LARGE"
	CodeSSODisabled          = "SSO_DISABLED"
	CodeInternal             = "INTERNAL_ERROR"
)

type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

func (h *BaseHandler) LogRequest(c *gin.Context, msg string, args ...any) {
	utils.FromGin(c, h.logger).Debug(msg, args...)
}

func (h *BaseHandler) LogError(c *gin.Context, err error, msg string, args ...any) {
	utils.FromGin(c, h.logger).Error(msg, append(args, "error", err)...)
}

// RespondWithError writes a localized error body.
func (h *BaseHandler) RespondWithError(c *gin.Context, status int, code, messageID string, details interface{}) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Message: i18n.T(c.Request.Context(), messageID),
		Code:    code,
		Details: details,
	})
}

func (h *BaseHandler) respondMessage(c *gin.Context, status int, messageID string, data interface{}) {
	c.JSON(status, SuccessResponse{
		Message: i18n.T(c.Request.Context(), messageID),
		Data:    data,
	})
}

// actor returns the authenticated user set by the session middleware.
func (h *BaseHandler) actor(c *gin.Context) (services.Actor, bool) {
	id, okID := c.Get(ctxUserID)
	role, okRole := c.Get(ctxUserRole)
	if !okID || !okRole {
		h.RespondWithError(c, http.StatusUnauthorized, CodeSessionExpired, "Unauthenticated", nil)
		return services.Actor{}, false
	}
	return services.Actor{ID: id.(uint), Role: role.(models.UserRole)}, true
}

// parseIDParam reads a positive integer path parameter. On failure it
// responds with 400 and returns 0.
func (h *BaseHandler) parseIDParam(c *gin.Context, name string) uint {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		h.RespondWithError(c, http.StatusBadRequest, CodeInvalidRequest, "InvalidID", map[string]string{"param": name})
		return 0
	}
	return uint(id)
}

func (h *BaseHandler) bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, CodeInvalidRequest, "InvalidRequest", err.Error())
		return false
	}
	return true
}

// formFile opens a multipart upload field.
func (h *BaseHandler) formFile(c *gin.Context, field string) (multipart.File, bool) {
	header, err := c.FormFile(field)
	if err != nil {
		h.RespondWithError(c, http.StatusBadRequest, CodeInvalidRequest, "InvalidRequest", map[string]string{"field": field})
		return nil, false
	}
	file, err := header.Open()
	if err != nil {
		h.LogError(c, err, "Failed to open upload", "field", field)
		h.RespondWithError(c, http.StatusBadRequest, CodeInvalidRequest, "InvalidRequest", map[string]string{"field": field})
		return nil, false
	}
	return file, true
}

// optionalUint parses an optional numeric query parameter.
func optionalUint(c *gin.Context, name string) (*uint, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || v == 0 {
		return nil, fmt.Errorf("invalid %s", name)
	}
	id := uint(v)
	return &id, nil
}

func (h *BaseHandler) queryUint(c *gin.Context, name string) (*uint, bool) {
	v, err := optionalUint(c, name)
	if err != nil {
		h.RespondWithError(c, http.StatusBadRequest, CodeInvalidRequest, "InvalidRequest", err.Error())
		return nil, false
	}
	return v, true
}

// listOptions reads page, limit, search, sort_by and sort_order.
func listOptions(c *gin.Context) repositories.ListOptions {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(models.DefaultPageSize)))
	order := strings.ToLower(c.Query("sort_order"))
	if order != "asc" && order != "desc" {
		order = ""
	}
	return repositories.ListOptions{
		Pagination: models.Pagination{Page: page, Limit: limit}.Normalize(),
		Search:     strings.TrimSpace(c.Query("search")),
		SortBy:     c.Query("sort_by"),
		SortOrder:  order,
	}
}

// sendFile streams a stored file. Inline files are shown by the browser,
// the rest are downloaded.
func sendFile(c *gin.Context, file *services.FileDownload, inline bool) {
	defer file.Content.Close()
	disposition := "attachment"
	if inline {
		disposition = "inline"
	}
	c.Header("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, file.Name))
	if file.MimeType != "" {
		c.Header("Content-Type", file.MimeType)
	}
	http.ServeContent(c.Writer, c.Request, file.Name, file.ModTime, file.Content)
}

// handleServiceError maps service errors onto HTTP responses.
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		h.RespondWithError(c, http.StatusBadRequest, CodeValidation, "ValidationFailed", validationErrors)
		return
	}

	var businessRuleError *services.BusinessRuleError
	if errors.As(err, &businessRuleError) {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: businessRuleError.Message,
			Code:    CodeBusinessRule,
			Details: map[string]interface{}{
				"rule":    businessRuleError.Rule,
				"context": businessRuleError.Details,
			},
		})
		return
	}

	var permissionError *services.PermissionError
	if errors.As(err, &permissionError) {
		h.RespondWithError(c, http.StatusForbidden, CodeForbidden, "AccessDenied", map[string]interface{}{
			"resource": permissionError.Resource,
			"action":   permissionError.Action,
			"reason":   permissionError.Reason,
		})
		return
	}

	if status, code, messageID, ok := lookupError(err); ok {
		h.RespondWithError(c, status, code, messageID, nil)
		return
	}

	h.LogError(c, err, "Unexpected service error")
	h.RespondWithError(c, http.StatusInternalServerError, CodeInternal, "InternalError", nil)
}

type errorMapping struct {
	err       error
	status    int
	code      string
	messageID string
}

var errorMappings = []errorMapping{
	{services.ErrSessionExpired, http.StatusUnauthorized, CodeSessionExpired, "SessionExpired"},
	{services.ErrInvalidCredentials, http.StatusUnauthorized, CodeInvalidCredentials, "InvalidCredentials"},
	{services.ErrRegistrationPending, http.StatusForbidden, CodeRegistrationPending, "RegistrationPending"},
	{services.ErrRegistrationRejected, http.StatusForbidden, CodeRegistrationRejected, "RegistrationRejected"},
	{services.ErrWrongPassword, http.StatusBadRequest, CodeValidation, "WrongPassword"},
	{services.ErrSSODisabled, http.StatusNotFound, CodeSSODisabled, "SSODisabled"},

	{services.ErrUserNotFound, http.StatusNotFound, CodeNotFound, "UserNotFound"},
	{services.ErrCourseNotFound, http.StatusNotFound, CodeNotFound, "CourseNotFound"},
	{services.ErrSubjectNotFound, http.StatusNotFound, CodeNotFound, "SubjectNotFound"},
	{services.ErrClassNotFound, http.StatusNotFound, CodeNotFound, "ClassNotFound"},
	{services.ErrEnrollmentNotFound, http.StatusNotFound, CodeNotFound, "EnrollmentNotFound"},
	{services.ErrFormNotFound, http.StatusNotFound, CodeNotFound, "FormNotFound"},
	{services.ErrSubmissionNotFound, http.StatusNotFound, CodeNotFound, "SubmissionNotFound"},
	{services.ErrMaterialNotFound, http.StatusNotFound, CodeNotFound, "MaterialNotFound"},
	{services.ErrMedalNotFound, http.StatusNotFound, CodeNotFound, "MedalNotFound"},
	{services.ErrFileNotFound, http.StatusNotFound, CodeNotFound, "FileNotFound"},

	{services.ErrUsernameTaken, http.StatusConflict, CodeConflict, "UsernameTaken"},
	{services.ErrAlreadyEnrolled, http.StatusConflict, CodeConflict, "AlreadyEnrolled"},
	{services.ErrAlreadySubmitted, http.StatusConflict, CodeAlreadySubmitted, "AlreadySubmitted"},
	{services.ErrSubmissionExpired, http.StatusGone, CodeSubmissionExpired, "SubmissionExpired"},
	{services.ErrFormClosed, http.StatusUnprocessableEntity, CodeFormClosed, "FormClosed"},
	{services.ErrFormLocked, http.StatusUnprocessableEntity, CodeFormLocked, "FormLocked"},

	{storage.ErrUnsupportedType, http.StatusUnsupportedMediaType, CodeUnsupportedFile, "UnsupportedFile"},
	{storage.ErrFileTooLarge, http.StatusRequestEntityTooLarge, CodeFileTooLarge, "FileTooLarge"},
	{repositories.ErrDuplicate, http.StatusConflict, CodeConflict, "Conflict"},
	{repositories.ErrNotFound, http.StatusNotFound, CodeNotFound, "NotFound"},
}

func lookupError(err error) (status int, code, messageID string, ok bool) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.status, m.code, m.messageID, true
		}
	}
	return 0, "", "", false
}
