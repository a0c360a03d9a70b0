package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/evolvere-edu/evolvere-api/internal/services"
	"github.com/evolvere-edu/evolvere-api/internal/utils"
)

type MaterialHandler struct {
	BaseHandler
	service services.MaterialService
}

func NewMaterialHandler(service services.MaterialService, logger utils.Logger) *MaterialHandler {
	return &MaterialHandler{
		BaseHandler: NewBaseHandler(logger),
		service:     service,
	}
}

// UploadMaterial stores a class material
// @Summary Upload material
// @Tags materials
// @Accept multipart/form-data
// @Produce json
// @Param class_id formData int true "Class ID"
// @Param title formData string true "Title"
// @Param description formData string false "Description"
// @Param file formData file true "Document"
// @Success 201 {object} models.Material
// @Failure 403 {object} ErrorResponse
// @Failure 413 {object} ErrorResponse
// @Failure 415 {object} ErrorResponse
// @Router /materials [post]
func (h *MaterialHandler) UploadMaterial(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	classID, err := strconv.ParseUint(c.PostForm("class_id"), 10, 64)
	if err != nil || classID == 0 {
		h.RespondWithError(c, http.StatusBadRequest, CodeInvalidRequest, "InvalidRequest", map[string]string{"field": "class_id"})
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		h.RespondWithError(c, http.StatusBadRequest, CodeInvalidRequest, "InvalidRequest", map[string]string{"field": "file"})
		return
	}
	file, err := header.Open()
	if err != nil {
		h.LogError(c, err, "Failed to open upload")
		h.RespondWithError(c, http.StatusBadRequest, CodeInvalidRequest, "InvalidRequest", map[string]string{"field": "file"})
		return
	}
	defer file.Close()

	upload := &services.MaterialUpload{
		ClassID:  uint(classID),
		Title:    c.PostForm("title"),
		FileName: header.Filename,
		Content:  file,
	}
	if desc, ok := c.GetPostForm("description"); ok && desc != "" {
		upload.Description = &desc
	}

	material, err := h.service.Upload(c.Request.Context(), actor, upload)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, material)
}

func (h *MaterialHandler) ListMaterials(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	opts := listOptions(c)
	filters := services.MaterialListFilters{Pagination: opts.Pagination, Search: opts.Search}
	if filters.ClassID, ok = h.queryUint(c, "class_id"); !ok {
		return
	}
	materials, err := h.service.List(c.Request.Context(), actor, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, materials)
}

func (h *MaterialHandler) GetMaterial(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	material, err := h.service.GetByID(c.Request.Context(), actor, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, material)
}

func (h *MaterialHandler) UpdateMaterial(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	var req services.MaterialUpdateRequest
	if !h.bindJSON(c, &req) {
		return
	}
	material, err := h.service.Update(c.Request.Context(), actor, id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.respondMessage(c, http.StatusOK, "Saved", material)
}

func (h *MaterialHandler) DeleteMaterial(c *gin.Context) {
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

func (h *MaterialHandler) DownloadMaterial(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	file, err := h.service.Download(c.Request.Context(), actor, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	sendFile(c, file, false)
}
