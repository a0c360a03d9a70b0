package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/evolvere-edu/evolvere-api/internal/services"
	"github.com/evolvere-edu/evolvere-api/internal/utils"
)

type MedalHandler struct {
	BaseHandler
	service services.MedalService
}

func NewMedalHandler(service services.MedalService, logger utils.Logger) *MedalHandler {
	return &MedalHandler{
		BaseHandler: NewBaseHandler(logger),
		service:     service,
	}
}

// Catalogue lists every medal and its rule
// @Summary Medal catalogue
// @Tags medals
// @Produce json
// @Success 200 {array} models.Medal
// @Router /medals [get]
func (h *MedalHandler) Catalogue(c *gin.Context) {
	medals, err := h.service.Catalogue(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, medals)
}

func (h *MedalHandler) MyMedals(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	medals, err := h.service.UserMedals(c.Request.Context(), actor.ID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, medals)
}

func (h *MedalHandler) CreateMedal(c *gin.Context) {
	var req services.MedalRequest
	if !h.bindJSON(c, &req) {
		return
	}
	medal, err := h.service.Create(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, medal)
}
