package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/jengzang/spotmap-go/internal/middleware"
	"github.com/jengzang/spotmap-go/internal/models"
	"github.com/jengzang/spotmap-go/internal/service"
	"github.com/jengzang/spotmap-go/pkg/response"
)

// SpotHandler handles HTTP requests for public spots
type SpotHandler struct {
	spotService *service.SpotService
}

// NewSpotHandler creates a new spot handler
func NewSpotHandler(spotService *service.SpotService) *SpotHandler {
	return &SpotHandler{spotService: spotService}
}

// ListPublicSpots handles GET /api/v1/spots/public
func (h *SpotHandler) ListPublicSpots(c *gin.Context) {
	var filter models.PublicSpotFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, "Invalid query parameters")
		return
	}

	spots, err := h.spotService.List(c.Request.Context(), filter)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, spots)
}

// CreatePublicSpot handles POST /api/v1/spots/public
func (h *SpotHandler) CreatePublicSpot(c *gin.Context) {
	var in models.PublicSpotInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	spot, err := h.spotService.Publish(c.Request.Context(), c.GetString(middleware.ContextEmail), in)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Created(c, spot)
}
