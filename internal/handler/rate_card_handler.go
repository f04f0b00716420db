package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/service"
	"backend/pkg/pagination"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type RateCardHandler struct {
	rateCardService service.RateCardService
}

func NewRateCardHandler(rateCardService service.RateCardService) *RateCardHandler {
	return &RateCardHandler{rateCardService: rateCardService}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *RateCardHandler) RegisterRoutes(router *gin.RouterGroup) {
	cards := router.Group("/rate-cards")
	{
		cards.GET("", middleware.RequireRole("admin", "manager", "staff"), h.ListRateCards)
		cards.GET("/:id", middleware.RequireRole("admin", "manager", "staff"), h.GetRateCard)
		cards.POST("", middleware.RequireRole("admin", "manager"), h.CreateRateCard)
		cards.PUT("/:id", middleware.RequireRole("admin", "manager"), h.UpdateRateCard)
		cards.DELETE("/:id", middleware.RequireRole("admin"), h.DeleteRateCard)
	}
}

// CreateRateCard handles POST /rate-cards
// @Summary      Create rate card
// @Description  Creates a rate card with its service rates for a customer
// @Tags         rate-cards
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateRateCardRequest  true  "Create Rate Card Payload"
// @Success      201      {object}  response.Response{data=service.RateCardResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /rate-cards [post]
func (h *RateCardHandler) CreateRateCard(c *gin.Context) {
	var req service.CreateRateCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "User ID not found in context"))
		return
	}

	card, err := h.rateCardService.CreateRateCard(c.Request.Context(), req, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, card))
}

// ListRateCards handles GET /rate-cards
// @Summary      List rate cards
// @Tags         rate-cards
// @Produce      json
// @Security     BearerAuth
// @Param        customer_id  query     string  false  "Customer UUID"
// @Param        status       query     string  false  "Status filter"
// @Param        page         query     int     false  "Page number (default 1)"
// @Param        limit        query     int     false  "Items per page (default 20)"
// @Success      200          {object}  response.Response{data=object}
// @Failure      400          {object}  response.Response
// @Router       /rate-cards [get]
func (h *RateCardHandler) ListRateCards(c *gin.Context) {
	p := pagination.Parse(c)

	cards, total, err := h.rateCardService.ListRateCards(c.Request.Context(), c.Query("customer_id"), c.Query("status"), p.Page, p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"rate_cards":  cards,
		"total":       total,
		"page":        p.Page,
		"limit":       p.Limit,
		"total_pages": p.TotalPages(total),
	}))
}

// GetRateCard handles GET /rate-cards/:id
// @Summary      Get rate card
// @Tags         rate-cards
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Rate Card ID"
// @Success      200  {object}  response.Response{data=service.RateCardResponse}
// @Failure      404  {object}  response.Response
// @Router       /rate-cards/{id} [get]
func (h *RateCardHandler) GetRateCard(c *gin.Context) {
	card, err := h.rateCardService.GetRateCard(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, card))
}

// UpdateRateCard handles PUT /rate-cards/:id
// @Summary      Update rate card
// @Description  Updates rate card fields; when service_rates is present the full set is replaced
// @Tags         rate-cards
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                         true  "Rate Card ID"
// @Param        payload  body      service.UpdateRateCardRequest  true  "Update Rate Card Payload"
// @Success      200      {object}  response.Response{data=service.RateCardResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /rate-cards/{id} [put]
func (h *RateCardHandler) UpdateRateCard(c *gin.Context) {
	var req service.UpdateRateCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "User ID not found in context"))
		return
	}

	card, err := h.rateCardService.UpdateRateCard(c.Request.Context(), c.Param("id"), req, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, card))
}

// DeleteRateCard handles DELETE /rate-cards/:id
// @Summary      Delete rate card
// @Tags         rate-cards
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Rate Card ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /rate-cards/{id} [delete]
func (h *RateCardHandler) DeleteRateCard(c *gin.Context) {
	if err := h.rateCardService.DeleteRateCard(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Message(http.StatusOK, "Rate card deleted successfully"))
}
