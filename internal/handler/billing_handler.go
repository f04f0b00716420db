package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/service"
	"backend/pkg/pagination"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type BillingHandler struct {
	billingService service.BillingService
}

func NewBillingHandler(billingService service.BillingService) *BillingHandler {
	return &BillingHandler{billingService: billingService}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *BillingHandler) RegisterRoutes(router *gin.RouterGroup) {
	runs := router.Group("/billing-runs")
	{
		runs.GET("", middleware.RequireRole("admin", "manager", "staff"), h.ListBillingRuns)
		runs.GET("/:id", middleware.RequireRole("admin", "manager", "staff"), h.GetBillingRun)
		runs.POST("", middleware.RequireRole("admin", "manager"), h.CreateBillingRun)
		runs.POST("/:id/complete", middleware.RequireRole("admin", "manager"), h.CompleteBillingRun)
		runs.POST("/:id/cancel", middleware.RequireRole("admin", "manager"), h.CancelBillingRun)
	}
}

// CreateBillingRun handles POST /billing-runs
// @Summary      Create billing run
// @Description  Creates a pending billing run against a billable PO; the amount must fit the PO's remaining balance
// @Tags         billing-runs
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateBillingRunRequest  true  "Create Billing Run Payload"
// @Success      201      {object}  response.Response{data=service.BillingRunResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /billing-runs [post]
func (h *BillingHandler) CreateBillingRun(c *gin.Context) {
	var req service.CreateBillingRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "User ID not found in context"))
		return
	}

	run, err := h.billingService.CreateBillingRun(c.Request.Context(), req, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, run))
}

// ListBillingRuns handles GET /billing-runs
// @Summary      List billing runs
// @Tags         billing-runs
// @Produce      json
// @Security     BearerAuth
// @Param        status             query     string  false  "Status filter"
// @Param        customer_id        query     string  false  "Customer UUID"
// @Param        purchase_order_id  query     string  false  "Purchase Order UUID"
// @Param        page               query     int     false  "Page number (default 1)"
// @Param        limit              query     int     false  "Items per page (default 20)"
// @Success      200                {object}  response.Response{data=object}
// @Failure      400                {object}  response.Response
// @Router       /billing-runs [get]
func (h *BillingHandler) ListBillingRuns(c *gin.Context) {
	p := pagination.Parse(c)

	query := service.BillingRunListQuery{
		Status:          c.Query("status"),
		CustomerID:      c.Query("customer_id"),
		PurchaseOrderID: c.Query("purchase_order_id"),
		Page:            p.Page,
		Limit:           p.Limit,
	}

	runs, total, err := h.billingService.ListBillingRuns(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"billing_runs": runs,
		"total":        total,
		"page":         p.Page,
		"limit":        p.Limit,
		"total_pages":  p.TotalPages(total),
	}))
}

// GetBillingRun handles GET /billing-runs/:id
// @Summary      Get billing run
// @Tags         billing-runs
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Billing Run ID"
// @Success      200  {object}  response.Response{data=service.BillingRunResponse}
// @Failure      404  {object}  response.Response
// @Router       /billing-runs/{id} [get]
func (h *BillingHandler) GetBillingRun(c *gin.Context) {
	run, err := h.billingService.GetBillingRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, run))
}

// CompleteBillingRun handles POST /billing-runs/:id/complete
// @Summary      Complete billing run
// @Description  Records the run's amount as spend on its PO and marks the run completed
// @Tags         billing-runs
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Billing Run ID"
// @Success      200  {object}  response.Response{data=service.BillingRunResponse}
// @Failure      400  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /billing-runs/{id}/complete [post]
func (h *BillingHandler) CompleteBillingRun(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "User ID not found in context"))
		return
	}

	run, err := h.billingService.CompleteBillingRun(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, run))
}

// CancelBillingRun handles POST /billing-runs/:id/cancel
// @Summary      Cancel billing run
// @Description  Cancels a run that has not been processed yet
// @Tags         billing-runs
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Billing Run ID"
// @Success      200  {object}  response.Response{data=service.BillingRunResponse}
// @Failure      400  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /billing-runs/{id}/cancel [post]
func (h *BillingHandler) CancelBillingRun(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "User ID not found in context"))
		return
	}

	run, err := h.billingService.CancelBillingRun(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, run))
}
