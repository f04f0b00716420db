package handler

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"

	"backend/internal/middleware"
	"backend/internal/service"
	"backend/pkg/pagination"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type PurchaseOrderHandler struct {
	poService service.PurchaseOrderService
}

// NewPurchaseOrderHandler sets up the routing dependencies for PO endpoints
func NewPurchaseOrderHandler(poService service.PurchaseOrderService) *PurchaseOrderHandler {
	return &PurchaseOrderHandler{poService: poService}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *PurchaseOrderHandler) RegisterRoutes(router *gin.RouterGroup) {
	pos := router.Group("/purchase-orders")
	{
		pos.GET("", middleware.RequireRole("admin", "manager", "staff"), h.ListPurchaseOrders)
		pos.GET("/export", middleware.RequireRole("admin", "manager"), h.ExportPurchaseOrders)
		pos.GET("/:id", middleware.RequireRole("admin", "manager", "staff"), h.GetPurchaseOrder)
		pos.POST("", middleware.RequireRole("admin", "manager"), h.CreatePurchaseOrder)
		pos.PUT("/:id", middleware.RequireRole("admin", "manager"), h.UpdatePurchaseOrder)
		pos.POST("/:id/spend", middleware.RequireRole("admin", "manager"), h.RecordSpend)
		pos.DELETE("/:id", middleware.RequireRole("admin"), h.DeletePurchaseOrder)
		pos.POST("/refresh-statuses", middleware.RequireRole("admin"), h.RefreshStatuses)
	}

	notifications := router.Group("/notifications")
	{
		notifications.GET("", middleware.RequireRole("admin", "manager", "staff"), h.ListNotifications)
		notifications.PUT("/read-all", middleware.RequireRole("admin", "manager", "staff"), h.MarkAllNotificationsRead)
		notifications.PUT("/:id/read", middleware.RequireRole("admin", "manager", "staff"), h.MarkNotificationRead)
	}
}

// CreatePurchaseOrder handles POST /purchase-orders
// @Summary      Create purchase order
// @Description  Creates a purchase order, derives its initial status, and backfills threshold notifications for imported spend
// @Tags         purchase-orders
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreatePurchaseOrderRequest  true  "Create PO Payload"
// @Success      201      {object}  response.Response{data=service.PurchaseOrderResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /purchase-orders [post]
func (h *PurchaseOrderHandler) CreatePurchaseOrder(c *gin.Context) {
	var req service.CreatePurchaseOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "User ID not found in context"))
		return
	}

	po, err := h.poService.CreatePurchaseOrder(c.Request.Context(), req, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, po))
}

// ListPurchaseOrders handles GET /purchase-orders with filters and pagination
// @Summary      List purchase orders
// @Description  Retrieves a paginated list of purchase orders filtered by status, customer, account, or PO number
// @Tags         purchase-orders
// @Produce      json
// @Security     BearerAuth
// @Param        status       query     string  false  "Status filter"
// @Param        customer_id  query     string  false  "Customer UUID"
// @Param        account_id   query     string  false  "Account UUID"
// @Param        po_number    query     string  false  "Partial PO number match"
// @Param        page         query     int     false  "Page number (default 1)"
// @Param        limit        query     int     false  "Items per page (default 20)"
// @Success      200          {object}  response.Response{data=object}
// @Failure      400          {object}  response.Response
// @Router       /purchase-orders [get]
func (h *PurchaseOrderHandler) ListPurchaseOrders(c *gin.Context) {
	p := pagination.Parse(c)

	filter := service.POFilter{
		Status:     c.Query("status"),
		CustomerID: c.Query("customer_id"),
		AccountID:  c.Query("account_id"),
		PONumber:   c.Query("po_number"),
		Page:       p.Page,
		Limit:      p.Limit,
	}

	pos, total, err := h.poService.ListPurchaseOrders(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"purchase_orders": pos,
		"total":           total,
		"page":            p.Page,
		"limit":           p.Limit,
		"total_pages":     p.TotalPages(total),
	}))
}

// GetPurchaseOrder handles GET /purchase-orders/:id
// @Summary      Get purchase order
// @Description  Fetch a single purchase order with balance, utilization, and status detail
// @Tags         purchase-orders
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Purchase Order ID"
// @Success      200  {object}  response.Response{data=service.PurchaseOrderResponse}
// @Failure      404  {object}  response.Response
// @Router       /purchase-orders/{id} [get]
func (h *PurchaseOrderHandler) GetPurchaseOrder(c *gin.Context) {
	po, err := h.poService.GetPurchaseOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, po))
}

// UpdatePurchaseOrder handles PUT /purchase-orders/:id
// @Summary      Update purchase order
// @Description  Updates descriptive fields and validity dates; status is recomputed, never set directly
// @Tags         purchase-orders
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                              true  "Purchase Order ID"
// @Param        payload  body      service.UpdatePurchaseOrderRequest  true  "Update PO Payload"
// @Success      200      {object}  response.Response{data=service.PurchaseOrderResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /purchase-orders/{id} [put]
func (h *PurchaseOrderHandler) UpdatePurchaseOrder(c *gin.Context) {
	var req service.UpdatePurchaseOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "User ID not found in context"))
		return
	}

	po, err := h.poService.UpdatePurchaseOrder(c.Request.Context(), c.Param("id"), req, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, po))
}

// RecordSpend handles POST /purchase-orders/:id/spend
// @Summary      Record spend
// @Description  Sets the PO's absolute spent amount, recomputes status, and emits any crossed threshold notifications
// @Tags         purchase-orders
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                     true  "Purchase Order ID"
// @Param        payload  body      service.RecordSpendRequest  true  "Spend Payload"
// @Success      200      {object}  response.Response{data=service.PurchaseOrderResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /purchase-orders/{id}/spend [post]
func (h *PurchaseOrderHandler) RecordSpend(c *gin.Context) {
	var req service.RecordSpendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "User ID not found in context"))
		return
	}

	po, err := h.poService.RecordSpend(c.Request.Context(), c.Param("id"), req, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, po))
}

// DeletePurchaseOrder handles DELETE /purchase-orders/:id
// @Summary      Delete purchase order
// @Description  Deletes a purchase order together with its threshold notifications
// @Tags         purchase-orders
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Purchase Order ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /purchase-orders/{id} [delete]
func (h *PurchaseOrderHandler) DeletePurchaseOrder(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "User ID not found in context"))
		return
	}

	if err := h.poService.DeletePurchaseOrder(c.Request.Context(), c.Param("id"), userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Message(http.StatusOK, "Purchase order deleted successfully"))
}

// RefreshStatuses handles POST /purchase-orders/refresh-statuses
// @Summary      Refresh PO statuses
// @Description  Re-derives every PO's status from the current date, picking up calendar expiries
// @Tags         purchase-orders
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=object}
// @Failure      500  {object}  response.Response
// @Router       /purchase-orders/refresh-statuses [post]
func (h *PurchaseOrderHandler) RefreshStatuses(c *gin.Context) {
	updated, err := h.poService.RefreshStatuses(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"updated": updated,
	}))
}

// ExportPurchaseOrders handles GET /purchase-orders/export as CSV
// @Summary      Export purchase orders
// @Description  Streams the filtered purchase order list as a CSV file
// @Tags         purchase-orders
// @Produce      text/csv
// @Security     BearerAuth
// @Param        status       query  string  false  "Status filter"
// @Param        customer_id  query  string  false  "Customer UUID"
// @Success      200  {string}  string  "CSV content"
// @Failure      400  {object}  response.Response
// @Router       /purchase-orders/export [get]
func (h *PurchaseOrderHandler) ExportPurchaseOrders(c *gin.Context) {
	filter := service.POFilter{
		Status:     c.Query("status"),
		CustomerID: c.Query("customer_id"),
		AccountID:  c.Query("account_id"),
		Page:       1,
		Limit:      pagination.ExportLimit,
	}

	pos, _, err := h.poService.ListPurchaseOrders(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="purchase_orders.csv"`)

	writer := csv.NewWriter(c.Writer)
	_ = writer.Write([]string{
		"po_number", "customer", "account", "total_amount", "spent_amount",
		"remaining_balance", "utilization_percent", "currency",
		"valid_from", "valid_until", "status",
	})
	for _, po := range pos {
		_ = writer.Write([]string{
			po.PONumber, po.CustomerName, po.AccountName, po.TotalAmount, po.SpentAmount,
			po.RemainingBalance, po.UtilizationPercent, po.Currency,
			po.ValidFrom, po.ValidUntil, po.Status,
		})
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, fmt.Sprintf("failed to write csv: %v", err)))
	}
}

// ListNotifications handles GET /notifications
// @Summary      List balance notifications
// @Description  Retrieves threshold notifications, optionally scoped to a PO or unread only
// @Tags         notifications
// @Produce      json
// @Security     BearerAuth
// @Param        purchase_order_id  query     string  false  "Purchase Order UUID"
// @Param        unread_only        query     bool    false  "Only unread notifications"
// @Param        page               query     int     false  "Page number (default 1)"
// @Param        limit              query     int     false  "Items per page (default 20)"
// @Success      200                {object}  response.Response{data=object}
// @Failure      400                {object}  response.Response
// @Router       /notifications [get]
func (h *PurchaseOrderHandler) ListNotifications(c *gin.Context) {
	p := pagination.Parse(c)
	unreadOnly, _ := strconv.ParseBool(c.DefaultQuery("unread_only", "false"))

	filter := service.NotificationFilter{
		PurchaseOrderID: c.Query("purchase_order_id"),
		UnreadOnly:      unreadOnly,
		Page:            p.Page,
		Limit:           p.Limit,
	}

	notifications, total, err := h.poService.ListNotifications(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"notifications": notifications,
		"total":         total,
		"page":          p.Page,
		"limit":         p.Limit,
		"total_pages":   p.TotalPages(total),
	}))
}

// MarkNotificationRead handles PUT /notifications/:id/read
// @Summary      Mark notification read
// @Tags         notifications
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Notification ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /notifications/{id}/read [put]
func (h *PurchaseOrderHandler) MarkNotificationRead(c *gin.Context) {
	if err := h.poService.MarkNotificationRead(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Message(http.StatusOK, "Notification marked as read"))
}

// MarkAllNotificationsRead handles PUT /notifications/read-all
// @Summary      Mark all notifications read
// @Description  Marks every unread notification read, optionally scoped to one PO
// @Tags         notifications
// @Produce      json
// @Security     BearerAuth
// @Param        purchase_order_id  query     string  false  "Purchase Order UUID"
// @Success      200                {object}  response.Response{data=object}
// @Failure      400                {object}  response.Response
// @Router       /notifications/read-all [put]
func (h *PurchaseOrderHandler) MarkAllNotificationsRead(c *gin.Context) {
	count, err := h.poService.MarkAllNotificationsRead(c.Request.Context(), c.Query("purchase_order_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"marked_read": count,
	}))
}
