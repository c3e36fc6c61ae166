package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sevenfour/order-workflow-api/config"
	"github.com/sevenfour/order-workflow-api/middleware"
	"github.com/sevenfour/order-workflow-api/models"
	"github.com/sevenfour/order-workflow-api/services"
)

// CustomCancellationRequest represents the body of POST /api/custom-orders/cancellation-requests
type CustomCancellationRequest struct {
	CustomOrderID string `json:"customOrderId" binding:"required"`
	Reason        string `json:"reason" binding:"required"`
}

// OrderCancellationRequest represents the body of POST /api/orders/:id/cancellation-requests
type OrderCancellationRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// RefundRequest represents the body of POST /api/orders/refund-request.
// Exactly one of OrderID and CustomOrderID names the order.
type RefundRequest struct {
	OrderID       *uint64 `json:"order_id" binding:"required_without=CustomOrderID,excluded_with=CustomOrderID"`
	CustomOrderID *string `json:"custom_order_id" binding:"required_without=OrderID"`
	Reason        string  `json:"reason" binding:"required"`
}

// ResolveCancellationBody is an admin decision on a pending request
type ResolveCancellationBody struct {
	Action     string `json:"action" binding:"required,oneof=approve deny reject"`
	AdminNotes string `json:"admin_notes"`
}

// CancellationListQuery filters and pages the request lists
type CancellationListQuery struct {
	Status      string `form:"status" binding:"omitempty,oneof=pending approved denied"`
	OrderType   string `form:"order_type" binding:"omitempty,order_type"`
	RequestType string `form:"request_type" binding:"omitempty,oneof=cancellation refund"`
	Page        int    `form:"page" binding:"omitempty,gte=1,lte=100000"`
	PageSize    int    `form:"page_size" binding:"omitempty,gte=1,lte=1000"`
}

func (q CancellationListQuery) filter(orderType models.OrderType) services.CancellationFilter {
	return services.CancellationFilter{
		OrderType:   orderType,
		RequestType: q.RequestType,
		Status:      q.Status,
		Page:        q.Page,
		PageSize:    q.PageSize,
	}
}

func cancellationService(c *gin.Context) *services.CancellationService {
	return services.NewCancellationService(config.GetDB(), middleware.Logger(c))
}

// CreateCustomCancellationRequest handles POST /api/custom-orders/cancellation-requests
func CreateCustomCancellationRequest(c *gin.Context) {
	var req CustomCancellationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	ref, err := services.ParseOrderRef(string(models.OrderTypeCustom), req.CustomOrderID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	createCancellation(c, ref, req.Reason, models.RequestTypeCancellation)
}

// CreateOrderCancellationRequest handles POST /api/orders/:id/cancellation-requests
func CreateOrderCancellationRequest(c *gin.Context) {
	var req OrderCancellationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	ref, err := services.ParseOrderRef(string(models.OrderTypeRegular), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	createCancellation(c, ref, req.Reason, models.RequestTypeCancellation)
}

// CreateRefundRequest handles POST /api/orders/refund-request
func CreateRefundRequest(c *gin.Context) {
	var req RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	orderType, id := models.OrderTypeCustom, ""
	if req.OrderID != nil {
		orderType, id = models.OrderTypeRegular, strconv.FormatUint(*req.OrderID, 10)
	} else {
		id = *req.CustomOrderID
	}

	ref, err := services.ParseOrderRef(string(orderType), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	createCancellation(c, ref, req.Reason, models.RequestTypeRefund)
}

func createCancellation(c *gin.Context, ref services.OrderRef, reason, requestType string) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	request, err := cancellationService(c).Create(c.Request.Context(), services.CreateCancellationInput{
		Ref:         ref,
		Reason:      reason,
		RequestType: requestType,
		Requester:   user,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusCreated, request)
}

// ListCustomCancellationRequests handles GET /api/custom-orders/cancellation-requests (admin)
func ListCustomCancellationRequests(c *gin.Context) {
	var q CancellationListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBindError(c, err)
		return
	}
	listCancellations(c, q.filter(models.OrderTypeCustom))
}

// ListCancellationRequests handles GET /api/cancellation-requests (admin)
func ListCancellationRequests(c *gin.Context) {
	var q CancellationListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBindError(c, err)
		return
	}
	listCancellations(c, q.filter(models.OrderType(q.OrderType)))
}

// ListMyCancellationRequests handles GET /api/cancellation-requests/me
func ListMyCancellationRequests(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var q CancellationListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBindError(c, err)
		return
	}
	filter := q.filter(models.OrderType(q.OrderType))
	filter.UserID = &user.ID
	listCancellations(c, filter)
}

func listCancellations(c *gin.Context, filter services.CancellationFilter) {
	page, err := cancellationService(c).List(c.Request.Context(), filter)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, http.StatusOK, page)
}

// ResolveCustomCancellationRequest handles PUT /api/custom-orders/cancellation-requests/:requestId (admin)
func ResolveCustomCancellationRequest(c *gin.Context) {
	resolveCancellation(c, models.OrderTypeCustom)
}

// ResolveCancellationRequest handles PUT /api/cancellation-requests/:requestId (admin)
func ResolveCancellationRequest(c *gin.Context) {
	resolveCancellation(c, "")
}

func resolveCancellation(c *gin.Context, onlyType models.OrderType) {
	admin, ok := currentUser(c)
	if !ok {
		return
	}

	id, err := strconv.ParseUint(c.Param("requestId"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request data", map[string]string{"requestId": "must be a positive integer"})
		return
	}

	var req ResolveCancellationBody
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := cancellationService(c).Resolve(c.Request.Context(), services.ResolveInput{
		RequestID:  uint(id),
		Action:     req.Action,
		AdminNotes: req.AdminNotes,
		Admin:      admin,
		OnlyType:   onlyType,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusOK, result)
}
