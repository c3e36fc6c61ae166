package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sevenfour/order-workflow-api/models"
	"github.com/sevenfour/order-workflow-api/services"
	"github.com/shopspring/decimal"
)

// CreateCustomOrderRequest represents the request body for a custom design order
type CreateCustomOrderRequest struct {
	ProductType         string          `json:"product_type" binding:"required,max=50"`
	ProductName         string          `json:"product_name" binding:"omitempty,max=255"`
	Size                string          `json:"size" binding:"required,max=20"`
	Color               string          `json:"color" binding:"required,max=50"`
	Quantity            int             `json:"quantity" binding:"required,gt=0"`
	EstimatedPrice      decimal.Decimal `json:"estimated_price"`
	CustomerName        string          `json:"customer_name" binding:"omitempty,max=255"`
	CustomerEmail       string          `json:"customer_email" binding:"omitempty,email"`
	CustomerPhone       string          `json:"customer_phone" binding:"omitempty,max=20"`
	ShippingAddress     string          `json:"shipping_address" binding:"required"`
	SpecialInstructions string          `json:"special_instructions"`
}

// UpdateCustomOrderStatusRequest reviews a custom order
type UpdateCustomOrderStatusRequest struct {
	Status     string           `json:"status" binding:"required,oneof=approved rejected completed"`
	FinalPrice *decimal.Decimal `json:"final_price"`
}

// UpdateCustomPaymentRequest records a payment verification outcome
type UpdateCustomPaymentRequest struct {
	PaymentStatus string `json:"payment_status" binding:"required,oneof=verified rejected"`
}

func customRef(c *gin.Context) (services.OrderRef, bool) {
	ref, err := services.ParseOrderRef(string(models.OrderTypeCustom), c.Param("customOrderId"))
	if err != nil {
		respondServiceError(c, err)
		return services.OrderRef{}, false
	}
	return ref, true
}

// CreateCustomOrder handles POST /api/custom-orders
func CreateCustomOrder(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req CreateCustomOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	order, err := orderService(c).CreateCustomOrder(c.Request.Context(), services.CreateCustomOrderInput{
		Customer:            user,
		ProductType:         req.ProductType,
		ProductName:         req.ProductName,
		Size:                req.Size,
		Color:               req.Color,
		Quantity:            req.Quantity,
		EstimatedPrice:      req.EstimatedPrice,
		CustomerName:        req.CustomerName,
		CustomerEmail:       req.CustomerEmail,
		CustomerPhone:       req.CustomerPhone,
		ShippingAddress:     req.ShippingAddress,
		SpecialInstructions: req.SpecialInstructions,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusCreated, order)
}

// UpdateCustomOrderStatus handles PUT /api/custom-orders/:customOrderId/status (admin)
func UpdateCustomOrderStatus(c *gin.Context) {
	ref, ok := customRef(c)
	if !ok {
		return
	}

	var req UpdateCustomOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	order, err := orderService(c).UpdateCustomOrderStatus(c.Request.Context(), ref, req.Status, req.FinalPrice)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusOK, order)
}

// UpdateCustomOrderPayment handles PUT /api/custom-orders/:customOrderId/payment (admin)
func UpdateCustomOrderPayment(c *gin.Context) {
	ref, ok := customRef(c)
	if !ok {
		return
	}

	var req UpdateCustomPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	order, err := orderService(c).UpdateCustomPayment(c.Request.Context(), ref, req.PaymentStatus)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusOK, order)
}

// GetMyCustomOrders handles GET /api/custom-orders/me
func GetMyCustomOrders(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	orders, err := orderService(c).ListCustomOrders(c.Request.Context(), user.ID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusOK, orders)
}

// GetCustomOrder handles GET /api/custom-orders/:customOrderId - owner or admin
func GetCustomOrder(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	ref, ok := customRef(c)
	if !ok {
		return
	}

	order, err := orderService(c).GetCustomOrder(c.Request.Context(), ref, user)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusOK, order)
}
