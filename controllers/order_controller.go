package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sevenfour/order-workflow-api/config"
	"github.com/sevenfour/order-workflow-api/middleware"
	"github.com/sevenfour/order-workflow-api/models"
	"github.com/sevenfour/order-workflow-api/services"
	"github.com/shopspring/decimal"
)

// OrderItemRequest is one line of CreateOrderRequest
type OrderItemRequest struct {
	ProductID    uint64          `json:"product_id" binding:"required"`
	ProductName  string          `json:"product_name" binding:"required,max=255"`
	ProductPrice decimal.Decimal `json:"product_price"`
	Quantity     int             `json:"quantity" binding:"required,gt=0"`
	Color        string          `json:"color" binding:"omitempty,max=100"`
	Size         string          `json:"size" binding:"omitempty,max=50"`
}

// CreateOrderRequest represents the request body for creating a regular order
type CreateOrderRequest struct {
	Items           []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
	ShippingAddress string             `json:"shipping_address" binding:"required"`
	ContactPhone    string             `json:"contact_phone" binding:"omitempty,max=20"`
	CustomerName    string             `json:"customer_name" binding:"omitempty,max=255"`
	CustomerEmail   string             `json:"customer_email" binding:"omitempty,email"`
	Notes           string             `json:"notes"`
}

func orderService(c *gin.Context) *services.OrderService {
	return services.NewOrderService(config.GetDB(), middleware.Logger(c))
}

// CreateOrder handles POST /api/orders - places a regular order for the current user
func CreateOrder(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	items := make([]services.OrderItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, services.OrderItemInput{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Price:       item.ProductPrice,
			Quantity:    item.Quantity,
			Color:       item.Color,
			Size:        item.Size,
		})
	}

	order, err := orderService(c).CreateOrder(c.Request.Context(), services.CreateOrderInput{
		Customer:        user,
		Items:           items,
		ShippingAddress: req.ShippingAddress,
		ContactPhone:    req.ContactPhone,
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		Notes:           req.Notes,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusCreated, order)
}

// ConfirmOrder handles PUT /api/orders/:id/confirm - approves the payment of a pending order (admin)
func ConfirmOrder(c *gin.Context) {
	ref, err := services.ParseOrderRef(string(models.OrderTypeRegular), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	order, err := orderService(c).ConfirmOrder(c.Request.Context(), ref)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusOK, order)
}

// GetMyOrders handles GET /api/orders/me - lists the current user's regular orders
func GetMyOrders(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	orders, err := orderService(c).ListOrders(c.Request.Context(), user.ID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusOK, orders)
}

// GetOrder handles GET /api/orders/:id - owner or admin
func GetOrder(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	ref, err := services.ParseOrderRef(string(models.OrderTypeRegular), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	order, err := orderService(c).GetOrder(c.Request.Context(), ref, user)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusOK, order)
}
