package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sevenfour/order-workflow-api/config"
	"github.com/sevenfour/order-workflow-api/middleware"
	"github.com/sevenfour/order-workflow-api/services"
)

// CreateCourierRequest represents the body of POST /api/couriers
type CreateCourierRequest struct {
	Name        string `json:"name" binding:"required,max=255"`
	PhoneNumber string `json:"phone_number" binding:"required,max=20"`
	VehicleType string `json:"vehicle_type" binding:"omitempty,max=50"`
}

// UpdateCourierRequest represents the body of PUT /api/couriers/:id
type UpdateCourierRequest struct {
	Name        string `json:"name" binding:"omitempty,max=255"`
	PhoneNumber string `json:"phone_number" binding:"omitempty,max=20"`
	VehicleType string `json:"vehicle_type" binding:"omitempty,max=50"`
	Status      string `json:"status" binding:"omitempty,oneof=active inactive"`
}

func courierService(c *gin.Context) *services.CourierService {
	return services.NewCourierService(config.GetDB(), middleware.Logger(c))
}

func courierID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request data", map[string]string{"id": "must be a positive integer"})
		return 0, false
	}
	return uint(id), true
}

// ListCouriers handles GET /api/couriers (admin)
func ListCouriers(c *gin.Context) {
	couriers, err := courierService(c).List(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, http.StatusOK, couriers)
}

// ListActiveCouriers handles GET /api/couriers/active (admin)
func ListActiveCouriers(c *gin.Context) {
	couriers, err := courierService(c).Active(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, http.StatusOK, couriers)
}

// CreateCourier handles POST /api/couriers (admin)
func CreateCourier(c *gin.Context) {
	var req CreateCourierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	courier, err := courierService(c).Create(c.Request.Context(), services.CourierInput{
		Name:        req.Name,
		PhoneNumber: req.PhoneNumber,
		VehicleType: req.VehicleType,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, courier)
}

// UpdateCourier handles PUT /api/couriers/:id (admin)
func UpdateCourier(c *gin.Context) {
	id, ok := courierID(c)
	if !ok {
		return
	}

	var req UpdateCourierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	courier, err := courierService(c).Update(c.Request.Context(), id, services.CourierInput{
		Name:        req.Name,
		PhoneNumber: req.PhoneNumber,
		VehicleType: req.VehicleType,
		Status:      req.Status,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, http.StatusOK, courier)
}

// DeactivateCourier handles DELETE /api/couriers/:id (admin)
func DeactivateCourier(c *gin.Context) {
	id, ok := courierID(c)
	if !ok {
		return
	}

	courier, err := courierService(c).Deactivate(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, http.StatusOK, courier)
}
