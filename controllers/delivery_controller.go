package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sevenfour/order-workflow-api/config"
	"github.com/sevenfour/order-workflow-api/middleware"
	"github.com/sevenfour/order-workflow-api/models"
	"github.com/sevenfour/order-workflow-api/services"
)

// UpdateDeliveryStatusRequest represents the body of PUT /api/delivery-status/orders/:id/status
type UpdateDeliveryStatusRequest struct {
	DeliveryStatus   string  `json:"delivery_status" binding:"required,delivery_status"`
	OrderType        string  `json:"order_type" binding:"omitempty,order_type"`
	DeliveryNotes    *string `json:"delivery_notes"`
	DeliveryDate     *string `json:"delivery_date" binding:"omitempty,calendar_date"`
	DeliveryTimeSlot *string `json:"delivery_time_slot" binding:"omitempty,max=50"`
	CourierID        *uint   `json:"courier_id"`
	PriorityLevel    string  `json:"priority_level" binding:"omitempty,oneof=low normal high urgent"`
}

// ScheduleDeliveryRequest represents the body of POST /api/delivery-enhanced/schedule
type ScheduleDeliveryRequest struct {
	OrderID          string `json:"order_id" binding:"required"`
	OrderType        string `json:"order_type" binding:"omitempty,order_type"`
	DeliveryDate     string `json:"delivery_date" binding:"required,calendar_date"`
	DeliveryTimeSlot string `json:"delivery_time_slot" binding:"omitempty,max=50"`
	CourierID        *uint  `json:"courier_id"`
	DeliveryNotes    string `json:"delivery_notes"`
	PriorityLevel    string `json:"priority_level" binding:"omitempty,oneof=low normal high urgent"`
}

// UpdateCalendarDayRequest changes the availability of one delivery day
type UpdateCalendarDayRequest struct {
	IsAvailable   *bool   `json:"is_available"`
	MaxDeliveries *int    `json:"max_deliveries" binding:"omitempty,gte=0"`
	SpecialNotes  *string `json:"special_notes"`
}

// DeliveryOrdersQuery filters GET /api/delivery-enhanced/orders
type DeliveryOrdersQuery struct {
	OrderType string `form:"order_type" binding:"omitempty,order_type"`
	Status    string `form:"status"`
	Page      int    `form:"page" binding:"omitempty,gte=1,lte=100000"`
	PageSize  int    `form:"page_size" binding:"omitempty,gte=1,lte=1000"`
}

func deliveryService(c *gin.Context) *services.DeliveryService {
	return services.NewDeliveryService(config.GetDB(), middleware.Logger(c))
}

func readModel(c *gin.Context) *services.ReadModel {
	return services.NewReadModel(config.GetDB(), middleware.Logger(c))
}

// UpdateDeliveryStatus handles PUT /api/delivery-status/orders/:id/status (admin).
// :id is the numeric id of a regular order or the custom_order_id of a custom order.
func UpdateDeliveryStatus(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req UpdateDeliveryStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	ref, err := services.ParseOrderRef(req.OrderType, c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	update := services.DeliveryUpdate{
		Status:    models.DeliveryStatus(req.DeliveryStatus),
		Notes:     req.DeliveryNotes,
		TimeSlot:  req.DeliveryTimeSlot,
		CourierID: req.CourierID,
		Priority:  req.PriorityLevel,
	}
	if req.DeliveryDate != nil {
		date, _ := models.ParseDate(*req.DeliveryDate)
		update.DeliveryDate = &date
	}

	result, err := deliveryService(c).UpdateStatus(c.Request.Context(), ref, update, services.ActorFromUser(user))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusOK, result)
}

// ScheduleDelivery handles POST /api/delivery-enhanced/schedule (admin)
func ScheduleDelivery(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req ScheduleDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	ref, err := services.ParseOrderRef(req.OrderType, req.OrderID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	date, _ := models.ParseDate(req.DeliveryDate)

	result, err := deliveryService(c).ScheduleDelivery(c.Request.Context(), ref, services.ScheduleInput{
		DeliveryDate: date,
		TimeSlot:     req.DeliveryTimeSlot,
		CourierID:    req.CourierID,
		Notes:        req.DeliveryNotes,
		Priority:     req.PriorityLevel,
	}, services.ActorFromUser(user))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusCreated, result)
}

// ListDeliveryOrders handles GET /api/delivery-enhanced/orders (admin)
func ListDeliveryOrders(c *gin.Context) {
	var q DeliveryOrdersQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBindError(c, err)
		return
	}

	page, err := readModel(c).ListOrders(c.Request.Context(), services.OrderListFilter{
		OrderType: models.OrderType(q.OrderType),
		Status:    q.Status,
		Page:      q.Page,
		PageSize:  q.PageSize,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusOK, page)
}

// GetDeliveryOrder handles GET /api/delivery-enhanced/orders/:type/:id
func GetDeliveryOrder(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	ref, err := services.ParseOrderRef(c.Param("type"), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	view, err := readModel(c).GetOrder(c.Request.Context(), ref)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if !user.IsAdmin() && view.UserID != user.ID {
		respondError(c, http.StatusForbidden, "FORBIDDEN", "You do not have permission to view this order", nil)
		return
	}

	respondOK(c, http.StatusOK, view)
}

// GetDeliveryHistory handles GET /api/delivery-enhanced/orders/:type/:id/history (admin)
func GetDeliveryHistory(c *gin.Context) {
	ref, err := services.ParseOrderRef(c.Param("type"), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	history, err := deliveryService(c).History(c.Request.Context(), ref)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusOK, history)
}

// GetDeliveryCalendar handles GET /api/delivery-enhanced/calendar?year=&month= (admin).
// Year and month default to the current UTC month.
func GetDeliveryCalendar(c *gin.Context) {
	now := time.Now().UTC()
	year, month := now.Year(), int(now.Month())

	if v := c.Query("year"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request data", map[string]string{"year": "must be a number"})
			return
		}
		year = n
	}
	if v := c.Query("month"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request data", map[string]string{"month": "must be a number"})
			return
		}
		month = n
	}

	cal, err := readModel(c).Calendar(c.Request.Context(), year, month)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusOK, cal)
}

// UpdateCalendarDay handles PUT /api/delivery-enhanced/calendar/:date (admin)
func UpdateCalendarDay(c *gin.Context) {
	date, err := models.ParseDate(c.Param("date"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request data", map[string]string{"date": "must be a date in YYYY-MM-DD format"})
		return
	}

	var req UpdateCalendarDayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	day, err := readModel(c).UpdateCalendarDay(c.Request.Context(), date, services.CalendarDayInput{
		IsAvailable:   req.IsAvailable,
		MaxDeliveries: req.MaxDeliveries,
		SpecialNotes:  req.SpecialNotes,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusOK, day)
}

// GenerateManifest handles POST /api/delivery-enhanced/manifests/:date (admin)
func GenerateManifest(c *gin.Context) {
	date, err := models.ParseDate(c.Param("date"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request data", map[string]string{"date": "must be a date in YYYY-MM-DD format"})
		return
	}

	svc := services.NewManifestService(config.GetDB(), services.GetManifestStore(), middleware.Logger(c))
	manifest, err := svc.Generate(c.Request.Context(), date)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusCreated, manifest)
}
