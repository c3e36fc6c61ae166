package models

import (
	"time"
)

// DeliverySchedule binds one order (by id and type) to a delivery slot.
// There is exactly one row per (order_id, order_type).
type DeliverySchedule struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	OrderID          string         `gorm:"size:64;not null;uniqueIndex:idx_schedule_order,priority:1" json:"order_id"`
	OrderType        OrderType      `gorm:"size:20;not null;uniqueIndex:idx_schedule_order,priority:2" json:"order_type"`
	OrderNumber      string         `gorm:"size:50;not null;default:''" json:"order_number"`
	DeliveryDate     *time.Time     `gorm:"type:date;index" json:"delivery_date"`
	DeliveryTimeSlot string         `gorm:"size:50" json:"delivery_time_slot"`
	CourierID        *uint          `gorm:"index" json:"courier_id"`
	Courier          *Courier       `gorm:"foreignKey:CourierID" json:"courier,omitempty"`
	DeliveryStatus   DeliveryStatus `gorm:"size:20;not null;index" json:"delivery_status"`
	DeliveryNotes    string         `gorm:"type:text" json:"delivery_notes"`
	PriorityLevel    string         `gorm:"size:10;not null;default:'normal'" json:"priority_level"`
	CalendarColor    string         `gorm:"size:10" json:"calendar_color"`
	DisplayIcon      string         `gorm:"size:20" json:"display_icon"`
	DispatchedAt     *time.Time     `json:"dispatched_at"`
	DeliveredAt      *time.Time     `json:"delivered_at"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// TableName specifies the table name for the DeliverySchedule model
func (DeliverySchedule) TableName() string {
	return "delivery_schedules_enhanced"
}

// DeliveryStatusHistory records one delivery status change
type DeliveryStatusHistory struct {
	ID                 uint            `gorm:"primaryKey" json:"id"`
	DeliveryScheduleID uint            `gorm:"not null;index" json:"delivery_schedule_id"`
	OrderID            string          `gorm:"size:64;not null;index:idx_history_order,priority:1" json:"order_id"`
	OrderType          OrderType       `gorm:"size:20;not null;index:idx_history_order,priority:2" json:"order_type"`
	PreviousStatus     *DeliveryStatus `gorm:"size:20" json:"previous_status"`
	NewStatus          DeliveryStatus  `gorm:"size:20;not null" json:"new_status"`
	StatusNotes        string          `gorm:"type:text" json:"status_notes"`
	ChangedByUserID    *uint           `json:"changed_by_user_id"`
	ChangedByName      string          `gorm:"size:255;not null;default:'System'" json:"changed_by_name"`
	CreatedAt          time.Time       `json:"created_at"`
}

// TableName specifies the table name for the DeliveryStatusHistory model
func (DeliveryStatusHistory) TableName() string {
	return "delivery_status_history"
}

// Courier delivers scheduled orders
type Courier struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	PhoneNumber string    `gorm:"size:20;not null" json:"phone_number"`
	VehicleType string    `gorm:"size:50;not null;default:'motorcycle'" json:"vehicle_type"`
	Status      string    `gorm:"size:10;not null;default:'active'" json:"status"` // active, inactive
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Courier statuses
const (
	CourierActive   = "active"
	CourierInactive = "inactive"
)

// TableName specifies the table name for the Courier model
func (Courier) TableName() string {
	return "couriers"
}

// DeliveryCalendarDay overrides availability and capacity of one delivery day.
// Days without a row are available with unlimited capacity.
type DeliveryCalendarDay struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	CalendarDate  time.Time `gorm:"type:date;uniqueIndex;not null" json:"calendar_date"`
	IsAvailable   bool      `gorm:"not null" json:"is_available"`
	MaxDeliveries int       `gorm:"not null;default:0" json:"max_deliveries"` // 0 means unlimited
	SpecialNotes  string    `gorm:"type:text" json:"special_notes"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName specifies the table name for the DeliveryCalendarDay model
func (DeliveryCalendarDay) TableName() string {
	return "delivery_calendar"
}

// HasCapacity reports whether one more delivery fits on the day
func (d DeliveryCalendarDay) HasCapacity(booked int64) bool {
	return d.MaxDeliveries <= 0 || booked < int64(d.MaxDeliveries)
}
