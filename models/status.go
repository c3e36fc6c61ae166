package models

import (
	"time"
)

// OrderType discriminates the two order tables and their identity spaces
type OrderType string

const (
	OrderTypeRegular OrderType = "regular"
	OrderTypeCustom  OrderType = "custom_order"
)

// Valid reports whether t is a known order type
func (t OrderType) Valid() bool {
	return t == OrderTypeRegular || t == OrderTypeCustom
}

// DeliveryStatus is shared by orders, custom orders and delivery schedules
type DeliveryStatus string

const (
	DeliveryScheduled DeliveryStatus = "scheduled"
	DeliveryInTransit DeliveryStatus = "in_transit"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryDelayed   DeliveryStatus = "delayed"
	DeliveryCancelled DeliveryStatus = "cancelled"
)

// DeliveryStatuses lists every accepted delivery status
var DeliveryStatuses = []DeliveryStatus{
	DeliveryScheduled,
	DeliveryInTransit,
	DeliveryDelivered,
	DeliveryDelayed,
	DeliveryCancelled,
}

// Valid reports whether s is one of DeliveryStatuses
func (s DeliveryStatus) Valid() bool {
	for _, known := range DeliveryStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no further delivery transitions are allowed
func (s DeliveryStatus) Terminal() bool {
	return s == DeliveryDelivered || s == DeliveryCancelled
}

// CalendarColor is the color the back-office calendar renders the status with
func (s DeliveryStatus) CalendarColor() string {
	switch s {
	case DeliveryScheduled:
		return "#007bff"
	case DeliveryInTransit:
		return "#000000"
	case DeliveryDelivered:
		return "#28a745"
	case DeliveryDelayed:
		return "#dc3545"
	default:
		return "#6c757d"
	}
}

// DisplayIcon is the icon name shown next to a calendar entry
func (s DeliveryStatus) DisplayIcon() string {
	switch s {
	case DeliveryScheduled:
		return "calendar"
	case DeliveryInTransit:
		return "truck"
	case DeliveryDelivered:
		return "check"
	case DeliveryDelayed:
		return "warning"
	case DeliveryCancelled:
		return "cancel"
	default:
		return "package"
	}
}

// Regular order statuses
const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
	OrderStatusCancelled = "cancelled"
	OrderStatusCompleted = "completed"
	OrderStatusRefunded  = "refunded"
)

// Custom order statuses
const (
	CustomStatusPending   = "pending"
	CustomStatusApproved  = "approved"
	CustomStatusRejected  = "rejected"
	CustomStatusCompleted = "completed"
	CustomStatusCancelled = "cancelled"
)

// Custom order payment statuses
const (
	PaymentPending  = "pending"
	PaymentVerified = "verified"
	PaymentRejected = "rejected"
	PaymentRefunded = "refunded"
)

// Cancellation request statuses
const (
	RequestPending  = "pending"
	RequestApproved = "approved"
	RequestDenied   = "denied"
)

// Request kinds sharing the cancellation request queue
const (
	RequestTypeCancellation = "cancellation"
	RequestTypeRefund       = "refund"
)

// Delivery priority levels
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// DateLayout is the wire format of calendar dates
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD date as UTC midnight
func ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, value, time.UTC)
}

// DateOnly truncates t to UTC midnight of its calendar day
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatDate renders an optional date as YYYY-MM-DD
func FormatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(DateLayout)
}
