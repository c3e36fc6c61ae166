package models

import (
	"fmt"
	"time"
)

// CancellationRequest is a customer request to void or refund an order, awaiting an admin decision.
// Regular and custom orders share this table, discriminated by OrderType.
type CancellationRequest struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	OrderType   OrderType  `gorm:"size:20;not null;index:idx_cancel_order,priority:1" json:"order_type"`
	OrderID     string     `gorm:"size:64;not null;index:idx_cancel_order,priority:2" json:"order_id"`
	RequestType string     `gorm:"size:20;not null;default:'cancellation';index" json:"request_type"` // cancellation, refund
	UserID      uint       `gorm:"not null;index" json:"user_id"`
	Reason      string     `gorm:"type:text;not null" json:"reason"`
	Status      string     `gorm:"size:10;not null;default:'pending';index" json:"status"` // pending, approved, denied
	AdminNotes  string     `gorm:"type:text" json:"admin_notes"`
	ProcessedBy *uint      `json:"processed_by"`
	ProcessedAt *time.Time `json:"processed_at"`
	// PendingKey is set only while pending; its unique index allows one pending request per order and kind
	PendingKey *string   `gorm:"size:100;uniqueIndex" json:"-"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName specifies the table name for the CancellationRequest model
func (CancellationRequest) TableName() string {
	return "cancellation_requests"
}

// PendingKeyFor builds the pending_key value of a request kind against an order
func PendingKeyFor(orderType OrderType, orderID, requestType string) string {
	return fmt.Sprintf("%s:%s:%s", orderType, orderID, requestType)
}
