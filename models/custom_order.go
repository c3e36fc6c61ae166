package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CustomOrder represents a bespoke design purchase.
// It is addressed externally only by CustomOrderID; ID is an internal surrogate.
type CustomOrder struct {
	ID                  uint             `gorm:"primaryKey" json:"-"`
	CustomOrderID       string           `gorm:"size:32;uniqueIndex;not null" json:"custom_order_id"` // CUSTOM-XXXX-XXXX
	UserID              uint             `gorm:"not null;index" json:"user_id"`
	ProductType         string           `gorm:"size:50;not null" json:"product_type"`
	ProductName         string           `gorm:"size:255" json:"product_name"`
	Size                string           `gorm:"size:20;not null" json:"size"`
	Color               string           `gorm:"size:50;not null" json:"color"`
	Quantity            int              `gorm:"not null;default:1" json:"quantity"`
	EstimatedPrice      decimal.Decimal  `gorm:"type:decimal(10,2);not null;default:0" json:"estimated_price"`
	FinalPrice          *decimal.Decimal `gorm:"type:decimal(10,2)" json:"final_price"`
	Status              string           `gorm:"size:20;not null;default:'pending';index" json:"status"` // pending, approved, rejected, completed, cancelled
	PaymentStatus       string           `gorm:"size:20;not null;default:'pending'" json:"payment_status"`
	DeliveryStatus      *DeliveryStatus  `gorm:"size:20" json:"delivery_status"`
	DeliveryDate        *time.Time       `gorm:"type:date" json:"delivery_date"`
	DeliveryNotes       string           `gorm:"type:text" json:"delivery_notes"`
	CustomerName        string           `gorm:"size:255;not null;default:''" json:"customer_name"`
	CustomerEmail       string           `gorm:"size:255;not null;default:''" json:"customer_email"`
	CustomerPhone       string           `gorm:"size:20;not null;default:''" json:"customer_phone"`
	ShippingAddress     string           `gorm:"type:text;not null" json:"shipping_address"`
	SpecialInstructions string           `gorm:"type:text" json:"special_instructions"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

// TableName specifies the table name for the CustomOrder model
func (CustomOrder) TableName() string {
	return "custom_orders"
}

// Price is the final price once set, otherwise the estimate
func (o CustomOrder) Price() decimal.Decimal {
	if o.FinalPrice != nil {
		return *o.FinalPrice
	}
	return o.EstimatedPrice
}
