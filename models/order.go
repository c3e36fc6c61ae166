package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order represents a regular catalog purchase
type Order struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	OrderNumber     string          `gorm:"size:50;uniqueIndex;not null" json:"order_number"`
	UserID          uint            `gorm:"not null;index" json:"user_id"`
	Status          string          `gorm:"size:20;not null;default:'pending';index" json:"status"` // pending, confirmed, cancelled, completed
	DeliveryStatus  *DeliveryStatus `gorm:"size:20" json:"delivery_status"`                          // nullable until a delivery is scheduled
	DeliveryDate    *time.Time      `gorm:"type:date" json:"delivery_date"`
	DeliveryNotes   string          `gorm:"type:text" json:"delivery_notes"`
	TotalAmount     decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"total_amount"`
	ShippingAddress string          `gorm:"type:text;not null" json:"shipping_address"`
	ContactPhone    string          `gorm:"size:20;not null;default:''" json:"contact_phone"`
	CustomerName    string          `gorm:"size:255;not null;default:''" json:"customer_name"`
	CustomerEmail   string          `gorm:"size:255;not null;default:''" json:"customer_email"`
	Notes           string          `gorm:"type:text" json:"notes"`
	Items           []OrderItem     `gorm:"foreignKey:OrderID" json:"items,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// TableName specifies the table name for the Order model
func (Order) TableName() string {
	return "orders"
}

// OrderItem is one product line of a regular order
type OrderItem struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	OrderID      uint            `gorm:"not null;index" json:"order_id"`
	ProductID    uint64          `gorm:"not null;index" json:"product_id"`
	ProductName  string          `gorm:"size:255;not null" json:"product_name"`
	ProductPrice decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"product_price"`
	Quantity     int             `gorm:"not null;default:1" json:"quantity"`
	Color        string          `gorm:"size:100" json:"color"`
	Size         string          `gorm:"size:50" json:"size"`
	Subtotal     decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"subtotal"`
	CreatedAt    time.Time       `json:"created_at"`
}

// TableName specifies the table name for the OrderItem model
func (OrderItem) TableName() string {
	return "order_items"
}
