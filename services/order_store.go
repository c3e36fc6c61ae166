package services

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sevenfour/order-workflow-api/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrderRef identifies an order inside the identity space of its type.
// Regular orders are addressed by their numeric id, custom orders by custom_order_id.
type OrderRef struct {
	Type models.OrderType `json:"order_type"`
	ID   string           `json:"order_id"`
}

func (r OrderRef) String() string {
	return fmt.Sprintf("%s/%s", r.Type, r.ID)
}

var customOrderIDPattern = regexp.MustCompile(`^CUSTOM-[A-Z0-9]{4}-[A-Z0-9]{4}$`)

// ParseOrderRef validates and canonicalizes an order reference.
// An empty type defaults to regular.
func ParseOrderRef(orderType, id string) (OrderRef, error) {
	t := models.OrderType(strings.TrimSpace(orderType))
	if t == "" {
		t = models.OrderTypeRegular
	}
	if !t.Valid() {
		return OrderRef{}, validationError("order_type", "must be one of: regular, custom_order")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return OrderRef{}, validationError("order_id", "is required")
	}

	if t == models.OrderTypeRegular {
		n, err := strconv.ParseUint(id, 10, 64)
		if err != nil || n == 0 {
			return OrderRef{}, validationError("order_id", "must be a positive integer for regular orders")
		}
		return OrderRef{Type: t, ID: strconv.FormatUint(n, 10)}, nil
	}

	id = strings.ToUpper(id)
	if !customOrderIDPattern.MatchString(id) {
		return OrderRef{}, validationError("order_id", "must look like CUSTOM-XXXX-XXXX for custom orders")
	}
	return OrderRef{Type: t, ID: id}, nil
}

// RegularRef builds the reference of a regular order row
func RegularRef(id uint) OrderRef {
	return OrderRef{Type: models.OrderTypeRegular, ID: strconv.FormatUint(uint64(id), 10)}
}

// CustomRef builds the reference of a custom order row
func CustomRef(customOrderID string) OrderRef {
	return OrderRef{Type: models.OrderTypeCustom, ID: customOrderID}
}

// OrderSnapshot is the type-independent view of an order used by the workflow
type OrderSnapshot struct {
	Ref             OrderRef
	OrderNumber     string
	UserID          uint
	Status          string
	PaymentStatus   string
	DeliveryStatus  *models.DeliveryStatus
	DeliveryDate    *time.Time
	CustomerName    string
	CustomerEmail   string
	ContactPhone    string
	ShippingAddress string
	TotalAmount     decimal.Decimal
	CreatedAt       time.Time
}

// Cancelled reports whether the order itself has been cancelled
func (s OrderSnapshot) Cancelled() bool {
	return s.Status == models.OrderStatusCancelled
}

// Deliverable reports whether the order may be put on a delivery schedule
func (s OrderSnapshot) Deliverable() bool {
	switch s.Ref.Type {
	case models.OrderTypeRegular:
		return s.Status == models.OrderStatusConfirmed || s.Status == models.OrderStatusCompleted
	case models.OrderTypeCustom:
		return (s.Status == models.CustomStatusApproved || s.Status == models.CustomStatusCompleted) &&
			s.PaymentStatus == models.PaymentVerified
	}
	return false
}

// Cancellable reports whether a cancellation request may still be filed
func (s OrderSnapshot) Cancellable() bool {
	switch s.Status {
	case models.OrderStatusCancelled, models.OrderStatusCompleted, models.OrderStatusRefunded, models.CustomStatusRejected:
		return false
	}
	return !s.Delivered()
}

// Delivered reports whether the goods reached the customer
func (s OrderSnapshot) Delivered() bool {
	return s.DeliveryStatus != nil && *s.DeliveryStatus == models.DeliveryDelivered
}

// Refunded reports whether the order's payment was already returned
func (s OrderSnapshot) Refunded() bool {
	if s.Ref.Type == models.OrderTypeCustom {
		return s.PaymentStatus == models.PaymentRefunded
	}
	return s.Status == models.OrderStatusRefunded
}

// Refundable reports whether a refund request may be filed.
// Only delivered or completed orders qualify, and custom orders must have a verified payment.
func (s OrderSnapshot) Refundable() bool {
	if s.Refunded() || !(s.Delivered() || s.Status == models.OrderStatusCompleted) {
		return false
	}
	if s.Ref.Type == models.OrderTypeCustom {
		return s.PaymentStatus == models.PaymentVerified
	}
	return true
}

// OrderFilter narrows OrderStore.List
type OrderFilter struct {
	UserID *uint
	Status string
	IDs    []string
}

// OrderStore is implemented once per order table.
// Every method takes the *gorm.DB to run on so callers can pass a transaction.
type OrderStore interface {
	Type() models.OrderType
	// Find loads one order, optionally holding a row lock until the transaction ends
	Find(tx *gorm.DB, id string, forUpdate bool) (*OrderSnapshot, error)
	List(tx *gorm.DB, filter OrderFilter) ([]OrderSnapshot, error)
	SetStatus(tx *gorm.DB, id string, status string) error
	SetDelivery(tx *gorm.DB, id string, status models.DeliveryStatus, date *time.Time, notes string) error
	// MarkRefunded records that the order's payment was returned
	MarkRefunded(tx *gorm.DB, id string) error
	CancelledStatus() string
	CompletedStatus() string
}

var orderStores = map[models.OrderType]OrderStore{
	models.OrderTypeRegular: regularOrderStore{},
	models.OrderTypeCustom:  customOrderStore{},
}

// StoreFor returns the store owning orders of the given type
func StoreFor(t models.OrderType) OrderStore {
	return orderStores[t]
}

// FindOrder resolves a reference in its own table only
func FindOrder(tx *gorm.DB, ref OrderRef, forUpdate bool) (*OrderSnapshot, error) {
	store := StoreFor(ref.Type)
	if store == nil {
		return nil, validationError("order_type", "must be one of: regular, custom_order")
	}
	return store.Find(tx, ref.ID, forUpdate)
}

func lockIf(tx *gorm.DB, forUpdate bool) *gorm.DB {
	if forUpdate {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

func orderNotFound(ref OrderRef) error {
	return notFound("ORDER_NOT_FOUND", fmt.Sprintf("Order %s not found", ref))
}

type regularOrderStore struct{}

func (regularOrderStore) Type() models.OrderType { return models.OrderTypeRegular }
func (regularOrderStore) CancelledStatus() string { return models.OrderStatusCancelled }
func (regularOrderStore) CompletedStatus() string { return models.OrderStatusCompleted }

func (s regularOrderStore) Find(tx *gorm.DB, id string, forUpdate bool) (*OrderSnapshot, error) {
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return nil, orderNotFound(OrderRef{Type: s.Type(), ID: id})
	}

	var order models.Order
	if err := lockIf(tx, forUpdate).Where("id = ?", n).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, orderNotFound(OrderRef{Type: s.Type(), ID: id})
		}
		return nil, fmt.Errorf("load order %s: %w", id, err)
	}

	snap := regularSnapshot(order)
	return &snap, nil
}

func (s regularOrderStore) List(tx *gorm.DB, filter OrderFilter) ([]OrderSnapshot, error) {
	q := tx.Model(&models.Order{}).Order("created_at DESC, id DESC")
	if filter.UserID != nil {
		q = q.Where("user_id = ?", *filter.UserID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.IDs != nil {
		q = q.Where("id IN ?", filter.IDs)
	}

	var orders []models.Order
	if err := q.Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	out := make([]OrderSnapshot, 0, len(orders))
	for _, o := range orders {
		out = append(out, regularSnapshot(o))
	}
	return out, nil
}

func (regularOrderStore) SetStatus(tx *gorm.DB, id string, status string) error {
	return tx.Model(&models.Order{}).Where("id = ?", id).Update("status", status).Error
}

func (regularOrderStore) SetDelivery(tx *gorm.DB, id string, status models.DeliveryStatus, date *time.Time, notes string) error {
	updates := map[string]interface{}{
		"delivery_status": status,
		"delivery_notes":  notes,
	}
	if date != nil {
		updates["delivery_date"] = *date
	}
	return tx.Model(&models.Order{}).Where("id = ?", id).Updates(updates).Error
}

func (regularOrderStore) MarkRefunded(tx *gorm.DB, id string) error {
	return tx.Model(&models.Order{}).Where("id = ?", id).Update("status", models.OrderStatusRefunded).Error
}

func regularSnapshot(o models.Order) OrderSnapshot {
	return OrderSnapshot{
		Ref:             RegularRef(o.ID),
		OrderNumber:     o.OrderNumber,
		UserID:          o.UserID,
		Status:          o.Status,
		DeliveryStatus:  o.DeliveryStatus,
		DeliveryDate:    o.DeliveryDate,
		CustomerName:    o.CustomerName,
		CustomerEmail:   o.CustomerEmail,
		ContactPhone:    o.ContactPhone,
		ShippingAddress: o.ShippingAddress,
		TotalAmount:     o.TotalAmount,
		CreatedAt:       o.CreatedAt,
	}
}

type customOrderStore struct{}

func (customOrderStore) Type() models.OrderType { return models.OrderTypeCustom }
func (customOrderStore) CancelledStatus() string { return models.CustomStatusCancelled }
func (customOrderStore) CompletedStatus() string { return models.CustomStatusCompleted }

func (s customOrderStore) Find(tx *gorm.DB, id string, forUpdate bool) (*OrderSnapshot, error) {
	var order models.CustomOrder
	if err := lockIf(tx, forUpdate).Where("custom_order_id = ?", id).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, orderNotFound(OrderRef{Type: s.Type(), ID: id})
		}
		return nil, fmt.Errorf("load custom order %s: %w", id, err)
	}

	snap := customSnapshot(order)
	return &snap, nil
}

func (s customOrderStore) List(tx *gorm.DB, filter OrderFilter) ([]OrderSnapshot, error) {
	q := tx.Model(&models.CustomOrder{}).Order("created_at DESC, id DESC")
	if filter.UserID != nil {
		q = q.Where("user_id = ?", *filter.UserID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.IDs != nil {
		q = q.Where("custom_order_id IN ?", filter.IDs)
	}

	var orders []models.CustomOrder
	if err := q.Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("list custom orders: %w", err)
	}

	out := make([]OrderSnapshot, 0, len(orders))
	for _, o := range orders {
		out = append(out, customSnapshot(o))
	}
	return out, nil
}

func (customOrderStore) SetStatus(tx *gorm.DB, id string, status string) error {
	return tx.Model(&models.CustomOrder{}).Where("custom_order_id = ?", id).Update("status", status).Error
}

func (customOrderStore) SetDelivery(tx *gorm.DB, id string, status models.DeliveryStatus, date *time.Time, notes string) error {
	updates := map[string]interface{}{
		"delivery_status": status,
		"delivery_notes":  notes,
	}
	if date != nil {
		updates["delivery_date"] = *date
	}
	return tx.Model(&models.CustomOrder{}).Where("custom_order_id = ?", id).Updates(updates).Error
}

func (customOrderStore) MarkRefunded(tx *gorm.DB, id string) error {
	return tx.Model(&models.CustomOrder{}).Where("custom_order_id = ?", id).Update("payment_status", models.PaymentRefunded).Error
}

func customSnapshot(o models.CustomOrder) OrderSnapshot {
	return OrderSnapshot{
		Ref:             CustomRef(o.CustomOrderID),
		OrderNumber:     o.CustomOrderID,
		UserID:          o.UserID,
		Status:          o.Status,
		PaymentStatus:   o.PaymentStatus,
		DeliveryStatus:  o.DeliveryStatus,
		DeliveryDate:    o.DeliveryDate,
		CustomerName:    o.CustomerName,
		CustomerEmail:   o.CustomerEmail,
		ContactPhone:    o.CustomerPhone,
		ShippingAddress: o.ShippingAddress,
		TotalAmount:     o.Price(),
		CreatedAt:       o.CreatedAt,
	}
}
