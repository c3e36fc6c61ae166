package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sevenfour/order-workflow-api/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Attempts made when a generated order number collides with an existing one
const maxIDAttempts = 5

// OrderService creates orders and applies the admin actions that precede delivery
type OrderService struct {
	db  *gorm.DB
	log logrus.FieldLogger
	now func() time.Time
}

// NewOrderService creates an order service bound to db
func NewOrderService(db *gorm.DB, log logrus.FieldLogger) *OrderService {
	return &OrderService{db: db, log: log, now: time.Now}
}

// OrderItemInput is one line of a new regular order
type OrderItemInput struct {
	ProductID   uint64
	ProductName string
	Price       decimal.Decimal
	Quantity    int
	Color       string
	Size        string
}

// CreateOrderInput is the payload of CreateOrder
type CreateOrderInput struct {
	Customer        models.User
	Items           []OrderItemInput
	ShippingAddress string
	ContactPhone    string
	CustomerName    string
	CustomerEmail   string
	Notes           string
}

// CreateOrder stores a pending regular order with its items and computed total
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*models.Order, error) {
	if len(in.Items) == 0 {
		return nil, validationError("items", "at least one item is required")
	}
	if strings.TrimSpace(in.ShippingAddress) == "" {
		return nil, validationError("shipping_address", "is required")
	}

	total := decimal.Zero
	items := make([]models.OrderItem, 0, len(in.Items))
	for i, item := range in.Items {
		if item.Quantity <= 0 {
			return nil, validationError(fmt.Sprintf("items[%d].quantity", i), "must be greater than 0")
		}
		if item.Price.IsNegative() {
			return nil, validationError(fmt.Sprintf("items[%d].product_price", i), "must not be negative")
		}
		subtotal := item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))).Round(2)
		total = total.Add(subtotal)
		items = append(items, models.OrderItem{
			ProductID:    item.ProductID,
			ProductName:  item.ProductName,
			ProductPrice: item.Price.Round(2),
			Quantity:     item.Quantity,
			Color:        item.Color,
			Size:         item.Size,
			Subtotal:     subtotal,
		})
	}

	order := models.Order{
		UserID:          in.Customer.ID,
		Status:          models.OrderStatusPending,
		TotalAmount:     total,
		ShippingAddress: strings.TrimSpace(in.ShippingAddress),
		ContactPhone:    in.ContactPhone,
		CustomerName:    firstNonEmpty(in.CustomerName, in.Customer.Name),
		CustomerEmail:   firstNonEmpty(in.CustomerEmail, in.Customer.Email),
		Notes:           in.Notes,
		Items:           items,
	}

	for attempt := 1; ; attempt++ {
		order.ID = 0
		for i := range order.Items {
			order.Items[i].ID = 0
			order.Items[i].OrderID = 0
		}
		order.OrderNumber = s.newOrderNumber()

		err := s.db.WithContext(ctx).Create(&order).Error
		if err == nil {
			break
		}
		if !IsDuplicateKey(err) || attempt == maxIDAttempts {
			return nil, fmt.Errorf("create order: %w", err)
		}
	}

	s.log.WithFields(logrus.Fields{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"user_id":      order.UserID,
		"total":        order.TotalAmount.StringFixed(2),
	}).Info("order created")

	return &order, nil
}

// ConfirmOrder approves the payment of a pending regular order
func (s *OrderService) ConfirmOrder(ctx context.Context, ref OrderRef) (*models.Order, error) {
	if ref.Type != models.OrderTypeRegular {
		return nil, validationError("order_type", "only regular orders can be confirmed")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		store := StoreFor(ref.Type)
		order, err := store.Find(tx, ref.ID, true)
		if err != nil {
			return err
		}
		switch order.Status {
		case models.OrderStatusConfirmed:
			return nil
		case models.OrderStatusPending:
			return store.SetStatus(tx, ref.ID, models.OrderStatusConfirmed)
		}
		return conflict("INVALID_STATUS", fmt.Sprintf("Cannot confirm an order that is %s", order.Status))
	})
	if err != nil {
		return nil, err
	}

	s.log.WithField("order_id", ref.ID).Info("order confirmed")
	return s.loadOrder(s.db.WithContext(ctx), ref.ID)
}

// GetOrder loads a regular order with its items. Customers may only read their own orders.
func (s *OrderService) GetOrder(ctx context.Context, ref OrderRef, viewer models.User) (*models.Order, error) {
	order, err := s.loadOrder(s.db.WithContext(ctx), ref.ID)
	if err != nil {
		return nil, err
	}
	if !viewer.IsAdmin() && order.UserID != viewer.ID {
		return nil, forbidden("FORBIDDEN", "You do not have permission to view this order")
	}
	return order, nil
}

// ListOrders returns the regular orders of one user, newest first
func (s *OrderService) ListOrders(ctx context.Context, userID uint) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.WithContext(ctx).Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

func (s *OrderService) loadOrder(db *gorm.DB, id string) (*models.Order, error) {
	var order models.Order
	if err := db.Preload("Items").Where("id = ?", id).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, orderNotFound(OrderRef{Type: models.OrderTypeRegular, ID: id})
		}
		return nil, fmt.Errorf("load order %s: %w", id, err)
	}
	return &order, nil
}

// CreateCustomOrderInput is the payload of CreateCustomOrder
type CreateCustomOrderInput struct {
	Customer            models.User
	ProductType         string
	ProductName         string
	Size                string
	Color               string
	Quantity            int
	EstimatedPrice      decimal.Decimal
	CustomerName        string
	CustomerEmail       string
	CustomerPhone       string
	ShippingAddress     string
	SpecialInstructions string
}

// CreateCustomOrder stores a pending custom design order under a new CUSTOM-XXXX-XXXX id
func (s *OrderService) CreateCustomOrder(ctx context.Context, in CreateCustomOrderInput) (*models.CustomOrder, error) {
	if in.Quantity <= 0 {
		return nil, validationError("quantity", "must be greater than 0")
	}
	if in.EstimatedPrice.IsNegative() {
		return nil, validationError("estimated_price", "must not be negative")
	}
	if strings.TrimSpace(in.ShippingAddress) == "" {
		return nil, validationError("shipping_address", "is required")
	}

	order := models.CustomOrder{
		UserID:              in.Customer.ID,
		ProductType:         in.ProductType,
		ProductName:         in.ProductName,
		Size:                in.Size,
		Color:               in.Color,
		Quantity:            in.Quantity,
		EstimatedPrice:      in.EstimatedPrice.Round(2),
		Status:              models.CustomStatusPending,
		PaymentStatus:       models.PaymentPending,
		CustomerName:        firstNonEmpty(in.CustomerName, in.Customer.Name),
		CustomerEmail:       firstNonEmpty(in.CustomerEmail, in.Customer.Email),
		CustomerPhone:       in.CustomerPhone,
		ShippingAddress:     strings.TrimSpace(in.ShippingAddress),
		SpecialInstructions: in.SpecialInstructions,
	}

	for attempt := 1; ; attempt++ {
		order.ID = 0
		order.CustomOrderID = NewCustomOrderID()

		err := s.db.WithContext(ctx).Create(&order).Error
		if err == nil {
			break
		}
		if !IsDuplicateKey(err) || attempt == maxIDAttempts {
			return nil, fmt.Errorf("create custom order: %w", err)
		}
	}

	s.log.WithFields(logrus.Fields{
		"custom_order_id": order.CustomOrderID,
		"user_id":         order.UserID,
	}).Info("custom order created")

	return &order, nil
}

// customStatusTransitions lists the statuses an admin may move a custom order to.
// Cancellation goes through the cancellation request queue instead.
var customStatusTransitions = map[string][]string{
	models.CustomStatusPending:  {models.CustomStatusApproved, models.CustomStatusRejected},
	models.CustomStatusApproved: {models.CustomStatusCompleted},
}

// UpdateCustomOrderStatus reviews a custom order, optionally fixing its final price
func (s *OrderService) UpdateCustomOrderStatus(ctx context.Context, ref OrderRef, status string, finalPrice *decimal.Decimal) (*models.CustomOrder, error) {
	if finalPrice != nil && finalPrice.IsNegative() {
		return nil, validationError("final_price", "must not be negative")
	}
	switch status {
	case models.CustomStatusApproved, models.CustomStatusRejected, models.CustomStatusCompleted:
	default:
		return nil, validationError("status", "must be one of: approved, rejected, completed")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.lockCustomOrder(tx, ref)
		if err != nil {
			return err
		}

		updates := map[string]interface{}{}
		if order.Status != status {
			if !contains(customStatusTransitions[order.Status], status) {
				return conflict("INVALID_STATUS", fmt.Sprintf("Cannot move a %s custom order to %s", order.Status, status))
			}
			updates["status"] = status
		}
		if finalPrice != nil {
			updates["final_price"] = finalPrice.Round(2)
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(&models.CustomOrder{}).Where("id = ?", order.ID).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"custom_order_id": ref.ID, "status": status}).Info("custom order status updated")
	return s.loadCustomOrder(s.db.WithContext(ctx), ref)
}

var paymentTransitions = map[string][]string{
	models.PaymentPending:  {models.PaymentVerified, models.PaymentRejected},
	models.PaymentRejected: {models.PaymentVerified},
}

// UpdateCustomPayment records the verification outcome of a custom order payment
func (s *OrderService) UpdateCustomPayment(ctx context.Context, ref OrderRef, paymentStatus string) (*models.CustomOrder, error) {
	switch paymentStatus {
	case models.PaymentVerified, models.PaymentRejected:
	default:
		return nil, validationError("payment_status", "must be one of: verified, rejected")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.lockCustomOrder(tx, ref)
		if err != nil {
			return err
		}
		if order.PaymentStatus == paymentStatus {
			return nil
		}
		if !contains(paymentTransitions[order.PaymentStatus], paymentStatus) {
			return conflict("INVALID_STATUS", fmt.Sprintf("Cannot move a %s payment to %s", order.PaymentStatus, paymentStatus))
		}
		return tx.Model(&models.CustomOrder{}).Where("id = ?", order.ID).Update("payment_status", paymentStatus).Error
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"custom_order_id": ref.ID, "payment_status": paymentStatus}).Info("custom order payment updated")
	return s.loadCustomOrder(s.db.WithContext(ctx), ref)
}

// GetCustomOrder loads a custom order. Customers may only read their own orders.
func (s *OrderService) GetCustomOrder(ctx context.Context, ref OrderRef, viewer models.User) (*models.CustomOrder, error) {
	order, err := s.loadCustomOrder(s.db.WithContext(ctx), ref)
	if err != nil {
		return nil, err
	}
	if !viewer.IsAdmin() && order.UserID != viewer.ID {
		return nil, forbidden("FORBIDDEN", "You do not have permission to view this order")
	}
	return order, nil
}

// ListCustomOrders returns the custom orders of one user, newest first
func (s *OrderService) ListCustomOrders(ctx context.Context, userID uint) ([]models.CustomOrder, error) {
	var orders []models.CustomOrder
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("list custom orders: %w", err)
	}
	return orders, nil
}

func (s *OrderService) lockCustomOrder(tx *gorm.DB, ref OrderRef) (*models.CustomOrder, error) {
	if ref.Type != models.OrderTypeCustom {
		return nil, validationError("order_type", "must be custom_order")
	}
	return s.loadCustomOrder(lockIf(tx, true), ref)
}

func (s *OrderService) loadCustomOrder(db *gorm.DB, ref OrderRef) (*models.CustomOrder, error) {
	var order models.CustomOrder
	if err := db.Where("custom_order_id = ?", ref.ID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, orderNotFound(ref)
		}
		return nil, fmt.Errorf("load custom order %s: %w", ref.ID, err)
	}
	return &order, nil
}

// newOrderNumber builds ORD<unix millis><4 random digits>
func (s *OrderService) newOrderNumber() string {
	return fmt.Sprintf("ORD%d%04d", s.now().UnixMilli(), rand.IntN(10000))
}

// NewCustomOrderID builds a random CUSTOM-XXXX-XXXX identifier
func NewCustomOrderID() string {
	hex := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return fmt.Sprintf("CUSTOM-%s-%s", hex[:4], hex[4:8])
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
