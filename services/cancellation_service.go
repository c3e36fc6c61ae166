package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sevenfour/order-workflow-api/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// MinReasonLength is the minimum number of characters of a cancellation reason
const MinReasonLength = 10

// Resolution actions accepted from admins
const (
	ActionApprove = "approve"
	ActionDeny    = "deny"
	ActionReject  = "reject" // alias of deny
)

// CancellationService records cancellation requests and resolves them
type CancellationService struct {
	db  *gorm.DB
	log logrus.FieldLogger
	now func() time.Time
}

// NewCancellationService creates a cancellation service bound to db
func NewCancellationService(db *gorm.DB, log logrus.FieldLogger) *CancellationService {
	return &CancellationService{db: db, log: log, now: time.Now}
}

// CreateCancellationInput is the payload of Create
type CreateCancellationInput struct {
	Ref    OrderRef
	Reason string
	// RequestType is cancellation (the default) or refund
	RequestType string
	Requester   models.User
}

// Create files a pending cancellation or refund request against an order.
// The order row stays locked between the duplicate check and the insert, and the
// unique pending_key index rejects a second pending row if the lock is bypassed.
func (s *CancellationService) Create(ctx context.Context, in CreateCancellationInput) (*models.CancellationRequest, error) {
	kind, err := requestType(in.RequestType)
	if err != nil {
		return nil, err
	}

	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return nil, validationError("reason", "is required")
	}
	if utf8.RuneCountInString(reason) < MinReasonLength {
		return nil, validationError("reason", fmt.Sprintf("must be at least %d characters long", MinReasonLength))
	}

	var request models.CancellationRequest
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := FindOrder(tx, in.Ref, true)
		if err != nil {
			return err
		}

		if !in.Requester.IsAdmin() && order.UserID != in.Requester.ID {
			return forbidden("FORBIDDEN", fmt.Sprintf("You do not have permission to request a %s for this order", kind))
		}
		switch {
		case kind == models.RequestTypeRefund && !order.Refundable():
			return conflict("ORDER_NOT_REFUNDABLE", "Only delivered or completed orders with a settled payment can be refunded")
		case kind == models.RequestTypeCancellation && !order.Cancellable():
			return conflict("ORDER_NOT_CANCELLABLE", "This order has already been completed, delivered or cancelled")
		}

		key := models.PendingKeyFor(in.Ref.Type, in.Ref.ID, kind)

		var pending int64
		if err := tx.Model(&models.CancellationRequest{}).Where("pending_key = ?", key).Count(&pending).Error; err != nil {
			return fmt.Errorf("check pending requests: %w", err)
		}
		if pending > 0 {
			return duplicateRequest(kind)
		}

		request = models.CancellationRequest{
			OrderType:   in.Ref.Type,
			OrderID:     in.Ref.ID,
			RequestType: kind,
			UserID:      in.Requester.ID,
			Reason:      reason,
			Status:      models.RequestPending,
			PendingKey:  &key,
		}
		if err := tx.Create(&request).Error; err != nil {
			if IsDuplicateKey(err) {
				return duplicateRequest(kind)
			}
			return fmt.Errorf("create %s request: %w", kind, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"request_id":   request.ID,
		"request_type": kind,
		"order_type":   in.Ref.Type,
		"order_id":     in.Ref.ID,
		"user_id":      in.Requester.ID,
	}).Info("cancellation request created")

	return &request, nil
}

// ResolveInput is the payload of Resolve
type ResolveInput struct {
	RequestID  uint
	Action     string
	AdminNotes string
	Admin      models.User
	// OnlyType limits resolution to requests of one order type (empty means any)
	OnlyType models.OrderType
}

// ResolveResult reports the outcome of Resolve
type ResolveResult struct {
	Request        *models.CancellationRequest `json:"request"`
	OrderCancelled bool                        `json:"order_cancelled"`
	OrderRefunded  bool                        `json:"order_refunded"`
	Replayed       bool                        `json:"replayed"`
}

// Resolve approves or denies a pending request. Approving a cancellation cancels the
// order and any open delivery in the same transaction; approving a refund marks the
// order's payment as refunded. Repeating the decision already taken is a no-op;
// reversing it is a conflict.
func (s *CancellationService) Resolve(ctx context.Context, in ResolveInput) (*ResolveResult, error) {
	target, err := resolutionStatus(in.Action)
	if err != nil {
		return nil, err
	}

	result := &ResolveResult{}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var request models.CancellationRequest
		if err := lockIf(tx, true).First(&request, in.RequestID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return requestNotFound()
			}
			return fmt.Errorf("load cancellation request: %w", err)
		}
		if in.OnlyType != "" && request.OrderType != in.OnlyType {
			return requestNotFound()
		}
		result.Request = &request

		if request.Status != models.RequestPending {
			if request.Status == target {
				result.Replayed = true
				return nil
			}
			return conflict("ALREADY_PROCESSED", fmt.Sprintf("Request has already been %s", request.Status))
		}

		now := s.now()
		adminID := in.Admin.ID
		request.Status = target
		request.AdminNotes = strings.TrimSpace(in.AdminNotes)
		request.ProcessedBy = &adminID
		request.ProcessedAt = &now
		request.PendingKey = nil
		if err := tx.Save(&request).Error; err != nil {
			return fmt.Errorf("update cancellation request: %w", err)
		}

		if target != models.RequestApproved {
			return nil
		}
		ref := OrderRef{Type: request.OrderType, ID: request.OrderID}
		if request.RequestType == models.RequestTypeRefund {
			refunded, err := refundOrder(tx, ref)
			if err != nil {
				return err
			}
			result.OrderRefunded = refunded
			return nil
		}
		cancelled, err := cancelOrder(tx, ref, request.ID, ActorFromUser(in.Admin), now)
		if err != nil {
			return err
		}
		result.OrderCancelled = cancelled
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"request_id":      in.RequestID,
		"status":          result.Request.Status,
		"order_cancelled": result.OrderCancelled,
		"order_refunded":  result.OrderRefunded,
		"replayed":        result.Replayed,
	}).Info("cancellation request resolved")

	return result, nil
}

// cancelOrder moves an order to its cancelled status once and cancels an open delivery.
// It reports whether the order status changed.
func cancelOrder(tx *gorm.DB, ref OrderRef, requestID uint, actor Actor, now time.Time) (bool, error) {
	store := StoreFor(ref.Type)
	order, err := store.Find(tx, ref.ID, true)
	if err != nil {
		return false, err
	}
	if order.Cancelled() {
		return false, nil
	}
	if order.DeliveryStatus != nil && *order.DeliveryStatus == models.DeliveryDelivered {
		return false, conflict("ORDER_NOT_CANCELLABLE", "Order has already been delivered")
	}

	if err := store.SetStatus(tx, ref.ID, store.CancelledStatus()); err != nil {
		return false, fmt.Errorf("cancel order: %w", err)
	}

	schedule, err := findSchedule(tx, ref, true)
	if err != nil {
		return false, err
	}
	if schedule != nil && !schedule.DeliveryStatus.Terminal() {
		notes := fmt.Sprintf("Cancelled via cancellation request #%d", requestID)
		update := DeliveryUpdate{Status: models.DeliveryCancelled, Notes: &notes}
		if _, err := applyDeliveryStatus(tx, ref, update, actor, now); err != nil {
			return false, err
		}
	}
	return true, nil
}

// refundOrder marks a delivered or completed order as refunded once.
// It reports whether the order changed.
func refundOrder(tx *gorm.DB, ref OrderRef) (bool, error) {
	order, err := FindOrder(tx, ref, true)
	if err != nil {
		return false, err
	}
	if order.Refunded() {
		return false, nil
	}
	if !order.Refundable() {
		return false, conflict("ORDER_NOT_REFUNDABLE", "Order is no longer eligible for a refund")
	}
	if err := StoreFor(ref.Type).MarkRefunded(tx, ref.ID); err != nil {
		return false, fmt.Errorf("refund order: %w", err)
	}
	return true, nil
}

// CancellationFilter narrows List
type CancellationFilter struct {
	OrderType   models.OrderType
	RequestType string
	Status      string
	UserID      *uint
	Page        int
	PageSize    int
}

// CancellationView is a request joined with a summary of its order
type CancellationView struct {
	models.CancellationRequest
	OrderNumber  string `json:"order_number"`
	OrderStatus  string `json:"order_status"`
	CustomerName string `json:"customer_name"`
}

// CancellationPage is one page of List
type CancellationPage struct {
	Requests   []CancellationView `json:"requests"`
	Pagination Pagination         `json:"pagination"`
}

// List returns one page of requests, newest first
func (s *CancellationService) List(ctx context.Context, filter CancellationFilter) (*CancellationPage, error) {
	if filter.OrderType != "" && !filter.OrderType.Valid() {
		return nil, validationError("order_type", "must be one of: regular, custom_order")
	}
	if filter.RequestType != "" {
		if _, err := requestType(filter.RequestType); err != nil {
			return nil, err
		}
	}
	switch filter.Status {
	case "", models.RequestPending, models.RequestApproved, models.RequestDenied:
	default:
		return nil, validationError("status", "must be one of: pending, approved, denied")
	}

	db := s.db.WithContext(ctx)
	q := db.Model(&models.CancellationRequest{})
	if filter.OrderType != "" {
		q = q.Where("order_type = ?", filter.OrderType)
	}
	if filter.RequestType != "" {
		q = q.Where("request_type = ?", filter.RequestType)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.UserID != nil {
		q = q.Where("user_id = ?", *filter.UserID)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count cancellation requests: %w", err)
	}
	start, end, page := paginate(int(total), filter.Page, filter.PageSize)
	if start == end {
		return &CancellationPage{Requests: []CancellationView{}, Pagination: page}, nil
	}

	var requests []models.CancellationRequest
	if err := q.Order("created_at DESC, id DESC").Offset(start).Limit(end - start).Find(&requests).Error; err != nil {
		return nil, fmt.Errorf("list cancellation requests: %w", err)
	}

	// Load the referenced orders with one query per order table
	ids := map[models.OrderType][]string{}
	for _, r := range requests {
		ids[r.OrderType] = append(ids[r.OrderType], r.OrderID)
	}
	orders := map[OrderRef]OrderSnapshot{}
	for orderType, orderIDs := range ids {
		store := StoreFor(orderType)
		if store == nil {
			continue
		}
		snaps, err := store.List(db, OrderFilter{IDs: orderIDs})
		if err != nil {
			return nil, err
		}
		for _, snap := range snaps {
			orders[snap.Ref] = snap
		}
	}

	views := make([]CancellationView, 0, len(requests))
	for _, r := range requests {
		view := CancellationView{CancellationRequest: r}
		if snap, ok := orders[OrderRef{Type: r.OrderType, ID: r.OrderID}]; ok {
			view.OrderNumber = snap.OrderNumber
			view.OrderStatus = snap.Status
			view.CustomerName = snap.CustomerName
		}
		views = append(views, view)
	}
	return &CancellationPage{Requests: views, Pagination: page}, nil
}

func requestType(value string) (string, error) {
	switch strings.TrimSpace(value) {
	case "", models.RequestTypeCancellation:
		return models.RequestTypeCancellation, nil
	case models.RequestTypeRefund:
		return models.RequestTypeRefund, nil
	}
	return "", validationError("request_type", "must be one of: cancellation, refund")
}

func resolutionStatus(action string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(action)) {
	case ActionApprove:
		return models.RequestApproved, nil
	case ActionDeny, ActionReject:
		return models.RequestDenied, nil
	}
	return "", validationError("action", `must be either "approve" or "deny"`)
}

func duplicateRequest(kind string) error {
	return conflict("DUPLICATE_REQUEST", fmt.Sprintf("A %s request for this order is already pending", kind))
}

func requestNotFound() error {
	return notFound("REQUEST_NOT_FOUND", "Request not found")
}
