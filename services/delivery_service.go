package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sevenfour/order-workflow-api/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Actor is who performed a workflow action, recorded in the status history
type Actor struct {
	UserID *uint
	Name   string
}

// SystemActor is used when no authenticated user is attached to a change
var SystemActor = Actor{Name: "System"}

// ActorFromUser builds an Actor from an authenticated user
func ActorFromUser(u models.User) Actor {
	id := u.ID
	return Actor{UserID: &id, Name: u.Name}
}

// DeliveryUpdate describes a delivery status transition and optional schedule changes.
// Nil fields keep the current schedule value.
type DeliveryUpdate struct {
	Status       models.DeliveryStatus
	Notes        *string
	DeliveryDate *time.Time
	TimeSlot     *string
	CourierID    *uint
	Priority     string
}

// TransitionResult reports the outcome of a delivery status transition
type TransitionResult struct {
	Ref            OrderRef               `json:"order"`
	ScheduleID     uint                   `json:"delivery_schedule_id"`
	OrderNumber    string                 `json:"order_number"`
	PreviousStatus *models.DeliveryStatus `json:"previous_status"`
	NewStatus      models.DeliveryStatus  `json:"new_status"`
	Changed        bool                   `json:"changed"`
	DeliveryDate   string                 `json:"delivery_date,omitempty"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

// DeliveryService applies delivery status transitions to an order and its schedule
type DeliveryService struct {
	db  *gorm.DB
	log logrus.FieldLogger
	now func() time.Time
}

// NewDeliveryService creates a delivery service bound to db
func NewDeliveryService(db *gorm.DB, log logrus.FieldLogger) *DeliveryService {
	return &DeliveryService{db: db, log: log, now: time.Now}
}

// UpdateStatus moves an order to a new delivery status.
// The order row and its delivery schedule are written in one transaction,
// so both always report the same delivery status afterwards.
func (s *DeliveryService) UpdateStatus(ctx context.Context, ref OrderRef, update DeliveryUpdate, actor Actor) (*TransitionResult, error) {
	if !update.Status.Valid() {
		return nil, validationError("delivery_status", "must be one of: scheduled, in_transit, delivered, delayed, cancelled")
	}
	if update.Priority != "" && !validPriority(update.Priority) {
		return nil, validationError("priority_level", "must be one of: low, normal, high, urgent")
	}

	var result *TransitionResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := applyDeliveryStatus(tx, ref, update, actor, s.now())
		result = r
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"order_type":      ref.Type,
		"order_id":        ref.ID,
		"previous_status": derefStatus(result.PreviousStatus),
		"new_status":      result.NewStatus,
		"changed":         result.Changed,
	}).Info("delivery status applied")

	return result, nil
}

// ScheduleInput is the payload of ScheduleDelivery
type ScheduleInput struct {
	DeliveryDate time.Time
	TimeSlot     string
	CourierID    *uint
	Notes        string
	Priority     string
}

// ScheduleDelivery books (or re-books) a delivery date for an order
func (s *DeliveryService) ScheduleDelivery(ctx context.Context, ref OrderRef, in ScheduleInput, actor Actor) (*TransitionResult, error) {
	if in.DeliveryDate.IsZero() {
		return nil, validationError("delivery_date", "is required")
	}

	date := models.DateOnly(in.DeliveryDate)
	notes := in.Notes
	slot := in.TimeSlot
	return s.UpdateStatus(ctx, ref, DeliveryUpdate{
		Status:       models.DeliveryScheduled,
		Notes:        &notes,
		DeliveryDate: &date,
		TimeSlot:     &slot,
		CourierID:    in.CourierID,
		Priority:     in.Priority,
	}, actor)
}

// History returns the status changes of an order, oldest first
func (s *DeliveryService) History(ctx context.Context, ref OrderRef) ([]models.DeliveryStatusHistory, error) {
	db := s.db.WithContext(ctx)
	if _, err := FindOrder(db, ref, false); err != nil {
		return nil, err
	}

	var history []models.DeliveryStatusHistory
	err := db.Where("order_id = ? AND order_type = ?", ref.ID, ref.Type).
		Order("created_at ASC, id ASC").
		Find(&history).Error
	if err != nil {
		return nil, fmt.Errorf("load status history: %w", err)
	}
	return history, nil
}

// applyDeliveryStatus runs one transition inside tx. The order row is locked first,
// then the schedule is upserted and the status mirrored onto the order.
func applyDeliveryStatus(tx *gorm.DB, ref OrderRef, update DeliveryUpdate, actor Actor, now time.Time) (*TransitionResult, error) {
	store := StoreFor(ref.Type)
	if store == nil {
		return nil, validationError("order_type", "must be one of: regular, custom_order")
	}

	order, err := store.Find(tx, ref.ID, true)
	if err != nil {
		return nil, err
	}

	schedule, err := findSchedule(tx, ref, true)
	if err != nil {
		return nil, err
	}

	previous := order.DeliveryStatus
	if schedule != nil {
		prev := schedule.DeliveryStatus
		previous = &prev
	}

	if order.Cancelled() && update.Status != models.DeliveryCancelled {
		return nil, conflict("ORDER_NOT_DELIVERABLE", "Order has been cancelled")
	}
	if schedule == nil && update.Status != models.DeliveryCancelled && !order.Deliverable() {
		return nil, conflict("ORDER_NOT_DELIVERABLE", "Order must be confirmed and paid before delivery can be scheduled")
	}
	if previous != nil && previous.Terminal() && *previous != update.Status {
		return nil, conflict("INVALID_TRANSITION", fmt.Sprintf("Delivery is already %s", *previous))
	}

	if schedule == nil {
		schedule = &models.DeliverySchedule{
			OrderID:       ref.ID,
			OrderType:     ref.Type,
			OrderNumber:   order.OrderNumber,
			PriorityLevel: models.PriorityNormal,
		}
	}

	if update.DeliveryDate != nil {
		date := models.DateOnly(*update.DeliveryDate)
		dateChanged := schedule.DeliveryDate == nil || !schedule.DeliveryDate.Equal(date)
		if dateChanged && update.Status != models.DeliveryCancelled {
			if err := checkDayCapacity(tx, date, schedule.ID); err != nil {
				return nil, err
			}
		}
		schedule.DeliveryDate = &date
	}
	if update.CourierID != nil {
		if err := checkCourierAssignable(tx, *update.CourierID); err != nil {
			return nil, err
		}
		courierID := *update.CourierID
		schedule.CourierID = &courierID
	}
	if update.TimeSlot != nil {
		schedule.DeliveryTimeSlot = *update.TimeSlot
	}
	if update.Notes != nil {
		schedule.DeliveryNotes = *update.Notes
	}
	if update.Priority != "" {
		schedule.PriorityLevel = update.Priority
	}

	changed := previous == nil || *previous != update.Status
	if changed {
		switch update.Status {
		case models.DeliveryInTransit:
			schedule.DispatchedAt = &now
		case models.DeliveryDelivered:
			schedule.DeliveredAt = &now
		}
	}
	schedule.DeliveryStatus = update.Status
	schedule.CalendarColor = update.Status.CalendarColor()
	schedule.DisplayIcon = update.Status.DisplayIcon()

	// Courier is only a read association
	if err := tx.Omit(clause.Associations).Save(schedule).Error; err != nil {
		if IsDuplicateKey(err) {
			return nil, conflict("DUPLICATE_SCHEDULE", "A delivery schedule already exists for this order")
		}
		return nil, fmt.Errorf("save delivery schedule: %w", err)
	}

	if err := store.SetDelivery(tx, ref.ID, update.Status, schedule.DeliveryDate, schedule.DeliveryNotes); err != nil {
		return nil, fmt.Errorf("mirror delivery status onto order: %w", err)
	}
	if update.Status == models.DeliveryDelivered && order.Status != store.CompletedStatus() {
		if err := store.SetStatus(tx, ref.ID, store.CompletedStatus()); err != nil {
			return nil, fmt.Errorf("complete order: %w", err)
		}
	}

	if changed {
		entry := models.DeliveryStatusHistory{
			DeliveryScheduleID: schedule.ID,
			OrderID:            ref.ID,
			OrderType:          ref.Type,
			PreviousStatus:     previous,
			NewStatus:          update.Status,
			StatusNotes:        schedule.DeliveryNotes,
			ChangedByUserID:    actor.UserID,
			ChangedByName:      actorName(actor),
		}
		if err := tx.Create(&entry).Error; err != nil {
			return nil, fmt.Errorf("record status history: %w", err)
		}
	}

	return &TransitionResult{
		Ref:            ref,
		ScheduleID:     schedule.ID,
		OrderNumber:    order.OrderNumber,
		PreviousStatus: previous,
		NewStatus:      update.Status,
		Changed:        changed,
		DeliveryDate:   models.FormatDate(schedule.DeliveryDate),
		UpdatedAt:      now,
	}, nil
}

// findSchedule returns the schedule row of an order, or nil when none exists
func findSchedule(tx *gorm.DB, ref OrderRef, forUpdate bool) (*models.DeliverySchedule, error) {
	var schedule models.DeliverySchedule
	err := lockIf(tx, forUpdate).
		Where("order_id = ? AND order_type = ?", ref.ID, ref.Type).
		First(&schedule).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load delivery schedule: %w", err)
	}
	return &schedule, nil
}

// checkDayCapacity rejects dates marked unavailable or already fully booked.
// excludeScheduleID is the schedule being moved, which must not count against itself.
func checkDayCapacity(tx *gorm.DB, date time.Time, excludeScheduleID uint) error {
	var day models.DeliveryCalendarDay
	err := lockIf(tx, true).Where("calendar_date = ?", date).First(&day).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load calendar day: %w", err)
	}

	if !day.IsAvailable {
		return conflict("DATE_UNAVAILABLE", fmt.Sprintf("Deliveries are not available on %s", date.Format(models.DateLayout)))
	}

	var booked int64
	q := tx.Model(&models.DeliverySchedule{}).
		Where("delivery_date = ? AND delivery_status <> ?", date, models.DeliveryCancelled)
	if excludeScheduleID != 0 {
		q = q.Where("id <> ?", excludeScheduleID)
	}
	if err := q.Count(&booked).Error; err != nil {
		return fmt.Errorf("count bookings: %w", err)
	}
	if !day.HasCapacity(booked) {
		return conflict("DATE_UNAVAILABLE", fmt.Sprintf("%s is fully booked", date.Format(models.DateLayout)))
	}
	return nil
}

// checkCourierAssignable holds the courier row lock until the assignment commits,
// serializing it with a concurrent deactivation.
func checkCourierAssignable(tx *gorm.DB, courierID uint) error {
	var courier models.Courier
	if err := loadCourier(lockIf(tx, true), courierID, &courier); err != nil {
		return err
	}
	if courier.Status != models.CourierActive {
		return conflict("COURIER_INACTIVE", "Courier is not active")
	}
	return nil
}

func validPriority(p string) bool {
	switch p {
	case models.PriorityLow, models.PriorityNormal, models.PriorityHigh, models.PriorityUrgent:
		return true
	}
	return false
}

func actorName(a Actor) string {
	if a.Name == "" {
		return SystemActor.Name
	}
	return a.Name
}

func derefStatus(s *models.DeliveryStatus) string {
	if s == nil {
		return ""
	}
	return string(*s)
}
