package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sevenfour/order-workflow-api/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrderView is the merged order/delivery state of one order.
// DeliveryStatus is the effective status: the schedule's delivery status once a schedule
// row exists, otherwise the order's own status.
type OrderView struct {
	OrderType             models.OrderType       `json:"order_type"`
	OrderID               string                 `json:"order_id"`
	OrderNumber           string                 `json:"order_number"`
	UserID                uint                   `json:"user_id"`
	CustomerName          string                 `json:"customer_name"`
	CustomerEmail         string                 `json:"customer_email"`
	ContactPhone          string                 `json:"contact_phone"`
	ShippingAddress       string                 `json:"shipping_address"`
	OrderStatus           string                 `json:"order_status"`
	PaymentStatus         string                 `json:"payment_status,omitempty"`
	DeliveryStatus        string                 `json:"delivery_status"`
	ScheduledDeliveryDate string                 `json:"scheduled_delivery_date,omitempty"`
	DeliveryTimeSlot      string                 `json:"delivery_time_slot,omitempty"`
	DeliveryNotes         string                 `json:"delivery_notes,omitempty"`
	CourierID             *uint                  `json:"courier_id"`
	PriorityLevel         string                 `json:"priority_level,omitempty"`
	CalendarColor         string                 `json:"calendar_color,omitempty"`
	DisplayIcon           string                 `json:"display_icon,omitempty"`
	ScheduleID            *uint                  `json:"delivery_schedule_id"`
	HasSchedule           bool                   `json:"has_schedule"`
	TotalAmount           decimal.Decimal        `json:"total_amount"`
	OrderDeliveryStatus   *models.DeliveryStatus `json:"order_delivery_status"`
	CreatedAt             time.Time              `json:"created_at"`
}

func buildOrderView(order OrderSnapshot, schedule *models.DeliverySchedule) OrderView {
	view := OrderView{
		OrderType:           order.Ref.Type,
		OrderID:             order.Ref.ID,
		OrderNumber:         order.OrderNumber,
		UserID:              order.UserID,
		CustomerName:        order.CustomerName,
		CustomerEmail:       order.CustomerEmail,
		ContactPhone:        order.ContactPhone,
		ShippingAddress:     order.ShippingAddress,
		OrderStatus:         order.Status,
		PaymentStatus:       order.PaymentStatus,
		DeliveryStatus:      order.Status,
		TotalAmount:         order.TotalAmount,
		OrderDeliveryStatus: order.DeliveryStatus,
		CreatedAt:           order.CreatedAt,
	}
	if schedule == nil {
		return view
	}

	id := schedule.ID
	view.HasSchedule = true
	view.ScheduleID = &id
	view.DeliveryStatus = string(schedule.DeliveryStatus)
	view.ScheduledDeliveryDate = models.FormatDate(schedule.DeliveryDate)
	view.DeliveryTimeSlot = schedule.DeliveryTimeSlot
	view.DeliveryNotes = schedule.DeliveryNotes
	view.CourierID = schedule.CourierID
	view.PriorityLevel = schedule.PriorityLevel
	view.CalendarColor = schedule.CalendarColor
	view.DisplayIcon = schedule.DisplayIcon
	return view
}

// ReadModel answers order/delivery status queries and serves the delivery calendar
type ReadModel struct {
	db  *gorm.DB
	log logrus.FieldLogger
}

// NewReadModel creates a read model bound to db
func NewReadModel(db *gorm.DB, log logrus.FieldLogger) *ReadModel {
	return &ReadModel{db: db, log: log}
}

// OrderListFilter narrows ListOrders. Status matches the effective status.
type OrderListFilter struct {
	OrderType models.OrderType
	Status    string
	Page      int
	PageSize  int
}

// OrderPage is one page of OrderViews
type OrderPage struct {
	Orders     []OrderView `json:"orders"`
	Pagination Pagination  `json:"pagination"`
}

// ListOrders merges both order kinds with their schedules, newest first.
// Filtering, ordering and paging run in SQL; only the rows of the page are loaded.
func (m *ReadModel) ListOrders(ctx context.Context, filter OrderListFilter) (*OrderPage, error) {
	if filter.OrderType != "" && !filter.OrderType.Valid() {
		return nil, validationError("order_type", "must be one of: regular, custom_order")
	}

	db, cancel := dbWithTimeout(ctx, m.db)
	defer cancel()

	source := db.Table("(?) AS delivery_orders", deliveryOrdersQuery(db, filter.OrderType))
	if filter.Status != "" {
		source = source.Where("effective_status = ?", filter.Status)
	}
	source = source.Session(&gorm.Session{})

	var total int64
	if err := source.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count delivery orders: %w", err)
	}

	start, end, page := paginate(int(total), filter.Page, filter.PageSize)
	views := []OrderView{}
	if start == end {
		return &OrderPage{Orders: views, Pagination: page}, nil
	}

	var keys []OrderRef
	err := source.Select("order_type AS type, order_id AS id").
		Order("created_at DESC, order_type, order_id").
		Offset(start).Limit(end - start).
		Scan(&keys).Error
	if err != nil {
		return nil, fmt.Errorf("list delivery orders: %w", err)
	}

	ids := make(map[models.OrderType][]string)
	for _, k := range keys {
		ids[k.Type] = append(ids[k.Type], k.ID)
	}

	orders := make(map[OrderRef]OrderSnapshot, len(keys))
	schedules := make(map[OrderRef]*models.DeliverySchedule, len(keys))
	for t, list := range ids {
		snaps, err := StoreFor(t).List(db, OrderFilter{IDs: list})
		if err != nil {
			return nil, err
		}
		for _, snap := range snaps {
			orders[snap.Ref] = snap
		}
		found, err := schedulesFor(db, t, list)
		if err != nil {
			return nil, err
		}
		for ref, schedule := range found {
			schedules[ref] = schedule
		}
	}

	for _, k := range keys {
		order, ok := orders[k]
		if !ok {
			continue
		}
		views = append(views, buildOrderView(order, schedules[k]))
	}
	return &OrderPage{Orders: views, Pagination: page}, nil
}

// deliveryOrdersQuery selects one row per order with its effective delivery status
func deliveryOrdersQuery(db *gorm.DB, orderType models.OrderType) *gorm.DB {
	regularID := "CAST(o.id AS TEXT)"
	if db.Dialector.Name() == "mysql" {
		regularID = "CAST(o.id AS CHAR)"
	}

	regular := db.Table("orders AS o").
		Select("'regular' AS order_type, " + regularID + " AS order_id, o.created_at AS created_at, " +
			"COALESCE(s.delivery_status, o.status) AS effective_status").
		Joins("LEFT JOIN delivery_schedules_enhanced s ON s.order_type = 'regular' AND s.order_id = " + regularID)
	custom := db.Table("custom_orders AS o").
		Select("'custom_order' AS order_type, o.custom_order_id AS order_id, o.created_at AS created_at, " +
			"COALESCE(s.delivery_status, o.status) AS effective_status").
		Joins("LEFT JOIN delivery_schedules_enhanced s ON s.order_type = 'custom_order' AND s.order_id = o.custom_order_id")

	switch orderType {
	case models.OrderTypeRegular:
		return regular
	case models.OrderTypeCustom:
		return custom
	}
	return db.Raw("? UNION ALL ?", regular, custom)
}

// GetOrder returns the merged view of one order
func (m *ReadModel) GetOrder(ctx context.Context, ref OrderRef) (*OrderView, error) {
	db, cancel := dbWithTimeout(ctx, m.db)
	defer cancel()

	order, err := FindOrder(db, ref, false)
	if err != nil {
		return nil, err
	}
	schedule, err := findSchedule(db, ref, false)
	if err != nil {
		return nil, err
	}

	view := buildOrderView(*order, schedule)
	return &view, nil
}

func schedulesFor(db *gorm.DB, t models.OrderType, ids []string) (map[OrderRef]*models.DeliverySchedule, error) {
	var schedules []models.DeliverySchedule
	if err := db.Where("order_type = ? AND order_id IN ?", t, ids).Find(&schedules).Error; err != nil {
		return nil, fmt.Errorf("load delivery schedules: %w", err)
	}
	out := make(map[OrderRef]*models.DeliverySchedule, len(schedules))
	for i := range schedules {
		out[OrderRef{Type: t, ID: schedules[i].OrderID}] = &schedules[i]
	}
	return out, nil
}

// CalendarEntry is one scheduled delivery on a calendar day
type CalendarEntry struct {
	ScheduleID     uint                  `json:"delivery_schedule_id"`
	OrderType      models.OrderType      `json:"order_type"`
	OrderID        string                `json:"order_id"`
	OrderNumber    string                `json:"order_number"`
	DeliveryStatus models.DeliveryStatus `json:"delivery_status"`
	TimeSlot       string                `json:"delivery_time_slot"`
	PriorityLevel  string                `json:"priority_level"`
	CourierID      *uint                 `json:"courier_id"`
	CourierName    string                `json:"courier_name,omitempty"`
	CalendarColor  string                `json:"calendar_color"`
	DisplayIcon    string                `json:"display_icon"`
}

// CalendarDay is one day of the delivery calendar
type CalendarDay struct {
	Date          string          `json:"date"`
	IsAvailable   bool            `json:"is_available"`
	MaxDeliveries int             `json:"max_deliveries"`
	Booked        int             `json:"booked"`
	SpecialNotes  string          `json:"special_notes,omitempty"`
	Deliveries    []CalendarEntry `json:"deliveries"`
}

// CalendarSummary aggregates a calendar month
type CalendarSummary struct {
	TotalDeliveries  int                           `json:"total_deliveries"`
	ByStatus         map[models.DeliveryStatus]int `json:"by_status"`
	UnavailableDays  int                           `json:"unavailable_days"`
	FullyBookedDays  int                           `json:"fully_booked_days"`
	BusiestDate      string                        `json:"busiest_date,omitempty"`
	BusiestDateCount int                           `json:"busiest_date_count"`
}

// CalendarMonth is the delivery calendar of one month
type CalendarMonth struct {
	Year    int             `json:"year"`
	Month   int             `json:"month"`
	Days    []CalendarDay   `json:"days"`
	Summary CalendarSummary `json:"summary"`
}

// Calendar groups the deliveries of a month by day
func (m *ReadModel) Calendar(ctx context.Context, year, month int) (*CalendarMonth, error) {
	if month < 1 || month > 12 {
		return nil, validationError("month", "must be between 1 and 12")
	}
	if year < 2000 || year > 2100 {
		return nil, validationError("year", "must be between 2000 and 2100")
	}

	db, cancel := dbWithTimeout(ctx, m.db)
	defer cancel()

	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)

	var schedules []models.DeliverySchedule
	err := db.Preload("Courier").
		Where("delivery_date >= ? AND delivery_date <= ?", first, last).
		Order("delivery_date ASC, id ASC").
		Find(&schedules).Error
	if err != nil {
		return nil, fmt.Errorf("load month schedules: %w", err)
	}

	var overrides []models.DeliveryCalendarDay
	if err := db.Where("calendar_date >= ? AND calendar_date <= ?", first, last).Find(&overrides).Error; err != nil {
		return nil, fmt.Errorf("load calendar days: %w", err)
	}
	dayConfig := make(map[string]models.DeliveryCalendarDay, len(overrides))
	for _, d := range overrides {
		dayConfig[d.CalendarDate.UTC().Format(models.DateLayout)] = d
	}

	entries := map[string][]models.DeliverySchedule{}
	for _, s := range schedules {
		key := models.FormatDate(s.DeliveryDate)
		entries[key] = append(entries[key], s)
	}

	cal := &CalendarMonth{
		Year:    year,
		Month:   month,
		Summary: CalendarSummary{ByStatus: map[models.DeliveryStatus]int{}},
	}
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		key := d.Format(models.DateLayout)
		day := CalendarDay{Date: key, IsAvailable: true, Deliveries: []CalendarEntry{}}
		if cfg, ok := dayConfig[key]; ok {
			day.IsAvailable = cfg.IsAvailable
			day.MaxDeliveries = cfg.MaxDeliveries
			day.SpecialNotes = cfg.SpecialNotes
		}

		for _, s := range entries[key] {
			entry := CalendarEntry{
				ScheduleID:     s.ID,
				OrderType:      s.OrderType,
				OrderID:        s.OrderID,
				OrderNumber:    s.OrderNumber,
				DeliveryStatus: s.DeliveryStatus,
				TimeSlot:       s.DeliveryTimeSlot,
				PriorityLevel:  s.PriorityLevel,
				CourierID:      s.CourierID,
				CalendarColor:  s.CalendarColor,
				DisplayIcon:    s.DisplayIcon,
			}
			if s.Courier != nil {
				entry.CourierName = s.Courier.Name
			}
			day.Deliveries = append(day.Deliveries, entry)
			cal.Summary.ByStatus[s.DeliveryStatus]++
			cal.Summary.TotalDeliveries++
			if s.DeliveryStatus != models.DeliveryCancelled {
				day.Booked++
			}
		}

		if !day.IsAvailable {
			cal.Summary.UnavailableDays++
		}
		if day.MaxDeliveries > 0 && day.Booked >= day.MaxDeliveries {
			cal.Summary.FullyBookedDays++
		}
		if day.Booked > cal.Summary.BusiestDateCount {
			cal.Summary.BusiestDate = key
			cal.Summary.BusiestDateCount = day.Booked
		}
		cal.Days = append(cal.Days, day)
	}

	return cal, nil
}

// CalendarDayInput changes one calendar day. Nil fields keep their current value.
type CalendarDayInput struct {
	IsAvailable   *bool
	MaxDeliveries *int
	SpecialNotes  *string
}

// UpdateCalendarDay creates or updates the availability override of one day
func (m *ReadModel) UpdateCalendarDay(ctx context.Context, date time.Time, in CalendarDayInput) (*models.DeliveryCalendarDay, error) {
	if in.MaxDeliveries != nil && *in.MaxDeliveries < 0 {
		return nil, validationError("max_deliveries", "must be zero (unlimited) or greater")
	}
	date = models.DateOnly(date)

	var day models.DeliveryCalendarDay
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := lockIf(tx, true).Where("calendar_date = ?", date).First(&day).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			day = models.DeliveryCalendarDay{CalendarDate: date, IsAvailable: true}
		} else if err != nil {
			return fmt.Errorf("load calendar day: %w", err)
		}

		if in.IsAvailable != nil {
			day.IsAvailable = *in.IsAvailable
		}
		if in.MaxDeliveries != nil {
			day.MaxDeliveries = *in.MaxDeliveries
		}
		if in.SpecialNotes != nil {
			day.SpecialNotes = *in.SpecialNotes
		}

		// Upsert on calendar_date so a concurrent first write for the same day is merged
		day.ID = 0
		err = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "calendar_date"}},
			DoUpdates: clause.AssignmentColumns([]string{"is_available", "max_deliveries", "special_notes", "updated_at"}),
		}).Create(&day).Error
		if err != nil {
			return fmt.Errorf("save calendar day: %w", err)
		}

		return tx.Where("calendar_date = ?", date).First(&day).Error
	})
	if err != nil {
		return nil, err
	}

	m.log.WithFields(logrus.Fields{
		"date":           date.Format(models.DateLayout),
		"is_available":   day.IsAvailable,
		"max_deliveries": day.MaxDeliveries,
	}).Info("delivery calendar day updated")

	return &day, nil
}
