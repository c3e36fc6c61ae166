package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sevenfour/order-workflow-api/models"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

const (
	manifestSheet       = "Manifest"
	manifestContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	// ManifestURLTTL is how long a manifest download link stays valid
	ManifestURLTTL = time.Hour
)

var manifestHeader = []interface{}{
	"#", "Order Type", "Order Number", "Customer", "Phone", "Shipping Address",
	"Time Slot", "Priority", "Courier", "Status", "Notes",
}

var priorityRank = map[string]int{
	models.PriorityUrgent: 0,
	models.PriorityHigh:   1,
	models.PriorityNormal: 2,
	models.PriorityLow:    3,
}

// ManifestRow is one stop on a delivery manifest
type ManifestRow struct {
	Schedule models.DeliverySchedule
	Order    *OrderSnapshot
}

// Manifest describes an uploaded delivery manifest
type Manifest struct {
	Date        string    `json:"date"`
	Key         string    `json:"key"`
	URL         string    `json:"url"`
	Deliveries  int       `json:"deliveries"`
	GeneratedAt time.Time `json:"generated_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// ManifestService exports the deliveries of one day as a spreadsheet for couriers
type ManifestService struct {
	db    *gorm.DB
	store ManifestStore
	log   logrus.FieldLogger
	now   func() time.Time
}

// NewManifestService creates a manifest service. store may be nil when storage is disabled.
func NewManifestService(db *gorm.DB, store ManifestStore, log logrus.FieldLogger) *ManifestService {
	return &ManifestService{db: db, store: store, log: log, now: time.Now}
}

// Rows returns the open deliveries of a day, most urgent first
func (s *ManifestService) Rows(ctx context.Context, date time.Time) ([]ManifestRow, error) {
	db, cancel := dbWithTimeout(ctx, s.db)
	defer cancel()

	var schedules []models.DeliverySchedule
	err := db.Preload("Courier").
		Where("delivery_date = ? AND delivery_status <> ?", models.DateOnly(date), models.DeliveryCancelled).
		Order("id ASC").
		Find(&schedules).Error
	if err != nil {
		return nil, fmt.Errorf("load day schedules: %w", err)
	}

	ids := map[models.OrderType][]string{}
	for _, sc := range schedules {
		ids[sc.OrderType] = append(ids[sc.OrderType], sc.OrderID)
	}
	orders := map[OrderRef]OrderSnapshot{}
	for t, orderIDs := range ids {
		store := StoreFor(t)
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

	rows := make([]ManifestRow, 0, len(schedules))
	for _, sc := range schedules {
		row := ManifestRow{Schedule: sc}
		if snap, ok := orders[OrderRef{Type: sc.OrderType, ID: sc.OrderID}]; ok {
			row.Order = &snap
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		pi, pj := priorityRank[rows[i].Schedule.PriorityLevel], priorityRank[rows[j].Schedule.PriorityLevel]
		if pi != pj {
			return pi < pj
		}
		return rows[i].Schedule.DeliveryTimeSlot < rows[j].Schedule.DeliveryTimeSlot
	})
	return rows, nil
}

// BuildWorkbook renders manifest rows as an XLSX document
func BuildWorkbook(date time.Time, rows []ManifestRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", manifestSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	title := fmt.Sprintf("Delivery manifest %s", date.Format(models.DateLayout))
	if err := f.SetCellValue(manifestSheet, "A1", title); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(manifestSheet, "A3", &manifestHeader); err != nil {
		return nil, err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(manifestHeader))
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(manifestSheet, "A1", "A1", bold); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(manifestSheet, "A3", lastCol+"3", bold); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(manifestSheet, "B", lastCol, 18); err != nil {
		return nil, err
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+4)
		if err != nil {
			return nil, err
		}
		values := manifestValues(i+1, row)
		if err := f.SetSheetRow(manifestSheet, cell, &values); err != nil {
			return nil, fmt.Errorf("write manifest row %d: %w", i+1, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func manifestValues(n int, row ManifestRow) []interface{} {
	sc := row.Schedule
	courier := ""
	if sc.Courier != nil {
		courier = sc.Courier.Name
	}
	values := []interface{}{
		n, string(sc.OrderType), sc.OrderNumber, "", "", "",
		sc.DeliveryTimeSlot, sc.PriorityLevel, courier, string(sc.DeliveryStatus), sc.DeliveryNotes,
	}
	if row.Order != nil {
		values[3] = row.Order.CustomerName
		values[4] = row.Order.ContactPhone
		values[5] = row.Order.ShippingAddress
	}
	return values
}

// Generate builds the manifest of a day, uploads it and returns a download link
func (s *ManifestService) Generate(ctx context.Context, date time.Time) (*Manifest, error) {
	if s.store == nil {
		return nil, unavailable("MANIFEST_STORAGE_DISABLED", "Manifest storage is not configured")
	}
	date = models.DateOnly(date)

	rows, err := s.Rows(ctx, date)
	if err != nil {
		return nil, err
	}
	body, err := BuildWorkbook(date, rows)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	day := date.Format(models.DateLayout)
	key := fmt.Sprintf("manifests/%s/%s_%s.xlsx", day, now.Format("20060102T150405"), uuid.NewString()[:8])

	if err := s.store.Put(ctx, key, body, manifestContentType); err != nil {
		return nil, err
	}
	url, err := s.store.PresignedURL(ctx, key, ManifestURLTTL)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"date":       day,
		"key":        key,
		"deliveries": len(rows),
	}).Info("delivery manifest generated")

	return &Manifest{
		Date:        day,
		Key:         key,
		URL:         url,
		Deliveries:  len(rows),
		GeneratedAt: now,
		ExpiresAt:   now.Add(ManifestURLTTL),
	}, nil
}
