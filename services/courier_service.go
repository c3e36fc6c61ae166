package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sevenfour/order-workflow-api/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// CourierService manages the couriers deliveries are assigned to
type CourierService struct {
	db  *gorm.DB
	log logrus.FieldLogger
}

// NewCourierService creates a courier service bound to db
func NewCourierService(db *gorm.DB, log logrus.FieldLogger) *CourierService {
	return &CourierService{db: db, log: log}
}

// CourierInput creates or updates a courier. Empty fields are left unchanged on update.
type CourierInput struct {
	Name        string
	PhoneNumber string
	VehicleType string
	Status      string
}

// List returns every courier ordered by name
func (s *CourierService) List(ctx context.Context) ([]models.Courier, error) {
	var couriers []models.Courier
	if err := s.db.WithContext(ctx).Order("name ASC, id ASC").Find(&couriers).Error; err != nil {
		return nil, fmt.Errorf("list couriers: %w", err)
	}
	return couriers, nil
}

// Active returns the couriers that can take new deliveries
func (s *CourierService) Active(ctx context.Context) ([]models.Courier, error) {
	var couriers []models.Courier
	err := s.db.WithContext(ctx).
		Where("status = ?", models.CourierActive).
		Order("name ASC, id ASC").
		Find(&couriers).Error
	if err != nil {
		return nil, fmt.Errorf("list active couriers: %w", err)
	}
	return couriers, nil
}

// Create adds an active courier
func (s *CourierService) Create(ctx context.Context, in CourierInput) (*models.Courier, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, validationError("name", "is required")
	}
	phone := strings.TrimSpace(in.PhoneNumber)
	if phone == "" {
		return nil, validationError("phone_number", "is required")
	}

	courier := models.Courier{
		Name:        name,
		PhoneNumber: phone,
		VehicleType: firstNonEmpty(in.VehicleType, "motorcycle"),
		Status:      models.CourierActive,
	}
	if in.Status != "" {
		if !validCourierStatus(in.Status) {
			return nil, validationError("status", "must be one of: active, inactive")
		}
		courier.Status = in.Status
	}

	if err := s.db.WithContext(ctx).Create(&courier).Error; err != nil {
		return nil, fmt.Errorf("create courier: %w", err)
	}

	s.log.WithFields(logrus.Fields{"courier_id": courier.ID, "name": courier.Name}).Info("courier created")
	return &courier, nil
}

// Update changes the given courier fields
func (s *CourierService) Update(ctx context.Context, id uint, in CourierInput) (*models.Courier, error) {
	if in.Status != "" && !validCourierStatus(in.Status) {
		return nil, validationError("status", "must be one of: active, inactive")
	}

	var courier models.Courier
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := loadCourier(lockIf(tx, true), id, &courier); err != nil {
			return err
		}
		if in.Status == models.CourierInactive && courier.Status != models.CourierInactive {
			if err := checkCourierIdle(tx, id); err != nil {
				return err
			}
		}

		updates := map[string]interface{}{}
		if v := strings.TrimSpace(in.Name); v != "" {
			updates["name"] = v
		}
		if v := strings.TrimSpace(in.PhoneNumber); v != "" {
			updates["phone_number"] = v
		}
		if v := strings.TrimSpace(in.VehicleType); v != "" {
			updates["vehicle_type"] = v
		}
		if in.Status != "" {
			updates["status"] = in.Status
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&courier).Updates(updates).Error; err != nil {
			return fmt.Errorf("update courier: %w", err)
		}
		return loadCourier(tx, id, &courier)
	})
	if err != nil {
		return nil, err
	}
	return &courier, nil
}

// Deactivate takes a courier out of rotation. Couriers with open deliveries stay active.
func (s *CourierService) Deactivate(ctx context.Context, id uint) (*models.Courier, error) {
	courier, err := s.Update(ctx, id, CourierInput{Status: models.CourierInactive})
	if err != nil {
		return nil, err
	}
	s.log.WithField("courier_id", id).Info("courier deactivated")
	return courier, nil
}

func loadCourier(db *gorm.DB, id uint, courier *models.Courier) error {
	if err := db.First(courier, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("COURIER_NOT_FOUND", "Courier not found")
		}
		return fmt.Errorf("load courier: %w", err)
	}
	return nil
}

func checkCourierIdle(tx *gorm.DB, id uint) error {
	var open int64
	err := tx.Model(&models.DeliverySchedule{}).
		Where("courier_id = ? AND delivery_status IN ?", id, []models.DeliveryStatus{
			models.DeliveryScheduled,
			models.DeliveryInTransit,
			models.DeliveryDelayed,
		}).
		Count(&open).Error
	if err != nil {
		return fmt.Errorf("count courier deliveries: %w", err)
	}
	if open > 0 {
		return conflict("COURIER_BUSY", fmt.Sprintf("Courier has %d open deliveries", open))
	}
	return nil
}

func validCourierStatus(status string) bool {
	return status == models.CourierActive || status == models.CourierInactive
}
