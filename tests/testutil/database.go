package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sevenfour/order-workflow-api/models"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var seq atomic.Int64

// SetupTestDB opens a private in-memory SQLite database with the full schema.
// The pool is pinned to one connection so every query sees the same database.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get test database instance: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

func next() int64 {
	return seq.Add(1)
}

// CreateUser inserts a user with the given role
func CreateUser(t *testing.T, db *gorm.DB, role string) models.User {
	t.Helper()

	n := next()
	user := models.User{
		Auth0ID: fmt.Sprintf("auth0|%s%d", role, n),
		Name:    fmt.Sprintf("Test %s %d", role, n),
		Email:   fmt.Sprintf("%s%d@example.com", role, n),
		Role:    role,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	return user
}

// CreateOrder inserts a regular order owned by userID in the given status
func CreateOrder(t *testing.T, db *gorm.DB, userID uint, status string) models.Order {
	t.Helper()

	n := next()
	order := models.Order{
		OrderNumber:     fmt.Sprintf("ORD-TEST-%04d", n),
		UserID:          userID,
		Status:          status,
		TotalAmount:     decimal.RequireFromString("599.00"),
		ShippingAddress: "12 Rizal Street, Manila",
		ContactPhone:    "09171234567",
		CustomerName:    "Juan Dela Cruz",
		CustomerEmail:   "juan@example.com",
		CreatedAt:       time.Now().Add(time.Duration(n) * time.Second),
	}
	if err := db.Create(&order).Error; err != nil {
		t.Fatalf("Failed to create order: %v", err)
	}
	return order
}

// CreateCustomOrder inserts a custom order owned by userID
func CreateCustomOrder(t *testing.T, db *gorm.DB, userID uint, status, paymentStatus string) models.CustomOrder {
	t.Helper()

	n := next()
	order := models.CustomOrder{
		CustomOrderID:   fmt.Sprintf("CUSTOM-TEST-%04d", n%10000),
		UserID:          userID,
		ProductType:     "tshirt",
		ProductName:     "Custom Tee",
		Size:            "M",
		Color:           "black",
		Quantity:        1,
		EstimatedPrice:  decimal.RequireFromString("450.00"),
		Status:          status,
		PaymentStatus:   paymentStatus,
		CustomerName:    "Maria Clara",
		CustomerEmail:   "maria@example.com",
		CustomerPhone:   "09181234567",
		ShippingAddress: "34 Mabini Avenue, Quezon City",
		CreatedAt:       time.Now().Add(time.Duration(n) * time.Second),
	}
	if err := db.Create(&order).Error; err != nil {
		t.Fatalf("Failed to create custom order: %v", err)
	}
	return order
}

// CreateCourier inserts a courier in the given status
func CreateCourier(t *testing.T, db *gorm.DB, status string) models.Courier {
	t.Helper()

	n := next()
	courier := models.Courier{
		Name:        fmt.Sprintf("Courier %d", n),
		PhoneNumber: "09191234567",
		VehicleType: "motorcycle",
		Status:      status,
	}
	if err := db.Create(&courier).Error; err != nil {
		t.Fatalf("Failed to create courier: %v", err)
	}
	return courier
}

// SetCalendarDay inserts a calendar override for date
func SetCalendarDay(t *testing.T, db *gorm.DB, date time.Time, available bool, maxDeliveries int) models.DeliveryCalendarDay {
	t.Helper()

	day := models.DeliveryCalendarDay{
		CalendarDate:  models.DateOnly(date),
		IsAvailable:   available,
		MaxDeliveries: maxDeliveries,
	}
	if err := db.Create(&day).Error; err != nil {
		t.Fatalf("Failed to create calendar day: %v", err)
	}
	return day
}
