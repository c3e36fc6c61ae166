package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sevenfour/order-workflow-api/config"
	"github.com/sevenfour/order-workflow-api/middleware"
	"github.com/sevenfour/order-workflow-api/models"
	"github.com/sevenfour/order-workflow-api/routes"
	"github.com/sevenfour/order-workflow-api/services"
	"github.com/sevenfour/order-workflow-api/tests/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// DeliveryIntegrationTestSuite drives the delivery workflow through the registered routes
type DeliveryIntegrationTestSuite struct {
	suite.Suite
	router *gin.Engine
	db     *gorm.DB
	store  *services.MockManifestStore

	mu    sync.Mutex
	actor string

	customer models.User
	admin    models.User
}

// SetupSuite runs once before all tests
func (suite *DeliveryIntegrationTestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
	testutil.RequireTestEnvironment(suite.T())
}

// SetupTest gives every test a fresh database and router
func (suite *DeliveryIntegrationTestSuite) SetupTest() {
	suite.db = testutil.SetupTestDB(suite.T())
	config.SetDB(suite.db)

	suite.store = services.NewMockManifestStore()
	suite.store.SetAsMockForTesting()

	suite.customer = testutil.CreateUser(suite.T(), suite.db, models.RoleCustomer)
	suite.admin = testutil.CreateUser(suite.T(), suite.db, models.RoleAdmin)

	suite.router = gin.New()
	suite.router.Use(middleware.RequestID())
	routes.Register(suite.router, suite.switchableAuth())
}

// TearDownTest runs after each test
func (suite *DeliveryIntegrationTestSuite) TearDownTest() {
	services.SetManifestStore(nil)
}

// switchableAuth authenticates every request as the current suite actor
func (suite *DeliveryIntegrationTestSuite) switchableAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		suite.mu.Lock()
		actor := suite.actor
		suite.mu.Unlock()
		testutil.MockAuthMiddleware(actor)(c)
	}
}

func (suite *DeliveryIntegrationTestSuite) as(user models.User) {
	suite.mu.Lock()
	suite.actor = user.Auth0ID
	suite.mu.Unlock()
}

func (suite *DeliveryIntegrationTestSuite) request(method, path string, body interface{}) (int, map[string]interface{}) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		suite.Require().NoError(err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	var response map[string]interface{}
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response), w.Body.String())
	return w.Code, response
}

func data(response map[string]interface{}) map[string]interface{} {
	return response["data"].(map[string]interface{})
}

func errCode(response map[string]interface{}) string {
	return response["error"].(map[string]interface{})["code"].(string)
}

// TestBothOrderKindsInOneList lists regular and custom deliveries side by side
func (suite *DeliveryIntegrationTestSuite) TestBothOrderKindsInOneList() {
	regular := testutil.CreateOrder(suite.T(), suite.db, suite.customer.ID, models.OrderStatusConfirmed)
	custom := testutil.CreateCustomOrder(suite.T(), suite.db, suite.customer.ID, models.CustomStatusApproved, models.PaymentVerified)

	suite.as(suite.admin)
	status, body := suite.request(http.MethodPut, fmt.Sprintf("/api/delivery-status/orders/%d/status", regular.ID),
		map[string]interface{}{"delivery_status": "in_transit"})
	suite.Require().Equal(http.StatusOK, status, body)

	status, body = suite.request(http.MethodPut, "/api/delivery-status/orders/"+custom.CustomOrderID+"/status",
		map[string]interface{}{"delivery_status": "scheduled", "order_type": "custom_order"})
	suite.Require().Equal(http.StatusOK, status, body)

	status, body = suite.request(http.MethodGet, "/api/delivery-enhanced/orders", nil)
	suite.Require().Equal(http.StatusOK, status, body)

	byType := map[string]string{}
	for _, raw := range data(body)["orders"].([]interface{}) {
		view := raw.(map[string]interface{})
		byType[view["order_type"].(string)] = view["delivery_status"].(string)
	}
	suite.Equal("in_transit", byType["regular"])
	suite.Equal("scheduled", byType["custom_order"])

	status, body = suite.request(http.MethodGet, "/api/delivery-enhanced/orders?status=in_transit", nil)
	suite.Require().Equal(http.StatusOK, status, body)
	suite.Len(data(body)["orders"], 1)
}

// TestConcurrentCancellationRequests allows a single pending request per order
func (suite *DeliveryIntegrationTestSuite) TestConcurrentCancellationRequests() {
	order := testutil.CreateOrder(suite.T(), suite.db, suite.customer.ID, models.OrderStatusConfirmed)
	suite.as(suite.customer)

	const attempts = 6
	codes := make(chan int, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			payload, _ := json.Marshal(map[string]string{"reason": "Need to change the delivery address"})
			req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/orders/%d/cancellation-requests", order.ID), bytes.NewReader(payload))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			suite.router.ServeHTTP(w, req)
			codes <- w.Code
		}()
	}
	wg.Wait()
	close(codes)

	created, conflicts := 0, 0
	for code := range codes {
		switch code {
		case http.StatusCreated:
			created++
		case http.StatusConflict:
			conflicts++
		}
	}
	suite.Equal(1, created)
	suite.Equal(attempts-1, conflicts)

	var pending int64
	suite.Require().NoError(suite.db.Model(&models.CancellationRequest{}).
		Where("order_id = ? AND status = ?", fmt.Sprint(order.ID), models.RequestPending).Count(&pending).Error)
	suite.Equal(int64(1), pending)
}

// TestDeniedRequestAllowsANewOne lets a customer file again once a request is resolved
func (suite *DeliveryIntegrationTestSuite) TestDeniedRequestAllowsANewOne() {
	order := testutil.CreateOrder(suite.T(), suite.db, suite.customer.ID, models.OrderStatusPending)
	path := fmt.Sprintf("/api/orders/%d/cancellation-requests", order.ID)
	reason := map[string]interface{}{"reason": "Ordered two of the same shirt"}

	suite.as(suite.customer)
	status, body := suite.request(http.MethodPost, path, reason)
	suite.Require().Equal(http.StatusCreated, status, body)
	requestID := int(data(body)["id"].(float64))

	suite.as(suite.admin)
	status, body = suite.request(http.MethodPut, fmt.Sprintf("/api/cancellation-requests/%d", requestID),
		map[string]interface{}{"action": "reject", "admin_notes": "Already packed"})
	suite.Require().Equal(http.StatusOK, status, body)
	suite.Equal(models.RequestDenied, data(body)["request"].(map[string]interface{})["status"])
	suite.Equal(false, data(body)["order_cancelled"])

	status, body = suite.request(http.MethodPut, fmt.Sprintf("/api/cancellation-requests/%d", requestID),
		map[string]interface{}{"action": "approve"})
	suite.Equal(http.StatusConflict, status)
	suite.Equal("ALREADY_PROCESSED", errCode(body))

	suite.as(suite.customer)
	status, body = suite.request(http.MethodPost, path, reason)
	suite.Equal(http.StatusCreated, status, body)
}

// TestCalendarAndManifest books a day up to capacity and exports it
func (suite *DeliveryIntegrationTestSuite) TestCalendarAndManifest() {
	first := testutil.CreateOrder(suite.T(), suite.db, suite.customer.ID, models.OrderStatusConfirmed)
	second := testutil.CreateCustomOrder(suite.T(), suite.db, suite.customer.ID, models.CustomStatusApproved, models.PaymentVerified)
	third := testutil.CreateOrder(suite.T(), suite.db, suite.customer.ID, models.OrderStatusConfirmed)
	courier := testutil.CreateCourier(suite.T(), suite.db, models.CourierActive)

	suite.as(suite.admin)
	status, body := suite.request(http.MethodPut, "/api/delivery-enhanced/calendar/2025-09-01", map[string]interface{}{"max_deliveries": 2})
	suite.Require().Equal(http.StatusOK, status, body)

	bookings := []map[string]interface{}{
		{"order_id": fmt.Sprint(first.ID), "delivery_date": "2025-09-01", "courier_id": courier.ID},
		{"order_id": second.CustomOrderID, "order_type": "custom_order", "delivery_date": "2025-09-01", "priority_level": "urgent"},
	}
	for _, booking := range bookings {
		status, body = suite.request(http.MethodPost, "/api/delivery-enhanced/schedule", booking)
		suite.Require().Equal(http.StatusCreated, status, body)
	}

	status, body = suite.request(http.MethodPost, "/api/delivery-enhanced/schedule",
		map[string]interface{}{"order_id": fmt.Sprint(third.ID), "delivery_date": "2025-09-01"})
	suite.Equal(http.StatusConflict, status)
	suite.Equal("DATE_UNAVAILABLE", errCode(body))

	status, body = suite.request(http.MethodGet, "/api/delivery-enhanced/calendar?year=2025&month=9", nil)
	suite.Require().Equal(http.StatusOK, status, body)
	summary := data(body)["summary"].(map[string]interface{})
	suite.Equal(float64(2), summary["total_deliveries"])
	suite.Equal(float64(1), summary["fully_booked_days"])
	suite.Equal("2025-09-01", summary["busiest_date"])

	status, body = suite.request(http.MethodPost, "/api/delivery-enhanced/manifests/2025-09-01", nil)
	suite.Require().Equal(http.StatusCreated, status, body)
	suite.Equal(float64(2), data(body)["deliveries"])

	key := data(body)["key"].(string)
	content, ok := suite.store.Objects()[key]
	suite.Require().True(ok, "manifest %s was not uploaded", key)

	workbook, err := excelize.OpenReader(bytes.NewReader(content))
	suite.Require().NoError(err)
	defer workbook.Close()
	rows, err := workbook.GetRows("Manifest")
	suite.Require().NoError(err)
	suite.GreaterOrEqual(len(rows), 3)
}

// TestDeliveredCompletesOrder walks a delivery to the door and checks the order row
func (suite *DeliveryIntegrationTestSuite) TestDeliveredCompletesOrder() {
	order := testutil.CreateOrder(suite.T(), suite.db, suite.customer.ID, models.OrderStatusConfirmed)
	suite.as(suite.admin)

	for _, next := range []string{"scheduled", "in_transit", "delivered"} {
		status, body := suite.request(http.MethodPut, fmt.Sprintf("/api/delivery-status/orders/%d/status", order.ID),
			map[string]interface{}{"delivery_status": next})
		suite.Require().Equal(http.StatusOK, status, body)
	}

	var stored models.Order
	suite.Require().NoError(suite.db.First(&stored, order.ID).Error)
	suite.Equal(models.OrderStatusCompleted, stored.Status)
}

// TestScheduledOrderShowsInReadModel schedules regular order 10 and reads it back
func (suite *DeliveryIntegrationTestSuite) TestScheduledOrderShowsInReadModel() {
	order := models.Order{
		ID:              10,
		OrderNumber:     "ORD0000000010",
		UserID:          suite.customer.ID,
		Status:          models.OrderStatusConfirmed,
		TotalAmount:     decimal.RequireFromString("1200.00"),
		ShippingAddress: "7 Bonifacio Street, Cebu City",
		CustomerName:    "Jose Rizal",
		CustomerEmail:   "jose@example.com",
	}
	suite.Require().NoError(suite.db.Create(&order).Error)

	suite.as(suite.admin)
	status, body := suite.request(http.MethodPut, "/api/delivery-status/orders/10/status", map[string]interface{}{
		"delivery_status": "scheduled",
		"order_type":      "regular",
		"delivery_date":   "2025-07-08",
	})
	suite.Require().Equal(http.StatusOK, status, body)

	status, body = suite.request(http.MethodGet, "/api/delivery-enhanced/orders/regular/10", nil)
	suite.Require().Equal(http.StatusOK, status, body)
	suite.Equal("scheduled", data(body)["delivery_status"])
	suite.Equal("2025-07-08", data(body)["scheduled_delivery_date"])

	var stored models.Order
	suite.Require().NoError(suite.db.First(&stored, 10).Error)
	suite.Require().NotNil(stored.DeliveryStatus)
	suite.Equal(models.DeliveryScheduled, *stored.DeliveryStatus)
}

// TestCustomOrderCancellationQueue files one request for a custom order and rejects a second
func (suite *DeliveryIntegrationTestSuite) TestCustomOrderCancellationQueue() {
	custom := testutil.CreateCustomOrder(suite.T(), suite.db, suite.customer.ID, models.CustomStatusPending, models.PaymentPending)
	suite.Require().NoError(suite.db.Model(&custom).Update("custom_order_id", "CUSTOM-AAAA-0001").Error)

	submission := map[string]interface{}{"customOrderId": "CUSTOM-AAAA-0001", "reason": "changed mind"}

	suite.as(suite.customer)
	status, body := suite.request(http.MethodPost, "/api/custom-orders/cancellation-requests", submission)
	suite.Require().Equal(http.StatusCreated, status, body)

	suite.as(suite.admin)
	status, body = suite.request(http.MethodGet, "/api/custom-orders/cancellation-requests?status=pending", nil)
	suite.Require().Equal(http.StatusOK, status, body)
	pending := data(body)["requests"].([]interface{})
	suite.Require().Len(pending, 1)
	entry := pending[0].(map[string]interface{})
	suite.Equal("CUSTOM-AAAA-0001", entry["order_id"])
	suite.Equal(models.RequestPending, entry["status"])
	suite.Equal(models.RequestTypeCancellation, entry["request_type"])
	suite.Equal(float64(1), data(body)["pagination"].(map[string]interface{})["total_rows"])

	suite.as(suite.customer)
	status, body = suite.request(http.MethodPost, "/api/custom-orders/cancellation-requests", submission)
	suite.Equal(http.StatusConflict, status)
	suite.Equal("DUPLICATE_REQUEST", errCode(body))
}

// TestRefundAfterDelivery refunds a delivered order once a cancellation is no longer possible
func (suite *DeliveryIntegrationTestSuite) TestRefundAfterDelivery() {
	custom := testutil.CreateCustomOrder(suite.T(), suite.db, suite.customer.ID, models.CustomStatusApproved, models.PaymentVerified)
	reason := map[string]interface{}{"reason": "Product was damaged during delivery"}

	suite.as(suite.admin)
	for _, next := range []string{"scheduled", "in_transit", "delivered"} {
		status, body := suite.request(http.MethodPut, "/api/delivery-status/orders/"+custom.CustomOrderID+"/status",
			map[string]interface{}{"delivery_status": next, "order_type": "custom_order"})
		suite.Require().Equal(http.StatusOK, status, body)
	}

	suite.as(suite.customer)
	status, body := suite.request(http.MethodPost, "/api/custom-orders/cancellation-requests",
		map[string]interface{}{"customOrderId": custom.CustomOrderID, "reason": reason["reason"]})
	suite.Equal(http.StatusConflict, status)
	suite.Equal("ORDER_NOT_CANCELLABLE", errCode(body))

	status, body = suite.request(http.MethodPost, "/api/orders/refund-request",
		map[string]interface{}{"order_id": nil, "custom_order_id": custom.CustomOrderID, "reason": reason["reason"]})
	suite.Require().Equal(http.StatusCreated, status, body)
	requestID := data(body)["id"]

	suite.as(suite.admin)
	status, body = suite.request(http.MethodGet, "/api/cancellation-requests?request_type=refund&status=pending", nil)
	suite.Require().Equal(http.StatusOK, status, body)
	suite.Require().Len(data(body)["requests"], 1)

	status, body = suite.request(http.MethodPut, fmt.Sprintf("/api/cancellation-requests/%v", requestID),
		map[string]interface{}{"action": "approve", "admin_notes": "Refund sent to the original payment method"})
	suite.Require().Equal(http.StatusOK, status, body)
	suite.Equal(true, data(body)["order_refunded"])
	suite.Equal(false, data(body)["order_cancelled"])

	var stored models.CustomOrder
	suite.Require().NoError(suite.db.First(&stored, custom.ID).Error)
	suite.Equal(models.PaymentRefunded, stored.PaymentStatus)
	suite.Equal(models.CustomStatusCompleted, stored.Status)
}

func TestDeliveryIntegrationTestSuite(t *testing.T) {
	suite.Run(t, new(DeliveryIntegrationTestSuite))
}
