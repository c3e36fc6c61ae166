package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sevenfour/order-workflow-api/config"
	"github.com/sevenfour/order-workflow-api/models"
	"github.com/sevenfour/order-workflow-api/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiClient struct {
	t      *testing.T
	server *httptest.Server
}

func newAPIClient(t *testing.T, auth0ID string) *apiClient {
	server := httptest.NewServer(newTestRouter(t, auth0ID))
	t.Cleanup(server.Close)
	return &apiClient{t: t, server: server}
}

func (a *apiClient) do(method, path string, body interface{}) (int, map[string]interface{}) {
	a.t.Helper()

	var payload bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&payload).Encode(body))
	}
	req, err := http.NewRequest(method, a.server.URL+path, &payload)
	require.NoError(a.t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.server.Client().Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	require.NoError(a.t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp.StatusCode, decoded
}

func dataOf(response map[string]interface{}) map[string]interface{} {
	return response["data"].(map[string]interface{})
}

// TestDeliveryLifecycleAcceptance walks a regular order from checkout to doorstep
func TestDeliveryLifecycleAcceptance(t *testing.T) {
	db := testutil.SetupTestDB(t)
	config.SetDB(db)
	customer := testutil.CreateUser(t, db, models.RoleCustomer)
	admin := testutil.CreateUser(t, db, models.RoleAdmin)
	courier := testutil.CreateCourier(t, db, models.CourierActive)

	shopper := newAPIClient(t, customer.Auth0ID)
	backOffice := newAPIClient(t, admin.Auth0ID)

	status, body := shopper.do(http.MethodPost, "/api/orders", map[string]interface{}{
		"items": []map[string]interface{}{
			{"product_id": 7, "product_name": "Linen Shirt", "product_price": "899.00", "quantity": 1},
		},
		"shipping_address": "88 Katipunan Avenue, Quezon City",
	})
	require.Equal(t, http.StatusCreated, status, body)
	orderID := int(dataOf(body)["id"].(float64))

	// Unpaid orders cannot be booked
	status, body = backOffice.do(http.MethodPost, "/api/delivery-enhanced/schedule", map[string]interface{}{
		"order_id": fmt.Sprint(orderID), "delivery_date": "2025-08-04",
	})
	require.Equal(t, http.StatusConflict, status, body)

	status, _ = backOffice.do(http.MethodPut, fmt.Sprintf("/api/orders/%d/confirm", orderID), nil)
	require.Equal(t, http.StatusOK, status)

	status, body = backOffice.do(http.MethodPost, "/api/delivery-enhanced/schedule", map[string]interface{}{
		"order_id":           fmt.Sprint(orderID),
		"delivery_date":      "2025-08-04",
		"delivery_time_slot": "13:00-17:00",
		"courier_id":         courier.ID,
	})
	require.Equal(t, http.StatusCreated, status, body)

	for _, next := range []string{"in_transit", "delayed", "in_transit", "delivered"} {
		status, body = backOffice.do(http.MethodPut, fmt.Sprintf("/api/delivery-status/orders/%d/status", orderID),
			map[string]interface{}{"delivery_status": next})
		require.Equal(t, http.StatusOK, status, body)
	}

	status, body = shopper.do(http.MethodGet, fmt.Sprintf("/api/delivery-enhanced/orders/regular/%d", orderID), nil)
	require.Equal(t, http.StatusOK, status, body)
	view := dataOf(body)
	assert.Equal(t, "delivered", view["delivery_status"])
	assert.Equal(t, models.OrderStatusCompleted, view["order_status"])
	assert.Equal(t, "2025-08-04", view["scheduled_delivery_date"])

	status, body = backOffice.do(http.MethodGet, fmt.Sprintf("/api/delivery-enhanced/orders/regular/%d/history", orderID), nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Len(t, body["data"], 5)

	// A delivered order can no longer be cancelled
	status, body = shopper.do(http.MethodPost, fmt.Sprintf("/api/orders/%d/cancellation-requests", orderID),
		map[string]interface{}{"reason": "Changed my mind about the color"})
	assert.Equal(t, http.StatusConflict, status, body)
}

// TestCustomOrderCancellationAcceptance covers the custom order review and cancellation flow
func TestCustomOrderCancellationAcceptance(t *testing.T) {
	db := testutil.SetupTestDB(t)
	config.SetDB(db)
	customer := testutil.CreateUser(t, db, models.RoleCustomer)
	admin := testutil.CreateUser(t, db, models.RoleAdmin)

	shopper := newAPIClient(t, customer.Auth0ID)
	backOffice := newAPIClient(t, admin.Auth0ID)

	status, body := shopper.do(http.MethodPost, "/api/custom-orders", map[string]interface{}{
		"product_type":     "jacket",
		"size":             "XL",
		"color":            "olive",
		"quantity":         1,
		"estimated_price":  "2100.00",
		"shipping_address": "5 Session Road, Baguio",
	})
	require.Equal(t, http.StatusCreated, status, body)
	customID := dataOf(body)["custom_order_id"].(string)

	status, _ = backOffice.do(http.MethodPut, "/api/custom-orders/"+customID+"/status", map[string]interface{}{"status": "approved"})
	require.Equal(t, http.StatusOK, status)
	status, _ = backOffice.do(http.MethodPut, "/api/custom-orders/"+customID+"/payment", map[string]interface{}{"payment_status": "verified"})
	require.Equal(t, http.StatusOK, status)

	status, body = backOffice.do(http.MethodPut, "/api/delivery-status/orders/"+customID+"/status", map[string]interface{}{
		"delivery_status": "scheduled",
		"order_type":      "custom_order",
		"delivery_date":   "2025-08-11",
	})
	require.Equal(t, http.StatusOK, status, body)

	status, body = shopper.do(http.MethodPost, "/api/custom-orders/cancellation-requests", map[string]interface{}{
		"customOrderId": customID,
		"reason":        "The event was moved to next year",
	})
	require.Equal(t, http.StatusCreated, status, body)
	requestID := int(dataOf(body)["id"].(float64))

	status, body = backOffice.do(http.MethodGet, "/api/custom-orders/cancellation-requests?status=pending", nil)
	require.Equal(t, http.StatusOK, status, body)
	require.Len(t, body["data"], 1)

	status, body = backOffice.do(http.MethodPut, fmt.Sprintf("/api/custom-orders/cancellation-requests/%d", requestID),
		map[string]interface{}{"action": "approve", "admin_notes": "Deposit refunded"})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, true, dataOf(body)["order_cancelled"])

	status, body = shopper.do(http.MethodGet, "/api/delivery-enhanced/orders/custom_order/"+customID, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "cancelled", dataOf(body)["delivery_status"])
	assert.Equal(t, models.CustomStatusCancelled, dataOf(body)["order_status"])

	status, body = shopper.do(http.MethodGet, "/api/cancellation-requests/me", nil)
	require.Equal(t, http.StatusOK, status, body)
	mine := body["data"].([]interface{})
	require.Len(t, mine, 1)
	assert.Equal(t, models.RequestApproved, mine[0].(map[string]interface{})["status"])
}

// TestHealthEndpointResponseTime tests that the endpoint responds quickly
func TestHealthEndpointResponseTime(t *testing.T) {
	client := newAPIClient(t, "")

	start := time.Now()
	status, body := client.do(http.MethodGet, "/health", nil)
	duration := time.Since(start)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.Less(t, duration, time.Second, "Health endpoint should respond in under a second")
}
