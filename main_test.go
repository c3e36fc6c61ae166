package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sevenfour/order-workflow-api/config"
	"github.com/sevenfour/order-workflow-api/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHealthCheck is a unit test for the healthCheck handler function
func TestHealthCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	healthCheck(c)

	assert.Equal(t, http.StatusOK, w.Code, "Expected status code 200")

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err, "Response should be valid JSON")

	assert.Equal(t, true, response["success"], "Expected success to be true")
	assert.Equal(t, "Order workflow API is running", response["message"], "Expected correct message")
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Len(t, response, 2, "Response should have exactly 2 fields")
}

func TestDatabaseStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	original := config.GetDB()
	t.Cleanup(func() { config.SetDB(original) })

	t.Run("not initialized", func(t *testing.T) {
		config.SetDB(nil)

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/database/status", nil)
		databaseStatus(c)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		var response map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "DATABASE_ERROR", response["error"].(map[string]interface{})["code"])
	})

	t.Run("connected", func(t *testing.T) {
		config.SetDB(testutil.SetupTestDB(t))

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/database/status", nil)
		databaseStatus(c)

		assert.Equal(t, http.StatusOK, w.Code)
		var response map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		data := response["data"].(map[string]interface{})
		assert.Equal(t, "sqlite", data["dialect"])
		assert.Contains(t, data, "open_connections")
	})

	t.Run("closed connection", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		sqlDB, err := db.DB()
		require.NoError(t, err)
		require.NoError(t, sqlDB.Close())
		config.SetDB(db)

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/database/status", nil)
		databaseStatus(c)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}
