package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sevenfour/order-workflow-api/config"
	"github.com/sevenfour/order-workflow-api/middleware"
	"github.com/sevenfour/order-workflow-api/models"
	"github.com/sevenfour/order-workflow-api/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupScopedRouter(t *testing.T, enforce bool, scopes []string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.SetupTestDB(t)
	original := config.GetDB()
	originalConfig := config.GetConfig()
	config.SetDB(db)
	config.SetConfig(&config.Config{GoEnv: "test", Auth0EnforceScopes: enforce})
	t.Cleanup(func() {
		config.SetDB(original)
		config.SetConfig(originalConfig)
	})

	admin := testutil.CreateUser(t, db, models.RoleAdmin)

	router := gin.New()
	Register(router, func(c *gin.Context) {
		testutil.SetMockAuthContext(c, admin.Auth0ID, "https://test.auth0.com/", scopes)
		c.Next()
	})
	return router
}

func serve(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRegister_EnforcesScopes(t *testing.T) {
	router := setupScopedRouter(t, true, []string{middleware.ScopeReadDeliveries})
	courier := map[string]interface{}{"name": "Dan Rider", "phone_number": "09171234567"}

	w := serve(router, http.MethodGet, "/api/delivery-enhanced/orders", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(router, http.MethodGet, "/api/couriers/active", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(router, http.MethodPost, "/api/couriers", courier)
	require.Equal(t, http.StatusForbidden, w.Code)
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "INSUFFICIENT_SCOPE", response["error"].(map[string]interface{})["code"])

	w = serve(router, http.MethodDelete, "/api/couriers/1", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = serve(router, http.MethodPut, "/api/delivery-status/orders/1/status", map[string]interface{}{"delivery_status": "scheduled"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRegister_WriteScopeAllowsChanges(t *testing.T) {
	router := setupScopedRouter(t, true, []string{middleware.ScopeReadDeliveries, middleware.ScopeWriteDeliveries})

	w := serve(router, http.MethodPost, "/api/couriers", map[string]interface{}{"name": "Dan Rider", "phone_number": "09171234567"})
	assert.Equal(t, http.StatusCreated, w.Code)

	// Deactivation needs its own permission
	w = serve(router, http.MethodDelete, "/api/couriers/1", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRegister_ScopesOffByDefault(t *testing.T) {
	router := setupScopedRouter(t, false, nil)

	w := serve(router, http.MethodPost, "/api/couriers", map[string]interface{}{"name": "Dan Rider", "phone_number": "09171234567"})
	assert.Equal(t, http.StatusCreated, w.Code)
}
