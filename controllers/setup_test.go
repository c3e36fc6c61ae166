package controllers

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/sevenfour/order-workflow-api/config"
	"github.com/sevenfour/order-workflow-api/middleware"
	"github.com/sevenfour/order-workflow-api/tests/testutil"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db := testutil.SetupTestDB(t)
	config.SetDB(db)
	return db
}

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	RegisterValidators()
	router := gin.New()
	router.Use(middleware.RequestID())
	return router
}

// mockAuthMiddleware simulates the Auth0 JWT middleware for testing
// It sets up the context exactly as the real EnsureValidToken middleware does
func mockAuthMiddleware(auth0ID, role, accessToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextUserID, auth0ID)
		c.Set(middleware.ContextAccessToken, accessToken)
		c.Set(middleware.ContextClaims, &validator.ValidatedClaims{
			RegisteredClaims: validator.RegisteredClaims{Subject: auth0ID},
			CustomClaims:     &middleware.CustomClaims{Role: role},
		})
		c.Next()
	}
}

// authedGroup mounts a group that runs as auth0ID and loads the users row
func authedGroup(router *gin.Engine, auth0ID string) *gin.RouterGroup {
	return router.Group("/api", mockAuthMiddleware(auth0ID, "", "mock-token"), middleware.LoadCurrentUser())
}

func performRequest(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response), "body: %s", w.Body.String())
	return response
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	response := decodeResponse(t, w)
	require.Equal(t, false, response["success"], "body: %s", w.Body.String())
	return response["error"].(map[string]interface{})["code"].(string)
}

func responseData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	response := decodeResponse(t, w)
	require.Equal(t, true, response["success"], "body: %s", w.Body.String())
	return response["data"].(map[string]interface{})
}

func assertStatus(t *testing.T, w *httptest.ResponseRecorder, status int) {
	t.Helper()
	require.Equal(t, status, w.Code, "Response body: %s", w.Body.String())
}
