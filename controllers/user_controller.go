package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sevenfour/order-workflow-api/config"
	"github.com/sevenfour/order-workflow-api/middleware"
	"github.com/sevenfour/order-workflow-api/models"
	"github.com/sevenfour/order-workflow-api/services"
)

// UpdateUserRequest represents the request body for updating a user profile
type UpdateUserRequest struct {
	Name  string `json:"name" binding:"omitempty,max=255"`
	Email string `json:"email" binding:"omitempty,email"`
}

// NewUserInfoProvider builds the client used to read Auth0 profiles (replaced in tests)
var NewUserInfoProvider = func(cfg *config.Config) services.UserInfoProvider {
	return services.NewAuth0Service(cfg)
}

// CreateUser handles POST /api/users - creates a new user from Auth0 userinfo
func CreateUser(c *gin.Context) {
	auth0ID, err := middleware.GetUserID(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user ID from token", nil)
		return
	}

	accessToken, err := middleware.GetAccessToken(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "MISSING_TOKEN", "Access token not found", nil)
		return
	}

	userInfo, err := NewUserInfoProvider(config.GetConfig()).GetUserInfo(c.Request.Context(), accessToken)
	if err != nil {
		middleware.Logger(c).WithError(err).Error("fetch auth0 userinfo")
		respondError(c, http.StatusBadGateway, "AUTH0_ERROR", "Failed to fetch user information from Auth0", nil)
		return
	}

	if userInfo.Email == "" {
		respondError(c, http.StatusBadRequest, "MISSING_EMAIL", "Email not provided by Auth0", nil)
		return
	}
	if userInfo.Name == "" {
		respondError(c, http.StatusBadRequest, "MISSING_NAME", "Name not provided by Auth0", nil)
		return
	}

	// Role comes from the custom claim when the tenant sets one
	role := models.RoleCustomer
	if claims, err := middleware.GetClaims(c); err == nil {
		if customClaims, ok := claims.CustomClaims.(*middleware.CustomClaims); ok && customClaims.Role == models.RoleAdmin {
			role = models.RoleAdmin
		}
	}

	user := models.User{
		Auth0ID: auth0ID,
		Name:    userInfo.Name,
		Email:   userInfo.Email,
		Role:    role,
	}

	if err := config.GetDB().WithContext(c.Request.Context()).Create(&user).Error; err != nil {
		if services.IsDuplicateKey(err) {
			respondError(c, http.StatusConflict, "USER_EXISTS", "A user with this Auth0 ID or email already exists", nil)
			return
		}
		respondServiceError(c, err)
		return
	}

	middleware.Logger(c).WithField("user_id", user.ID).Info("user created")
	respondOK(c, http.StatusCreated, user)
}

// GetMyProfile handles GET /api/users/me - gets current user's profile
func GetMyProfile(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	respondOK(c, http.StatusOK, user)
}

// UpdateMyProfile handles PUT /api/users/me - updates current user's profile
func UpdateMyProfile(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	updates := make(map[string]interface{})
	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.Email != "" {
		updates["email"] = req.Email
	}
	if len(updates) == 0 {
		respondOK(c, http.StatusOK, user)
		return
	}

	db := config.GetDB().WithContext(c.Request.Context())
	if err := db.Model(&user).Updates(updates).Error; err != nil {
		if services.IsDuplicateKey(err) {
			respondError(c, http.StatusConflict, "EMAIL_EXISTS", "A user with this email already exists", nil)
			return
		}
		respondServiceError(c, err)
		return
	}

	if err := db.First(&user, user.ID).Error; err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusOK, user)
}
