package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/auth0/go-jwt-middleware/v2"
	"github.com/auth0/go-jwt-middleware/v2/jwks"
	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/sevenfour/order-workflow-api/config"
	"github.com/sevenfour/order-workflow-api/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Gin context keys set by the auth middleware
const (
	ContextUserID      = "user_id"
	ContextClaims      = "validated_claims"
	ContextAccessToken = "access_token"
	ContextCurrentUser = "current_user"
)

// API permissions granted through the Auth0 scope claim
const (
	ScopeReadDeliveries   = "read:deliveries"
	ScopeWriteDeliveries  = "write:deliveries"
	ScopeDeleteDeliveries = "delete:deliveries"
)

// CustomClaims contains custom data we want from the token.
type CustomClaims struct {
	Scope string `json:"scope"`
	Role  string `json:"role"`
}

// Validate satisfies validator.CustomClaims; no extra checks are needed.
func (c CustomClaims) Validate(ctx context.Context) error {
	return nil
}

// HasScope checks whether our claims have a specific scope.
func (c CustomClaims) HasScope(expectedScope string) bool {
	result := strings.Split(c.Scope, " ")
	for i := range result {
		if result[i] == expectedScope {
			return true
		}
	}

	return false
}

// EnsureValidToken is a middleware that will check the validity of our JWT.
func EnsureValidToken(cfg *config.Config, log logrus.FieldLogger) gin.HandlerFunc {
	issuerURL, err := url.Parse("https://" + cfg.Auth0Domain + "/")
	if err != nil {
		log.WithError(err).Fatal("Failed to parse the issuer url")
	}

	provider := jwks.NewCachingProvider(issuerURL, 5*time.Minute)

	jwtValidator, err := validator.New(
		provider.KeyFunc,
		validator.RS256,
		issuerURL.String(),
		[]string{cfg.Auth0Audience},
		validator.WithCustomClaims(
			func() validator.CustomClaims {
				return &CustomClaims{}
			},
		),
		validator.WithAllowedClockSkew(time.Minute),
	)
	if err != nil {
		log.WithError(err).Fatal("Failed to set up the jwt validator")
	}

	errorHandler := func(w http.ResponseWriter, r *http.Request, err error) {
		log.WithError(err).WithField("path", r.URL.Path).Warn("Encountered error while validating JWT")

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		if _, writeErr := w.Write([]byte(`{"success":false,"error":{"code":"INVALID_TOKEN","message":"Failed to validate JWT."}}`)); writeErr != nil {
			log.WithError(writeErr).Error("Failed to write error response")
		}
	}

	middleware := jwtmiddleware.New(
		jwtValidator.ValidateToken,
		jwtmiddleware.WithErrorHandler(errorHandler),
	)

	return func(c *gin.Context) {
		var handler http.HandlerFunc = func(w http.ResponseWriter, r *http.Request) {
			token := r.Context().Value(jwtmiddleware.ContextKey{}).(*validator.ValidatedClaims)

			c.Set(ContextUserID, token.RegisteredClaims.Subject)
			c.Set(ContextClaims, token)
			if raw, err := jwtmiddleware.AuthHeaderTokenExtractor(r); err == nil {
				c.Set(ContextAccessToken, raw)
			}

			c.Next()
		}

		middleware.CheckJWT(handler).ServeHTTP(c.Writer, c.Request)
		if !c.IsAborted() && c.Writer.Status() == http.StatusUnauthorized {
			c.Abort()
		}
	}
}

// GetUserID extracts the user ID from the Gin context
func GetUserID(c *gin.Context) (string, error) {
	userID, exists := c.Get(ContextUserID)
	if !exists {
		return "", &AuthError{Code: "MISSING_USER_ID", Message: "User ID not found in context"}
	}

	userIDStr, ok := userID.(string)
	if !ok {
		return "", &AuthError{Code: "INVALID_USER_ID", Message: "User ID is not a string"}
	}

	return userIDStr, nil
}

// GetAccessToken extracts the raw bearer token from the Gin context
func GetAccessToken(c *gin.Context) (string, error) {
	token, exists := c.Get(ContextAccessToken)
	if !exists {
		return "", &AuthError{Code: "MISSING_TOKEN", Message: "Access token not found in context"}
	}

	tokenStr, ok := token.(string)
	if !ok || tokenStr == "" {
		return "", &AuthError{Code: "INVALID_TOKEN", Message: "Access token is not a string"}
	}

	return tokenStr, nil
}

// GetClaims extracts the validated JWT claims from the Gin context
func GetClaims(c *gin.Context) (*validator.ValidatedClaims, error) {
	claims, exists := c.Get(ContextClaims)
	if !exists {
		return nil, &AuthError{Code: "MISSING_CLAIMS", Message: "Claims not found in context"}
	}

	validatedClaims, ok := claims.(*validator.ValidatedClaims)
	if !ok {
		return nil, &AuthError{Code: "INVALID_CLAIMS", Message: "Claims are not in the expected format"}
	}

	return validatedClaims, nil
}

// RequireScope is a middleware that checks if the token has a specific scope
func RequireScope(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := GetClaims(c)
		if err != nil {
			abortWithError(c, http.StatusUnauthorized, "MISSING_CLAIMS", "Could not retrieve token claims")
			return
		}

		customClaims, ok := claims.CustomClaims.(*CustomClaims)
		if !ok || !customClaims.HasScope(scope) {
			abortWithError(c, http.StatusForbidden, "INSUFFICIENT_SCOPE", "Insufficient permissions to access this resource")
			return
		}

		c.Next()
	}
}

// LoadCurrentUser resolves the authenticated subject to its users row.
// Routes behind it can read the user with CurrentUser.
func LoadCurrentUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth0ID, err := GetUserID(c)
		if err != nil {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user information")
			return
		}

		var user models.User
		err = config.GetDB().WithContext(c.Request.Context()).Where("auth0_id = ?", auth0ID).First(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			abortWithError(c, http.StatusNotFound, "USER_NOT_FOUND", "User profile not found. Please create a profile first.")
			return
		}
		if err != nil {
			Logger(c).WithError(err).Error("load current user")
			abortWithError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred")
			return
		}

		c.Set(ContextCurrentUser, user)
		c.Next()
	}
}

// CurrentUser returns the user stored by LoadCurrentUser
func CurrentUser(c *gin.Context) (models.User, error) {
	value, exists := c.Get(ContextCurrentUser)
	if !exists {
		return models.User{}, &AuthError{Code: "MISSING_USER", Message: "Current user not found in context"}
	}
	user, ok := value.(models.User)
	if !ok {
		return models.User{}, &AuthError{Code: "INVALID_USER", Message: "Current user is not in the expected format"}
	}
	return user, nil
}

// RequireRole only lets users with the given role through. It must run after LoadCurrentUser.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := CurrentUser(c)
		if err != nil {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user information")
			return
		}
		if user.Role != role {
			abortWithError(c, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions to access this resource")
			return
		}
		c.Next()
	}
}

func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// AuthError represents an authentication error
type AuthError struct {
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}
