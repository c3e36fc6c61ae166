package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/sevenfour/order-workflow-api/middleware"
	"github.com/sevenfour/order-workflow-api/models"
	"github.com/sevenfour/order-workflow-api/services"
)

var (
	translator    ut.Translator
	validatorOnce sync.Once
)

// RegisterValidators installs the custom binding tags and english messages on gin's validator
func RegisterValidators() {
	validatorOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}

		// Report json field names instead of Go field names
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})

		_ = v.RegisterValidation("delivery_status", func(fl validator.FieldLevel) bool {
			return models.DeliveryStatus(fl.Field().String()).Valid()
		})
		_ = v.RegisterValidation("order_type", func(fl validator.FieldLevel) bool {
			return models.OrderType(fl.Field().String()).Valid()
		})
		_ = v.RegisterValidation("calendar_date", func(fl validator.FieldLevel) bool {
			_, err := models.ParseDate(fl.Field().String())
			return err == nil
		})

		translator, _ = ut.New(en.New(), en.New()).GetTranslator("en")
		_ = en_translations.RegisterDefaultTranslations(v, translator)

		custom := map[string]string{
			"delivery_status": "{0} must be one of: scheduled, in_transit, delivered, delayed, cancelled",
			"order_type":      "{0} must be one of: regular, custom_order",
			"calendar_date":   "{0} must be a date in YYYY-MM-DD format",
		}
		for tag, text := range custom {
			text := text
			_ = v.RegisterTranslation(tag, translator,
				func(ut ut.Translator) error { return ut.Add(tag, text, true) },
				func(ut ut.Translator, fe validator.FieldError) string {
					msg, _ := ut.T(fe.Tag(), fe.Field())
					return msg
				},
			)
		}
	})
}

func respondOK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

func respondError(c *gin.Context, status int, code, message string, details interface{}) {
	body := gin.H{
		"code":    code,
		"message": message,
	}
	if details != nil {
		body["details"] = details
	}
	c.JSON(status, gin.H{
		"success": false,
		"error":   body,
	})
}

// respondBindError reports a request body or query that failed to bind
func respondBindError(c *gin.Context, err error) {
	respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request data", bindErrorDetails(err))
}

func bindErrorDetails(err error) interface{} {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			if translator != nil {
				details[fe.Field()] = fe.Translate(translator)
			} else {
				details[fe.Field()] = fe.Error()
			}
		}
		return details
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return map[string]string{typeErr.Field: "has the wrong type, expected " + typeErr.Type.String()}
	}
	return err.Error()
}

var kindStatus = map[services.ErrorKind]int{
	services.KindValidation:  http.StatusBadRequest,
	services.KindNotFound:    http.StatusNotFound,
	services.KindConflict:    http.StatusConflict,
	services.KindForbidden:   http.StatusForbidden,
	services.KindUnavailable: http.StatusServiceUnavailable,
}

// respondServiceError maps a service error onto the error envelope.
// Unexpected errors are logged with the request id and never echoed to the client.
func respondServiceError(c *gin.Context, err error) {
	if se, ok := services.AsError(err); ok {
		status, known := kindStatus[se.Kind]
		if known {
			var details interface{}
			if len(se.Fields) > 0 {
				details = se.Fields
			}
			respondError(c, status, se.Code, se.Message, details)
			return
		}
	}

	requestID := middleware.GetRequestID(c)
	middleware.Logger(c).WithError(err).Error("request failed")
	c.JSON(http.StatusInternalServerError, gin.H{
		"success": false,
		"error": gin.H{
			"code":       "INTERNAL_ERROR",
			"message":    "An unexpected error occurred",
			"request_id": requestID,
		},
	})
}

// currentUser returns the authenticated user, answering 401 itself when absent
func currentUser(c *gin.Context) (models.User, bool) {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user information", nil)
		return models.User{}, false
	}
	return user, true
}
