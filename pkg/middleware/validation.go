package middleware

import (
	"errors"
	"net/http"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	apperrors "github.com/wms-platform/reconciliation-service/pkg/errors"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

var (
	// Garment sizes (S, XL, 2XL), numeric (32, 10-12) and slash forms (32/34).
	sizeCodeRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9/\-.]{0,15}$`)
	entityIDRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_\-.:]{0,127}$`)
)

func registerCustom(v *validator.Validate) {
	_ = v.RegisterValidation("size_code", func(fl validator.FieldLevel) bool {
		return sizeCodeRegex.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("entity_id", func(fl validator.FieldLevel) bool {
		return entityIDRegex.MatchString(fl.Field().String())
	})

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
}

// InitValidator initializes the validator with custom validators and
// installs the same rules on gin's binding engine.
func InitValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		registerCustom(validate)

		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			registerCustom(v)
		}
	})

	return validate
}

// IsValidSizeCode reports whether s is acceptable as a bucket size label
func IsValidSizeCode(s string) bool {
	return sizeCodeRegex.MatchString(s)
}

// IsValidEntityID reports whether s is acceptable as an assignment/order/batch reference
func IsValidEntityID(s string) bool {
	return entityIDRegex.MatchString(s)
}

// ValidationErrorFormatter formats validation errors into a map
func ValidationErrorFormatter(err error) map[string]string {
	fields := make(map[string]string)

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, e := range validationErrors {
			fields[e.Field()] = formatValidationError(e)
		}
	}

	return fields
}

func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + e.Param()
	case "max":
		return "must be at most " + e.Param()
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "gt":
		return "must be greater than " + e.Param()
	case "size_code":
		return "must be a valid size code (e.g. M, XL, 32, 10-12)"
	case "entity_id":
		return "must be an identifier of letters, digits, '-', '_', '.', ':'"
	default:
		return "is invalid"
	}
}

// BindAndValidate binds request body and validates it
func BindAndValidate(c *gin.Context, obj any) *apperrors.AppError {
	if err := c.ShouldBindJSON(obj); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return apperrors.ErrValidationWithFields("validation failed", ValidationErrorFormatter(validationErrors))
		}
		return apperrors.ErrBadRequest("invalid request body: " + err.Error())
	}
	return nil
}

// ValidateStruct validates a struct using the validator
func ValidateStruct(obj any) *apperrors.AppError {
	if err := InitValidator().Struct(obj); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return apperrors.ErrValidationWithFields("validation failed", ValidationErrorFormatter(validationErrors))
		}
		return apperrors.ErrBadRequest("validation failed: " + err.Error())
	}
	return nil
}

// ContentType middleware ensures JSON bodies on POST requests
func ContentType() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodPost && c.Request.ContentLength > 0 {
			if !strings.HasPrefix(c.GetHeader("Content-Type"), "application/json") {
				AbortWithAppError(c, apperrors.NewAppError(
					"INVALID_CONTENT_TYPE",
					"Content-Type must be application/json",
					http.StatusUnsupportedMediaType,
				))
				return
			}
		}
		c.Next()
	}
}
