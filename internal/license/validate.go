package license

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MaxFieldLength bounds hardware ids and codes accepted from clients.
const MaxFieldLength = 255

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// GenerateRequest describes a batch of codes to mint.
type GenerateRequest struct {
	LicenseType  string `json:"license_type" validate:"required,max=50"`
	DurationDays int    `json:"duration" validate:"min=1,max=3650"`
	Count        int    `json:"count" validate:"min=1,max=100"`
}

type activateInput struct {
	Code       string `json:"activation_code" validate:"required,max=255"`
	HardwareID string `json:"hardware_id" validate:"required,max=255"`
}

type hardwareInput struct {
	HardwareID string `json:"hardware_id" validate:"required,max=255"`
}

// NormalizeCode trims surrounding whitespace and upper-cases a code as typed
// by a user.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// check validates s and converts the first failure into a ValidationError
// naming the field and the violated bound.
func check(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return newError(ErrValidation, "Invalid request", err)
	}
	fe := verrs[0]
	return newError(ErrValidation, describe(fe), nil)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
