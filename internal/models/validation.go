package models

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// validate reports fields by their json names so errors match the request body.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	}); err != nil {
		panic(fmt.Sprintf("register notblank validation: %v", err))
	}
	return v
}

// checkStruct runs the struct tags and converts the first failure into a
// ValidationError.
func checkStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) || len(fields) == 0 {
		return err
	}
	f := fields[0]
	return ValidationError{Field: f.Field(), Message: tagMessage(f)}
}

func tagMessage(f validator.FieldError) string {
	switch f.Tag() {
	case "required", "notblank":
		return "is required"
	case "email":
		return "email is invalid"
	case "oneof":
		return "must be one of " + f.Param()
	case "min":
		return "must be at least " + f.Param()
	case "max":
		return "must be at most " + f.Param()
	}
	return "is invalid"
}

func (r *PlaceOrderRequest) Validate() error {
	if r.ID != "" && len(r.ID) != OrderIDLength {
		return ValidationError{Field: "id", Message: fmt.Sprintf("order id must be %d characters", OrderIDLength)}
	}
	for _, c := range r.ID {
		if !isAlphanumeric(c) {
			return ValidationError{Field: "id", Message: "order id must be alphanumeric"}
		}
	}
	name := strings.TrimSpace(r.ClientName)
	if name == "" {
		return ValidationError{Field: "client_name", Message: "client name is required"}
	}
	if len(name) > 100 {
		return ValidationError{Field: "client_name", Message: "client name must be less than 100 characters"}
	}
	if len(r.Items) == 0 {
		return ValidationError{Field: "items", Message: "order has no items"}
	}
	for i, item := range r.Items {
		if item.ProductID <= 0 {
			return ValidationError{Field: fmt.Sprintf("items[%d].product_id", i), Message: "product id is required"}
		}
	}
	return nil
}

func (r *ProductRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ValidationError{Field: "name", Message: "name is required"}
	}
	if r.Price <= 0 {
		return ValidationError{Field: "price", Message: "price must be positive"}
	}
	if r.EstimatedTime < 0 {
		return ValidationError{Field: "estimated_time", Message: "estimated time cannot be negative"}
	}
	if !ProductType(r.Type).Valid() {
		return ValidationError{Field: "type", Message: "type must be one of BEER, WINE_OR_DRINK, MEAL, PASTRIES"}
	}
	return nil
}

// Validate checks a user payload. Password is only required when creating.
func (r *UserRequest) Validate(requirePassword bool) error {
	if err := checkStruct(r); err != nil {
		return err
	}
	if requirePassword && len(r.Password) < 6 {
		return ValidationError{Field: "password", Message: "password must be at least 6 characters"}
	}
	return nil
}

func (r *SurveyRequest) Validate() error {
	return checkStruct(r)
}

func isAlphanumeric(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
