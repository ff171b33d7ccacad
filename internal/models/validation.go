package models

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/ashendes/rental-inventory/internal/apperr"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Validator validates request bodies using their `binding` tags. It satisfies
// gin's binding.StructValidator so handlers and direct callers share one rule set.
type Validator struct {
	once     sync.Once
	validate *validator.Validate
}

// NewValidator creates a lazily initialised request validator
func NewValidator() *Validator {
	return &Validator{}
}

func (v *Validator) lazyinit() {
	v.once.Do(func() {
		v.validate = validator.New()
		v.validate.SetTagName("binding")

		// Money is compared as a float so numeric tags such as gte work on it
		v.validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
			if d, ok := field.Interface().(decimal.Decimal); ok {
				f, _ := d.Float64()
				return f
			}
			return nil
		}, decimal.Decimal{})

		v.validate.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return field.Name
			}
			return name
		})
	})
}

// ValidateStruct validates obj and returns an *apperr.Error listing every
// violated field
func (v *Validator) ValidateStruct(obj any) error {
	if obj == nil {
		return nil
	}
	value := reflect.ValueOf(obj)
	for value.Kind() == reflect.Ptr {
		if value.IsNil() {
			return nil
		}
		value = value.Elem()
	}
	if value.Kind() != reflect.Struct {
		return nil
	}

	v.lazyinit()
	err := v.validate.Struct(obj)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperr.Validation("Validation failed", err.Error())
	}

	details := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		details = append(details, fmt.Sprintf("%s: %s", fieldPath(fe), describe(fe)))
	}
	return apperr.Validation("Validation failed", details...)
}

// Engine exposes the underlying validator to gin
func (v *Validator) Engine() any {
	v.lazyinit()
	return v.validate
}

// fieldPath drops the root struct name from the namespace
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		if fe.Param() == "0" {
			return "must not be negative"
		}
		return "must be at least " + fe.Param()
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "unique":
		return fmt.Sprintf("must not contain duplicate %s values", fe.Param())
	default:
		return "failed on the '" + fe.Tag() + "' rule"
	}
}
