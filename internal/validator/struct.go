package validator

import (
	"errors"
	"reflect"
	"strings"

	"homeservices/internal/domain"

	"github.com/go-playground/validator/v10"
)

var shared = newValidate()

func newValidate() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// Struct checks the validate tags of s and reports violations by json field name.
// It returns nil when s is valid.
func Struct(s interface{}) *domain.ValidationError {
	err := shared.Struct(s)
	if err == nil {
		return nil
	}

	verr := domain.NewValidationError()
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		verr.Add("form", err.Error())
		return verr
	}
	for _, fe := range fieldErrs {
		verr.Add(fe.Field(), tagMessage(fe))
	}
	return verr
}
