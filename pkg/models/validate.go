package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// FieldError names the first rule a struct violated.
type FieldError struct {
	Field string
	Rule  string
	Param string
}

func (e FieldError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("field '%s' failed rule '%s=%s'", e.Field, e.Rule, e.Param)
	}
	return fmt.Sprintf("field '%s' failed rule '%s'", e.Field, e.Rule)
}

// ValidateStruct runs the struct's validate tags. Violations come back as a
// joined list of FieldError values.
func ValidateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	errs := make([]error, 0, len(verrs))
	for _, e := range verrs {
		errs = append(errs, FieldError{
			Field: strings.ToLower(e.Field()[:1]) + e.Field()[1:],
			Rule:  e.Tag(),
			Param: e.Param(),
		})
	}
	return errors.Join(errs...)
}

// FirstFieldError extracts the first FieldError from err, if any.
func FirstFieldError(err error) (FieldError, bool) {
	var fe FieldError
	if errors.As(err, &fe) {
		return fe, true
	}
	return FieldError{}, false
}
