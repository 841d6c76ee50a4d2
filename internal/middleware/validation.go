package middleware

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var bloodPressureRe = regexp.MustCompile(`^\d{2,3}/\d{2,3}$`)

// bloodPressure validates the "systolic/diastolic" format, e.g. 120/80.
func bloodPressure(fl validator.FieldLevel) bool {
	return bloodPressureRe.MatchString(fl.Field().String())
}

// RegisterValidations installs the domain validators on gin's binding
// engine and makes validation errors report JSON field names. Call once
// at startup, before the first request.
func RegisterValidations() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}

	if err := v.RegisterValidation("bloodpressure", bloodPressure); err != nil {
		panic(err)
	}

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return fld.Name
		}
		return name
	})
}
