package form

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/wavesbyte/cibtron-tool/internal/serial"
)

var digitsRegex = regexp.MustCompile(`^[0-9]+$`)

// ValidationError is a local input problem. It is reported before any
// network call and never written to the job log.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func registerFn(tag string, fn func(fl validator.FieldLevel) bool) func(v *validator.Validate) {
	return func(v *validator.Validate) {
		_ = v.RegisterValidation(tag, fn)
	}
}

func digitsValidator(fl validator.FieldLevel) bool {
	val, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	return digitsRegex.MatchString(val)
}

func notPlaceholderValidator(fl validator.FieldLevel) bool {
	val, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	return !serial.IsPlaceholder(val)
}

func newValidator() *validator.Validate {
	v := validator.New()
	for _, rule := range []func(*validator.Validate){
		registerFn("digits", digitsValidator),
		registerFn("not_placeholder", notPlaceholderValidator),
	} {
		rule(v)
	}
	return v
}

var validate = newValidator()

// reason renders a failed validator tag for a field label.
func reason(label string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", label)
	case "digits":
		return fmt.Sprintf("%s must contain only digits", label)
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters", label, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", label, fe.Param())
	case "numeric":
		return fmt.Sprintf("%s must be a number", label)
	case "not_placeholder":
		return fmt.Sprintf("%s has not been detected", label)
	default:
		return fmt.Sprintf("%s is not valid", label)
	}
}

// checkField validates one form value against its field rules.
func checkField(f Field, value string) *ValidationError {
	tag := f.Rules
	if f.Required {
		if tag == "" {
			tag = "required"
		} else {
			tag = "required," + tag
		}
	} else if tag != "" {
		tag = "omitempty," + tag
	}
	if tag == "" {
		return nil
	}

	err := validate.Var(value, tag)
	if err == nil {
		return nil
	}
	if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
		return &ValidationError{Field: f.Key, Message: reason(f.Label, errs[0])}
	}
	return &ValidationError{Field: f.Key, Message: err.Error()}
}
