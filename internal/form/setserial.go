package form

import (
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
)

// SetSerialRequest is the set-serial dialog submission.
type SetSerialRequest struct {
	Operator  string `validate:"required"`
	Serial    string `validate:"required,digits"`
	AccessKey string `validate:"required,len=10"`
	Port      string `validate:"required"`
	UUID      string
}

var setSerialMessages = map[string]string{
	"Operator":  "Could not determine the operator identity.",
	"Serial":    "Enter a valid serial number (digits only).",
	"AccessKey": "Enter a valid 10-character access key.",
	"Port":      "Select a port to program the device.",
}

// Normalize trims the technician-typed values.
func (r *SetSerialRequest) Normalize() {
	r.Serial = strings.TrimSpace(r.Serial)
	r.AccessKey = strings.TrimSpace(r.AccessKey)
}

// Validate checks the request in dialog order and returns the first
// problem as a *ValidationError.
func (r SetSerialRequest) Validate() error {
	r.Normalize()
	return setSerialError(validate.Struct(r))
}

// ValidateInput checks only the typed serial and access key. Callers run
// it before contacting the backend for the operator or the port.
func (r SetSerialRequest) ValidateInput() error {
	r.Normalize()
	return setSerialError(validate.StructPartial(r, "Serial", "AccessKey"))
}

func setSerialError(err error) error {
	if err == nil {
		return nil
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok || len(errs) == 0 {
		return &ValidationError{Message: err.Error()}
	}
	field := errs[0].Field()
	return &ValidationError{Field: field, Message: setSerialMessages[field]}
}

// Values returns the form body of the submission.
func (r SetSerialRequest) Values() url.Values {
	r.Normalize()
	return url.Values{
		"NUMERO_SERIAL_A_PROGRAMAR": {r.Serial},
		"CLAVE_ACCESO":              {r.AccessKey},
		KeyUser:                     {r.Operator},
		KeyUUID:                     {r.UUID},
		KeyPort:                     {r.Port},
	}
}
