package form

import (
	"fmt"
	"net/url"

	"github.com/google/uuid"
)

// Snapshot is a copy of the form values keyed by field key.
type Snapshot map[string]string

// Controller owns the parameter form values. It is not safe for
// concurrent use; the owning event loop serialises access.
type Controller struct {
	values map[string]string
	brand  string
	model  string
	newID  func() string
}

// Option configures a Controller.
type Option func(*Controller)

// WithConstants overrides the brand and model restored on reset.
func WithConstants(brand, model string) Option {
	return func(c *Controller) {
		if brand != "" {
			c.brand = brand
		}
		if model != "" {
			c.model = model
		}
	}
}

// WithIDGenerator overrides the correlation id generator.
func WithIDGenerator(fn func() string) Option {
	return func(c *Controller) { c.newID = fn }
}

// NewController returns a form holding only its fixed defaults.
func NewController(opts ...Option) *Controller {
	c := &Controller{
		values: make(map[string]string, len(Fields)),
		brand:  DefaultBrand,
		model:  DefaultModel,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.Reset()
	return c
}

// Get returns the value of key.
func (c *Controller) Get(key string) string {
	return c.values[key]
}

// Set writes one field. Unknown keys are rejected.
func (c *Controller) Set(key, value string) error {
	if _, ok := Lookup(key); !ok {
		return fmt.Errorf("unknown form field %q", key)
	}
	c.values[key] = value
	return nil
}

// SetOperator sets the operator identity kept across resets.
func (c *Controller) SetOperator(name string) {
	c.values[KeyUser] = name
}

// Operator returns the operator identity.
func (c *Controller) Operator() string {
	return c.values[KeyUser]
}

// SetSerial writes the serial field; resolver placeholders included.
func (c *Controller) SetSerial(v string) {
	c.values[KeySerial] = v
}

// Serial returns the serial field.
func (c *Controller) Serial() string {
	return c.values[KeySerial]
}

// CorrelationID returns the id sent with the next parameters submission.
func (c *Controller) CorrelationID() string {
	return c.values[KeyUUID]
}

// Snapshot returns a copy of every value.
func (c *Controller) Snapshot() Snapshot {
	s := make(Snapshot, len(c.values))
	for k, v := range c.values {
		s[k] = v
	}
	return s
}

// Validate returns the first failing field in display order.
func (c *Controller) Validate() error {
	for _, f := range Fields {
		if err := checkField(f, c.values[f.Key]); err != nil {
			return err
		}
	}
	return nil
}

// FieldErrors maps every failing field to its message.
func (c *Controller) FieldErrors() map[string]string {
	out := map[string]string{}
	for _, f := range Fields {
		if err := checkField(f, c.values[f.Key]); err != nil {
			out[f.Key] = err.Message
		}
	}
	return out
}

// ComputeValidity reports whether the submit control may be enabled:
// every required field holds an acceptable value, a port is selected and
// the serial field holds a detected serial rather than a placeholder.
func (c *Controller) ComputeValidity(portSelected bool) bool {
	return portSelected && c.Validate() == nil
}

// Reset clears the technician-entered fields, keeps the operator, restores
// the brand and model constants and draws a fresh correlation id.
func (c *Controller) Reset() {
	operator := c.values[KeyUser]
	c.values = make(map[string]string, len(Fields))
	c.values[KeyUser] = operator
	c.values[KeyUUID] = c.newID()
	c.values[KeyBrand] = c.brand
	c.values[KeyModel] = c.model
}

// Prefill writes the known keys of values into the form and returns how
// many fields changed. Session fields are left alone.
func (c *Controller) Prefill(values map[string]string) int {
	n := 0
	for k, v := range values {
		f, ok := Lookup(k)
		if !ok || f.Session {
			continue
		}
		if c.values[k] != v {
			c.values[k] = v
			n++
		}
	}
	return n
}

// Payload returns the submission body for port.
func (c *Controller) Payload(port string) url.Values {
	form := url.Values{}
	for _, f := range Fields {
		form.Set(f.Key, c.values[f.Key])
	}
	form.Set(KeyPort, port)
	return form
}
