package serial

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/wavesbyte/cibtron-tool/internal/api"
)

// Values written to the serial field instead of a serial number.
const (
	Detecting       = "Detecting serial..."
	DetectionError  = "Detection error"
	ConnectionError = "Connection error"
)

// IsPlaceholder reports whether v is one of the resolver's sentinels
// rather than a serial number.
func IsPlaceholder(v string) bool {
	switch v {
	case Detecting, DetectionError, ConnectionError:
		return true
	}
	return false
}

// Detector is the API call the resolver wraps.
type Detector interface {
	SerialNumber(ctx context.Context, port string) (string, error)
}

// Outcome is the value the serial field takes after a detection attempt.
type Outcome struct {
	Port  string
	Value string
	Err   error
}

// OK reports whether Value is a real serial number.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Resolver asks the backend for the serial of the device on a port.
// Detection is never retried; a new attempt needs a new port selection or
// a manual refresh.
type Resolver struct {
	detector Detector
}

func NewResolver(d Detector) *Resolver {
	return &Resolver{detector: d}
}

// Begin returns the placeholder to show until Resolve returns.
func (r *Resolver) Begin() string {
	return Detecting
}

// Resolve runs one detection for port.
func (r *Resolver) Resolve(ctx context.Context, port string) Outcome {
	sn, err := r.detector.SerialNumber(ctx, port)
	return Classify(port, sn, err)
}

// Classify maps a detection result to the serial field value.
func Classify(port, sn string, err error) Outcome {
	switch {
	case err == nil:
		return Outcome{Port: port, Value: strings.ToUpper(strings.TrimSpace(sn))}
	case api.IsTransport(err):
		zap.S().Errorw("serial detection failed", "port", port, "error", err)
		return Outcome{Port: port, Value: ConnectionError, Err: err}
	default:
		zap.S().Warnw("could not read serial number", "port", port, "error", err)
		return Outcome{Port: port, Value: DetectionError, Err: err}
	}
}
