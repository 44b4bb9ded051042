package serial

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wavesbyte/cibtron-tool/internal/api"
)

type detectorFunc func(ctx context.Context, port string) (string, error)

func (f detectorFunc) SerialNumber(ctx context.Context, port string) (string, error) {
	return f(ctx, port)
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name  string
		sn    string
		err   error
		value string
		ok    bool
	}{
		{"uppercases serial", "ab12cd", nil, "AB12CD", true},
		{"backend failure", "", &api.BackendError{Op: "get_serial_number", StatusCode: 404, Message: "no serial"}, DetectionError, false},
		{"transport failure", "", &api.TransportError{Op: "get_serial_number", Err: errors.New("connection refused")}, ConnectionError, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPort string
			r := NewResolver(detectorFunc(func(_ context.Context, port string) (string, error) {
				gotPort = port
				return tt.sn, tt.err
			}))

			assert.Equal(t, Detecting, r.Begin())
			out := r.Resolve(context.Background(), "COM3")
			assert.Equal(t, "COM3", gotPort)
			assert.Equal(t, "COM3", out.Port)
			assert.Equal(t, tt.value, out.Value)
			assert.Equal(t, tt.ok, out.OK())
		})
	}
}

func TestIsPlaceholder(t *testing.T) {
	assert.True(t, IsPlaceholder(Detecting))
	assert.True(t, IsPlaceholder(DetectionError))
	assert.True(t, IsPlaceholder(ConnectionError))
	assert.False(t, IsPlaceholder("000123"))
	assert.False(t, IsPlaceholder(""))
}
