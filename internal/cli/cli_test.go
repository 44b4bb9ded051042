package cli

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavesbyte/cibtron-tool/internal/fakebackend"
)

const valuesFile = `NUMERO_SELLO: "S-77"
NOMBRE_PROPIETARIO: "Ana"
APELLIDO_PROPIETARIO: "Rojas"
MARCA_VEHICULO: "Toyota"
YEAR_VEHICULO: "2019"
PATENTE: "AB1234"
RESOLUCION: "R-12"
CANTIDAD_PULSOS: "1000"
TARIFA_INICIAL: "450"
TARIFA_CAIDA_PARCIAL_METROS: "200"
TARIFA_CAIDA_PARCIAL_MINUTO: "60"
`

func startBackend(t *testing.T) (*fakebackend.Server, *CLI, *bytes.Buffer) {
	t.Helper()
	opts := fakebackend.DefaultOptions()
	opts.StepDelay = time.Millisecond
	srv := fakebackend.New(opts, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Wait()
		ts.Close()
	})

	var out bytes.Buffer
	return srv, &CLI{Backend: ts.URL, PollInterval: 5 * time.Millisecond, Out: &out}, &out
}

func writeValues(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "values.yaml")
	require.NoError(t, os.WriteFile(path, []byte(valuesFile), 0o644))
	return path
}

func TestParseCommands(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{nil, "tui"},
		{[]string{"ports", "list"}, "ports list"},
		{[]string{"serial", "detect", "COM3"}, "serial detect <port>"},
		{[]string{"certs", "search", "000123", "-o", "yaml"}, "certs search <serial>"},
		{[]string{"program", "serial", "000777", "--key", "ABCDEFGHIJ"}, "program serial <serial>"},
		{[]string{"--backend", "http://bench:5000", "session", "whoami"}, "session whoami"},
		{[]string{"debug", "fake-backend", "--listen", ":0"}, "debug fake-backend"},
	}
	for _, tt := range tests {
		var c CLI
		parser, err := kong.New(&c)
		require.NoError(t, err)
		ctx, err := parser.Parse(tt.args)
		require.NoError(t, err, tt.args)
		assert.Equal(t, tt.want, ctx.Command(), tt.args)
	}
}

func TestPortsList(t *testing.T) {
	srv, globals, out := startBackend(t)

	require.NoError(t, (&PortsListCmd{}).Run(globals))
	assert.Contains(t, out.String(), "Found 1 port(s)")
	assert.Contains(t, out.String(), "COM3")

	srv.Unplug("COM3")
	out.Reset()
	require.NoError(t, (&PortsListCmd{}).Run(globals))
	assert.Equal(t, "No taximeters detected\n", out.String())
}

func TestSerialDetect(t *testing.T) {
	_, globals, out := startBackend(t)

	require.NoError(t, (&SerialDetectCmd{}).Run(globals))
	assert.Equal(t, "COM3: 000123\n", out.String())

	err := (&SerialDetectCmd{Port: "COM9"}).Run(globals)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Detection error")
}

func TestProgramParamsOverPush(t *testing.T) {
	srv, globals, out := startBackend(t)

	cmd := &ProgramParamsCmd{Values: writeValues(t), Timeout: 10 * time.Second}
	require.NoError(t, cmd.Run(globals))
	srv.Wait()

	text := out.String()
	assert.Contains(t, text, "[System] N/A: Connected to the notification server.")
	assert.Contains(t, text, "[Prog. Params] 000123: Parameter programming job started. Monitoring...")
	assert.Contains(t, text, "Finalizado")
	assert.Contains(t, text, "✓ ")

	subs := srv.Submissions()
	require.Len(t, subs, 1)
	assert.Equal(t, "COM3", subs[0].Form.Get("port"))
	assert.Equal(t, "AB1234", subs[0].Form.Get("PATENTE"))
	assert.Equal(t, "tecnico", subs[0].Form.Get("USER"))

	out.Reset()
	require.NoError(t, (&CertsSearchCmd{Serial: "000123", Output: "text"}).Run(globals))
	assert.Contains(t, out.String(), "Found 1 programming(s) of 000123")
	assert.Contains(t, out.String(), "Plate: AB1234")

	out.Reset()
	require.NoError(t, (&CertsShowCmd{Serial: "000123", Output: "yaml"}).Run(globals))
	assert.Contains(t, out.String(), `PATENTE: "AB1234"`)
}

func TestProgramParamsWithPolling(t *testing.T) {
	srv, globals, out := startBackend(t)

	cmd := &ProgramParamsCmd{Values: writeValues(t), Poll: true, Timeout: 10 * time.Second}
	require.NoError(t, cmd.Run(globals))
	srv.Wait()

	assert.NotContains(t, out.String(), "notification server")
	assert.Contains(t, out.String(), "Finalizado")
	assert.Contains(t, out.String(), "✓ ")
}

func TestProgramParamsInvalidValues(t *testing.T) {
	srv, globals, _ := startBackend(t)

	path := filepath.Join(t.TempDir(), "values.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`PATENTE: "AB1234"`), 0o644))

	err := (&ProgramParamsCmd{Values: path, Timeout: time.Second}).Run(globals)
	require.Error(t, err)
	assert.Empty(t, srv.Submissions())
}

func TestProgramSerial(t *testing.T) {
	srv, globals, out := startBackend(t)

	err := (&ProgramSerialCmd{Serial: "12a", AccessKey: "ABCDEFGHIJ", Timeout: time.Second}).Run(globals)
	require.EqualError(t, err, "Enter a valid serial number (digits only).")
	assert.Empty(t, srv.Submissions())

	cmd := &ProgramSerialCmd{Serial: "000777", AccessKey: "ABCDEFGHIJ", Timeout: 10 * time.Second}
	require.NoError(t, cmd.Run(globals))
	assert.Contains(t, out.String(), "[Prog. Serial] 000777:")
	assert.Contains(t, out.String(), "✓ ")

	out.Reset()
	cmd = &ProgramSerialCmd{Serial: "000778", AccessKey: fakebackend.DefaultOptions().RejectKey, Timeout: 10 * time.Second}
	require.Error(t, cmd.Run(globals))
	assert.Contains(t, out.String(), "✗ ")
	assert.Len(t, srv.Submissions(), 2)
}

func TestProgramSerialRejectsInputOffline(t *testing.T) {
	srv := fakebackend.New(fakebackend.DefaultOptions(), nil)
	var requests atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		srv.Handler().ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Close)
	globals := &CLI{Backend: ts.URL, Out: io.Discard}

	tests := []struct {
		name   string
		serial string
		key    string
		want   string
	}{
		{"letters in serial", "12A4", "ABCDEFGHIJ", "Enter a valid serial number (digits only)."},
		{"short key", "000777", "ABC", "Enter a valid 10-character access key."},
		{"blank serial", "   ", "ABCDEFGHIJ", "Enter a valid serial number (digits only)."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := (&ProgramSerialCmd{Serial: tt.serial, AccessKey: tt.key, Timeout: time.Second}).Run(globals)
			require.EqualError(t, err, tt.want)
			assert.Zero(t, requests.Load())
		})
	}
}

func TestCertsSearchEmpty(t *testing.T) {
	_, globals, out := startBackend(t)

	require.NoError(t, (&CertsSearchCmd{Serial: "999", Output: "text"}).Run(globals))
	assert.Equal(t, "No previous programmings found for this serial number.\n", out.String())

	out.Reset()
	require.NoError(t, (&CertsSearchCmd{Serial: "999", Output: "yaml"}).Run(globals))
	assert.Equal(t, "[]\n", out.String())

	require.Error(t, (&CertsShowCmd{Serial: "999", Output: "text"}).Run(globals))
}

func TestDeviceResetNeedsConfirmation(t *testing.T) {
	_, globals, out := startBackend(t)

	err := (&DeviceResetCmd{}).Run(globals)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")

	require.NoError(t, (&DeviceResetCmd{Yes: true}).Run(globals))
	assert.Contains(t, out.String(), "Starting Cibtron firmware reset...")
	assert.Contains(t, out.String(), "Device reset to the serial reader firmware.")

	err = (&DeviceResetCmd{Port: "COM9", Yes: true}).Run(globals)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not connected")
}

func TestSession(t *testing.T) {
	_, globals, out := startBackend(t)

	require.NoError(t, (&SessionWhoamiCmd{}).Run(globals))
	assert.Contains(t, out.String(), "Operator: tecnico")

	out.Reset()
	require.NoError(t, (&SessionLogoutCmd{}).Run(globals))
	assert.Equal(t, "Session closed.\n", out.String())
}
