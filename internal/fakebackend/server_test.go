package fakebackend_test

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavesbyte/cibtron-tool/internal/api"
	"github.com/wavesbyte/cibtron-tool/internal/fakebackend"
	"github.com/wavesbyte/cibtron-tool/internal/form"
)

func start(t *testing.T, opts fakebackend.Options) (*fakebackend.Server, *api.Client) {
	t.Helper()
	srv := fakebackend.New(opts, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Wait()
		ts.Close()
	})
	c, err := api.New(ts.URL, api.WithIDToken(opts.Token))
	require.NoError(t, err)
	return srv, c
}

func fastOptions() fakebackend.Options {
	opts := fakebackend.DefaultOptions()
	opts.StepDelay = time.Millisecond
	return opts
}

func TestPortsAndSerial(t *testing.T) {
	srv, c := start(t, fastOptions())
	ctx := context.Background()

	ports, err := c.Ports(ctx)
	require.NoError(t, err)
	require.Len(t, ports, 1)

	sn, err := c.SerialNumber(ctx, "COM3")
	require.NoError(t, err)
	assert.Equal(t, "000123", sn)

	connected, err := c.PortStatus(ctx, "COM3")
	require.NoError(t, err)
	assert.True(t, connected)

	srv.Unplug("COM3")
	connected, err = c.PortStatus(ctx, "COM3")
	require.NoError(t, err)
	assert.False(t, connected)

	_, err = c.SerialNumber(ctx, "COM3")
	assert.True(t, api.IsBackend(err))
}

func TestUserDataRequiresToken(t *testing.T) {
	opts := fastOptions()
	opts.Token = "secret"
	_, c := start(t, opts)

	email, err := c.UserData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tecnico@wavesbyte.cl", email)

	require.NoError(t, c.Logout(context.Background()))
	_, err = c.UserData(context.Background())
	assert.True(t, api.IsBackend(err))
}

func TestParametersJobStoresCertificate(t *testing.T) {
	srv, c := start(t, fastOptions())
	ctx := context.Background()

	f := form.NewController()
	f.SetOperator("tecnico")
	f.SetSerial("000123")
	require.NoError(t, f.Set(form.KeyPlate, "AB1234"))

	_, err := c.ExecuteAndProgram(ctx, f.Payload("COM3"))
	require.NoError(t, err)
	srv.Wait()

	status, err := c.JobStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Finalizado", status)

	certs, err := c.SearchCertificates(ctx, "000123")
	require.NoError(t, err)
	require.Len(t, certs, 1)
	assert.Equal(t, "AB1234", certs[0].Data.EnvVars["PATENTE"])
	assert.Equal(t, "tecnico", certs[0].Data.User)

	latest, err := c.SearchSerial(ctx, "000123")
	require.NoError(t, err)
	assert.Equal(t, "AB1234", latest.EnvVars["PATENTE"])

	subs := srv.Submissions()
	require.Len(t, subs, 1)
	assert.Equal(t, "COM3", subs[0].Form.Get("port"))
}

func TestParametersJobRequiresPort(t *testing.T) {
	_, c := start(t, fastOptions())
	_, err := c.ExecuteAndProgram(context.Background(), form.NewController().Payload(""))
	assert.True(t, api.IsBackend(err))
}

func TestSetSerialValidation(t *testing.T) {
	_, c := start(t, fastOptions())
	req := form.SetSerialRequest{Operator: "tecnico", Serial: "12a", AccessKey: "ABCDEFGHIJ", Port: "COM3"}
	_, err := c.ExecuteSetSerialJob(context.Background(), req.Values())
	assert.True(t, api.IsBackend(err))
}

func TestResetDevice(t *testing.T) {
	_, c := start(t, fastOptions())
	msg, err := c.ResetDevice(context.Background(), "COM3")
	require.NoError(t, err)
	assert.NotEmpty(t, msg)

	_, err = c.ResetDevice(context.Background(), "COM9")
	assert.True(t, api.IsBackend(err))
}

func TestLoadOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
email: otra@wavesbyte.cl
step_delay: 10ms
ports:
  - device: /dev/ttyUSB0
    description: CP2102
serials:
  /dev/ttyUSB0: "000777"
params_script:
  - status: Compilando
  - status: Error de compilación
    message: exit status 1
`), 0o600))

	opts, err := fakebackend.LoadOptions(path)
	require.NoError(t, err)
	assert.Equal(t, "otra@wavesbyte.cl", opts.Email)
	assert.Equal(t, 10*time.Millisecond, opts.StepDelay)
	require.Len(t, opts.Ports, 1)
	assert.Equal(t, "/dev/ttyUSB0", opts.Ports[0].Device)
	assert.Equal(t, "000777", opts.Serials["/dev/ttyUSB0"])
	require.Len(t, opts.ParamsScript, 2)
	assert.Equal(t, "exit status 1", opts.ParamsScript[1].Message)
	// untouched keys keep their defaults
	assert.Equal(t, "0000000000", opts.RejectKey)
}
