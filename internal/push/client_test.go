package push_test

import (
	"context"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavesbyte/cibtron-tool/internal/fakebackend"
	"github.com/wavesbyte/cibtron-tool/internal/jobsync"
	"github.com/wavesbyte/cibtron-tool/internal/push"
)

func next(t *testing.T, ch <-chan push.Message) push.Message {
	t.Helper()
	select {
	case m := <-ch:
		return m
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a push message")
		return push.Message{}
	}
}

func TestClientReceivesEvents(t *testing.T) {
	opts := fakebackend.DefaultOptions()
	opts.StepDelay = time.Millisecond
	srv := fakebackend.New(opts, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	base, err := url.Parse(ts.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan push.Message, 16)
	c := push.New(base, "", push.WithBackoff(10*time.Millisecond, 50*time.Millisecond))
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, out) }()

	require.Equal(t, push.KindConnected, next(t, out).Kind)
	assert.Equal(t, 1, srv.Clients())

	srv.Emit(push.EventJobStatus, push.StatusPayload{Status: "Compilando"})
	srv.Emit("unrelated", map[string]string{"a": "b"})
	srv.Emit(push.EventSetSerialStatus, map[string]any{
		"status":   "Programación de Serial Completa",
		"log_data": map[string]string{"numero_serial_a_programar": "000777"},
	})

	m := next(t, out)
	require.Equal(t, push.KindEvent, m.Kind)
	assert.Equal(t, jobsync.Event{Job: jobsync.Parameters, Status: "Compilando"}, m.Event)

	m = next(t, out)
	require.Equal(t, push.KindEvent, m.Kind)
	assert.Equal(t, jobsync.SetSerial, m.Event.Job)
	assert.Equal(t, "000777", m.Event.SerialProgrammed)

	// dropping every peer reports a disconnect, then the client comes back
	require.NoError(t, srv.Shutdown(context.Background()))
	assert.Equal(t, push.KindDisconnected, next(t, out).Kind)
	assert.Equal(t, push.KindConnected, next(t, out).Kind)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestClientReportsDialErrors(t *testing.T) {
	ts := httptest.NewServer(nil)
	base, err := url.Parse(ts.URL)
	require.NoError(t, err)
	ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan push.Message, 4)
	c := push.New(base, "", push.WithBackoff(time.Millisecond, time.Millisecond))
	go func() { _ = c.Run(ctx, out) }()

	m := next(t, out)
	assert.Equal(t, push.KindError, m.Kind)
	assert.Error(t, m.Err)
	assert.Contains(t, m.Text(), "Error connecting to the notification server")
}

func TestParametersJobStreamsThroughSynchronizer(t *testing.T) {
	opts := fakebackend.DefaultOptions()
	opts.StepDelay = time.Millisecond
	srv := fakebackend.New(opts, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	defer srv.Wait()

	base, err := url.Parse(ts.URL)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan push.Message, 32)
	go func() { _ = push.New(base, "").Run(ctx, out) }()
	require.Equal(t, push.KindConnected, next(t, out).Kind)

	js := jobsync.New(jobsync.Options{AutoReset: true})
	_, err = js.Begin(jobsync.Parameters, "corr-1", "000123")
	require.NoError(t, err)

	for _, step := range opts.ParamsScript {
		srv.Emit(push.EventJobStatus, push.StatusPayload{Status: step.Status, Message: step.Message})
	}

	var lines, notices int
	for range opts.ParamsScript {
		m := next(t, out)
		require.Equal(t, push.KindEvent, m.Kind)
		tr := js.Apply(m.Event)
		if tr.LogLine != "" {
			lines++
		}
		if tr.Notice != nil {
			notices++
			assert.True(t, tr.ResetForm)
		}
	}
	// the duplicated compile status is logged once
	assert.Equal(t, len(opts.ParamsScript)-1, lines)
	assert.Equal(t, 1, notices)
	assert.Equal(t, jobsync.Succeeded, js.Snapshot(jobsync.Parameters).State)
}
