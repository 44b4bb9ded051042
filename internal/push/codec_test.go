package push

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavesbyte/cibtron-tool/internal/jobsync"
)

func TestSocketURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"http://localhost:5000", "ws://localhost:5000/socket.io/?EIO=4&transport=websocket"},
		{"https://prog.example.com/api/", "wss://prog.example.com/api/socket.io/?EIO=4&transport=websocket"},
	}
	for _, tt := range tests {
		u, err := url.Parse(tt.base)
		require.NoError(t, err)
		assert.Equal(t, tt.want, SocketURL(u))
	}
}

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		event   string
		payload string
		wantErr bool
	}{
		{name: "plain", body: `["job_status_update",{"status":"Finalizado"}]`, event: "job_status_update", payload: `{"status":"Finalizado"}`},
		{name: "namespace", body: `/admin,["x",1]`, event: "x", payload: `1`},
		{name: "ack id", body: `12["x"]`, event: "x"},
		{name: "namespace and ack", body: `/admin,7["x",{}]`, event: "x", payload: `{}`},
		{name: "empty array", body: `[]`, wantErr: true},
		{name: "bad namespace", body: `/admin["x"]`, wantErr: true},
		{name: "not json", body: `hello`, wantErr: true},
		{name: "numeric name", body: `[1,2]`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, payload, err := decodeEvent(tt.body)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.event, name)
			assert.Equal(t, tt.payload, string(payload))
		})
	}
}

func TestEncodeEventRoundTrip(t *testing.T) {
	msg, err := EncodeEvent(EventJobStatus, StatusPayload{Status: "Compilando"})
	require.NoError(t, err)
	assert.Equal(t, `42["job_status_update",{"status":"Compilando"}]`, msg)

	name, payload, err := decodeEvent(msg[2:])
	require.NoError(t, err)
	ev, ok, err := ToJobEvent(name, payload)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, jobsync.Event{Job: jobsync.Parameters, Status: "Compilando"}, ev)
}

func TestToJobEvent(t *testing.T) {
	ev, ok, err := ToJobEvent(EventSetSerialStatus, []byte(`{"status":"auth_failed","message":"bad key","log_data":{"numero_serial_a_programar":"000999"}}`))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, jobsync.SetSerial, ev.Job)
	assert.Equal(t, "auth_failed", ev.Status)
	assert.Equal(t, "bad key", ev.Message)
	assert.Equal(t, "000999", ev.SerialProgrammed)

	_, ok, err = ToJobEvent("chat_message", []byte(`{}`))
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = ToJobEvent(EventJobStatus, []byte(`"oops"`))
	assert.Error(t, err)
}

func TestHandshakeDeadline(t *testing.T) {
	assert.Equal(t, 45*time.Second, Handshake{PingInterval: 25000, PingTimeout: 20000}.Deadline())
	assert.Equal(t, 45*time.Second, Handshake{}.Deadline())
}

func TestMessageText(t *testing.T) {
	assert.Equal(t, "Connected to the notification server.", Message{Kind: KindConnected}.Text())
	assert.Equal(t, "Disconnected from the notification server.", Message{Kind: KindDisconnected}.Text())
	assert.Empty(t, Message{Kind: KindEvent}.Text())
}
