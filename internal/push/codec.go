package push

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/wavesbyte/cibtron-tool/internal/jobsync"
)

// Engine.IO v4 packet types.
const (
	eioOpen    = '0'
	eioClose   = '1'
	eioPing    = '2'
	eioPong    = '3'
	eioMessage = '4'
)

// Socket.IO v5 packet types, carried inside Engine.IO messages.
const (
	sioConnect      = '0'
	sioDisconnect   = '1'
	sioEvent        = '2'
	sioConnectError = '4'
)

// Event names the backend emits.
const (
	EventJobStatus       = "job_status_update"
	EventSetSerialStatus = "set_serial_job_status_update"
)

// Handshake is the Engine.IO open packet payload.
type Handshake struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int      `json:"pingInterval"`
	PingTimeout  int      `json:"pingTimeout"`
	MaxPayload   int      `json:"maxPayload,omitempty"`
}

// Deadline is how long a connection may stay silent before it is dead.
func (h Handshake) Deadline() time.Duration {
	d := time.Duration(h.PingInterval+h.PingTimeout) * time.Millisecond
	if d <= 0 {
		return 45 * time.Second
	}
	return d
}

// StatusPayload is the body of both job status events.
type StatusPayload struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	LogData *struct {
		SerialToProgram string `json:"numero_serial_a_programar,omitempty"`
	} `json:"log_data,omitempty"`
}

// SocketURL returns the websocket endpoint of the backend at base.
func SocketURL(base *url.URL) string {
	u := *base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/socket.io/"
	u.RawQuery = url.Values{"EIO": {"4"}, "transport": {"websocket"}}.Encode()
	return u.String()
}

// EncodeEvent renders a Socket.IO event packet on the default namespace.
func EncodeEvent(name string, payload any) (string, error) {
	b, err := json.Marshal([]any{name, payload})
	if err != nil {
		return "", err
	}
	return string([]byte{eioMessage, sioEvent}) + string(b), nil
}

// EncodeOpen renders the Engine.IO open packet.
func EncodeOpen(h Handshake) (string, error) {
	b, err := json.Marshal(h)
	if err != nil {
		return "", err
	}
	return string(eioOpen) + string(b), nil
}

// decodeEvent parses the body of a Socket.IO EVENT packet, skipping an
// optional namespace and ack id.
func decodeEvent(body string) (string, json.RawMessage, error) {
	if strings.HasPrefix(body, "/") {
		i := strings.IndexByte(body, ',')
		if i < 0 {
			return "", nil, fmt.Errorf("malformed namespace in event %q", body)
		}
		body = body[i+1:]
	}
	body = strings.TrimLeft(body, "0123456789")

	var args []json.RawMessage
	if err := json.Unmarshal([]byte(body), &args); err != nil {
		return "", nil, fmt.Errorf("malformed event: %w", err)
	}
	if len(args) == 0 {
		return "", nil, fmt.Errorf("event without a name")
	}
	var name string
	if err := json.Unmarshal(args[0], &name); err != nil {
		return "", nil, fmt.Errorf("event name: %w", err)
	}
	var payload json.RawMessage
	if len(args) > 1 {
		payload = args[1]
	}
	return name, payload, nil
}

// ToJobEvent maps a backend event to a synchronizer event. ok is false
// for events the console does not track.
func ToJobEvent(name string, payload json.RawMessage) (ev jobsync.Event, ok bool, err error) {
	var job jobsync.Job
	switch name {
	case EventJobStatus:
		job = jobsync.Parameters
	case EventSetSerialStatus:
		job = jobsync.SetSerial
	default:
		return jobsync.Event{}, false, nil
	}

	var p StatusPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &p); err != nil {
			return jobsync.Event{}, false, fmt.Errorf("%s payload: %w", name, err)
		}
	}
	ev = jobsync.Event{Job: job, Status: p.Status, Message: p.Message}
	if p.LogData != nil {
		ev.SerialProgrammed = p.LogData.SerialToProgram
	}
	return ev, true, nil
}
