package tui

import (
	"context"
	"net/url"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/wavesbyte/cibtron-tool/internal/certs"
	"github.com/wavesbyte/cibtron-tool/internal/jobsync"
	"github.com/wavesbyte/cibtron-tool/internal/push"
	"github.com/wavesbyte/cibtron-tool/internal/serial"
)

// --- Async commands for backend operations ---

// fetchUserCmd fetches the operator identity.
func fetchUserCmd(b Backend, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		email, err := b.UserData(ctx)
		return userMsg{email: email, err: err}
	}
}

// loadPortsCmd fetches the port list.
func loadPortsCmd(b Backend, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		list, err := b.Ports(ctx)
		return portsMsg{list: list, err: err}
	}
}

// detectSerialCmd reads the serial of the device on port. Detection
// restarts the device, so it gets its own timeout.
func detectSerialCmd(r *serial.Resolver, port string, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return serialMsg{outcome: r.Resolve(ctx, port)}
	}
}

// connectivityTickCmd schedules the next liveness poll.
func connectivityTickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return connectivityTickMsg(t)
	})
}

// checkPortCmd polls the liveness of port.
func checkPortCmd(b Backend, port string, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		connected, err := b.PortStatus(ctx, port)
		return connectivityMsg{port: port, connected: connected, err: err}
	}
}

// waitForPushCmd waits for the next push channel message.
func waitForPushCmd(ch <-chan push.Message) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-ch
		return pushMsg{msg: msg, ok: ok}
	}
}

// submitCmd submits a job.
func submitCmd(b Backend, job jobsync.Job, values url.Values, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		submit := b.ExecuteAndProgram
		if job == jobsync.SetSerial {
			submit = b.ExecuteSetSerialJob
		}
		res, err := submit(ctx, values)
		return submitMsg{job: job, res: res, err: err}
	}
}

// searchCertsCmd lists the programming history of serialNo.
func searchCertsCmd(br *certs.Browser, serialNo string, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		list, err := br.Search(ctx, serialNo)
		return certsMsg{serial: serialNo, list: list, err: err}
	}
}

// prefillCmd fetches the values of the latest programming of serialNo.
func prefillCmd(br *certs.Browser, serialNo string, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		values, err := br.Prefill(ctx, serialNo)
		return prefillMsg{serial: serialNo, values: values, err: err}
	}
}

// resetDeviceCmd flashes the serial reader firmware onto the device on port.
func resetDeviceCmd(b Backend, port string, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		message, err := b.ResetDevice(ctx, port)
		return deviceResetMsg{port: port, message: message, err: err}
	}
}

// logoutCmd ends the session.
func logoutCmd(b Backend, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return logoutMsg{err: b.Logout(ctx)}
	}
}
