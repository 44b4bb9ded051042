package tui

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wavesbyte/cibtron-tool/internal/api"
	"github.com/wavesbyte/cibtron-tool/internal/certs"
	"github.com/wavesbyte/cibtron-tool/internal/form"
	"github.com/wavesbyte/cibtron-tool/internal/joblog"
	"github.com/wavesbyte/cibtron-tool/internal/jobsync"
	"github.com/wavesbyte/cibtron-tool/internal/ports"
	"github.com/wavesbyte/cibtron-tool/internal/push"
	"github.com/wavesbyte/cibtron-tool/internal/serial"
)

// View represents different screens in the TUI.
type View int

const (
	ViewMain View = iota
	ViewSetSerial
	ViewCerts
	ViewCertDetail
	ViewHelp
)

type confirmKind int

const (
	confirmNone confirmKind = iota
	confirmResetDevice
	confirmLogout
)

// Backend is the part of the API client the console drives.
type Backend interface {
	ports.Backend
	serial.Detector
	certs.Searcher
	UserData(ctx context.Context) (string, error)
	ExecuteAndProgram(ctx context.Context, form url.Values) (*api.SubmitResult, error)
	ExecuteSetSerialJob(ctx context.Context, form url.Values) (*api.SubmitResult, error)
	ResetDevice(ctx context.Context, port string) (string, error)
	Logout(ctx context.Context) error
}

// Options tunes the model. Zero values select the defaults.
type Options struct {
	PollInterval  time.Duration
	HTTPTimeout   time.Duration
	SerialTimeout time.Duration
	Brand         string
	Model         string
	AutoReset     bool
	Logger        *zap.Logger
	// Push delivers backend job events. Without it the console gets no
	// live job status.
	Push <-chan push.Message
	Now  func() time.Time
}

// focusPorts is the focus index of the port selector; form inputs follow.
const focusPorts = 0

// Model is the main Bubbletea model for the TUI. Every backend reply,
// poll tick and push event reaches it as a message, so all console state
// is only ever touched from Update.
type Model struct {
	// State
	view     View
	prevView View
	confirm  confirmKind
	width    int
	height   int

	backend Backend
	opts    Options

	registry *ports.Registry
	resolver *serial.Resolver
	form     *form.Controller
	jobs     *jobsync.Synchronizer
	log      *joblog.Log
	browser  *certs.Browser

	// Main view
	focus      int
	portCursor int
	inputs     []textinput.Model
	inputKeys  []string
	email      string
	pushOnline bool
	pushFailed bool
	detecting  bool
	busy       string
	notice     *jobsync.Notice
	loggedOut  bool

	// Set-serial dialog
	dialog      []textinput.Model
	dialogFocus int
	dialogErr   string

	// Certificates
	certSerial  string
	certList    []certs.Summary
	certMsg     string
	certLoading bool
	certCursor  int

	// Components
	logView viewport.Model
	keys    KeyMap
	help    help.Model
	spinner spinner.Model
	styles  Styles
}

// --- Custom messages for async operations ---

// userMsg delivers the operator identity.
type userMsg struct {
	email string
	err   error
}

// portsMsg delivers the port list.
type portsMsg struct {
	list []api.Port
	err  error
}

// serialMsg delivers a serial detection outcome.
type serialMsg struct {
	outcome serial.Outcome
}

// connectivityTickMsg triggers the liveness poll of the selected port.
type connectivityTickMsg time.Time

// connectivityMsg delivers one liveness poll result.
type connectivityMsg struct {
	port      string
	connected bool
	err       error
}

// pushMsg delivers one push channel message. ok is false once the
// channel is closed.
type pushMsg struct {
	msg push.Message
	ok  bool
}

// submitMsg is the backend's reply to a job submission.
type submitMsg struct {
	job jobsync.Job
	res *api.SubmitResult
	err error
}

// certsMsg delivers the programming history of a serial.
type certsMsg struct {
	serial string
	list   []certs.Summary
	err    error
}

// prefillMsg delivers the values of the latest programming of a serial.
type prefillMsg struct {
	serial string
	values map[string]string
	err    error
}

// deviceResetMsg is the reply to a firmware reset.
type deviceResetMsg struct {
	port    string
	message string
	err     error
}

// logoutMsg is the reply to a logout.
type logoutMsg struct {
	err error
}

// NewModel creates a new TUI model.
func NewModel(b Backend, opts Options) Model {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 3 * time.Second
	}
	if opts.HTTPTimeout <= 0 {
		opts.HTTPTimeout = 30 * time.Second
	}
	if opts.SerialTimeout <= 0 {
		opts.SerialTimeout = 15 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	h := help.New()
	h.ShowAll = false

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))

	m := Model{
		view:     ViewMain,
		backend:  b,
		opts:     opts,
		registry: ports.NewRegistry(),
		resolver: serial.NewResolver(b),
		form:     form.NewController(form.WithConstants(opts.Brand, opts.Model)),
		jobs:     jobsync.New(jobsync.Options{AutoReset: opts.AutoReset}),
		log:      joblog.New(joblog.WithLogger(opts.Logger), joblog.WithClock(opts.Now)),
		browser:  certs.NewBrowser(b),
		logView:  viewport.New(80, 8),
		keys:     DefaultKeyMap(),
		help:     h,
		spinner:  s,
		styles:   DefaultStyles(),
	}

	for _, f := range form.Fields {
		if !editable(f) {
			continue
		}
		ti := textinput.New()
		ti.Prompt = ""
		ti.Placeholder = f.Label
		ti.CharLimit = 64
		if f.Key == form.KeyPlate {
			ti.CharLimit = 10
		}
		ti.Width = 40
		m.inputs = append(m.inputs, ti)
		m.inputKeys = append(m.inputKeys, f.Key)
	}

	serialInput := textinput.New()
	serialInput.Prompt = ""
	serialInput.Placeholder = "digits only"
	serialInput.CharLimit = 16
	keyInput := textinput.New()
	keyInput.Prompt = ""
	keyInput.Placeholder = "10 characters"
	keyInput.CharLimit = 10
	keyInput.EchoMode = textinput.EchoPassword
	keyInput.EchoCharacter = '•'
	m.dialog = []textinput.Model{serialInput, keyInput}

	m.refreshLog()
	return m
}

// editable reports whether the technician types the field. Session and
// fixed fields are filled by the console; the serial comes from detection.
func editable(f form.Field) bool {
	return !f.Session && !f.Fixed && f.Key != form.KeySerial
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	m.registry.BeginRefresh()
	return tea.Batch(
		m.spinner.Tick,
		fetchUserCmd(m.backend, m.opts.HTTPTimeout),
		loadPortsCmd(m.backend, m.opts.HTTPTimeout),
		connectivityTickCmd(m.opts.PollInterval),
		waitForPushCmd(m.opts.Push),
	)
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.logView.Width = max(msg.Width-6, 20)
		m.logView.Height = max(msg.Height/5, 4)
		m.refreshLog()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case userMsg:
		if msg.err != nil {
			m.appendLog(joblog.TagSystem, "", "Could not load the operator identity: "+api.Message(msg.err))
			return m, nil
		}
		m.email = msg.email
		m.form.SetOperator(api.OperatorName(msg.email))
		return m, nil

	case portsMsg:
		if msg.err != nil {
			m.opts.Logger.Warn("failed to list ports", zap.Error(msg.err))
		}
		res := m.registry.Apply(msg.list, msg.err, true)
		return m, m.afterRegistry(res)

	case serialMsg:
		// last reply wins; a detection for an older selection still lands
		m.detecting = false
		m.form.SetSerial(msg.outcome.Value)
		return m, nil

	case connectivityTickMsg:
		cmds := []tea.Cmd{connectivityTickCmd(m.opts.PollInterval)}
		if port := m.registry.Selected(); port != "" {
			cmds = append(cmds, checkPortCmd(m.backend, port, m.opts.HTTPTimeout))
		}
		return m, tea.Batch(cmds...)

	case connectivityMsg:
		res := m.registry.ApplyConnectivity(msg.port, msg.connected, msg.err)
		return m, m.afterRegistry(res)

	case pushMsg:
		if !msg.ok {
			return m, nil
		}
		return m, tea.Batch(m.handlePush(msg.msg), waitForPushCmd(m.opts.Push))

	case submitMsg:
		var t jobsync.Transition
		if msg.err != nil {
			t = m.jobs.Rejected(msg.job, api.Message(msg.err), api.IsTransport(msg.err))
		} else {
			t = m.jobs.Accepted(msg.job)
		}
		return m, m.apply(t)

	case certsMsg:
		m.certLoading = false
		m.certCursor = 0
		m.certList = msg.list
		m.certMsg = ""
		switch {
		case msg.err != nil:
			m.certList = nil
			m.certMsg = certs.SearchFailed
			if fe, ok := msg.err.(*form.ValidationError); ok {
				m.certMsg = fe.Message
			} else {
				m.opts.Logger.Warn("certificate search failed", zap.String("serial", msg.serial), zap.Error(msg.err))
			}
		case len(msg.list) == 0:
			m.certMsg = certs.NoResults
		}
		return m, nil

	case prefillMsg:
		m.busy = ""
		if msg.err != nil {
			m.setNotice(jobsync.NoticeError, api.Message(msg.err))
			return m, nil
		}
		m.prefill(msg.serial, msg.values)
		return m, nil

	case deviceResetMsg:
		m.busy = ""
		if msg.err != nil {
			text := "Reset failed: " + api.Message(msg.err)
			m.appendLog(joblog.TagParams, m.form.Serial(), text)
			m.setNotice(jobsync.NoticeError, text)
			return m, nil
		}
		m.appendLog(joblog.TagParams, m.form.Serial(), "Device reset to the serial reader firmware. Refreshing...")
		m.setNotice(jobsync.NoticeInfo, "The device has been reset. The console has been reloaded.")
		return m, tea.Batch(m.resetForm(), fetchUserCmd(m.backend, m.opts.HTTPTimeout))

	case logoutMsg:
		m.busy = ""
		if msg.err != nil {
			m.setNotice(jobsync.NoticeError, "Logout failed: "+api.Message(msg.err))
			return m, nil
		}
		m.loggedOut = true
		m.appendLog(joblog.TagSystem, "", "Session closed.")
		return m, tea.Quit
	}

	return m, nil
}

// afterRegistry carries out what a port registry step asked for.
func (m *Model) afterRegistry(res ports.Result) tea.Cmd {
	var cmds []tea.Cmd
	if res.Lost != "" {
		m.appendLog(joblog.TagSystem, "", fmt.Sprintf("Port %s disconnected. Refreshing...", res.Lost))
	}
	if res.ClearSerial {
		m.form.SetSerial("")
		m.detecting = false
	}
	if res.Resolve && res.Selected != "" {
		m.form.SetSerial(m.resolver.Begin())
		m.detecting = true
		cmds = append(cmds, detectSerialCmd(m.resolver, res.Selected, m.opts.SerialTimeout))
	}
	if res.Refresh {
		m.registry.BeginRefresh()
		cmds = append(cmds, loadPortsCmd(m.backend, m.opts.HTTPTimeout))
	}
	m.syncPortCursor()
	return tea.Batch(cmds...)
}

func (m *Model) handlePush(msg push.Message) tea.Cmd {
	switch msg.Kind {
	case push.KindEvent:
		return m.apply(m.jobs.Apply(msg.Event))
	case push.KindConnected:
		m.pushOnline = true
		m.pushFailed = false
	case push.KindDisconnected:
		m.pushOnline = false
	case push.KindError:
		m.pushOnline = false
		// the client keeps retrying; report the outage once
		if m.pushFailed {
			return nil
		}
		m.pushFailed = true
	}
	m.appendLog(joblog.TagSystem, "", msg.Text())
	return nil
}

// apply executes the effects of a synchronizer transition.
func (m *Model) apply(t jobsync.Transition) tea.Cmd {
	run := m.jobs.Snapshot(t.Job)
	if t.LogLine != "" {
		m.appendLog(joblog.TagFor(t.Job), run.Serial, t.LogLine)
	}
	if t.Notice != nil {
		n := *t.Notice
		m.notice = &n
	}
	if t.ResetForm {
		return m.resetForm()
	}
	return nil
}

// resetForm clears the technician fields and reloads the port list.
func (m *Model) resetForm() tea.Cmd {
	m.form.Reset()
	m.syncInputs()
	m.registry.Reset()
	m.detecting = false
	m.registry.BeginRefresh()
	return loadPortsCmd(m.backend, m.opts.HTTPTimeout)
}

func (m *Model) prefill(serialNo string, values map[string]string) {
	if values == nil {
		m.setNotice(jobsync.NoticeError, certs.NoDetails)
		return
	}
	n := m.form.Prefill(values)
	m.syncInputs()
	m.setNotice(jobsync.NoticeInfo, fmt.Sprintf("Filled %d fields from the last programming of %s.", n, serialNo))
}

func (m *Model) setNotice(level jobsync.NoticeLevel, text string) {
	m.notice = &jobsync.Notice{Level: level, Text: text}
}

func (m *Model) appendLog(tag joblog.Tag, serialNo, message string) {
	m.log.Append(tag, serialNo, message)
	m.refreshLog()
}

func (m *Model) refreshLog() {
	m.logView.SetContent(strings.Join(m.log.Lines(), "\n"))
	m.logView.GotoBottom()
}

// syncInputs copies the form values into the inputs.
func (m *Model) syncInputs() {
	for i, k := range m.inputKeys {
		m.inputs[i].SetValue(m.form.Get(k))
	}
}

func (m *Model) syncPortCursor() {
	list := m.registry.Ports()
	sel := m.registry.Selected()
	for i, p := range list {
		if p.Device == sel {
			m.portCursor = i
			return
		}
	}
	if m.portCursor >= len(list) {
		m.portCursor = max(len(list)-1, 0)
	}
}

// programButton is the parameters control as rendered: the synchronizer's
// button, disabled while the form is not submittable.
func (m Model) programButton() jobsync.Button {
	b := m.jobs.Snapshot(jobsync.Parameters).Button
	if b.Enabled && !m.form.ComputeValidity(m.registry.Selected() != "") {
		b.Enabled = false
	}
	return b
}

// --- Key handling ---

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}
	if m.confirm != confirmNone {
		return m.handleConfirm(msg)
	}

	switch m.view {
	case ViewSetSerial:
		return m.handleDialogKey(msg)
	case ViewCerts:
		return m.handleCertsKey(msg)
	case ViewCertDetail:
		switch {
		case key.Matches(msg, m.keys.Back):
			m.view = ViewCerts
		case key.Matches(msg, m.keys.Prefill):
			if s, ok := m.selectedCert(); ok {
				m.prefill(m.certSerial, s.Data.EnvVars)
				m.view = ViewMain
			}
		}
		return m, nil
	case ViewHelp:
		if key.Matches(msg, m.keys.Back) || key.Matches(msg, m.keys.Help) {
			m.view = m.prevView
		}
		return m, nil
	}
	return m.handleMainKey(msg)
}

func (m Model) handleMainKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Help):
		m.prevView = m.view
		m.view = ViewHelp
		return m, nil

	case key.Matches(msg, m.keys.Next):
		return m, m.moveFocus(1)

	case key.Matches(msg, m.keys.Prev):
		return m, m.moveFocus(-1)

	case key.Matches(msg, m.keys.Program):
		return m.submitParams()

	case key.Matches(msg, m.keys.SetSerial):
		return m.openSetSerial()

	case key.Matches(msg, m.keys.Search):
		return m.openCerts()

	case key.Matches(msg, m.keys.Prefill):
		sn := m.form.Serial()
		if serial.IsPlaceholder(sn) {
			sn = ""
		}
		m.busy = "Loading last programming..."
		return m, prefillCmd(m.browser, sn, m.opts.HTTPTimeout)

	case key.Matches(msg, m.keys.Refresh):
		m.registry.BeginRefresh()
		return m, loadPortsCmd(m.backend, m.opts.HTTPTimeout)

	case key.Matches(msg, m.keys.ResetDevice):
		if m.registry.Selected() == "" {
			m.setNotice(jobsync.NoticeError, "Select a port before resetting the device.")
			return m, nil
		}
		m.confirm = confirmResetDevice
		return m, nil

	case key.Matches(msg, m.keys.Logout):
		m.confirm = confirmLogout
		return m, nil

	case key.Matches(msg, m.keys.ClearLog):
		m.log.Clear()
		m.refreshLog()
		return m, nil

	case key.Matches(msg, m.keys.Back):
		m.notice = nil
		return m, nil
	}

	if m.focus == focusPorts {
		return m.handlePortKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Up):
		return m, m.moveFocus(-1)
	case key.Matches(msg, m.keys.Down), key.Matches(msg, m.keys.Select):
		return m, m.moveFocus(1)
	}

	i := m.focus - 1
	var cmd tea.Cmd
	m.inputs[i], cmd = m.inputs[i].Update(msg)
	if err := m.form.Set(m.inputKeys[i], m.inputs[i].Value()); err != nil {
		m.opts.Logger.Error("form input not applied", zap.String("field", m.inputKeys[i]), zap.Error(err))
	}
	return m, cmd
}

func (m Model) handlePortKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	list := m.registry.Ports()
	switch {
	case key.Matches(msg, m.keys.Up):
		m.portCursor--
		if m.portCursor < 0 {
			m.portCursor = max(len(list)-1, 0)
		}
	case key.Matches(msg, m.keys.Down):
		m.portCursor++
		if m.portCursor >= len(list) {
			m.portCursor = 0
		}
	case key.Matches(msg, m.keys.Select):
		if m.portCursor >= len(list) {
			return m, nil
		}
		id := list[m.portCursor].Device
		if id == m.registry.Selected() {
			return m, nil
		}
		res, err := m.registry.Select(id)
		if err != nil {
			m.setNotice(jobsync.NoticeError, err.Error())
			return m, nil
		}
		return m, m.afterRegistry(res)
	}
	return m, nil
}

// moveFocus cycles through the port selector and the form inputs.
func (m *Model) moveFocus(delta int) tea.Cmd {
	total := len(m.inputs) + 1
	if m.focus > focusPorts {
		m.inputs[m.focus-1].Blur()
	}
	m.focus = (m.focus + delta + total) % total
	if m.focus > focusPorts {
		return m.inputs[m.focus-1].Focus()
	}
	return nil
}

func (m Model) handleConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Confirm):
		kind := m.confirm
		m.confirm = confirmNone
		switch kind {
		case confirmResetDevice:
			port := m.registry.Selected()
			if port == "" {
				m.setNotice(jobsync.NoticeError, "Select a port before resetting the device.")
				return m, nil
			}
			m.busy = "Resetting device..."
			m.appendLog(joblog.TagParams, m.form.Serial(), "Starting Cibtron firmware reset...")
			return m, resetDeviceCmd(m.backend, port, m.opts.HTTPTimeout)
		case confirmLogout:
			m.busy = "Closing session..."
			return m, logoutCmd(m.backend, m.opts.HTTPTimeout)
		}
	case key.Matches(msg, m.keys.Deny):
		m.confirm = confirmNone
	}
	return m, nil
}

// submitParams starts the parameters job when the control is enabled.
func (m Model) submitParams() (tea.Model, tea.Cmd) {
	if !m.programButton().Enabled {
		if m.jobs.Snapshot(jobsync.Parameters).State.Active() {
			return m, nil
		}
		switch err := m.form.Validate(); {
		case err != nil:
			m.setNotice(jobsync.NoticeError, err.Error())
		case m.registry.Selected() == "":
			m.setNotice(jobsync.NoticeError, "Select a port before programming.")
		}
		return m, nil
	}

	port := m.registry.Selected()
	t, err := m.jobs.Begin(jobsync.Parameters, m.form.CorrelationID(), m.form.Serial())
	if err != nil {
		m.setNotice(jobsync.NoticeError, err.Error())
		return m, nil
	}
	m.notice = nil
	return m, tea.Batch(
		m.apply(t),
		submitCmd(m.backend, jobsync.Parameters, m.form.Payload(port), m.opts.HTTPTimeout),
	)
}

// --- Set-serial dialog ---

func (m Model) openSetSerial() (tea.Model, tea.Cmd) {
	m.jobs.Reset(jobsync.SetSerial)
	if m.focus > focusPorts {
		m.inputs[m.focus-1].Blur()
		m.focus = focusPorts
	}
	for i := range m.dialog {
		m.dialog[i].SetValue("")
		m.dialog[i].Blur()
	}
	m.dialogFocus = 0
	m.dialogErr = ""
	m.view = ViewSetSerial
	return m, m.dialog[0].Focus()
}

func (m Model) handleDialogKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		m.dialog[m.dialogFocus].Blur()
		m.view = ViewMain
		return m, nil
	case key.Matches(msg, m.keys.Next), key.Matches(msg, m.keys.Prev),
		key.Matches(msg, m.keys.Up), key.Matches(msg, m.keys.Down):
		m.dialog[m.dialogFocus].Blur()
		m.dialogFocus = 1 - m.dialogFocus
		return m, m.dialog[m.dialogFocus].Focus()
	case key.Matches(msg, m.keys.Select):
		if m.dialogFocus == 0 {
			m.dialog[0].Blur()
			m.dialogFocus = 1
			return m, m.dialog[1].Focus()
		}
		return m.submitSetSerial()
	case key.Matches(msg, m.keys.Program):
		return m.submitSetSerial()
	}

	var cmd tea.Cmd
	m.dialog[m.dialogFocus], cmd = m.dialog[m.dialogFocus].Update(msg)
	return m, cmd
}

func (m Model) submitSetSerial() (tea.Model, tea.Cmd) {
	if !m.jobs.Snapshot(jobsync.SetSerial).Button.Enabled {
		return m, nil
	}
	req := form.SetSerialRequest{
		Operator:  m.form.Operator(),
		Serial:    m.dialog[0].Value(),
		AccessKey: m.dialog[1].Value(),
		Port:      m.registry.Selected(),
		UUID:      uuid.NewString(),
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		m.dialogErr = err.Error()
		return m, nil
	}
	t, err := m.jobs.Begin(jobsync.SetSerial, req.UUID, req.Serial)
	if err != nil {
		m.dialogErr = err.Error()
		return m, nil
	}
	m.dialogErr = ""
	return m, tea.Batch(
		m.apply(t),
		submitCmd(m.backend, jobsync.SetSerial, req.Values(), m.opts.HTTPTimeout),
	)
}

// --- Certificates ---

func (m Model) openCerts() (tea.Model, tea.Cmd) {
	sn := m.form.Serial()
	if serial.IsPlaceholder(sn) {
		sn = ""
	}
	m.view = ViewCerts
	m.certSerial = sn
	m.certList = nil
	m.certMsg = ""
	m.certCursor = 0
	m.certLoading = true
	return m, searchCertsCmd(m.browser, sn, m.opts.HTTPTimeout)
}

func (m Model) handleCertsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		m.view = ViewMain
	case key.Matches(msg, m.keys.Up):
		if m.certCursor > 0 {
			m.certCursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.certCursor < len(m.certList)-1 {
			m.certCursor++
		}
	case key.Matches(msg, m.keys.Select):
		if _, ok := m.selectedCert(); ok {
			m.view = ViewCertDetail
		}
	case key.Matches(msg, m.keys.Prefill):
		if s, ok := m.selectedCert(); ok {
			m.prefill(m.certSerial, s.Data.EnvVars)
			m.view = ViewMain
		}
	case key.Matches(msg, m.keys.Refresh):
		return m.openCerts()
	}
	return m, nil
}

func (m Model) selectedCert() (certs.Summary, bool) {
	if m.certCursor < 0 || m.certCursor >= len(m.certList) {
		return certs.Summary{}, false
	}
	return m.certList[m.certCursor], true
}
