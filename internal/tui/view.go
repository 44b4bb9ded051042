package tui

import (
	"fmt"
	"strings"

	"github.com/wavesbyte/cibtron-tool/internal/certs"
	"github.com/wavesbyte/cibtron-tool/internal/form"
	"github.com/wavesbyte/cibtron-tool/internal/jobsync"
	"github.com/wavesbyte/cibtron-tool/internal/serial"
)

// View renders the current screen.
func (m Model) View() string {
	var content string

	switch m.view {
	case ViewSetSerial:
		content = m.viewSetSerial()
	case ViewCerts:
		content = m.viewCerts()
	case ViewCertDetail:
		content = m.viewCertDetail()
	case ViewHelp:
		content = m.viewHelp()
	default:
		content = m.viewMain()
	}

	if m.confirm != confirmNone {
		content += "\n" + m.viewConfirm()
	}

	// Help
	helpView := m.styles.Help.Render(m.help.View(m.keys))

	return m.styles.App.Render(
		content + "\n" + helpView,
	)
}

// renderTitleBar renders a consistent title bar with the port, operator
// and push channel state.
func (m Model) renderTitleBar(title string) string {
	var parts []string

	parts = append(parts, m.styles.Title.Render(title))

	switch {
	case m.registry.Refreshing():
		parts = append(parts, m.spinner.View()+" "+m.styles.Warning.Render("Detecting ports..."))
	case m.registry.Connected():
		parts = append(parts, m.styles.StatusOnline.Render("● "+m.registry.Status()))
	default:
		parts = append(parts, m.styles.StatusOffline.Render("○ "+m.registry.Status()))
	}

	if op := m.form.Operator(); op != "" {
		parts = append(parts, m.styles.Muted.Render("Operator "+op))
	}
	if m.pushOnline {
		parts = append(parts, m.styles.Success.Render("live"))
	} else if m.opts.Push != nil {
		parts = append(parts, m.styles.Warning.Render("offline"))
	}
	if m.busy != "" {
		parts = append(parts, m.spinner.View()+" "+m.styles.Warning.Render(m.busy))
	}

	return strings.Join(parts, "  ")
}

func (m Model) renderNotice() string {
	if m.notice == nil {
		return ""
	}
	if m.notice.Level == jobsync.NoticeError {
		return m.styles.Error.Render("✗ "+m.notice.Text) + "\n"
	}
	return m.styles.Success.Render("✓ "+m.notice.Text) + "\n"
}

func (m Model) viewMain() string {
	var b strings.Builder

	b.WriteString(m.renderTitleBar("Cibtron Console"))
	b.WriteString("\n")
	b.WriteString(m.renderNotice())

	// Ports
	b.WriteString(m.styles.Section.Render("Port"))
	b.WriteString("\n")
	list := m.registry.Ports()
	if len(list) == 0 {
		b.WriteString(m.styles.Muted.Render("  " + m.registry.Placeholder()))
		b.WriteString("\n")
	}
	selected := m.registry.Selected()
	for i, p := range list {
		mark := "○"
		if p.Device == selected {
			mark = "●"
		}
		line := mark + " " + p.Label()
		if m.focus == focusPorts && i == m.portCursor {
			b.WriteString(m.styles.MenuItemSelected.Render("> " + line))
		} else {
			b.WriteString(m.styles.MenuItem.Render("  " + line))
		}
		b.WriteString("\n")
	}
	if len(list) > 0 && selected == "" && !m.registry.Refreshing() {
		b.WriteString(m.styles.Muted.Render("  " + m.registry.Placeholder()))
		b.WriteString("\n")
	}

	// Fixed and detected fields
	b.WriteString(m.styles.Section.Render("Device"))
	b.WriteString("\n")
	sn := m.form.Serial()
	switch {
	case m.detecting:
		b.WriteString(m.renderField(form.Label(form.KeySerial), m.spinner.View()+" "+sn))
	case serial.IsPlaceholder(sn):
		b.WriteString(m.styles.Label.Render(form.Label(form.KeySerial)+":") + " " + m.styles.Error.Render(sn) + "\n")
	case sn == "":
		b.WriteString(m.renderField(form.Label(form.KeySerial), "-"))
	default:
		b.WriteString(m.renderField(form.Label(form.KeySerial), sn))
	}
	b.WriteString(m.renderField("Taximeter", m.form.Get(form.KeyBrand)+" "+m.form.Get(form.KeyModel)))
	b.WriteString(m.renderField(form.Label(form.KeyUUID), m.form.CorrelationID()))

	// Parameters
	b.WriteString(m.styles.Section.Render("Parameters"))
	b.WriteString("\n")
	b.WriteString(m.renderInputs())

	b.WriteString(m.renderButton(m.programButton()))
	b.WriteString("\n")

	// Job log
	b.WriteString(m.styles.LogBox.Render(m.logView.View()))

	return b.String()
}

// fieldRows is how many form inputs fit on screen.
func (m Model) fieldRows() int {
	rows := 10
	if m.height > 0 {
		rows = m.height - m.logView.Height - 24
	}
	return min(max(rows, 4), len(m.inputs))
}

// renderInputs renders a window of the form inputs around the focused one.
func (m Model) renderInputs() string {
	var b strings.Builder
	errs := m.form.FieldErrors()

	rows := m.fieldRows()
	start := 0
	if m.focus > focusPorts {
		start = m.focus - 1 - rows/2
	}
	start = max(0, min(start, len(m.inputs)-rows))

	if start > 0 {
		b.WriteString(m.styles.Muted.Render(fmt.Sprintf("  ↑ %d more", start)))
		b.WriteString("\n")
	}
	for i := start; i < start+rows; i++ {
		k := m.inputKeys[i]
		f, _ := form.Lookup(k)
		label := f.Label
		if f.Required {
			label += " *"
		}
		line := m.styles.Label.Render(label) + " " + m.inputs[i].View()
		if i == m.focus-1 {
			line = m.styles.Highlight.Render(">") + line
			if msg, ok := errs[k]; ok && m.form.Get(k) != "" {
				line += "  " + m.styles.Error.Render(msg)
			}
		} else {
			line = " " + line
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	if rest := len(m.inputs) - start - rows; rest > 0 {
		b.WriteString(m.styles.Muted.Render(fmt.Sprintf("  ↓ %d more", rest)))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderButton(btn jobsync.Button) string {
	if btn.Enabled {
		return m.styles.Button.Render(btn.Label)
	}
	return m.styles.ButtonDisabled.Render(btn.Label)
}

func (m Model) viewConfirm() string {
	var q string
	switch m.confirm {
	case confirmResetDevice:
		q = fmt.Sprintf("Reset the taximeter on %s to the serial reader firmware?", m.registry.Selected())
	case confirmLogout:
		q = "Close the session?"
	}
	return m.styles.Dialog.Render(
		m.styles.Warning.Render(q) + "\n\n" + m.styles.Muted.Render("y confirm • n cancel"),
	)
}

func (m Model) viewSetSerial() string {
	var b strings.Builder

	b.WriteString(m.renderTitleBar("Program New Serial"))
	b.WriteString("\n")
	b.WriteString(m.renderNotice())

	var d strings.Builder
	port := m.registry.Selected()
	if port == "" {
		port = m.registry.Placeholder()
	}
	d.WriteString(m.renderField("Operator", m.form.Operator()))
	d.WriteString(m.renderField("Port", port))
	d.WriteString(m.renderField("Current serial", m.form.Serial()))
	d.WriteString("\n")
	labels := []string{"New serial *", "Access key *"}
	for i, in := range m.dialog {
		marker := " "
		if i == m.dialogFocus {
			marker = m.styles.Highlight.Render(">")
		}
		d.WriteString(marker + m.styles.Label.Render(labels[i]) + " " + in.View() + "\n")
	}
	if m.dialogErr != "" {
		d.WriteString("\n" + m.styles.Error.Render(m.dialogErr) + "\n")
	}
	d.WriteString(m.renderButton(m.jobs.Snapshot(jobsync.SetSerial).Button))
	d.WriteString("\n\n")
	d.WriteString(m.styles.Muted.Render("enter/ctrl+s submit • esc close"))

	b.WriteString(m.styles.Dialog.Render(d.String()))
	b.WriteString("\n")
	b.WriteString(m.styles.LogBox.Render(m.logView.View()))
	return b.String()
}

func (m Model) viewCerts() string {
	var b strings.Builder

	title := "Programming History"
	if m.certSerial != "" {
		title += " · " + m.certSerial
	}
	b.WriteString(m.renderTitleBar(title))
	b.WriteString("\n\n")

	if m.certLoading {
		b.WriteString(m.spinner.View() + " " + m.styles.Muted.Render("Searching..."))
		return b.String()
	}
	if m.certMsg != "" {
		b.WriteString(m.styles.Muted.Render(m.certMsg))
		return b.String()
	}

	now := m.opts.Now()
	b.WriteString(fmt.Sprintf("%d programming(s)\n", len(m.certList)))
	for i, s := range m.certList {
		lines := s.Card(now)
		if !s.Time.IsZero() {
			lines = append(lines, m.styles.Muted.Render(s.When(now)))
		}
		card := strings.Join(lines, "\n")
		if i == m.certCursor {
			b.WriteString(m.styles.CardSelected.Render(card))
		} else {
			b.WriteString(m.styles.Card.Render(card))
		}
		b.WriteString("\n")
	}
	b.WriteString(m.styles.Muted.Render("enter details • ctrl+t fill form • esc back"))
	return b.String()
}

func (m Model) viewCertDetail() string {
	var b strings.Builder

	s, ok := m.selectedCert()
	if !ok {
		b.WriteString(m.renderTitleBar("Programming"))
		b.WriteString("\n\n")
		b.WriteString(m.styles.Error.Render("No programming selected"))
		return b.String()
	}

	b.WriteString(m.renderTitleBar("Programming " + s.ShortID))
	b.WriteString("\n\n")

	details := certs.Details(s)
	if details == nil {
		b.WriteString(m.styles.Muted.Render(certs.NoDetails))
		return b.String()
	}
	for _, d := range details {
		b.WriteString(m.renderField(d.Label, d.Value))
	}
	b.WriteString("\n")
	b.WriteString(m.styles.Muted.Render("ctrl+t fill form • esc back"))
	return b.String()
}

func (m Model) viewHelp() string {
	var b strings.Builder

	b.WriteString(m.renderTitleBar("Help"))
	b.WriteString("\n\n")
	b.WriteString("Select the port of the connected taximeter; its serial is read automatically.\n")
	b.WriteString("Fill the parameters and press " + m.keys.Program.Help().Key + " to program them.\n")
	b.WriteString("Job progress and connection events appear in the log at the bottom.\n\n")

	h := m.help
	h.ShowAll = true
	b.WriteString(h.View(m.keys))
	return b.String()
}

func (m Model) renderField(label, value string) string {
	return m.styles.Label.Render(label+":") + " " + m.styles.Value.Render(value) + "\n"
}
