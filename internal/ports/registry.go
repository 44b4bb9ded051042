package ports

import (
	"fmt"

	"github.com/wavesbyte/cibtron-tool/internal/api"
)

// Placeholders shown by the port selector when no port is selected.
const (
	PlaceholderAwaiting  = "Awaiting detection..."
	PlaceholderDetecting = "Detecting ports..."
	PlaceholderNone      = "No taximeters detected"
	PlaceholderError     = "Error loading ports"
	PlaceholderChoose    = "Select a port..."
)

// Result describes what a registry step requires from the caller.
type Result struct {
	Previous string
	Selected string
	// Resolve asks for serial detection on Selected.
	Resolve bool
	// ClearSerial asks for the serial field to be emptied.
	ClearSerial bool
	// Refresh asks for the port list to be fetched again.
	Refresh bool
	// Lost is the port the connectivity poll reported as gone.
	Lost string
}

// Changed reports whether the selection moved.
func (r Result) Changed() bool {
	return r.Previous != r.Selected
}

// Registry tracks the detected ports and the selected one.
// It is not safe for concurrent use; the owner serialises access.
type Registry struct {
	ports       []api.Port
	selected    string
	placeholder string
	connected   bool
	refreshing  bool
}

// NewRegistry returns an empty registry awaiting detection.
func NewRegistry() *Registry {
	return &Registry{placeholder: PlaceholderAwaiting}
}

// Ports returns the detected ports.
func (r *Registry) Ports() []api.Port {
	return append([]api.Port(nil), r.ports...)
}

// Selected returns the selected port, or "" when none is.
func (r *Registry) Selected() string {
	if r.refreshing {
		return ""
	}
	return r.selected
}

// Placeholder returns the text shown while nothing is selected.
func (r *Registry) Placeholder() string {
	return r.placeholder
}

// Refreshing reports whether a port list fetch is in flight.
func (r *Registry) Refreshing() bool {
	return r.refreshing
}

// Connected reports the last known link state of the selected port.
func (r *Registry) Connected() bool {
	return r.connected && r.selected != ""
}

// Status renders the link state.
func (r *Registry) Status() string {
	if r.Connected() {
		return fmt.Sprintf("Connected (%s)", r.selected)
	}
	return "Disconnected"
}

// BeginRefresh marks a port list fetch as started. The previous
// selection is remembered so Apply can restore it.
func (r *Registry) BeginRefresh() {
	r.refreshing = true
	r.placeholder = PlaceholderDetecting
}

// Apply installs the result of a port list fetch. A failed fetch or an
// empty list clears the selection. A previous selection still present is
// kept; otherwise the single port is selected when autoSelect is set.
func (r *Registry) Apply(list []api.Port, err error, autoSelect bool) Result {
	prev := r.selected
	r.refreshing = false
	res := Result{Previous: prev}

	switch {
	case err != nil:
		r.ports = nil
		r.selected = ""
		r.connected = false
		r.placeholder = PlaceholderError
	case len(list) == 0:
		r.ports = nil
		r.selected = ""
		r.connected = false
		r.placeholder = PlaceholderNone
	default:
		r.ports = append([]api.Port(nil), list...)
		r.placeholder = PlaceholderChoose
		if prev == "" || !r.has(prev) {
			r.selected = ""
			r.connected = false
			if autoSelect && len(list) == 1 {
				r.selected = list[0].Device
				r.connected = true
				res.Resolve = true
			}
		}
	}

	res.Selected = r.selected
	if res.Changed() && r.selected == "" {
		res.ClearSerial = true
	}
	return res
}

// Select records a manual selection. An empty id clears it.
func (r *Registry) Select(id string) (Result, error) {
	res := Result{Previous: r.selected}
	if id != "" && !r.has(id) {
		return res, fmt.Errorf("port %s is not in the detected list", id)
	}
	r.selected = id
	r.connected = id != ""
	res.Selected = id
	res.Resolve = id != ""
	res.ClearSerial = id == ""
	return res, nil
}

// ApplyConnectivity installs a liveness poll result for the selected port.
// A poll error marks the link down without touching the selection;
// a definite "disconnected" clears the selection and asks for a refresh.
func (r *Registry) ApplyConnectivity(port string, connected bool, err error) Result {
	res := Result{Previous: r.selected, Selected: r.selected}
	if r.selected == "" || port != r.selected {
		// stale poll for a port that is no longer selected
		return res
	}
	if err != nil {
		r.connected = false
		return res
	}
	if connected {
		r.connected = true
		return res
	}

	r.selected = ""
	r.connected = false
	res.Selected = ""
	res.Lost = port
	res.ClearSerial = true
	res.Refresh = true
	return res
}

// Reset returns the registry to its initial awaiting state.
func (r *Registry) Reset() {
	*r = Registry{placeholder: PlaceholderAwaiting}
}

func (r *Registry) has(id string) bool {
	for _, p := range r.ports {
		if p.Device == id {
			return true
		}
	}
	return false
}
