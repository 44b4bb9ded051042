package jobsync

// Job identifies one of the two backend job types.
type Job int

const (
	Parameters Job = iota
	SetSerial
)

// Jobs lists every job type.
var Jobs = []Job{Parameters, SetSerial}

func (j Job) String() string {
	switch j {
	case SetSerial:
		return "set_serial"
	default:
		return "params"
	}
}

// State is the synchronizer's view of a run.
type State int

const (
	Idle State = iota
	// Submitting covers the window between the submit action and the
	// backend's acknowledgement. Status events arriving in it are handled
	// as if the run were already running.
	Submitting
	Running
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Submitting:
		return "submitting"
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "idle"
	}
}

// Active reports whether status events drive the run.
func (s State) Active() bool {
	return s == Submitting || s == Running
}

// Button is the label and enablement of a job's submit control.
type Button struct {
	Label   string
	Enabled bool
}

// Run is one execution of a job type.
type Run struct {
	Job           Job
	State         State
	CorrelationID string
	// Serial is the device serial (parameters) or the serial being
	// programmed (set-serial) at submission time.
	Serial string

	LastStatus string
	// Observed is false until the first status event of the run.
	Observed bool
	Finished bool

	Button Button
}

// Event is a status notification from the push channel or the poll fallback.
type Event struct {
	Job     Job
	Status  string
	Message string
	// SerialProgrammed is log_data.numero_serial_a_programar on set-serial events.
	SerialProgrammed string
}

// NoticeLevel distinguishes informational notices from errors.
type NoticeLevel int

const (
	NoticeInfo NoticeLevel = iota
	NoticeError
)

// Notice is a user-facing acknowledgement the caller must show.
type Notice struct {
	Level NoticeLevel
	Text  string
}

// Transition lists the effects of one synchronizer step. The caller
// executes them in order: log line, button, notice, form reset.
type Transition struct {
	Job       Job
	From      State
	To        State
	Kind      Kind
	// LogLine is empty when the step produced no new log entry.
	LogLine   string
	Button    Button
	Notice    *Notice
	ResetForm bool
}
