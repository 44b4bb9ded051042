package jobsync

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Resting labels of the submit controls.
const (
	ParametersLabel = "Program Cibtron WB-001 Parameters"
	SetSerialLabel  = "Program New Serial"
	ProcessingLabel = "Processing..."
)

// ErrBusy is returned by Begin while a run of the same type is in flight.
var ErrBusy = errors.New("a job of this type is already in progress")

// Options configures a Synchronizer. Zero values select the defaults.
type Options struct {
	// AutoReset requests a form reset after a parameters run succeeds.
	AutoReset   bool
	Classifiers map[Job]Classifier
	Labels      map[Job]string
}

type slot struct {
	mu         sync.Mutex
	run        Run
	classifier Classifier
	label      string
}

// Synchronizer owns one Run per job type. Every method locks only the
// slot of the job it touches, so events for one job type are applied
// strictly in call order while the two job types stay independent.
type Synchronizer struct {
	autoReset bool
	slots     map[Job]*slot
}

// New creates a Synchronizer with both job types idle.
func New(opts Options) *Synchronizer {
	s := &Synchronizer{
		autoReset: opts.AutoReset,
		slots:     make(map[Job]*slot, len(Jobs)),
	}
	defaults := map[Job]Classifier{Parameters: ParametersClassifier, SetSerial: SetSerialClassifier}
	labels := map[Job]string{Parameters: ParametersLabel, SetSerial: SetSerialLabel}
	for _, job := range Jobs {
		sl := &slot{classifier: defaults[job], label: labels[job]}
		if c, ok := opts.Classifiers[job]; ok {
			sl.classifier = c
		}
		if l, ok := opts.Labels[job]; ok && l != "" {
			sl.label = l
		}
		sl.run = idleRun(job, sl.label)
		s.slots[job] = sl
	}
	return s
}

func idleRun(job Job, label string) Run {
	return Run{Job: job, State: Idle, Button: Button{Label: label, Enabled: true}}
}

func (s *Synchronizer) slot(job Job) *slot {
	sl, ok := s.slots[job]
	if !ok {
		panic(fmt.Sprintf("jobsync: unknown job %d", job))
	}
	return sl
}

// Snapshot returns a copy of the current run of job.
func (s *Synchronizer) Snapshot(job Job) Run {
	sl := s.slot(job)
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return sl.run
}

// Reset returns job to idle, forgetting the last observed status.
func (s *Synchronizer) Reset(job Job) Run {
	sl := s.slot(job)
	sl.mu.Lock()
	defer sl.mu.Unlock()
	sl.run = idleRun(job, sl.label)
	return sl.run
}

// Begin starts a new run for a submission the caller is about to send.
// It clears the finished flag and the last observed status so that no
// event from a previous run can count against the new one.
func (s *Synchronizer) Begin(job Job, correlationID, serial string) (Transition, error) {
	sl := s.slot(job)
	sl.mu.Lock()
	defer sl.mu.Unlock()

	if sl.run.State.Active() {
		return Transition{}, ErrBusy
	}
	from := sl.run.State
	sl.run = Run{
		Job:           job,
		State:         Submitting,
		CorrelationID: correlationID,
		Serial:        serial,
		Button:        Button{Label: ProcessingLabel},
	}

	line := "Starting parameter programming..."
	if job == SetSerial {
		line = fmt.Sprintf("Starting new serial programming: %s", serial)
	}
	return Transition{Job: job, From: from, To: Submitting, LogLine: line, Button: sl.run.Button}, nil
}

// Accepted records the backend's acknowledgement of the submission.
func (s *Synchronizer) Accepted(job Job) Transition {
	sl := s.slot(job)
	sl.mu.Lock()
	defer sl.mu.Unlock()

	r := &sl.run
	t := Transition{Job: job, From: r.State}
	if r.State == Submitting {
		r.State = Running
	}

	t.LogLine = "Parameter programming job started. Monitoring..."
	if job == SetSerial {
		t.LogLine = fmt.Sprintf("Set-serial job for serial %s (UUID: %s) started. Monitoring...", r.Serial, r.CorrelationID)
	}
	t.To = r.State
	t.Button = r.Button
	return t
}

// Rejected records a failed submission. transport distinguishes a
// network failure from a backend refusal.
func (s *Synchronizer) Rejected(job Job, message string, transport bool) Transition {
	sl := s.slot(job)
	sl.mu.Lock()
	defer sl.mu.Unlock()

	r := &sl.run
	t := Transition{Job: job, From: r.State, Kind: KindFailure}
	if r.State.Active() {
		r.State = Idle
	}
	r.Button = Button{Label: sl.label, Enabled: true}

	name := "parameters"
	if job == SetSerial {
		name = "set-serial"
	}
	if transport {
		t.LogLine = fmt.Sprintf("Network error submitting %s job: %s", name, message)
		t.Notice = &Notice{Level: NoticeError, Text: "Network error: " + message}
	} else {
		t.LogLine = fmt.Sprintf("Failed to start %s job: %s", name, message)
		t.Notice = &Notice{Level: NoticeError, Text: "Error: " + message}
	}
	t.To = r.State
	t.Button = r.Button
	return t
}

// Apply handles one status event. A status equal to the last observed one
// produces no log line. Terminal success fires its notice at most once per
// run; outside a run, events are only logged.
func (s *Synchronizer) Apply(ev Event) Transition {
	sl := s.slot(ev.Job)
	sl.mu.Lock()
	defer sl.mu.Unlock()

	r := &sl.run
	t := Transition{Job: ev.Job, From: r.State, Kind: sl.classifier.Classify(ev.Status)}

	if !r.Observed || ev.Status != r.LastStatus {
		t.LogLine = statusLine(ev)
		r.LastStatus = ev.Status
		r.Observed = true
	}

	switch t.Kind {
	case KindSuccess:
		if r.State.Active() && !r.Finished {
			r.Finished = true
			r.State = Succeeded
			r.Button = Button{Label: sl.label, Enabled: true}
			t.Notice = &Notice{Level: NoticeInfo, Text: successText(r, ev)}
			t.ResetForm = ev.Job == Parameters && s.autoReset
		}
	case KindFailure:
		repeat := r.State == Failed && !sl.classifier.GuardFailure
		if r.State.Active() || repeat {
			r.Finished = true
			r.State = Failed
			r.Button = Button{Label: sl.label, Enabled: true}
			t.Notice = &Notice{Level: NoticeError, Text: failureText(r, ev)}
		}
	default:
		if r.State.Active() && ev.Status != "" {
			r.Button = Button{Label: ev.Status}
		}
	}

	t.To = r.State
	t.Button = r.Button
	return t
}

func statusLine(ev Event) string {
	return strings.TrimSpace(fmt.Sprintf("Status: %s. %s", ev.Status, ev.Message))
}

func programmedSerial(r *Run, ev Event) string {
	switch {
	case ev.SerialProgrammed != "":
		return ev.SerialProgrammed
	case r.Serial != "":
		return r.Serial
	default:
		return "unknown"
	}
}

func successText(r *Run, ev Event) string {
	if ev.Job == SetSerial {
		return fmt.Sprintf("New serial %s has been programmed on the device. You can disconnect it.", programmedSerial(r, ev))
	}
	return fmt.Sprintf("Parameter programming for %s completed. Disconnect the taximeter.", r.Serial)
}

func failureText(r *Run, ev Event) string {
	detail := ev.Message
	if detail == "" {
		detail = ev.Status
	}
	if ev.Job == SetSerial {
		return fmt.Sprintf("Error while programming new serial %s: %s", programmedSerial(r, ev), detail)
	}
	return fmt.Sprintf("Parameter programming for %s failed: %s", r.Serial, detail)
}
