package jobsync

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func begin(t *testing.T, s *Synchronizer, job Job) {
	t.Helper()
	_, err := s.Begin(job, "corr-1", "000123")
	require.NoError(t, err)
	s.Accepted(job)
}

// applyAll returns the log lines and notices produced by events.
func applyAll(s *Synchronizer, events ...Event) (lines []string, notices []*Notice, resets int) {
	for _, ev := range events {
		tr := s.Apply(ev)
		if tr.LogLine != "" {
			lines = append(lines, tr.LogLine)
		}
		if tr.Notice != nil {
			notices = append(notices, tr.Notice)
		}
		if tr.ResetForm {
			resets++
		}
	}
	return lines, notices, resets
}

func TestClassify(t *testing.T) {
	tests := []struct {
		classifier Classifier
		status     string
		want       Kind
	}{
		{ParametersClassifier, "Compilando WavesByte Cibtron WB-001...", KindProgress},
		{ParametersClassifier, "Finished", KindSuccess},
		{ParametersClassifier, "Finalizado", KindSuccess},
		{ParametersClassifier, "completed", KindSuccess},
		{ParametersClassifier, "Programación completa.", KindSuccess},
		{ParametersClassifier, "Error de compilación", KindFailure},
		{ParametersClassifier, "ERROR flashing", KindFailure},
		{ParametersClassifier, "blocked", KindFailure},
		{ParametersClassifier, "auth_failed", KindProgress},
		{SetSerialClassifier, "Programación de Serial Completa", KindSuccess},
		{SetSerialClassifier, "auth_failed", KindFailure},
		{SetSerialClassifier, "blocked", KindProgress},
		{SetSerialClassifier, "Finalizado", KindProgress},
		{SetSerialClassifier, "", KindProgress},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.classifier.Classify(tt.status))
		})
	}
}

func TestClassifierIsData(t *testing.T) {
	s := New(Options{Classifiers: map[Job]Classifier{
		Parameters: {Success: []string{"DONE"}, FailureSubstring: "boom"},
	}})
	begin(t, s, Parameters)

	tr := s.Apply(Event{Job: Parameters, Status: "Finished"})
	assert.Equal(t, KindProgress, tr.Kind)
	tr = s.Apply(Event{Job: Parameters, Status: "DONE"})
	assert.Equal(t, KindSuccess, tr.Kind)
	assert.Equal(t, Succeeded, tr.To)
}

func TestDuplicateStatusLoggedOnce(t *testing.T) {
	s := New(Options{AutoReset: true})
	begin(t, s, Parameters)

	lines, notices, resets := applyAll(s,
		Event{Job: Parameters, Status: "Compiling"},
		Event{Job: Parameters, Status: "Compiling"},
		Event{Job: Parameters, Status: "Finished"},
	)

	assert.Equal(t, []string{"Status: Compiling.", "Status: Finished."}, lines)
	require.Len(t, notices, 1)
	assert.Equal(t, NoticeInfo, notices[0].Level)
	assert.Contains(t, notices[0].Text, "000123")
	assert.Equal(t, 1, resets)
}

func TestSuccessAtMostOncePerRun(t *testing.T) {
	for _, job := range Jobs {
		t.Run(job.String(), func(t *testing.T) {
			s := New(Options{AutoReset: true})
			begin(t, s, job)

			success := ParametersClassifier.Success[0]
			if job == SetSerial {
				success = SetSerialClassifier.Success[0]
			}
			_, notices, _ := applyAll(s,
				Event{Job: job, Status: success},
				Event{Job: job, Status: "Working"},
				Event{Job: job, Status: success},
				Event{Job: job, Status: success},
			)
			assert.Len(t, notices, 1)

			run := s.Snapshot(job)
			assert.True(t, run.Finished)
			assert.Equal(t, Succeeded, run.State)
			assert.True(t, run.Button.Enabled)
		})
	}
}

func TestProgressMirrorsStatusOnButton(t *testing.T) {
	s := New(Options{})
	tr, err := s.Begin(Parameters, "corr-1", "000123")
	require.NoError(t, err)
	assert.Equal(t, Button{Label: ProcessingLabel}, tr.Button)
	assert.Equal(t, Submitting, tr.To)

	tr = s.Apply(Event{Job: Parameters, Status: "Compilando WavesByte Cibtron WB-001..."})
	assert.Equal(t, Button{Label: "Compilando WavesByte Cibtron WB-001..."}, tr.Button)

	tr = s.Accepted(Parameters)
	assert.Equal(t, Running, tr.To)
	assert.Equal(t, "Compilando WavesByte Cibtron WB-001...", tr.Button.Label)
}

func TestParametersFailureReenables(t *testing.T) {
	s := New(Options{AutoReset: true})
	begin(t, s, Parameters)

	tr := s.Apply(Event{Job: Parameters, Status: "Error al compilar", Message: "exit 1"})
	assert.Equal(t, Failed, tr.To)
	assert.Equal(t, Button{Label: ParametersLabel, Enabled: true}, tr.Button)
	require.NotNil(t, tr.Notice)
	assert.Equal(t, NoticeError, tr.Notice.Level)
	assert.Contains(t, tr.Notice.Text, "exit 1")
	assert.False(t, tr.ResetForm)

	// guarded: a second failure only logs
	tr = s.Apply(Event{Job: Parameters, Status: "failed"})
	assert.Equal(t, "Status: failed.", tr.LogLine)
	assert.Nil(t, tr.Notice)

	// a late success cannot resurrect the failed run
	tr = s.Apply(Event{Job: Parameters, Status: "Finished"})
	assert.Nil(t, tr.Notice)
	assert.Equal(t, Failed, tr.To)
}

func TestSetSerialFailureNotGuarded(t *testing.T) {
	s := New(Options{})
	begin(t, s, SetSerial)

	_, notices, _ := applyAll(s,
		Event{Job: SetSerial, Status: "auth_failed", Message: "bad key", SerialProgrammed: "000999"},
		Event{Job: SetSerial, Status: "auth_failed", Message: "bad key", SerialProgrammed: "000999"},
	)
	require.Len(t, notices, 2)
	assert.Equal(t, "Error while programming new serial 000999: bad key", notices[0].Text)
	assert.True(t, s.Snapshot(SetSerial).Button.Enabled)
}

func TestSetSerialSuccessDoesNotResetForm(t *testing.T) {
	s := New(Options{AutoReset: true})
	begin(t, s, SetSerial)

	tr := s.Apply(Event{Job: SetSerial, Status: "Programación de Serial Completa"})
	require.NotNil(t, tr.Notice)
	assert.Equal(t, "New serial 000123 has been programmed on the device. You can disconnect it.", tr.Notice.Text)
	assert.False(t, tr.ResetForm)
}

func TestAutoResetDisabled(t *testing.T) {
	s := New(Options{AutoReset: false})
	begin(t, s, Parameters)
	tr := s.Apply(Event{Job: Parameters, Status: "Finished"})
	require.NotNil(t, tr.Notice)
	assert.False(t, tr.ResetForm)
}

func TestIdleEventsOnlyLog(t *testing.T) {
	s := New(Options{AutoReset: true})

	tr := s.Apply(Event{Job: Parameters, Status: "Finished"})
	assert.Equal(t, "Status: Finished.", tr.LogLine)
	assert.Nil(t, tr.Notice)
	assert.False(t, tr.ResetForm)
	assert.Equal(t, Idle, tr.To)
}

func TestBeginClearsPreviousRun(t *testing.T) {
	s := New(Options{})
	begin(t, s, Parameters)
	applyAll(s, Event{Job: Parameters, Status: "Finished"})

	// the same terminal status in a new run is logged and acknowledged again
	begin(t, s, Parameters)
	lines, notices, _ := applyAll(s, Event{Job: Parameters, Status: "Finished"})
	assert.Len(t, lines, 1)
	assert.Len(t, notices, 1)
}

func TestBeginWhileActive(t *testing.T) {
	s := New(Options{})
	begin(t, s, Parameters)

	_, err := s.Begin(Parameters, "corr-2", "000123")
	assert.ErrorIs(t, err, ErrBusy)

	// the other job type is independent
	_, err = s.Begin(SetSerial, "corr-3", "000555")
	assert.NoError(t, err)
}

func TestRejected(t *testing.T) {
	s := New(Options{})
	_, err := s.Begin(Parameters, "corr-1", "000123")
	require.NoError(t, err)

	tr := s.Rejected(Parameters, "A job is already running.", false)
	assert.Equal(t, Idle, tr.To)
	assert.Equal(t, "Failed to start parameters job: A job is already running.", tr.LogLine)
	require.NotNil(t, tr.Notice)
	assert.Equal(t, "Error: A job is already running.", tr.Notice.Text)
	assert.True(t, tr.Button.Enabled)

	_, err = s.Begin(Parameters, "corr-2", "000123")
	require.NoError(t, err)
	tr = s.Rejected(Parameters, "connection refused", true)
	assert.Equal(t, "Network error: connection refused", tr.Notice.Text)
}

func TestResetReturnsToIdle(t *testing.T) {
	s := New(Options{})
	begin(t, s, SetSerial)
	applyAll(s, Event{Job: SetSerial, Status: "Escribiendo serial"})

	run := s.Reset(SetSerial)
	assert.Equal(t, Idle, run.State)
	assert.False(t, run.Observed)
	assert.False(t, run.Finished)
	assert.Equal(t, Button{Label: SetSerialLabel, Enabled: true}, run.Button)
}

func TestConcurrentEventsPerJobAreSequential(t *testing.T) {
	s := New(Options{AutoReset: true})
	begin(t, s, Parameters)
	begin(t, s, SetSerial)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		notices int
	)
	for i := 0; i < 50; i++ {
		for _, ev := range []Event{
			{Job: Parameters, Status: "Finished"},
			{Job: SetSerial, Status: "Programación de Serial Completa"},
		} {
			wg.Add(1)
			go func(ev Event) {
				defer wg.Done()
				if tr := s.Apply(ev); tr.Notice != nil {
					mu.Lock()
					notices++
					mu.Unlock()
				}
			}(ev)
		}
	}
	wg.Wait()
	assert.Equal(t, 2, notices)
}
