package cli

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/lthibault/jitterbug/v2"
	"go.uber.org/zap"

	"github.com/wavesbyte/cibtron-tool/internal/api"
	"github.com/wavesbyte/cibtron-tool/internal/joblog"
	"github.com/wavesbyte/cibtron-tool/internal/jobsync"
	"github.com/wavesbyte/cibtron-tool/internal/push"
)

// Submitter is the part of the API client that starts jobs.
type Submitter interface {
	ExecuteAndProgram(ctx context.Context, form url.Values) (*api.SubmitResult, error)
	ExecuteSetSerialJob(ctx context.Context, form url.Values) (*api.SubmitResult, error)
}

// jobRunner submits one job and follows it to the end, printing the same
// log lines the TUI shows.
type jobRunner struct {
	submitter Submitter
	jobs      *jobsync.Synchronizer
	log       *joblog.Log
	out       io.Writer

	accepted     chan struct{}
	acceptedOnce sync.Once
}

func newJobRunner(s Submitter, out io.Writer, logger *zap.Logger) *jobRunner {
	return &jobRunner{
		submitter: s,
		jobs:      jobsync.New(jobsync.Options{}),
		log:       joblog.New(joblog.WithLogger(logger)),
		out:       out,
		accepted:  make(chan struct{}),
	}
}

// Accepted is closed once the backend acknowledged the submission.
func (r *jobRunner) Accepted() <-chan struct{} {
	return r.accepted
}

func (r *jobRunner) print(tag joblog.Tag, serial, line string) {
	fmt.Fprintln(r.out, r.log.Append(tag, serial, line).String())
}

func (r *jobRunner) apply(t jobsync.Transition) {
	run := r.jobs.Snapshot(t.Job)
	if t.LogLine != "" {
		r.print(joblog.TagFor(t.Job), run.Serial, t.LogLine)
	}
	if t.Notice != nil {
		printNotice(r.out, t.Notice)
	}
}

type submitReply struct {
	res *api.SubmitResult
	err error
}

// Run submits values for job and consumes events until the run succeeds,
// fails or ctx is done. Status events may arrive before the submission is
// acknowledged, so events is read while the request is in flight.
func (r *jobRunner) Run(ctx context.Context, job jobsync.Job, correlationID, serial string, values url.Values, events <-chan push.Message) (jobsync.Run, error) {
	t, err := r.jobs.Begin(job, correlationID, serial)
	if err != nil {
		return r.jobs.Snapshot(job), err
	}
	r.apply(t)

	replies := make(chan submitReply, 1)
	go func() {
		submit := r.submitter.ExecuteAndProgram
		if job == jobsync.SetSerial {
			submit = r.submitter.ExecuteSetSerialJob
		}
		res, err := submit(ctx, values)
		replies <- submitReply{res: res, err: err}
	}()

	for {
		select {
		case <-ctx.Done():
			return r.jobs.Snapshot(job), ctx.Err()

		case rep := <-replies:
			replies = nil
			if rep.err != nil {
				r.apply(r.jobs.Rejected(job, api.Message(rep.err), api.IsTransport(rep.err)))
				return r.jobs.Snapshot(job), rep.err
			}
			r.apply(r.jobs.Accepted(job))
			r.acceptedOnce.Do(func() { close(r.accepted) })

		case m, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			switch m.Kind {
			case push.KindEvent:
				if m.Event.Job == job {
					r.apply(r.jobs.Apply(m.Event))
				}
			default:
				r.print(joblog.TagSystem, "", m.Text())
			}
		}

		run := r.jobs.Snapshot(job)
		if replies != nil {
			continue
		}
		switch run.State {
		case jobsync.Succeeded:
			return run, nil
		case jobsync.Failed:
			return run, fmt.Errorf("%s job failed: %s", job, run.LastStatus)
		}
	}
}

// connectPush starts pc and waits for the first connection attempt. The
// returned channel carries every later message.
func connectPush(ctx context.Context, pc *push.Client, timeout time.Duration) (<-chan push.Message, push.Message, error) {
	msgs := make(chan push.Message, 64)
	go func() {
		_ = pc.Run(ctx, msgs)
	}()

	wait, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	select {
	case <-wait.Done():
		return nil, push.Message{}, fmt.Errorf("timed out connecting to %s", pc.URL())
	case m := <-msgs:
		if m.Kind != push.KindConnected {
			return nil, m, fmt.Errorf("failed to connect to the notification server: %w", m.Err)
		}
		return msgs, m, nil
	}
}

// pollStatus reads /get_job_status every interval once start is closed
// and delivers each status as a parameters job event.
func pollStatus(ctx context.Context, c *api.Client, interval time.Duration, start <-chan struct{}) <-chan push.Message {
	out := make(chan push.Message, 16)
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-start:
		}

		ticker := jitterbug.New(interval, &jitterbug.Norm{Stdev: interval / 20, Mean: 0})
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				status, err := c.JobStatus(ctx)
				if err != nil {
					zap.S().Debugw("job status poll failed", "error", err)
					continue
				}
				if status == "" {
					continue
				}
				select {
				case out <- push.Message{Kind: push.KindEvent, Event: jobsync.Event{Job: jobsync.Parameters, Status: status}}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func printNotice(w io.Writer, n *jobsync.Notice) {
	if n.Level == jobsync.NoticeError {
		fmt.Fprintf(w, "✗ %s\n", n.Text)
		return
	}
	fmt.Fprintf(w, "✓ %s\n", n.Text)
}
