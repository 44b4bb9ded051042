package joblog

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wavesbyte/cibtron-tool/internal/jobsync"
)

// Placeholder is shown while the log is empty.
const Placeholder = "Waiting for logs..."

// TimeFormat is the timestamp layout of rendered entries.
const TimeFormat = "2006-01-02 15:04:05"

// Tag identifies the source of an entry.
type Tag int

const (
	TagParams Tag = iota
	TagSetSerial
	TagSystem
)

// TagFor returns the tag used for job's entries.
func TagFor(job jobsync.Job) Tag {
	if job == jobsync.SetSerial {
		return TagSetSerial
	}
	return TagParams
}

func (t Tag) Prefix() string {
	switch t {
	case TagSetSerial:
		return "[Prog. Serial]"
	case TagSystem:
		return "[System]"
	default:
		return "[Prog. Params]"
	}
}

// Entry is one immutable log line.
type Entry struct {
	Time    time.Time
	Tag     Tag
	Serial  string
	Message string
}

func (e Entry) String() string {
	serial := e.Serial
	if serial == "" {
		serial = "N/A"
	}
	return fmt.Sprintf("%s - %s %s: %s", e.Time.Format(TimeFormat), e.Tag.Prefix(), serial, e.Message)
}

// Log is the append-only job log. Entries are only removed by Clear.
type Log struct {
	mu      sync.Mutex
	entries []Entry
	now     func() time.Time
	logger  *zap.Logger
}

// Option configures a Log.
type Option func(*Log)

// WithClock overrides the entry timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

// WithLogger mirrors every entry to the diagnostic logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Log) { l.logger = logger }
}

func New(opts ...Option) *Log {
	l := &Log{now: time.Now, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append adds an entry stamped with the current time. serial is the
// device serial shown in the form when the line is written.
func (l *Log) Append(tag Tag, serial, message string) Entry {
	e := Entry{Time: l.now(), Tag: tag, Serial: serial, Message: message}

	l.mu.Lock()
	l.entries = append(l.entries, e)
	l.mu.Unlock()

	l.logger.Debug(message, zap.String("source", tag.Prefix()), zap.String("serial", serial))
	return e
}

// Clear drops every entry; Lines shows the placeholder again.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}

// Entries returns a copy of the entries in append order.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.entries...)
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Lines renders the log, or the placeholder when empty.
func (l *Log) Lines() []string {
	entries := l.Entries()
	if len(entries) == 0 {
		return []string{Placeholder}
	}
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = e.String()
	}
	return lines
}
