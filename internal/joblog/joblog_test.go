package joblog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wavesbyte/cibtron-tool/internal/jobsync"
)

func fixedClock() time.Time {
	return time.Date(2024, 10, 1, 10, 30, 0, 0, time.UTC)
}

func TestPlaceholderWhenEmpty(t *testing.T) {
	l := New()
	assert.Equal(t, []string{Placeholder}, l.Lines())
}

func TestAppendFormatsEntries(t *testing.T) {
	l := New(WithClock(fixedClock))

	l.Append(TagFor(jobsync.Parameters), "000123", "Status: Compiling.")
	l.Append(TagFor(jobsync.SetSerial), "", "Starting new serial programming: 000999")
	l.Append(TagSystem, "000123", "Connected to the notification server.")

	assert.Equal(t, []string{
		"2024-10-01 10:30:00 - [Prog. Params] 000123: Status: Compiling.",
		"2024-10-01 10:30:00 - [Prog. Serial] N/A: Starting new serial programming: 000999",
		"2024-10-01 10:30:00 - [System] 000123: Connected to the notification server.",
	}, l.Lines())
	assert.Equal(t, 3, l.Len())
}

func TestClearRestoresPlaceholder(t *testing.T) {
	l := New()
	l.Append(TagParams, "1", "a")
	l.Clear()
	assert.Equal(t, 0, l.Len())
	assert.Equal(t, []string{Placeholder}, l.Lines())
}

func TestEntriesIsACopy(t *testing.T) {
	l := New()
	l.Append(TagParams, "1", "a")
	entries := l.Entries()
	entries[0].Message = "mutated"
	assert.Equal(t, "a", l.Entries()[0].Message)
}

func TestMirrorsToLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := New(WithLogger(zap.New(core)))

	l.Append(TagSetSerial, "000999", "Status: auth_failed.")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zap.DebugLevel, entry.Level)
	assert.Equal(t, "Status: auth_failed.", entry.Message)
	assert.Equal(t, "[Prog. Serial]", entry.ContextMap()["source"])
}

func TestMirrorHiddenAtInfoLevel(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	l := New(WithLogger(zap.New(core)))

	l.Append(TagParams, "000123", "Finalizado")
	assert.Zero(t, logs.Len())
	assert.Len(t, l.Entries(), 1)
}
