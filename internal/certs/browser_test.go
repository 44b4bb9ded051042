package certs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavesbyte/cibtron-tool/internal/api"
	"github.com/wavesbyte/cibtron-tool/internal/form"
)

type fakeSearcher struct {
	certs  []api.Certificate
	latest *api.CertificateData
	err    error
	calls  int
}

func (f *fakeSearcher) SearchCertificates(context.Context, string) ([]api.Certificate, error) {
	f.calls++
	return f.certs, f.err
}

func (f *fakeSearcher) SearchSerial(context.Context, string) (*api.CertificateData, error) {
	f.calls++
	return f.latest, f.err
}

var record = api.Certificate{
	SubcollectionName: "jperez",
	DocumentID:        "3f2a9c1b5d4e4f6a",
	Data: api.CertificateData{
		Date: "Tue, 01 Oct 2024 10:00:00 GMT",
		User: "jperez",
		Path: "gs://bins/000123.bin",
		EnvVars: map[string]string{
			"PATENTE":         "AB1234",
			"CANTIDAD_PULSOS": "1000",
			"PROPAGANDA_1":    "",
		},
	},
}

func TestSearchEmptyIsNotAnError(t *testing.T) {
	b := NewBrowser(&fakeSearcher{})
	list, err := b.Search(context.Background(), "000123")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSearchRequiresSerial(t *testing.T) {
	s := &fakeSearcher{}
	b := NewBrowser(s)
	_, err := b.Search(context.Background(), "  ")
	var verr *form.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Zero(t, s.calls)
}

func TestSearchFailure(t *testing.T) {
	b := NewBrowser(&fakeSearcher{err: errors.New("boom")})
	_, err := b.Search(context.Background(), "000123")
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	b := NewBrowser(&fakeSearcher{certs: []api.Certificate{record}})
	list, err := b.Search(context.Background(), "000123")
	require.NoError(t, err)
	require.Len(t, list, 1)

	s := list[0]
	assert.Equal(t, "3f2a9c1b", s.ShortID)
	assert.Equal(t, "jperez", s.Operator)
	assert.Equal(t, "AB1234", s.Plate)
	assert.Equal(t, time.Date(2024, 10, 1, 10, 0, 0, 0, time.UTC), s.Time.UTC())

	now := time.Date(2024, 10, 4, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, []string{
		"ID: 3f2a9c1b...",
		"Date: 2024-10-01 10:00:00 (3 days ago)",
		"Prog: jperez",
		"Plate: AB1234",
	}, s.Card(now))
}

func TestSummarizeMissingFields(t *testing.T) {
	s := Summarize(api.Certificate{DocumentID: "abc", Data: api.CertificateData{Timestamp: "not a date"}})
	assert.Equal(t, "abc", s.ShortID)
	assert.Equal(t, "N/A", s.Operator)
	assert.Equal(t, "N/A", s.Plate)
	assert.Equal(t, "not a date", s.When(time.Now()))
	assert.Nil(t, Details(s))
}

func TestParseTime(t *testing.T) {
	for _, in := range []string{
		"Tue, 01 Oct 2024 10:00:00 GMT",
		"2024-10-01T10:00:00Z",
		"2024-10-01T10:00:00.123456Z",
		"2024-10-01 10:00:00",
	} {
		got, ok := ParseTime(in)
		assert.True(t, ok, in)
		assert.Equal(t, 2024, got.Year(), in)
	}
	_, ok := ParseTime("")
	assert.False(t, ok)
}

func TestDetails(t *testing.T) {
	d := Details(Summarize(record))
	require.Len(t, d, len(detailKeys)+1)

	assert.Equal(t, Detail{Label: "Build UUID", Value: "N/A"}, d[0])
	assert.Equal(t, Detail{Label: "Build date", Value: "N/A"}, d[2])
	byLabel := map[string]string{}
	for _, x := range d {
		byLabel[x.Label] = x.Value
	}
	assert.Equal(t, "AB1234", byLabel["Plate"])
	assert.Equal(t, "1000", byLabel["Pulse divisor"])
	assert.Equal(t, "N/A", byLabel["Advert 1"])
	assert.Equal(t, Detail{Label: "Binary path", Value: "gs://bins/000123.bin"}, d[len(d)-1])
}

func TestPrefill(t *testing.T) {
	b := NewBrowser(&fakeSearcher{latest: &record.Data})
	values, err := b.Prefill(context.Background(), "000123")
	require.NoError(t, err)
	assert.Equal(t, "AB1234", values["PATENTE"])
}
