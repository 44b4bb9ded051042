package certs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/wavesbyte/cibtron-tool/internal/api"
	"github.com/wavesbyte/cibtron-tool/internal/form"
)

// Messages shown in place of results.
const (
	NoResults    = "No previous programmings found for this serial number."
	SearchFailed = "An error occurred while searching for programmings."
	NoDetails    = "No environment details are available for this programming."
	notAvailable = "N/A"
)

// Searcher is the part of the API client the browser reads from.
type Searcher interface {
	SearchCertificates(ctx context.Context, serial string) ([]api.Certificate, error)
	SearchSerial(ctx context.Context, serial string) (*api.CertificateData, error)
}

// Summary is one programming record as listed on a card.
type Summary struct {
	ID       string
	ShortID  string
	RawDate  string
	Time     time.Time
	Operator string
	Plate    string
	Data     api.CertificateData
}

// Detail is one labelled line of the record dump.
type Detail struct {
	Label string
	Value string
}

// detailKeys is the order of the record dump.
var detailKeys = []string{
	"UUID", "USER", "DATE", "NUMERO_SERIAL", "NUMERO_SELLO",
	"MARCA_TAXIMETRO", "MODELO_TAXIMETRO", "NOMBRE_PROPIETARIO", "APELLIDO_PROPIETARIO",
	"MARCA_VEHICULO", "YEAR_VEHICULO", "PATENTE", "RESOLUCION", "CANTIDAD_PULSOS",
	"TARIFA_INICIAL", "TARIFA_CAIDA_PARCIAL_METROS", "TARIFA_CAIDA_PARCIAL_MINUTO",
	"MOSTRAR_VELOCIDAD_EN_PANTALLA", "COLOR_FONDO_PANTALLA", "COLOR_LETRAS_PANTALLA",
	"COLOR_PRECIO_PANTALLA", "PROPAGANDA_1", "PROPAGANDA_2", "PROPAGANDA_3", "PROPAGANDA_4",
}

var timeLayouts = []string{
	time.RFC1123,
	time.RFC1123Z,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// ParseTime reads the loosely formatted record date. ok is false when no
// layout matches.
func ParseTime(s string) (t time.Time, ok bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Summarize builds the card of a record.
func Summarize(c api.Certificate) Summary {
	s := Summary{
		ID:       c.DocumentID,
		ShortID:  c.DocumentID,
		Operator: c.Data.User,
		Plate:    c.Data.EnvVars["PATENTE"],
		Data:     c.Data,
	}
	if len(s.ShortID) > 8 {
		s.ShortID = s.ShortID[:8]
	}
	s.RawDate = c.Data.Date
	if s.RawDate == "" {
		s.RawDate = c.Data.Timestamp
	}
	s.Time, _ = ParseTime(s.RawDate)
	if s.Operator == "" {
		s.Operator = notAvailable
	}
	if s.Plate == "" {
		s.Plate = notAvailable
	}
	return s
}

// When renders the record date with a relative hint.
func (s Summary) When(now time.Time) string {
	if s.Time.IsZero() {
		if s.RawDate == "" {
			return notAvailable
		}
		return s.RawDate
	}
	local := s.Time.In(now.Location())
	return fmt.Sprintf("%s (%s)", local.Format("2006-01-02 15:04:05"), humanize.RelTime(s.Time, now, "ago", "from now"))
}

// Card renders the summary lines of a record.
func (s Summary) Card(now time.Time) []string {
	return []string{
		fmt.Sprintf("ID: %s...", s.ShortID),
		fmt.Sprintf("Date: %s", s.When(now)),
		fmt.Sprintf("Prog: %s", s.Operator),
		fmt.Sprintf("Plate: %s", s.Plate),
	}
}

// Details returns the labelled dump of every stored field, or nil when
// the record carries no form values.
func Details(s Summary) []Detail {
	if s.Data.EnvVars == nil {
		return nil
	}
	out := make([]Detail, 0, len(detailKeys)+1)
	for _, key := range detailKeys {
		v := s.Data.EnvVars[key]
		if v == "" {
			v = notAvailable
		}
		out = append(out, Detail{Label: form.Label(key), Value: v})
	}
	if s.Data.Path != "" {
		out = append(out, Detail{Label: "Binary path", Value: s.Data.Path})
	}
	return out
}

// Browser queries stored programming records. It holds no state.
type Browser struct {
	searcher Searcher
}

func NewBrowser(s Searcher) *Browser {
	return &Browser{searcher: s}
}

func requireSerial(serial string) (string, error) {
	serial = strings.TrimSpace(serial)
	if serial == "" {
		return "", &form.ValidationError{Field: form.KeySerial, Message: "Detect or enter a serial number first."}
	}
	return serial, nil
}

// Search lists every record of serial. An empty result is not an error.
func (b *Browser) Search(ctx context.Context, serial string) ([]Summary, error) {
	serial, err := requireSerial(serial)
	if err != nil {
		return nil, err
	}
	list, err := b.searcher.SearchCertificates(ctx, serial)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(list))
	for _, c := range list {
		out = append(out, Summarize(c))
	}
	return out, nil
}

// Prefill returns the form values of the latest record of serial.
func (b *Browser) Prefill(ctx context.Context, serial string) (map[string]string, error) {
	serial, err := requireSerial(serial)
	if err != nil {
		return nil, err
	}
	data, err := b.searcher.SearchSerial(ctx, serial)
	if err != nil {
		return nil, err
	}
	return data.EnvVars, nil
}
