package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Certificate is one stored programming record.
type Certificate struct {
	SubcollectionName string          `json:"subcollection_name"`
	DocumentID        string          `json:"document_id"`
	Data              CertificateData `json:"document_data"`
}

// CertificateData is the stored document. Values in EnvVars are the
// submitted form fields, stringified; EnvVars is nil when the record has none.
type CertificateData struct {
	Date      string
	Timestamp string
	User      string
	Path      string
	EnvVars   map[string]string
}

type certificateDataJSON struct {
	Date      any            `json:"date,omitempty"`
	Timestamp any            `json:"timestamp,omitempty"`
	User      any            `json:"user,omitempty"`
	Path      any            `json:"path,omitempty"`
	EnvVars   map[string]any `json:"env_vars,omitempty"`
}

// UnmarshalJSON accepts the loosely typed documents the backend stores.
func (d *CertificateData) UnmarshalJSON(b []byte) error {
	var raw certificateDataJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	d.Date = stringify(raw.Date)
	d.Timestamp = stringify(raw.Timestamp)
	d.User = stringify(raw.User)
	d.Path = stringify(raw.Path)
	d.EnvVars = nil
	if raw.EnvVars != nil {
		d.EnvVars = make(map[string]string, len(raw.EnvVars))
		for k, v := range raw.EnvVars {
			d.EnvVars[k] = stringify(v)
		}
	}
	return nil
}

// MarshalJSON writes the document back in the backend's shape.
func (d CertificateData) MarshalJSON() ([]byte, error) {
	raw := certificateDataJSON{}
	if d.Date != "" {
		raw.Date = d.Date
	}
	if d.Timestamp != "" {
		raw.Timestamp = d.Timestamp
	}
	if d.User != "" {
		raw.User = d.User
	}
	if d.Path != "" {
		raw.Path = d.Path
	}
	if d.EnvVars != nil {
		raw.EnvVars = make(map[string]any, len(d.EnvVars))
		for k, v := range d.EnvVars {
			raw.EnvVars[k] = v
		}
	}
	return json.Marshal(raw)
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

// SearchCertificates returns every stored record for serial, newest first.
// No records is not an error.
func (c *Client) SearchCertificates(ctx context.Context, serial string) ([]Certificate, error) {
	var resp struct {
		Envelope
		Data []Certificate `json:"data"`
	}
	query := url.Values{"serial_number": {strings.TrimSpace(serial)}}
	code, err := c.GetJSON(ctx, "/search_certificates", query, &resp)
	if err != nil {
		return nil, err
	}
	if err := resp.check("search_certificates", code); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// SearchSerial returns the most recent record for serial, used to prefill the form.
func (c *Client) SearchSerial(ctx context.Context, serial string) (*CertificateData, error) {
	var resp struct {
		Envelope
		Data *CertificateData `json:"data"`
	}
	query := url.Values{"serial_number": {strings.TrimSpace(serial)}}
	code, err := c.GetJSON(ctx, "/search_serial", query, &resp)
	if err != nil {
		return nil, err
	}
	if err := resp.check("search_serial", code); err != nil {
		return nil, err
	}
	if resp.Data == nil || resp.Data.EnvVars == nil {
		return nil, &BackendError{Op: "search_serial", StatusCode: code, Message: "No information found for this serial number."}
	}
	return resp.Data, nil
}
