package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Domain contains the typed views and results shared across packages.

// Postcode is a partial typed view of a postcodes.io postcode record.
// Fields the API omits stay zero; the raw payload remains the source of truth.
type Postcode struct {
	Postcode                  string   `json:"postcode"`
	Outcode                   string   `json:"outcode"`
	Incode                    string   `json:"incode"`
	Country                   string   `json:"country"`
	Region                    string   `json:"region"`
	AdminDistrict             string   `json:"admin_district"`
	ParliamentaryConstituency string   `json:"parliamentary_constituency"`
	Latitude                  *float64 `json:"latitude"`
	Longitude                 *float64 `json:"longitude"`
	Distance                  *float64 `json:"distance,omitempty"`
}

// Outcode is a partial typed view of a postcodes.io outcode record.
type Outcode struct {
	Outcode       string   `json:"outcode"`
	Latitude      *float64 `json:"latitude"`
	Longitude     *float64 `json:"longitude"`
	AdminDistrict []string `json:"admin_district"`
	Country       []string `json:"country"`
}

// Result is the outcome of running one job through the client.
type Result struct {
	JobID     string          `json:"job_id"`
	Operation string          `json:"operation"`
	Query     string          `json:"query"`
	Found     bool            `json:"found"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// DecodePostcode decodes a raw postcode payload.
func DecodePostcode(raw json.RawMessage) (*Postcode, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var p Postcode
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode postcode: %w", err)
	}
	return &p, nil
}

// Summary renders a one-line description, e.g. "EC1V 9LB, Islington, London, England (51.5275, -0.1024)".
func (p *Postcode) Summary() string {
	if p == nil {
		return ""
	}
	parts := make([]string, 0, 4)
	for _, s := range []string{p.Postcode, p.AdminDistrict, p.Region, p.Country} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	out := strings.Join(parts, ", ")
	if p.Latitude != nil && p.Longitude != nil {
		out += fmt.Sprintf(" (%.4f, %.4f)", *p.Latitude, *p.Longitude)
	}
	return out
}

// DecodeOutcode decodes a raw outcode payload.
func DecodeOutcode(raw json.RawMessage) (*Outcode, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var o Outcode
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, fmt.Errorf("decode outcode: %w", err)
	}
	return &o, nil
}

// Summary renders a one-line description, e.g. "EC1V, Islington, England (51.5264, -0.1008)".
func (o *Outcode) Summary() string {
	if o == nil {
		return ""
	}
	parts := make([]string, 0, 3)
	if s := strings.TrimSpace(o.Outcode); s != "" {
		parts = append(parts, s)
	}
	for _, list := range [][]string{o.AdminDistrict, o.Country} {
		if len(list) > 0 && strings.TrimSpace(list[0]) != "" {
			parts = append(parts, strings.TrimSpace(list[0]))
		}
	}
	out := strings.Join(parts, ", ")
	if o.Latitude != nil && o.Longitude != nil {
		out += fmt.Sprintf(" (%.4f, %.4f)", *o.Latitude, *o.Longitude)
	}
	return out
}

// Summarize describes a postcode or outcode payload. Other shapes yield "".
func Summarize(raw json.RawMessage) string {
	var kind struct {
		Postcode string `json:"postcode"`
		Outcode  string `json:"outcode"`
	}
	if len(raw) == 0 || json.Unmarshal(raw, &kind) != nil {
		return ""
	}
	switch {
	case kind.Postcode != "":
		p, err := DecodePostcode(raw)
		if err != nil {
			return ""
		}
		return p.Summary()
	case kind.Outcode != "":
		o, err := DecodeOutcode(raw)
		if err != nil {
			return ""
		}
		return o.Summary()
	}
	return ""
}
