// Package markups reads and writes the host application's markups JSON
// files (.mrk.json) and converts their control points to RAS coordinates.
package markups

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// Schema is written into documents produced by Save.
const Schema = "https://raw.githubusercontent.com/slicer/slicer/master/Modules/Loadable/Markups/Resources/Schema/markups-schema-v1.0.3.json#"

// Markup types used by the AC-PC workflow.
const (
	TypeLine     = "Line"
	TypeFiducial = "Fiducial"
)

// Coordinate systems a document may be stored in.
const (
	RAS = "RAS"
	LPS = "LPS"
)

// Position statuses. Only defined points carry a usable position.
const (
	StatusDefined   = "defined"
	StatusPreview   = "preview"
	StatusUndefined = "undefined"
)

var (
	// ErrNoMarkup is returned when a document has no markup of the wanted type
	ErrNoMarkup = errors.New("no matching markup in document")

	// ErrNoLandmark is returned when a labeled landmark cannot be found
	ErrNoLandmark = errors.New("landmark not found")
)

// Document is the top level of a markups file.
type Document struct {
	Schema  string    `json:"@schema,omitempty"`
	Markups []*Markup `json:"markups"`
}

// Markup is one markups node: a line, a point list, a plane, ...
type Markup struct {
	Type             string         `json:"type"`
	CoordinateSystem string         `json:"coordinateSystem,omitempty"`
	CoordinateUnits  string         `json:"coordinateUnits,omitempty"`
	Locked           bool           `json:"locked,omitempty"`
	LabelFormat      string         `json:"labelFormat,omitempty"`
	ControlPoints    []ControlPoint `json:"controlPoints"`

	// Extra keeps the members this package does not interpret (display,
	// measurements, ...) so that Save round-trips them.
	Extra map[string]json.RawMessage `json:"-"`
}

// ControlPoint is a single point of a markup.
type ControlPoint struct {
	ID             string     `json:"id,omitempty"`
	Label          string     `json:"label,omitempty"`
	Description    string     `json:"description,omitempty"`
	Position       [3]float64 `json:"position"`
	Orientation    []float64  `json:"orientation,omitempty"`
	Selected       *bool      `json:"selected,omitempty"`
	Locked         *bool      `json:"locked,omitempty"`
	Visibility     *bool      `json:"visibility,omitempty"`
	PositionStatus string     `json:"positionStatus,omitempty"`
}

var knownMarkupKeys = map[string]bool{
	"type": true, "coordinateSystem": true, "coordinateUnits": true,
	"locked": true, "labelFormat": true, "controlPoints": true,
}

// UnmarshalJSON decodes the known members and keeps the rest in Extra.
func (m *Markup) UnmarshalJSON(data []byte) error {
	type plain Markup
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for k := range all {
		if knownMarkupKeys[k] {
			delete(all, k)
		}
	}
	if len(all) > 0 {
		p.Extra = all
	}
	*m = Markup(p)
	return nil
}

// MarshalJSON writes the known members followed by Extra.
func (m *Markup) MarshalJSON() ([]byte, error) {
	type plain Markup
	data, err := json.Marshal((*plain)(m))
	if err != nil || len(m.Extra) == 0 {
		return data, err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for k, v := range m.Extra {
		if _, ok := all[k]; !ok {
			all[k] = v
		}
	}
	return json.Marshal(all)
}

// Decode parses a markups document.
func Decode(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("error parsing markups: %w", err)
	}
	for i, m := range doc.Markups {
		if m == nil {
			return nil, fmt.Errorf("markup %d is null", i)
		}
		switch strings.ToUpper(m.CoordinateSystem) {
		case "", RAS, LPS:
		default:
			return nil, fmt.Errorf("markup %d: unsupported coordinate system %q", i, m.CoordinateSystem)
		}
	}
	return &doc, nil
}

// Load reads a markups file.
func Load(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error reading markups file: %w", err)
	}
	defer f.Close()

	doc, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Encode writes doc as indented JSON.
func Encode(w io.Writer, doc *Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	return enc.Encode(doc)
}

// Save writes doc to path, creating the parent directory if needed.
func Save(path string, doc *Document) error {
	if doc.Schema == "" {
		doc.Schema = Schema
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating markups directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error writing markups file: %w", err)
	}
	if err := Encode(f, doc); err != nil {
		f.Close()
		return fmt.Errorf("error encoding markups: %w", err)
	}
	return f.Close()
}

// First returns the first markup of the given type (case-insensitive), or
// the first markup when typ is empty.
func (d *Document) First(typ string) (*Markup, error) {
	for _, m := range d.Markups {
		if typ == "" || strings.EqualFold(m.Type, typ) {
			return m, nil
		}
	}
	if typ == "" {
		return nil, ErrNoMarkup
	}
	return nil, fmt.Errorf("%w: type %s", ErrNoMarkup, typ)
}

// IsLPS reports whether positions are stored in LPS. Documents written by
// current hosts default to LPS when the member is missing.
func (m *Markup) IsLPS() bool {
	return m.CoordinateSystem == "" || strings.EqualFold(m.CoordinateSystem, LPS)
}

// ToRAS converts a stored position to RAS.
func (m *Markup) ToRAS(p [3]float64) r3.Vec {
	if m.IsLPS() {
		return r3.Vec{X: -p[0], Y: -p[1], Z: p[2]}
	}
	return r3.Vec{X: p[0], Y: p[1], Z: p[2]}
}

// FromRAS converts a RAS point to the markup's stored system.
func (m *Markup) FromRAS(v r3.Vec) [3]float64 {
	if m.IsLPS() {
		return [3]float64{-v.X, -v.Y, v.Z}
	}
	return [3]float64{v.X, v.Y, v.Z}
}

// Defined reports whether the control point has a placed position.
func (cp ControlPoint) Defined() bool {
	return cp.PositionStatus == "" || cp.PositionStatus == StatusDefined
}

// Points returns the RAS positions of the defined control points in order.
func (m *Markup) Points() []r3.Vec {
	out := make([]r3.Vec, 0, len(m.ControlPoints))
	for _, cp := range m.ControlPoints {
		if cp.Defined() {
			out = append(out, m.ToRAS(cp.Position))
		}
	}
	return out
}

// Labeled returns the RAS position of the first defined control point whose
// label matches one of names (case-insensitive).
func (m *Markup) Labeled(names ...string) (r3.Vec, bool) {
	for _, cp := range m.ControlPoints {
		if !cp.Defined() {
			continue
		}
		for _, n := range names {
			if strings.EqualFold(strings.TrimSpace(cp.Label), n) {
				return m.ToRAS(cp.Position), true
			}
		}
	}
	return r3.Vec{}, false
}

// Clone returns a deep copy of m.
func (m *Markup) Clone() *Markup {
	c := *m
	c.ControlPoints = make([]ControlPoint, len(m.ControlPoints))
	for i, cp := range m.ControlPoints {
		cp.Orientation = append([]float64(nil), cp.Orientation...)
		c.ControlPoints[i] = cp
	}
	if m.Extra != nil {
		c.Extra = make(map[string]json.RawMessage, len(m.Extra))
		for k, v := range m.Extra {
			c.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return &c
}
