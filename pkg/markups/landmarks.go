package markups

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"acpctool/pkg/acpc"
)

// Label aliases accepted by LandmarksByLabel.
var (
	ACLabels = []string{"AC", "anterior commissure"}
	PCLabels = []string{"PC", "posterior commissure"}
	MSLabels = []string{"MS", "IH", "MID", "midline"}
)

// Landmarks builds calculator input from an AC-PC line and a midline point
// list. The more anterior line endpoint is taken as AC; the midline point
// is the first one that is not on the AC-PC line.
func Landmarks(line, midline *Markup, tol float64) (acpc.Landmarks, error) {
	ends := line.Points()
	if len(ends) < 2 {
		return acpc.Landmarks{}, fmt.Errorf("%w: AC-PC line needs 2 defined points, has %d", ErrNoLandmark, len(ends))
	}
	ac, pc := acpc.OrderCommissures(ends[0], ends[1])

	ms, err := acpc.SelectMidline(midline.Points(), ac, pc, tol)
	if err != nil {
		return acpc.Landmarks{}, fmt.Errorf("midline: %w", err)
	}
	return acpc.Landmarks{AC: ac, PC: pc, MS: ms}, nil
}

// LandmarksByLabel resolves AC, PC and the midline point by control point
// label from a single point list.
func LandmarksByLabel(m *Markup) (acpc.Landmarks, error) {
	var l acpc.Landmarks
	var ok bool
	if l.AC, ok = m.Labeled(ACLabels...); !ok {
		return l, fmt.Errorf("%w: AC", ErrNoLandmark)
	}
	if l.PC, ok = m.Labeled(PCLabels...); !ok {
		return l, fmt.Errorf("%w: PC", ErrNoLandmark)
	}
	if l.MS, ok = m.Labeled(MSLabels...); !ok {
		return l, fmt.Errorf("%w: midline", ErrNoLandmark)
	}
	return l, nil
}

// Transformed returns a copy of m with every defined control point mapped
// through t into AC-PC space. Undefined points are copied unchanged.
// Orientations are rotated with the frame.
func Transformed(m *Markup, t *acpc.Transform) *Markup {
	out := m.Clone()
	rot := t.ToACPC().Rotation()
	lps := m.IsLPS()
	for i := range out.ControlPoints {
		cp := &out.ControlPoints[i]
		if !cp.Defined() {
			continue
		}
		cp.Position = out.FromRAS(t.Apply(m.ToRAS(cp.Position)))
		if len(cp.Orientation) == 9 {
			cp.Orientation = rotateOrientation(rot, cp.Orientation, lps)
		}
	}
	return out
}

// TransformedDocument applies Transformed to every markup in doc.
func TransformedDocument(doc *Document, t *acpc.Transform) *Document {
	out := &Document{Schema: doc.Schema, Markups: make([]*Markup, len(doc.Markups))}
	for i, m := range doc.Markups {
		out.Markups[i] = Transformed(m, t)
	}
	return out
}

// rotateOrientation left-multiplies a row-major 3x3 orientation by the RAS
// rotation, converting through LPS when the markup is stored that way.
func rotateOrientation(rot [3][3]float64, o []float64, lps bool) []float64 {
	r := mat.NewDense(3, 3, []float64{
		rot[0][0], rot[0][1], rot[0][2],
		rot[1][0], rot[1][1], rot[1][2],
		rot[2][0], rot[2][1], rot[2][2],
	})
	if lps {
		flip := mat.NewDiagDense(3, []float64{-1, -1, 1})
		var lr mat.Dense
		lr.Mul(flip, r)
		r.Mul(&lr, flip)
	}
	var out mat.Dense
	out.Mul(r, mat.NewDense(3, 3, o))
	return out.RawMatrix().Data
}
