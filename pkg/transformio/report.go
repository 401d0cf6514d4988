package transformio

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"acpctool/internal/models"
	"acpctool/pkg/acpc"
)

// NewReport describes t. Landmarks may be nil when the inputs are unknown.
func NewReport(t *acpc.Transform, l *acpc.Landmarks, sources ...string) *models.Report {
	rep := &models.Report{
		CoordinateSystem: "RAS",
		Center:           string(t.Center),
		Frame: models.Frame{
			Origin:   point(t.Frame.Origin),
			Right:    point(t.Frame.Right),
			Anterior: point(t.Frame.Anterior),
			Superior: point(t.Frame.Superior),
		},
		ToACPC:    t.ToACPC(),
		ToNative:  t.ToNative(),
		Sources:   sources,
		CreatedAt: time.Now().UTC(),
	}
	if l != nil {
		rep.Landmarks = &models.Landmarks{
			AC: point(l.AC),
			PC: point(l.PC),
			MS: point(l.MS),
		}
	}
	return rep
}

// WriteJSON writes the report for t as indented JSON.
func WriteJSON(w io.Writer, rep *models.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

// SaveJSON writes the report to path.
func SaveJSON(path string, rep *models.Report) error {
	return writeFile(path, func(w io.Writer) error { return WriteJSON(w, rep) })
}

// ReadJSON parses a report and rebuilds the transform from its forward
// matrix. The forward matrix must be a proper rigid transform, and when the
// report carries an inverse it must undo the forward one.
func ReadJSON(r io.Reader) (*acpc.Transform, *models.Report, error) {
	var rep models.Report
	if err := json.NewDecoder(r).Decode(&rep); err != nil {
		return nil, nil, fmt.Errorf("error parsing report: %w", err)
	}
	if rep.CoordinateSystem != "" && rep.CoordinateSystem != "RAS" {
		return nil, nil, fmt.Errorf("unsupported coordinate system %q", rep.CoordinateSystem)
	}
	m := acpc.Matrix4(rep.ToACPC)
	if err := checkRigid4(m); err != nil {
		return nil, nil, fmt.Errorf("report toACPC: %w", err)
	}
	if n := acpc.Matrix4(rep.ToNative); n != (acpc.Matrix4{}) {
		if !mat.EqualApprox(m.Mul(n).Dense(), acpc.Identity().Dense(), rigidTolerance) {
			return nil, nil, fmt.Errorf("%w: report toNative is not the inverse of toACPC", ErrNotRigid)
		}
	}
	t := acpc.FromMatrix(m)
	t.Center = acpc.Center(rep.Center)
	return t, &rep, nil
}

// LoadJSON reads a report file.
func LoadJSON(path string) (*acpc.Transform, *models.Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("error reading report: %w", err)
	}
	defer f.Close()
	return ReadJSON(f)
}

// checkRigid4 validates a homogeneous matrix: affine bottom row, finite
// translation and a rotation block.
func checkRigid4(m acpc.Matrix4) error {
	if m[3] != [4]float64{0, 0, 0, 1} {
		return fmt.Errorf("%w: bottom row %v", ErrNotRigid, m[3])
	}
	for i := 0; i < 3; i++ {
		if math.IsNaN(m[i][3]) || math.IsInf(m[i][3], 0) {
			return fmt.Errorf("%w: non-finite translation", ErrNotRigid)
		}
	}
	return checkRigid(mat.DenseCopyOf(m.Dense().Slice(0, 3, 0, 3)))
}

func point(v r3.Vec) models.Point {
	return models.Point{v.X, v.Y, v.Z}
}
