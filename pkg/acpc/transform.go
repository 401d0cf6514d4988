package acpc

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Matrix4 is a 4x4 homogeneous matrix stored row by row.
type Matrix4 [4][4]float64

// Identity returns the 4x4 identity matrix.
func Identity() Matrix4 {
	return Matrix4{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
	}
}

// rigid assembles [R | t; 0 0 0 1] from the rows of R and a translation.
func rigid(rows [3]r3.Vec, t r3.Vec) Matrix4 {
	return Matrix4{
		{rows[0].X, rows[0].Y, rows[0].Z, t.X},
		{rows[1].X, rows[1].Y, rows[1].Z, t.Y},
		{rows[2].X, rows[2].Y, rows[2].Z, t.Z},
		{0, 0, 0, 1},
	}
}

// Apply maps a point through the matrix (w = 1).
func (m Matrix4) Apply(p r3.Vec) r3.Vec {
	return r3.Vec{
		X: m[0][0]*p.X + m[0][1]*p.Y + m[0][2]*p.Z + m[0][3],
		Y: m[1][0]*p.X + m[1][1]*p.Y + m[1][2]*p.Z + m[1][3],
		Z: m[2][0]*p.X + m[2][1]*p.Y + m[2][2]*p.Z + m[2][3],
	}
}

// Mul returns m·n.
func (m Matrix4) Mul(n Matrix4) Matrix4 {
	var out mat.Dense
	out.Mul(m.Dense(), n.Dense())
	return FromDense(&out)
}

// Rotation returns the upper-left 3x3 block.
func (m Matrix4) Rotation() [3][3]float64 {
	var r [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = m[i][j]
		}
	}
	return r
}

// Translation returns the last column.
func (m Matrix4) Translation() r3.Vec {
	return r3.Vec{X: m[0][3], Y: m[1][3], Z: m[2][3]}
}

// RigidInverse inverts a rigid matrix using Rᵀ and −Rᵀ·t. It is only valid
// when the rotation block is orthonormal.
func (m Matrix4) RigidInverse() Matrix4 {
	rows := [3]r3.Vec{
		{X: m[0][0], Y: m[1][0], Z: m[2][0]},
		{X: m[0][1], Y: m[1][1], Z: m[2][1]},
		{X: m[0][2], Y: m[1][2], Z: m[2][2]},
	}
	t := m.Translation()
	inv := r3.Vec{
		X: -r3.Dot(rows[0], t),
		Y: -r3.Dot(rows[1], t),
		Z: -r3.Dot(rows[2], t),
	}
	return rigid(rows, inv)
}

// RowMajor flattens the matrix row by row.
func (m Matrix4) RowMajor() []float64 {
	out := make([]float64, 0, 16)
	for i := 0; i < 4; i++ {
		out = append(out, m[i][:]...)
	}
	return out
}

// ColumnMajor flattens the matrix column by column.
func (m Matrix4) ColumnMajor() []float64 {
	out := make([]float64, 0, 16)
	for j := 0; j < 4; j++ {
		for i := 0; i < 4; i++ {
			out = append(out, m[i][j])
		}
	}
	return out
}

// Dense returns a gonum copy of the matrix.
func (m Matrix4) Dense() *mat.Dense {
	return mat.NewDense(4, 4, m.RowMajor())
}

// FromDense copies a 4x4 gonum matrix. It panics if d is not 4x4, matching
// gonum's own dimension checks.
func FromDense(d mat.Matrix) Matrix4 {
	r, c := d.Dims()
	if r != 4 || c != 4 {
		panic(mat.ErrShape)
	}
	var m Matrix4
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			m[i][j] = d.At(i, j)
		}
	}
	return m
}

// Frame is the AC-PC coordinate frame expressed in native coordinates.
type Frame struct {
	// Origin is the point that maps to (0, 0, 0) in AC-PC space
	Origin r3.Vec

	// Right, Anterior and Superior are the unit axes that become +X, +Y and
	// +Z of the AC-PC space
	Right    r3.Vec
	Anterior r3.Vec
	Superior r3.Vec
}

// Transform is the result of an AC-PC computation. It is immutable; a new
// set of landmarks produces a new Transform.
type Transform struct {
	// Frame is the coordinate frame the matrices were built from
	Frame Frame

	// Center records which landmark the origin was placed on
	Center Center

	toACPC   Matrix4
	toNative Matrix4
}

// NewTransform builds a Transform from a frame. The rotation rows are
// Right, Anterior and Superior so the target space is RAS.
func NewTransform(f Frame, c Center) *Transform {
	rows := [3]r3.Vec{f.Right, f.Anterior, f.Superior}
	t := r3.Vec{
		X: -r3.Dot(f.Right, f.Origin),
		Y: -r3.Dot(f.Anterior, f.Origin),
		Z: -r3.Dot(f.Superior, f.Origin),
	}
	fwd := rigid(rows, t)
	return &Transform{
		Frame:    f,
		Center:   c,
		toACPC:   fwd,
		toNative: fwd.RigidInverse(),
	}
}

// ToACPC is the native → AC-PC matrix. The host installs this as the
// transform-to-parent of the aligned content.
func (t *Transform) ToACPC() Matrix4 { return t.toACPC }

// ToNative is the AC-PC → native matrix; its rotation columns are the frame
// axes and its translation is the origin.
func (t *Transform) ToNative() Matrix4 { return t.toNative }

// Apply maps a native point into AC-PC space.
func (t *Transform) Apply(p r3.Vec) r3.Vec { return t.toACPC.Apply(p) }

// ApplyInverse maps an AC-PC point back to native space.
func (t *Transform) ApplyInverse(p r3.Vec) r3.Vec { return t.toNative.Apply(p) }

// Inverse returns the transform with the two directions swapped.
func (t *Transform) Inverse() *Transform {
	return &Transform{
		Frame:    t.Frame,
		Center:   t.Center,
		toACPC:   t.toNative,
		toNative: t.toACPC,
	}
}

// FromMatrix wraps an arbitrary rigid native → AC-PC matrix, recovering the
// frame from its rows. The Center of the result is empty since the origin
// landmark is not known.
func FromMatrix(m Matrix4) *Transform {
	inv := m.RigidInverse()
	return &Transform{
		Frame: Frame{
			Origin:   inv.Translation(),
			Right:    r3.Vec{X: m[0][0], Y: m[0][1], Z: m[0][2]},
			Anterior: r3.Vec{X: m[1][0], Y: m[1][1], Z: m[1][2]},
			Superior: r3.Vec{X: m[2][0], Y: m[2][1], Z: m[2][2]},
		},
		toACPC:   m,
		toNative: inv,
	}
}
