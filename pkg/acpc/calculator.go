// Package acpc computes the rigid transform that aligns native scanner space
// (RAS, millimetres) with AC-PC space from three anatomical landmarks: the
// anterior commissure, the posterior commissure and a midsagittal point.
//
// The output space is RAS as well: +X right, +Y anterior along the PC→AC
// direction, +Z superior. The computation is pure and safe for concurrent
// use.
package acpc

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultTolerance is the minimum distance in mm between AC and PC, and
// between the midline point and the AC-PC line.
const DefaultTolerance = 1e-6

// Center selects the landmark placed at the origin of AC-PC space.
type Center string

const (
	// CenterMC is the mid-commissural point, halfway between AC and PC
	CenterMC Center = "MC"
	CenterAC Center = "AC"
	CenterPC Center = "PC"
)

// ParseCenter accepts MC, AC or PC in any case.
func ParseCenter(s string) (Center, error) {
	switch c := Center(strings.ToUpper(strings.TrimSpace(s))); c {
	case CenterMC, CenterAC, CenterPC:
		return c, nil
	case "":
		return CenterMC, nil
	default:
		return "", fmt.Errorf("%w: got %q", ErrInvalidCenter, s)
	}
}

// Landmarks are the three input points in native RAS coordinates.
type Landmarks struct {
	AC r3.Vec
	PC r3.Vec
	MS r3.Vec
}

// Options control a Calculator.
type Options struct {
	// Center is the origin of the AC-PC frame (MC when empty)
	Center Center

	// Tolerance in mm below which landmarks are considered degenerate
	// (DefaultTolerance when zero)
	Tolerance float64

	// OrientMidlineSuperior flips the midline direction when the midline
	// point was placed below the AC-PC line, keeping +Z superior
	OrientMidlineSuperior bool
}

// DefaultOptions returns MC-centred options with the default tolerance.
func DefaultOptions() Options {
	return Options{
		Center:                CenterMC,
		Tolerance:             DefaultTolerance,
		OrientMidlineSuperior: true,
	}
}

// Calculator computes AC-PC transforms. The zero value is not usable; use
// NewCalculator.
type Calculator struct {
	opts Options
}

// NewCalculator validates opts and returns a Calculator.
func NewCalculator(opts Options) (*Calculator, error) {
	c, err := ParseCenter(string(opts.Center))
	if err != nil {
		return nil, err
	}
	opts.Center = c
	if opts.Tolerance < 0 || math.IsNaN(opts.Tolerance) || math.IsInf(opts.Tolerance, 0) {
		return nil, fmt.Errorf("tolerance must be a finite non-negative number, got %g", opts.Tolerance)
	}
	if opts.Tolerance == 0 {
		opts.Tolerance = DefaultTolerance
	}
	return &Calculator{opts: opts}, nil
}

// Options returns the effective options.
func (c *Calculator) Options() Options {
	return c.opts
}

// ComputeTransform computes the native → AC-PC transform with the default
// options.
func ComputeTransform(ac, pc, ms r3.Vec) (*Transform, error) {
	c := &Calculator{opts: DefaultOptions()}
	return c.Compute(Landmarks{AC: ac, PC: pc, MS: ms})
}

// Compute derives the AC-PC frame from l and returns the transform.
//
// The anterior axis is PC→AC. The right axis is anterior × (MS − MC), so a
// midline point above the commissures yields a right-handed RAS frame. The
// superior axis is right × anterior.
func (c *Calculator) Compute(l Landmarks) (*Transform, error) {
	f, err := c.Frame(l)
	if err != nil {
		return nil, err
	}
	return NewTransform(f, c.opts.Center), nil
}

// Frame computes the AC-PC coordinate frame without assembling matrices.
func (c *Calculator) Frame(l Landmarks) (Frame, error) {
	tol := c.opts.Tolerance

	for _, p := range [...]r3.Vec{l.AC, l.PC, l.MS} {
		if !finite(p) {
			return Frame{}, &DegenerateInputError{
				Reason:    "non-finite landmark coordinate",
				Distance:  math.NaN(),
				Tolerance: tol,
			}
		}
	}

	pcAC := r3.Sub(l.AC, l.PC)
	length := r3.Norm(pcAC)
	if !(length > tol) {
		return Frame{}, &DegenerateInputError{
			Reason:    "AC and PC coincide",
			Distance:  length,
			Tolerance: tol,
		}
	}
	anterior := r3.Scale(1/length, pcAC)

	mc := midpoint(l.AC, l.PC)
	w := r3.Sub(l.MS, mc)
	// Only the part of w orthogonal to the AC-PC line matters.
	perp := r3.Sub(w, r3.Scale(r3.Dot(w, anterior), anterior))
	dist := r3.Norm(perp)
	if !(dist > tol) {
		return Frame{}, &DegenerateInputError{
			Reason:    "midline point lies on the AC-PC line",
			Distance:  dist,
			Tolerance: tol,
		}
	}
	if c.opts.OrientMidlineSuperior && perp.Z < 0 {
		perp = r3.Scale(-1, perp)
	}

	right := r3.Unit(r3.Cross(anterior, perp))
	superior := r3.Cross(right, anterior)

	origin, err := centerPoint(c.opts.Center, l, mc)
	if err != nil {
		return Frame{}, err
	}

	return Frame{
		Origin:   origin,
		Right:    right,
		Anterior: anterior,
		Superior: superior,
	}, nil
}

func centerPoint(c Center, l Landmarks, mc r3.Vec) (r3.Vec, error) {
	switch c {
	case CenterMC, "":
		return mc, nil
	case CenterAC:
		return l.AC, nil
	case CenterPC:
		return l.PC, nil
	default:
		return r3.Vec{}, fmt.Errorf("%w: got %q", ErrInvalidCenter, string(c))
	}
}

func finite(v r3.Vec) bool {
	for _, x := range [...]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

func midpoint(a, b r3.Vec) r3.Vec {
	return r3.Scale(0.5, r3.Add(a, b))
}

// OrderCommissures returns the endpoints of an AC-PC line as (AC, PC): the
// more anterior endpoint (larger RAS y) is the anterior commissure.
func OrderCommissures(a, b r3.Vec) (ac, pc r3.Vec) {
	if a.Y > b.Y {
		return a, b
	}
	return b, a
}

// DistanceToLine returns the distance from p to the infinite line through a
// and b. It returns the distance to a when a and b coincide.
func DistanceToLine(p, a, b r3.Vec) float64 {
	ab := r3.Sub(b, a)
	n := r3.Norm(ab)
	if n == 0 {
		return r3.Norm(r3.Sub(p, a))
	}
	return r3.Norm(r3.Cross(ab, r3.Sub(p, a))) / n
}

// SelectMidline returns the first candidate farther than tol from the line
// through ac and pc. It fails with a DegenerateInputError when every
// candidate is colinear, and with ErrNoMidline when there are none.
func SelectMidline(candidates []r3.Vec, ac, pc r3.Vec, tol float64) (r3.Vec, error) {
	if len(candidates) == 0 {
		return r3.Vec{}, ErrNoMidline
	}
	if tol <= 0 {
		tol = DefaultTolerance
	}
	best := 0.0
	for _, p := range candidates {
		d := DistanceToLine(p, ac, pc)
		if d > tol {
			return p, nil
		}
		if d > best {
			best = d
		}
	}
	return r3.Vec{}, &DegenerateInputError{
		Reason:    "every midline point lies on the AC-PC line",
		Distance:  best,
		Tolerance: tol,
	}
}
