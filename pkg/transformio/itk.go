// Package transformio writes AC-PC transforms in forms the host can load:
// ITK text transform files and a JSON report.
package transformio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"acpctool/pkg/acpc"
)

const (
	itkHeader        = "#Insight Transform File V1.0"
	itkAffineDouble  = "AffineTransform_double_3_3"
	rigidTolerance   = 1e-6
	parameterCount   = 12
	fixedParamsCount = 3
)

// ErrNotRigid is returned when a file holds an affine transform with
// scaling or shear.
var ErrNotRigid = errors.New("transform is not rigid")

// lps flips between RAS and LPS.
var lps = acpc.Matrix4{
	{-1, 0, 0, 0},
	{0, -1, 0, 0},
	{0, 0, 1, 0},
	{0, 0, 0, 1},
}

// ITK files hold the resampling ("from parent") direction in LPS, so the
// stored matrix is L · inverse(toParent) · L.
func toITK(t *acpc.Transform) acpc.Matrix4 {
	return lps.Mul(t.ToNative()).Mul(lps)
}

// WriteITK writes t as an ITK text transform file.
func WriteITK(w io.Writer, t *acpc.Transform) error {
	m := toITK(t)
	params := make([]string, 0, parameterCount)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			params = append(params, formatFloat(m[i][j]))
		}
	}
	for i := 0; i < 3; i++ {
		params = append(params, formatFloat(m[i][3]))
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, itkHeader)
	fmt.Fprintln(bw, "#Transform 0")
	fmt.Fprintf(bw, "Transform: %s\n", itkAffineDouble)
	fmt.Fprintf(bw, "Parameters: %s\n", strings.Join(params, " "))
	fmt.Fprintln(bw, "FixedParameters: 0 0 0")
	return bw.Flush()
}

// SaveITK writes t to path.
func SaveITK(path string, t *acpc.Transform) error {
	return writeFile(path, func(w io.Writer) error { return WriteITK(w, t) })
}

// ReadITK parses the first transform of an ITK text transform file and
// returns it as a native → AC-PC transform in RAS. Only rigid affine
// transforms are accepted.
func ReadITK(r io.Reader) (*acpc.Transform, error) {
	sc := bufio.NewScanner(r)
	var (
		kind       string
		params     []float64
		fixed      []float64
		sawHeader  bool
		transforms int
	)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "#Insight Transform File"):
			sawHeader = true
			continue
		case strings.HasPrefix(line, "#Transform"):
			transforms++
			continue
		case strings.HasPrefix(line, "#"):
			continue
		}
		if transforms > 1 {
			break
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("malformed line %q", line)
		}
		value = strings.TrimSpace(value)
		var err error
		switch strings.TrimSpace(key) {
		case "Transform":
			kind = value
		case "Parameters":
			params, err = parseFloats(value)
		case "FixedParameters":
			fixed, err = parseFloats(value)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	if !sawHeader {
		return nil, errors.New("missing ITK transform header")
	}
	switch kind {
	case "AffineTransform_double_3_3", "AffineTransform_float_3_3",
		"MatrixOffsetTransformBase_double_3_3", "MatrixOffsetTransformBase_float_3_3":
	default:
		return nil, fmt.Errorf("unsupported transform type %q", kind)
	}
	if len(params) != parameterCount {
		return nil, fmt.Errorf("expected %d parameters, got %d", parameterCount, len(params))
	}
	if fixed == nil {
		fixed = make([]float64, fixedParamsCount)
	}
	if len(fixed) != fixedParamsCount {
		return nil, fmt.Errorf("expected %d fixed parameters, got %d", fixedParamsCount, len(fixed))
	}

	// ITK applies x' = A(x − c) + c + t.
	a := mat.NewDense(3, 3, params[:9])
	c := mat.NewVecDense(3, fixed)
	var ac mat.VecDense
	ac.MulVec(a, c)

	m := acpc.Identity()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m[i][j] = a.At(i, j)
		}
		m[i][3] = params[9+i] + fixed[i] - ac.AtVec(i)
	}

	if err := checkRigid(a); err != nil {
		return nil, err
	}

	// The file holds L · toNative · L.
	toACPC := lps.Mul(m.RigidInverse()).Mul(lps)
	return acpc.FromMatrix(toACPC), nil
}

// LoadITK reads an ITK text transform file.
func LoadITK(path string) (*acpc.Transform, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error reading transform file: %w", err)
	}
	defer f.Close()

	t, err := ReadITK(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

func checkRigid(a *mat.Dense) error {
	var ata mat.Dense
	ata.Mul(a.T(), a)
	eye := mat.NewDiagDense(3, []float64{1, 1, 1})
	if !mat.EqualApprox(&ata, eye, rigidTolerance) {
		return ErrNotRigid
	}
	if det := mat.Det(a); det < 0 {
		return fmt.Errorf("%w: reflection (det %.3g)", ErrNotRigid, det)
	}
	return nil
}

func parseFloats(s string) ([]float64, error) {
	fields := strings.Fields(s)
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func formatFloat(v float64) string {
	if v == 0 {
		// Avoid writing "-0".
		v = 0
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func writeFile(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("error writing %s: %w", path, err)
	}
	return f.Close()
}
