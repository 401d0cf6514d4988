package transformio

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"acpctool/internal/models"
	"acpctool/pkg/acpc"
)

// TestReportRoundTrip verifies that a report survives a save and load
func TestReportRoundTrip(t *testing.T) {
	l := acpc.Landmarks{
		AC: r3.Vec{X: 0.5, Y: 12, Z: 1},
		PC: r3.Vec{X: -0.5, Y: -13, Z: -1},
		MS: r3.Vec{X: 0, Y: 0, Z: 40},
	}
	c, err := acpc.NewCalculator(acpc.Options{Center: acpc.CenterAC, OrientMidlineSuperior: true})
	require.NoError(t, err)
	tr, err := c.Compute(l)
	require.NoError(t, err)

	rep := NewReport(tr, &l, "line.mrk.json", "midline.mrk.json")
	assert.Equal(t, "AC", rep.Center)
	assert.Equal(t, models.Point{0.5, 12, 1}, rep.Landmarks.AC)
	assert.Equal(t, models.Point{0.5, 12, 1}, rep.Frame.Origin)

	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, SaveJSON(path, rep))

	back, backRep, err := LoadJSON(path)
	require.NoError(t, err)
	assert.Equal(t, acpc.CenterAC, back.Center)
	assert.Equal(t, rep.Sources, backRep.Sources)
	assert.True(t, rep.CreatedAt.Equal(backRep.CreatedAt))

	approx := cmpopts.EquateApprox(0, 1e-12)
	if diff := cmp.Diff(tr.Frame, back.Frame, approx); diff != "" {
		t.Errorf("frame mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(rep.ToNative, backRep.ToNative); diff != "" {
		t.Errorf("toNative mismatch (-want +got):\n%s", diff)
	}
}

// TestReportWithoutLandmarks verifies that the landmarks member is omitted when unknown
func TestReportWithoutLandmarks(t *testing.T) {
	tr, err := acpc.ComputeTransform(r3.Vec{Y: 5}, r3.Vec{Y: -5}, r3.Vec{Z: 10})
	require.NoError(t, err)

	var sb strings.Builder
	require.NoError(t, WriteJSON(&sb, NewReport(tr, nil)))
	assert.NotContains(t, sb.String(), `"landmarks"`)
	assert.Contains(t, sb.String(), `"coordinateSystem": "RAS"`)
}

// TestReadJSONRejectsOtherSystems verifies that reports in another frame or
// with broken JSON are refused.
func TestReadJSONRejectsOtherSystems(t *testing.T) {
	_, _, err := ReadJSON(strings.NewReader(`{"coordinateSystem":"LPS"}`))
	assert.Error(t, err)

	_, _, err = ReadJSON(strings.NewReader(`{`))
	assert.Error(t, err)
}

// TestReadJSONRejectsNonRigidMatrices verifies that only proper rigid
// forward matrices, with a consistent inverse when present, are accepted.
func TestReadJSONRejectsNonRigidMatrices(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing matrix", `{"coordinateSystem":"RAS"}`},
		{"all zero matrix", `{"coordinateSystem":"RAS","toACPC":[[0,0,0,0],[0,0,0,0],[0,0,0,0],[0,0,0,0]]}`},
		{"scaled", `{"toACPC":[[2,0,0,0],[0,1,0,0],[0,0,1,0],[0,0,0,1]]}`},
		{"sheared", `{"toACPC":[[1,0.5,0,0],[0,1,0,0],[0,0,1,0],[0,0,0,1]]}`},
		{"reflection", `{"toACPC":[[-1,0,0,0],[0,1,0,0],[0,0,1,0],[0,0,0,1]]}`},
		{"projective bottom row", `{"toACPC":[[1,0,0,0],[0,1,0,0],[0,0,1,0],[0,0,0.1,1]]}`},
		{"inverse mismatch", `{"toACPC":[[1,0,0,5],[0,1,0,0],[0,0,1,0],[0,0,0,1]],
			"toNative":[[1,0,0,5],[0,1,0,0],[0,0,1,0],[0,0,0,1]]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ReadJSON(strings.NewReader(tt.body))
			assert.ErrorIs(t, err, ErrNotRigid)
		})
	}

	tr, _, err := ReadJSON(strings.NewReader(`{"toACPC":[[1,0,0,5],[0,1,0,0],[0,0,1,0],[0,0,0,1]]}`))
	require.NoError(t, err)
	p := tr.Apply(r3.Vec{})
	assert.Equal(t, r3.Vec{X: 5}, p)
}
