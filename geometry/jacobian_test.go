package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexwave/hexwave/quadrature"
)

// unitCell is a single hexahedron spanning [0,1]^3 (corner order
// v = i + 2*(j + 2*k)).
func unitCell() ([][3]float64, [][8]int32) {
	coords := make([][3]float64, 8)
	for k := 0; k < 2; k++ {
		for j := 0; j < 2; j++ {
			for i := 0; i < 2; i++ {
				coords[i+2*(j+2*k)] = [3]float64{float64(i), float64(j), float64(k)}
			}
		}
	}
	return coords, [][8]int32{{0, 1, 2, 3, 4, 5, 6, 7}}
}

func TestScaledJacobianUnitCube(t *testing.T) {
	coords, cells := unitCell()
	rule, err := quadrature.NewHexRule(3)
	require.NoError(t, err)

	detJ := ScaledJacobianDeterminants(coords, cells, rule)
	require.Len(t, detJ, rule.Len())

	// Identity geometry map: detJ at point q is exactly the weight, and
	// the sum is the cell volume.
	sum := 0.0
	for q, d := range detJ {
		assert.InDelta(t, rule.Weights[q], d, 1e-13, "point %d", q)
		sum += d
	}
	assert.InDelta(t, 1.0, sum, 1e-12)
}

func TestScaledJacobianStretchedCell(t *testing.T) {
	coords, cells := unitCell()
	// Stretch x by 2 and z by 3: volume 6.
	for i := range coords {
		coords[i][0] *= 2
		coords[i][2] *= 3
	}
	rule, err := quadrature.NewHexRule(2)
	require.NoError(t, err)

	detJ := ScaledJacobianDeterminants(coords, cells, rule)
	sum := 0.0
	for _, d := range detJ {
		sum += d
	}
	assert.InDelta(t, 6.0, sum, 1e-12)
}

func TestBoundaryFacetAreas(t *testing.T) {
	coords, cells := unitCell()
	// Stretch y by 2: faces z=0 and z=1 have area 2, face y=0 has area 1.
	for i := range coords {
		coords[i][1] *= 2
	}
	rule, err := quadrature.NewQuadRule(3)
	require.NoError(t, err)

	facets := []BoundaryFacet{
		{Cell: 0, Facet: 0}, // z=0
		{Cell: 0, Facet: 1}, // y=0
		{Cell: 0, Facet: 5}, // z=1
	}
	detJf, err := BoundaryFacetScaledJacobians(coords, cells, facets, rule)
	require.NoError(t, err)
	require.Len(t, detJf, 3*rule.Len())

	areas := make([]float64, 3)
	for f := 0; f < 3; f++ {
		for q := 0; q < rule.Len(); q++ {
			areas[f] += detJf[f*rule.Len()+q]
		}
	}
	assert.InDelta(t, 2.0, areas[0], 1e-12)
	assert.InDelta(t, 1.0, areas[1], 1e-12)
	assert.InDelta(t, 2.0, areas[2], 1e-12)
}

func TestGeometricFactorsUnitCube(t *testing.T) {
	coords, cells := unitCell()
	rule, err := quadrature.NewHexRule(2)
	require.NoError(t, err)

	G, err := GeometricFactors(coords, cells, rule)
	require.NoError(t, err)
	require.Len(t, G, rule.Len())

	// Identity map: G = w * I, stored as (G00,G01,G02,G11,G12,G22).
	for q, g := range G {
		w := rule.Weights[q]
		assert.InDelta(t, w, g[0], 1e-13)
		assert.InDelta(t, 0.0, g[1], 1e-13)
		assert.InDelta(t, 0.0, g[2], 1e-13)
		assert.InDelta(t, w, g[3], 1e-13)
		assert.InDelta(t, 0.0, g[4], 1e-13)
		assert.InDelta(t, w, g[5], 1e-13)
	}
}
