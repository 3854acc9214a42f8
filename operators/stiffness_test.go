package operators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexwave/hexwave/mesh"
)

func TestStiffnessAnnihilatesConstants(t *testing.T) {
	b, err := mesh.NewBox(0, 1, 2, 2, 2, [3]float64{1, 2, 3})
	require.NoError(t, err)
	n := b.IndexMap.Size()

	s, err := NewStiffness(b.Coords, b.CellNodes, nil, 2, n)
	require.NoError(t, err)

	u := make([]float64, n)
	for i := range u {
		u[i] = 7
	}
	out := make([]float64, n)
	require.NoError(t, s.Apply(u, out))
	for i, v := range out {
		assert.InDelta(t, 0.0, v, 1e-12, "dof %d", i)
	}
}

func TestStiffnessLinearFieldEnergy(t *testing.T) {
	b, err := mesh.NewBox(0, 1, 3, 3, 3, [3]float64{1, 1, 1})
	require.NoError(t, err)
	n := b.IndexMap.Size()

	s, err := NewStiffness(b.Coords, b.CellNodes, nil, 2, n)
	require.NoError(t, err)

	// u = x: grad u = (1,0,0), so u^T K u integrates |grad u|^2 = 1
	// over the unit box.
	u := make([]float64, n)
	for i := range u {
		u[i] = b.Coords[i][0]
	}
	out := make([]float64, n)
	require.NoError(t, s.Apply(u, out))

	energy := 0.0
	for i := range u {
		energy += u[i] * out[i]
	}
	assert.InDelta(t, 1.0, energy, 1e-12)

	// Rows sum to zero, so the total of K u vanishes.
	sum := 0.0
	for _, v := range out {
		sum += v
	}
	assert.InDelta(t, 0.0, sum, 1e-10)
}

func TestStiffnessMatchesDenseReference(t *testing.T) {
	b, err := mesh.NewBox(0, 1, 2, 1, 2, [3]float64{2, 1, 1})
	require.NoError(t, err)
	n := b.IndexMap.Size()

	s, err := NewStiffness(b.Coords, b.CellNodes, []float64{1, 2, 3, 4}, 2, n)
	require.NoError(t, err)

	u := make([]float64, n)
	for i := range u {
		u[i] = float64((i*3)%7) - 3
	}
	out := make([]float64, n)
	require.NoError(t, s.Apply(u, out))

	K := AssembleStiffness(s, n)
	want := ApplyDense(K, u)
	assert.InDeltaSlice(t, want, out, 1e-11)
}

func TestStiffnessHigherOrderRuleAgrees(t *testing.T) {
	b, err := mesh.NewBox(0, 1, 2, 2, 2, [3]float64{1, 1, 1})
	require.NoError(t, err)
	n := b.IndexMap.Size()

	// Trilinear shapes on an affine mesh give an integrand of degree at
	// most 2 per direction, which the 3-point GLL rule already handles
	// exactly; a richer rule must not change the result.
	s3, err := NewStiffness(b.Coords, b.CellNodes, nil, 3, n)
	require.NoError(t, err)
	s4, err := NewStiffness(b.Coords, b.CellNodes, nil, 4, n)
	require.NoError(t, err)

	u := make([]float64, n)
	for i := range u {
		u[i] = b.Coords[i][0]*b.Coords[i][1] + b.Coords[i][2]
	}
	out3 := make([]float64, n)
	out4 := make([]float64, n)
	require.NoError(t, s3.Apply(u, out3))
	require.NoError(t, s4.Apply(u, out4))
	assert.InDeltaSlice(t, out3, out4, 1e-11)
}
