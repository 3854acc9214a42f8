// Package operators implements matrix-free spectral-element operators on
// hexahedral meshes: the collocated mass operator and the trilinear
// stiffness operator. Both produce unassembled per-rank results; summing
// the contributions of shared nodes across ranks is the exchange layer's
// job.
package operators

import (
	"fmt"

	"github.com/hexwave/hexwave/geometry"
	"github.com/hexwave/hexwave/quadrature"
)

// Mass is the collocated mass operator. With the quadrature points
// placed at the cell corners the operator is diagonal per cell:
// b[v] += coeff_c * detJ_c(x_v) * u[v].
type Mass struct {
	cells []([8]int32)
	detJ  []float64 // quadrature-scaled, 8 entries per cell
	coeff []float64 // per cell, nil means 1
	nloc  int
}

// NewMass precomputes the scaled Jacobian determinants of every cell at
// the 2x2x2 GLL rule, whose points coincide with the cell corners.
// coeff is an optional per-cell coefficient; nloc is the local vector
// length the operator acts on.
func NewMass(coords [][3]float64, cells [][8]int32, coeff []float64, nloc int) (*Mass, error) {
	if coeff != nil && len(coeff) != len(cells) {
		return nil, fmt.Errorf("operators: %d coefficients for %d cells", len(coeff), len(cells))
	}
	rule, err := quadrature.NewHexRule(2)
	if err != nil {
		return nil, err
	}
	return &Mass{
		cells: cells,
		detJ:  geometry.ScaledJacobianDeterminants(coords, cells, rule),
		coeff: coeff,
		nloc:  nloc,
	}, nil
}

// Apply overwrites b with the local mass action M u. Ghost slots of u
// must be current before the call; b carries partial sums on shared
// nodes until a reverse exchange accumulates them.
func (m *Mass) Apply(u, b []float64) error {
	if len(u) != m.nloc || len(b) != m.nloc {
		return fmt.Errorf("operators: vector lengths %d,%d != local size %d", len(u), len(b), m.nloc)
	}
	for i := range b {
		b[i] = 0
	}
	for c, cell := range m.cells {
		k := 1.0
		if m.coeff != nil {
			k = m.coeff[c]
		}
		for v, dof := range cell {
			b[dof] += k * m.detJ[c*8+v] * u[dof]
		}
	}
	return nil
}

// Diagonal overwrites d with the operator diagonal, the lumped mass
// vector. Applying Apply to the all-ones vector gives the same result.
func (m *Mass) Diagonal(d []float64) error {
	if len(d) != m.nloc {
		return fmt.Errorf("operators: vector length %d != local size %d", len(d), m.nloc)
	}
	for i := range d {
		d[i] = 0
	}
	for c, cell := range m.cells {
		k := 1.0
		if m.coeff != nil {
			k = m.coeff[c]
		}
		for v, dof := range cell {
			d[dof] += k * m.detJ[c*8+v]
		}
	}
	return nil
}
