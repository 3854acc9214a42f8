package operators

import (
	"fmt"

	"github.com/hexwave/hexwave/geometry"
	"github.com/hexwave/hexwave/quadrature"
)

// Stiffness is the matrix-free stiffness operator
// b[a] += coeff_c * sum_q grad(phi_a)^T G_c(x_q) grad(phi_b) u[b]
// over the trilinear shape functions of each cell. The geometric
// factors G fold the quadrature weight, the Jacobian determinant and
// J^{-1} J^{-T} into one symmetric matrix per quadrature point.
type Stiffness struct {
	cells []([8]int32)
	G     [][6]float64
	grads [][8][3]float64
	nq    int
	coeff []float64
	nloc  int
}

// NewStiffness precomputes geometric factors and reference gradients at
// an n-point-per-direction GLL rule, n >= 2.
func NewStiffness(coords [][3]float64, cells [][8]int32, coeff []float64, n, nloc int) (*Stiffness, error) {
	if coeff != nil && len(coeff) != len(cells) {
		return nil, fmt.Errorf("operators: %d coefficients for %d cells", len(coeff), len(cells))
	}
	rule, err := quadrature.NewHexRule(n)
	if err != nil {
		return nil, err
	}
	G, err := geometry.GeometricFactors(coords, cells, rule)
	if err != nil {
		return nil, err
	}
	grads := make([][8][3]float64, rule.Len())
	for q, p := range rule.Points {
		grads[q] = geometry.ShapeGradients(p)
	}
	return &Stiffness{
		cells: cells,
		G:     G,
		grads: grads,
		nq:    rule.Len(),
		coeff: coeff,
		nloc:  nloc,
	}, nil
}

// Apply overwrites b with the local stiffness action K u. As with Mass,
// shared-node contributions remain partial until a reverse exchange.
func (s *Stiffness) Apply(u, b []float64) error {
	if len(u) != s.nloc || len(b) != s.nloc {
		return fmt.Errorf("operators: vector lengths %d,%d != local size %d", len(u), len(b), s.nloc)
	}
	for i := range b {
		b[i] = 0
	}
	for c, cell := range s.cells {
		k := 1.0
		if s.coeff != nil {
			k = s.coeff[c]
		}
		for q := 0; q < s.nq; q++ {
			g := s.G[c*s.nq+q]

			// du = grad u in reference coordinates at this point.
			var du [3]float64
			for v, dof := range cell {
				for a := 0; a < 3; a++ {
					du[a] += s.grads[q][v][a] * u[dof]
				}
			}

			// flux = G du, expanding the symmetric storage
			// (G00,G01,G02,G11,G12,G22).
			flux := [3]float64{
				g[0]*du[0] + g[1]*du[1] + g[2]*du[2],
				g[1]*du[0] + g[3]*du[1] + g[4]*du[2],
				g[2]*du[0] + g[4]*du[1] + g[5]*du[2],
			}

			for v, dof := range cell {
				sum := 0.0
				for a := 0; a < 3; a++ {
					sum += s.grads[q][v][a] * flux[a]
				}
				b[dof] += k * sum
			}
		}
	}
	return nil
}
