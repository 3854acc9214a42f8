// Package geometry computes the geometric factors of a hexahedral mesh:
// quadrature-scaled Jacobian determinants on cells and on boundary
// facets. These are precomputed once per mesh and consumed by the mass
// and stiffness operators.
package geometry

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/hexwave/hexwave/quadrature"
)

// Hex cells use trilinear geometry: 8 corner nodes on [0,1]^3, corner
// v = (i,j,k) flattened as v = i + 2*(j + 2*k).

// ShapeGradients evaluates the gradients of the 8 trilinear shape
// functions at a reference point.
func ShapeGradients(p [3]float64) [8][3]float64 {
	l := [2][3]float64{
		{1 - p[0], 1 - p[1], 1 - p[2]},
		{p[0], p[1], p[2]},
	}
	d := [2]float64{-1, 1}

	var g [8][3]float64
	for k := 0; k < 2; k++ {
		for j := 0; j < 2; j++ {
			for i := 0; i < 2; i++ {
				v := i + 2*(j+2*k)
				g[v][0] = d[i] * l[j][1] * l[k][2]
				g[v][1] = l[i][0] * d[j] * l[k][2]
				g[v][2] = l[i][0] * l[j][1] * d[k]
			}
		}
	}
	return g
}

// jacobianAt fills a 3x3 Jacobian dX/dxi from cell corner coordinates
// and shape gradients.
func jacobianAt(J *mat.Dense, coords [][3]float64, cell [8]int32, g [8][3]float64) {
	J.Zero()
	for v := 0; v < 8; v++ {
		x := coords[cell[v]]
		for a := 0; a < 3; a++ {
			for b := 0; b < 3; b++ {
				J.Set(a, b, J.At(a, b)+x[a]*g[v][b])
			}
		}
	}
}

// ScaledJacobianDeterminants computes detJ[c*nq+q] = w_q * |det J_c(x_q)|
// for every cell and quadrature point of the rule.
func ScaledJacobianDeterminants(coords [][3]float64, cells [][8]int32, rule *quadrature.HexRule) []float64 {
	nq := rule.Len()
	grads := make([][8][3]float64, nq)
	for q, p := range rule.Points {
		grads[q] = ShapeGradients(p)
	}

	detJ := make([]float64, len(cells)*nq)
	J := mat.NewDense(3, 3, nil)
	for c, cell := range cells {
		for q := 0; q < nq; q++ {
			jacobianAt(J, coords, cell, grads[q])
			detJ[c*nq+q] = rule.Weights[q] * math.Abs(mat.Det(J))
		}
	}
	return detJ
}

// BoundaryFacet identifies one boundary face of a local cell. Local
// facet numbering follows the reference hexahedron faces in the order
// z=0, y=0, x=0, x=1, y=1, z=1.
type BoundaryFacet struct {
	Cell  int
	Facet int
}

// facetPoint maps a 2D facet parameter (u,v) to the reference cell.
func facetPoint(facet int, u, v float64) ([3]float64, error) {
	switch facet {
	case 0:
		return [3]float64{u, v, 0}, nil
	case 1:
		return [3]float64{u, 0, v}, nil
	case 2:
		return [3]float64{0, u, v}, nil
	case 3:
		return [3]float64{1, u, v}, nil
	case 4:
		return [3]float64{u, 1, v}, nil
	case 5:
		return [3]float64{u, v, 1}, nil
	}
	return [3]float64{}, fmt.Errorf("geometry: local facet %d outside [0,6)", facet)
}

// facetDirections returns the two reference axes spanned by the facet
// parameters (u,v).
func facetDirections(facet int) (a, b int) {
	switch facet {
	case 0, 5:
		return 0, 1 // x, y
	case 1, 4:
		return 0, 2 // x, z
	default:
		return 1, 2 // y, z
	}
}

// BoundaryFacetScaledJacobians computes the quadrature-scaled surface
// Jacobians detJf[f*nq+q] = w_q * |t_u x t_v| for every listed boundary
// facet, where t_u and t_v are the surface tangents of the trilinear
// geometry map.
func BoundaryFacetScaledJacobians(coords [][3]float64, cells [][8]int32,
	facets []BoundaryFacet, rule *quadrature.QuadRule) ([]float64, error) {

	nq := rule.Len()
	detJf := make([]float64, len(facets)*nq)
	J := mat.NewDense(3, 3, nil)

	for f, bf := range facets {
		da, db := facetDirections(bf.Facet)
		cell := cells[bf.Cell]
		for q, p := range rule.Points {
			ref, err := facetPoint(bf.Facet, p[0], p[1])
			if err != nil {
				return nil, err
			}
			jacobianAt(J, coords, cell, ShapeGradients(ref))

			// Surface tangents are the Jacobian columns along the two
			// reference directions of the facet.
			var tu, tv [3]float64
			for a := 0; a < 3; a++ {
				tu[a] = J.At(a, da)
				tv[a] = J.At(a, db)
			}
			nx := tu[1]*tv[2] - tu[2]*tv[1]
			ny := tu[2]*tv[0] - tu[0]*tv[2]
			nz := tu[0]*tv[1] - tu[1]*tv[0]
			detJf[f*nq+q] = rule.Weights[q] * math.Sqrt(nx*nx+ny*ny+nz*nz)
		}
	}
	return detJf, nil
}

// GeometricFactors computes the stiffness-operator factors
// G[c*nq+q] = w_q * |det J| * J^{-1} J^{-T} at every cell quadrature
// point, stored as the six unique entries (G00,G01,G02,G11,G12,G22).
func GeometricFactors(coords [][3]float64, cells [][8]int32, rule *quadrature.HexRule) ([][6]float64, error) {
	nq := rule.Len()
	grads := make([][8][3]float64, nq)
	for q, p := range rule.Points {
		grads[q] = ShapeGradients(p)
	}

	G := make([][6]float64, len(cells)*nq)
	J := mat.NewDense(3, 3, nil)
	Jinv := mat.NewDense(3, 3, nil)
	for c, cell := range cells {
		for q := 0; q < nq; q++ {
			jacobianAt(J, coords, cell, grads[q])
			det := mat.Det(J)
			if det == 0 {
				return nil, fmt.Errorf("geometry: degenerate cell %d at quadrature point %d", c, q)
			}
			if err := Jinv.Inverse(J); err != nil {
				return nil, fmt.Errorf("geometry: cell %d: %w", c, err)
			}
			scale := rule.Weights[q] * math.Abs(det)
			idx := 0
			for a := 0; a < 3; a++ {
				for b := a; b < 3; b++ {
					s := 0.0
					for k := 0; k < 3; k++ {
						s += Jinv.At(a, k) * Jinv.At(b, k)
					}
					G[c*nq+q][idx] = scale * s
					idx++
				}
			}
		}
	}
	return G, nil
}
