package operators

import (
	"github.com/notargets/gocfd/utils"
)

// Dense reference assemblers. They build the full local operator matrix
// and exist to cross-check the matrix-free paths; use them only on
// small meshes.

// AssembleMass builds the dense local mass matrix over nloc degrees of
// freedom from an existing Mass operator.
func AssembleMass(m *Mass, nloc int) utils.Matrix {
	M := utils.NewMatrix(nloc, nloc)
	for c, cell := range m.cells {
		k := 1.0
		if m.coeff != nil {
			k = m.coeff[c]
		}
		for v, dof := range cell {
			i := int(dof)
			M.Set(i, i, M.At(i, i)+k*m.detJ[c*8+v])
		}
	}
	return M
}

// AssembleStiffness builds the dense local stiffness matrix over nloc
// degrees of freedom from an existing Stiffness operator.
func AssembleStiffness(s *Stiffness, nloc int) utils.Matrix {
	K := utils.NewMatrix(nloc, nloc)
	for c, cell := range s.cells {
		k := 1.0
		if s.coeff != nil {
			k = s.coeff[c]
		}
		for q := 0; q < s.nq; q++ {
			g := s.G[c*s.nq+q]
			G := [3][3]float64{
				{g[0], g[1], g[2]},
				{g[1], g[3], g[4]},
				{g[2], g[4], g[5]},
			}
			for va, dofa := range cell {
				for vb, dofb := range cell {
					sum := 0.0
					for a := 0; a < 3; a++ {
						for b := 0; b < 3; b++ {
							sum += s.grads[q][va][a] * G[a][b] * s.grads[q][vb][b]
						}
					}
					i, j := int(dofa), int(dofb)
					K.Set(i, j, K.At(i, j)+k*sum)
				}
			}
		}
	}
	return K
}

// ApplyDense multiplies a dense operator matrix with a vector.
func ApplyDense(M utils.Matrix, u []float64) []float64 {
	n := len(u)
	U := utils.NewMatrix(n, 1)
	for i, ui := range u {
		U.Set(i, 0, ui)
	}
	B := M.Mul(U)
	b := make([]float64, n)
	for i := range b {
		b[i] = B.At(i, 0)
	}
	return b
}
