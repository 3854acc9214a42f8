// Package quadrature generates Gauss-Lobatto-Legendre (GLL) rules for
// tensor-product spectral elements. GLL points collocate quadrature with
// the element's Lagrange nodes, which is what makes the mass operator
// diagonal per cell.
package quadrature

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// GaussLobatto returns the n-point GLL rule on [-1,1], n >= 2. The
// points are the zeros of (1-x^2)*P'_{n-1}(x) including the endpoints;
// the weights are 2/(n(n-1)) / P_{n-1}(x_i)^2.
func GaussLobatto(n int) (x, w []float64, err error) {
	if n < 2 {
		return nil, nil, fmt.Errorf("quadrature: GLL rule needs at least 2 points, got %d", n)
	}

	x = make([]float64, n)
	x[0] = -1.0
	x[n-1] = 1.0
	if n > 2 {
		// Interior points are the Gauss points of the (1,1) Jacobi
		// polynomial of degree n-3.
		xi, _ := jacobiGQ(1, 1, n-3)
		copy(x[1:n-1], xi)
	}

	w = make([]float64, n)
	c := 2.0 / float64(n*(n-1))
	for i, xi := range x {
		p := legendre(n-1, xi)
		w[i] = c / (p * p)
	}
	return x, w, nil
}

// GaussLobattoUnit returns the n-point GLL rule mapped to [0,1].
func GaussLobattoUnit(n int) (x, w []float64, err error) {
	x, w, err = GaussLobatto(n)
	if err != nil {
		return nil, nil, err
	}
	for i := range x {
		x[i] = 0.5 * (x[i] + 1.0)
		w[i] *= 0.5
	}
	return x, w, nil
}

// jacobiGQ computes the N+1 Gauss quadrature points of the Jacobi
// polynomial P_N^{alpha,beta} as eigenvalues of the symmetric
// tridiagonal recurrence matrix.
func jacobiGQ(alpha, beta float64, N int) (x, w []float64) {
	if N == 0 {
		return []float64{-(alpha - beta) / (alpha + beta + 2.0)}, []float64{2.0}
	}

	h1 := make([]float64, N+1)
	for i := 0; i < N+1; i++ {
		h1[i] = 2*float64(i) + alpha + beta
	}

	d0 := make([]float64, N+1)
	fac := beta*beta - alpha*alpha
	for i := 0; i < N+1; i++ {
		d0[i] = fac / (h1[i] * (h1[i] + 2.0))
	}
	eps := 1.e-16
	if alpha+beta < 10*eps {
		d0[0] = 0.0
	}

	d1 := make([]float64, N)
	for i := 0; i < N; i++ {
		ip1 := float64(i + 1)
		d1[i] = 2.0 / (h1[i] + 2.0) * math.Sqrt(
			ip1*(ip1+alpha+beta)*(ip1+alpha)*(ip1+beta)/(h1[i]+1)/(h1[i]+3),
		)
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(symTriDiagonal(d0, d1), true); !ok {
		panic("quadrature: eigenvalue decomposition failed")
	}
	x = eig.Values(nil)

	VVr := mat.NewDense(len(x), len(x), nil)
	eig.VectorsTo(VVr)
	w = make([]float64, len(x))
	copy(w, VVr.RawRowView(0))
	g0 := gamma0(alpha, beta)
	for i := range w {
		w[i] *= w[i] * g0
	}
	return x, w
}

func gamma0(alpha, beta float64) float64 {
	ab1 := alpha + beta + 1.0
	a1 := alpha + 1.0
	b1 := beta + 1.0
	return math.Gamma(a1) * math.Gamma(b1) * math.Pow(2, ab1) / ab1 / math.Gamma(ab1)
}

func symTriDiagonal(d0, d1 []float64) *mat.SymDense {
	n := len(d0)
	dd := make([]float64, n*n)
	for i := 0; i < n; i++ {
		dd[i+i*n] = d0[i]
		if i < n-1 {
			dd[i+1+i*n] = d1[i]
		}
	}
	return mat.NewSymDense(n, dd)
}

// legendre evaluates the Legendre polynomial P_n at x by the three-term
// recurrence.
func legendre(n int, x float64) float64 {
	if n == 0 {
		return 1.0
	}
	pm, p := 1.0, x
	for k := 1; k < n; k++ {
		pm, p = p, ((2*float64(k)+1)*x*p-float64(k)*pm)/float64(k+1)
	}
	return p
}

// HexRule is a tensor-product GLL rule on the reference hexahedron
// [0,1]^3 with n points per direction. Point q = (i,j,k) is flattened as
// q = i + n*(j + n*k).
type HexRule struct {
	N1D     int
	Points  [][3]float64
	Weights []float64

	// X1D and W1D are the underlying 1D rule on [0,1].
	X1D, W1D []float64
}

// NewHexRule builds the n^3-point tensor-product rule, n >= 2.
func NewHexRule(n int) (*HexRule, error) {
	x, w, err := GaussLobattoUnit(n)
	if err != nil {
		return nil, err
	}
	r := &HexRule{
		N1D:     n,
		Points:  make([][3]float64, n*n*n),
		Weights: make([]float64, n*n*n),
		X1D:     x,
		W1D:     w,
	}
	for k := 0; k < n; k++ {
		for j := 0; j < n; j++ {
			for i := 0; i < n; i++ {
				q := i + n*(j+n*k)
				r.Points[q] = [3]float64{x[i], x[j], x[k]}
				r.Weights[q] = w[i] * w[j] * w[k]
			}
		}
	}
	return r, nil
}

// Len returns the number of quadrature points.
func (r *HexRule) Len() int { return len(r.Points) }

// QuadRule is a tensor-product GLL rule on the reference quadrilateral
// [0,1]^2, used for boundary facet integration.
type QuadRule struct {
	N1D     int
	Points  [][2]float64
	Weights []float64
}

// NewQuadRule builds the n^2-point tensor-product rule, n >= 2.
func NewQuadRule(n int) (*QuadRule, error) {
	x, w, err := GaussLobattoUnit(n)
	if err != nil {
		return nil, err
	}
	r := &QuadRule{
		N1D:     n,
		Points:  make([][2]float64, n*n),
		Weights: make([]float64, n*n),
	}
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			q := i + n*j
			r.Points[q] = [2]float64{x[i], x[j]}
			r.Weights[q] = w[i] * w[j]
		}
	}
	return r, nil
}

// Len returns the number of quadrature points.
func (r *QuadRule) Len() int { return len(r.Points) }
