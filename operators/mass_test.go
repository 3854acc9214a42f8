package operators

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexwave/hexwave/comm"
	"github.com/hexwave/hexwave/device"
	"github.com/hexwave/hexwave/exchange"
	"github.com/hexwave/hexwave/mesh"
)

func TestMassConstantField(t *testing.T) {
	b, err := mesh.NewBox(0, 1, 2, 2, 2, [3]float64{1, 1, 1})
	require.NoError(t, err)
	n := b.IndexMap.Size()

	m, err := NewMass(b.Coords, b.CellNodes, nil, n)
	require.NoError(t, err)

	u := make([]float64, n)
	for i := range u {
		u[i] = 1
	}
	out := make([]float64, n)
	require.NoError(t, m.Apply(u, out))

	// M 1 integrates the constant 1 over the box.
	sum := 0.0
	for _, v := range out {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-12)

	// The diagonal equals M applied to the ones vector.
	d := make([]float64, n)
	require.NoError(t, m.Diagonal(d))
	assert.InDeltaSlice(t, out, d, 1e-14)
}

func TestMassCoefficientAndVolume(t *testing.T) {
	b, err := mesh.NewBox(0, 1, 2, 1, 1, [3]float64{2, 1, 1})
	require.NoError(t, err)
	n := b.IndexMap.Size()

	// coeff 3 on the left cell, 5 on the right; each cell has volume 1.
	m, err := NewMass(b.Coords, b.CellNodes, []float64{3, 5}, n)
	require.NoError(t, err)

	u := make([]float64, n)
	for i := range u {
		u[i] = 1
	}
	out := make([]float64, n)
	require.NoError(t, m.Apply(u, out))

	sum := 0.0
	for _, v := range out {
		sum += v
	}
	assert.InDelta(t, 8.0, sum, 1e-12)
}

func TestMassMatchesDenseReference(t *testing.T) {
	b, err := mesh.NewBox(0, 1, 2, 2, 2, [3]float64{1, 2, 1})
	require.NoError(t, err)
	n := b.IndexMap.Size()

	m, err := NewMass(b.Coords, b.CellNodes, nil, n)
	require.NoError(t, err)

	u := make([]float64, n)
	for i := range u {
		u[i] = float64(i%5) - 2
	}
	out := make([]float64, n)
	require.NoError(t, m.Apply(u, out))

	M := AssembleMass(m, n)
	want := ApplyDense(M, u)
	assert.InDeltaSlice(t, want, out, 1e-12)
}

func TestMassRejectsBadLengths(t *testing.T) {
	b, err := mesh.NewBox(0, 1, 1, 1, 1, [3]float64{1, 1, 1})
	require.NoError(t, err)

	_, err = NewMass(b.Coords, b.CellNodes, []float64{1, 2}, 8)
	assert.Error(t, err)

	m, err := NewMass(b.Coords, b.CellNodes, nil, 8)
	require.NoError(t, err)
	assert.Error(t, m.Apply(make([]float64, 7), make([]float64, 8)))
}

// Distributed assembly: per-rank partial sums followed by a reverse-add
// and forward exchange must reproduce the single-rank lumped mass.
func TestMassDistributedAssembly(t *testing.T) {
	const size = 2
	length := [3]float64{1, 1, 2}
	w := comm.NewWorld(size)

	single, err := mesh.NewBox(0, 1, 2, 2, 2, length)
	require.NoError(t, err)
	nSingle := single.IndexMap.Size()
	mSingle, err := NewMass(single.Coords, single.CellNodes, nil, nSingle)
	require.NoError(t, err)
	uOnes := make([]float64, nSingle)
	for i := range uOnes {
		uOnes[i] = 1
	}
	want := make([]float64, nSingle)
	require.NoError(t, mSingle.Apply(uOnes, want))

	results := make([][]float64, size)
	offsets := make([]int64, size)
	locals := make([]int, size)
	errs := make([]error, size)
	var wg sync.WaitGroup
	for r := 0; r < size; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			errs[r] = func() error {
				b, err := mesh.NewBox(r, size, 2, 2, 2, length)
				if err != nil {
					return err
				}
				tr := w.Transport(r)
				plan, err := exchange.BuildPlan(b.IndexMap, tr)
				if err != nil {
					return err
				}
				ex := exchange.NewExchanger[float64](plan, tr)
				defer ex.Free()

				n := b.IndexMap.Size()
				m, err := NewMass(b.Coords, b.CellNodes, nil, n)
				if err != nil {
					return err
				}
				u := make([]float64, n)
				for i := range u {
					u[i] = 1
				}
				out := make([]float64, n)
				if err := m.Apply(u, out); err != nil {
					return err
				}
				vec := device.NewVector(out)
				if err := ex.ScatterReverse(vec, exchange.Add); err != nil {
					return err
				}
				if err := ex.ScatterForward(vec); err != nil {
					return err
				}
				results[r] = out
				offsets[r] = b.IndexMap.GlobalOffset
				locals[r] = b.IndexMap.LocalSize
				return nil
			}()
		}(r)
	}
	wg.Wait()
	for r, err := range errs {
		require.NoError(t, err, "rank %d", r)
	}

	// Global node numbering is identical in both decompositions, so the
	// owned entries concatenate into the single-rank vector.
	for r := 0; r < size; r++ {
		for i := 0; i < locals[r]; i++ {
			g := offsets[r] + int64(i)
			assert.InDelta(t, want[g], results[r][i], 1e-12, "rank %d local %d", r, i)
		}
	}
}

func TestDeviceMassMatchesHost(t *testing.T) {
	dev := device.CreateTestDevice()
	defer dev.Free()
	ctx := device.NewContext(dev)
	defer ctx.Free()

	b, err := mesh.NewBox(0, 1, 2, 2, 2, [3]float64{1, 1, 1})
	require.NoError(t, err)
	n := b.IndexMap.Size()
	m, err := NewMass(b.Coords, b.CellNodes, nil, n)
	require.NoError(t, err)

	dm, err := NewDeviceMass(ctx, m)
	require.NoError(t, err)
	defer dm.Free()

	u := make([]float64, n)
	for i := range u {
		u[i] = float64(i) * 0.25
	}
	want := make([]float64, n)
	require.NoError(t, m.Apply(u, want))

	du, err := device.NewDeviceVector(ctx, u)
	require.NoError(t, err)
	defer du.Free()
	db, err := device.NewDeviceVector(ctx, make([]float64, n))
	require.NoError(t, err)
	defer db.Free()

	require.NoError(t, dm.Apply(du, db))
	got := make([]float64, n)
	require.NoError(t, db.CopyToHost(got))
	assert.InDeltaSlice(t, want, got, 1e-12)
}
