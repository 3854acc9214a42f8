package mesh

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexwave/hexwave/comm"
	"github.com/hexwave/hexwave/device"
	"github.com/hexwave/hexwave/exchange"
)

func TestSingleRankBox(t *testing.T) {
	b, err := NewBox(0, 1, 2, 2, 2, [3]float64{1, 1, 1})
	require.NoError(t, err)

	assert.Equal(t, 27, b.IndexMap.LocalSize)
	assert.Equal(t, 0, b.IndexMap.GhostCount())
	assert.Equal(t, int64(0), b.IndexMap.GlobalOffset)
	assert.Equal(t, 8, b.NumCells())
	require.NoError(t, b.IndexMap.Validate(0, 1))

	// No Dest entries on a single rank.
	for _, d := range b.IndexMap.Dest {
		assert.Empty(t, d)
	}

	// 4 facets on each of the 6 box faces.
	assert.Len(t, b.BoundaryFacets, 24)

	// Node (1,1,1) sits at the cube center.
	local := b.localNodeID(1, 1, 1)
	assert.Equal(t, [3]float64{0.5, 0.5, 0.5}, b.Coords[local])
}

func TestTwoRankBoxIndexMap(t *testing.T) {
	length := [3]float64{1, 1, 2}
	b0, err := NewBox(0, 2, 1, 1, 2, length)
	require.NoError(t, err)
	b1, err := NewBox(1, 2, 1, 1, 2, length)
	require.NoError(t, err)

	// Rank 0 owns planes 0 and 1 (8 nodes), rank 1 owns plane 2 (4
	// nodes) and ghosts plane 1.
	assert.Equal(t, 8, b0.IndexMap.LocalSize)
	assert.Equal(t, 0, b0.IndexMap.GhostCount())
	assert.Equal(t, 4, b1.IndexMap.LocalSize)
	assert.Equal(t, int64(8), b1.IndexMap.GlobalOffset)
	assert.Equal(t, []int64{4, 5, 6, 7}, b1.IndexMap.Ghosts)
	assert.Equal(t, []int{0, 0, 0, 0}, b1.IndexMap.Owners)

	// Rank 0's top plane is ghosted on rank 1.
	for local := 0; local < 4; local++ {
		assert.Empty(t, b0.IndexMap.Dest[local])
		assert.Equal(t, []int{1}, b0.IndexMap.Dest[4+local])
	}

	require.NoError(t, b0.IndexMap.Validate(0, 2))
	require.NoError(t, b1.IndexMap.Validate(1, 2))

	// Rank 1's single cell: bottom corners are its ghost plane, top
	// corners its owned plane.
	require.Equal(t, 1, b1.NumCells())
	assert.Equal(t, [8]int32{4, 5, 6, 7, 0, 1, 2, 3}, b1.CellNodes[0])

	// Shared nodes carry identical coordinates on both ranks.
	for s := 0; s < 4; s++ {
		assert.Equal(t, b0.Coords[4+s], b1.Coords[b1.IndexMap.LocalSize+s])
	}
}

func TestBoxThreeRankExchange(t *testing.T) {
	const size = 3
	length := [3]float64{1, 1, 3}
	w := comm.NewWorld(size)

	ghosts := make([][]float64, size)
	var wg sync.WaitGroup
	errs := make([]error, size)
	for r := 0; r < size; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			b, err := NewBox(r, size, 2, 2, 3, length)
			if err != nil {
				errs[r] = err
				return
			}
			tr := w.Transport(r)
			plan, err := exchange.BuildPlan(b.IndexMap, tr)
			if err != nil {
				errs[r] = err
				return
			}
			ex := exchange.NewExchanger[float64](plan, tr)
			defer ex.Free()

			// Each owned slot holds its global ID; after the forward
			// exchange every ghost must hold its global ID too.
			u := make([]float64, b.IndexMap.Size())
			for i := 0; i < b.IndexMap.LocalSize; i++ {
				u[i] = float64(b.IndexMap.GlobalOffset + int64(i))
			}
			vec := device.NewVector(u)
			if err := ex.ScatterForward(vec); err != nil {
				errs[r] = err
				return
			}
			ghosts[r] = append([]float64(nil), u[b.IndexMap.LocalSize:]...)
		}(r)
	}
	wg.Wait()
	for r, err := range errs {
		require.NoError(t, err, "rank %d", r)
	}

	for r := 1; r < size; r++ {
		b, err := NewBox(r, size, 2, 2, 3, length)
		require.NoError(t, err)
		for s, g := range b.IndexMap.Ghosts {
			assert.Equal(t, float64(g), ghosts[r][s], "rank %d ghost %d", r, s)
		}
	}
	assert.Empty(t, ghosts[0])
}

func TestBoxRejectsBadArguments(t *testing.T) {
	_, err := NewBox(0, 1, 0, 1, 1, [3]float64{1, 1, 1})
	assert.Error(t, err)

	_, err = NewBox(2, 2, 2, 2, 2, [3]float64{1, 1, 1})
	assert.Error(t, err)

	// More ranks than z-layers cannot be partitioned.
	_, err = NewBox(0, 4, 2, 2, 2, [3]float64{1, 1, 1})
	assert.Error(t, err)
}
