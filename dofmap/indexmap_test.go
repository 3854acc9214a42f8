package dofmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	valid := &IndexMap{
		LocalSize:    3,
		GlobalOffset: 0,
		Ghosts:       []int64{3},
		Owners:       []int{1},
		Dest:         [][]int{{1}, nil, nil},
	}
	require.NoError(t, valid.Validate(0, 2))

	cases := []struct {
		name string
		im   IndexMap
	}{
		{"owner out of range", IndexMap{
			LocalSize: 1, Ghosts: []int64{5}, Owners: []int{2}, Dest: [][]int{nil},
		}},
		{"self-owned ghost", IndexMap{
			LocalSize: 1, Ghosts: []int64{5}, Owners: []int{0}, Dest: [][]int{nil},
		}},
		{"owner count mismatch", IndexMap{
			LocalSize: 1, Ghosts: []int64{5, 6}, Owners: []int{1}, Dest: [][]int{nil},
		}},
		{"dest count mismatch", IndexMap{
			LocalSize: 2, Dest: [][]int{{1}},
		}},
		{"self destination", IndexMap{
			LocalSize: 1, Dest: [][]int{{0}},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, tc.im.Validate(0, 2))
		})
	}
}

func TestGlobalToLocal(t *testing.T) {
	im := &IndexMap{LocalSize: 4, GlobalOffset: 10}

	local, ok := im.GlobalToLocal(12)
	require.True(t, ok)
	assert.Equal(t, 2, local)

	_, ok = im.GlobalToLocal(9)
	assert.False(t, ok)
	_, ok = im.GlobalToLocal(14)
	assert.False(t, ok)
}

func TestSizes(t *testing.T) {
	im := &IndexMap{LocalSize: 5, Ghosts: []int64{8, 9}, Owners: []int{1, 1}}
	assert.Equal(t, 2, im.GhostCount())
	assert.Equal(t, 7, im.Size())
}
