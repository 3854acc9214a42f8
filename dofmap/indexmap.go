// Package dofmap describes the distribution of a global degree-of-freedom
// index space across ranks. An IndexMap records which indices a rank
// owns, which remote indices it caches as ghosts, and which remote ranks
// ghost its owned indices. It is the ownership metadata consumed by the
// exchange layer; it is built once per mesh partition and never mutated.
package dofmap

import "fmt"

// IndexMap describes the local view of a distributed index space.
//
// The owned indices of all ranks form contiguous global blocks in rank
// order: this rank owns global indices [GlobalOffset, GlobalOffset+LocalSize).
// Local storage is laid out owned-first: local index i < LocalSize is the
// owned index GlobalOffset+i, and local index LocalSize+s is ghost slot s.
type IndexMap struct {
	// LocalSize is the number of indices owned by this rank.
	LocalSize int

	// GlobalOffset is the first global index owned by this rank.
	GlobalOffset int64

	// Ghosts maps ghost slot -> global index. Ghost slots are indices
	// referenced locally but owned elsewhere.
	Ghosts []int64

	// Owners maps ghost slot -> owning rank. Every ghost has exactly one
	// owner, never the local rank.
	Owners []int

	// Dest maps owned local index -> ranks that hold it as a ghost. A nil
	// entry means the index is not ghosted anywhere. Dest must be
	// symmetric with the Ghosts/Owners records of the remote ranks; the
	// exchange layer verifies this once at plan-build time.
	Dest [][]int
}

// GhostCount returns the number of ghost slots.
func (im *IndexMap) GhostCount() int { return len(im.Ghosts) }

// Size returns the total local storage size, owned plus ghosts.
func (im *IndexMap) Size() int { return im.LocalSize + len(im.Ghosts) }

// GlobalToLocal maps a global index to a local owned index. The second
// return is false if this rank does not own the index.
func (im *IndexMap) GlobalToLocal(global int64) (int, bool) {
	local := global - im.GlobalOffset
	if local < 0 || local >= int64(im.LocalSize) {
		return 0, false
	}
	return int(local), true
}

// Validate checks the locally verifiable preconditions for the given rank
// and world size. Cross-rank symmetry is not checked here; that requires
// communication and is done when an exchange plan is built.
func (im *IndexMap) Validate(rank, size int) error {
	if im.LocalSize < 0 {
		return fmt.Errorf("dofmap: negative local size %d", im.LocalSize)
	}
	if len(im.Owners) != len(im.Ghosts) {
		return fmt.Errorf("dofmap: %d ghost indices but %d owner records",
			len(im.Ghosts), len(im.Owners))
	}
	if im.Dest != nil && len(im.Dest) != im.LocalSize {
		return fmt.Errorf("dofmap: %d destination records for %d owned indices",
			len(im.Dest), im.LocalSize)
	}
	for s, owner := range im.Owners {
		if owner < 0 || owner >= size {
			return fmt.Errorf("dofmap: ghost slot %d: owner rank %d outside [0,%d)",
				s, owner, size)
		}
		if owner == rank {
			return fmt.Errorf("dofmap: ghost slot %d (global %d) owned by the local rank %d",
				s, im.Ghosts[s], rank)
		}
	}
	for i, dests := range im.Dest {
		for _, d := range dests {
			if d < 0 || d >= size {
				return fmt.Errorf("dofmap: owned index %d: destination rank %d outside [0,%d)",
					i, d, size)
			}
			if d == rank {
				return fmt.Errorf("dofmap: owned index %d lists the local rank %d as destination",
					i, rank)
			}
		}
	}
	return nil
}
