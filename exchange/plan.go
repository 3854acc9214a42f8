// Package exchange implements the distributed ghost synchronization core:
// it partitions local and ghost degrees of freedom by remote rank, builds
// cached per-neighbor send/receive plans, and performs the point-to-point
// exchanges that keep shared degrees of freedom consistent across ranks.
package exchange

import (
	"errors"
	"fmt"
	"sort"

	"github.com/hexwave/hexwave/comm"
	"github.com/hexwave/hexwave/dofmap"
)

// Message tags. At most one message flows between an ordered rank pair
// per phase, so rank identity plus a per-phase tag is enough to match.
const (
	tagCount = iota + 1
	tagIndex
	tagForward
	tagReverse
)

// Plan is the cached communication schedule derived from an IndexMap.
//
// The receive plan groups ghost slots by owning rank: recvSlots is a
// stable permutation of ghost slots sorted by owner (ties keep original
// slot order), and recvOffsets[i]:recvOffsets[i+1] is the slice for
// recvRanks[i]. The send plan symmetrically groups owned local indices
// by destination rank, ordered to match the destination's ghost slot
// order so packed messages unpack positionally.
//
// A Plan is immutable after construction and is safely shared across
// repeated exchange calls. It must be rebuilt only if the partition
// topology changes.
type Plan struct {
	rank, size int
	localSize  int
	ghostCount int

	recvRanks   []int
	recvOffsets []int
	recvSlots   []int32

	sendRanks   []int
	sendOffsets []int
	sendSlots   []int32
}

// BuildPlan derives an exchange plan from the index map. Construction is
// a pure function of the map: two builds from an identical IndexMap
// yield identical plans, which keeps message ordering reproducible.
//
// Plan construction is collective: every rank in the transport's world
// must call BuildPlan concurrently. The build verifies cross-rank
// symmetry of the ownership metadata (every ghost's declared owner must
// itself record the ghosting rank as a destination) and fails with an
// error matching ErrInvalidTopology on any inconsistency.
func BuildPlan(im *dofmap.IndexMap, t comm.Transport) (*Plan, error) {
	rank, size := t.Rank(), t.Size()
	if err := im.Validate(rank, size); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTopology, err)
	}

	p := &Plan{
		rank:       rank,
		size:       size,
		localSize:  im.LocalSize,
		ghostCount: im.GhostCount(),
	}
	p.buildReceiveSide(im)
	p.buildSendSide(im)

	if err := p.verifySymmetry(im, t); err != nil {
		return nil, err
	}
	return p, nil
}

// buildReceiveSide stable-sorts ghost slots by owner and computes the
// per-owner slices.
func (p *Plan) buildReceiveSide(im *dofmap.IndexMap) {
	slots := make([]int32, p.ghostCount)
	for i := range slots {
		slots[i] = int32(i)
	}
	sort.SliceStable(slots, func(a, b int) bool {
		return im.Owners[slots[a]] < im.Owners[slots[b]]
	})
	p.recvSlots = slots

	p.recvOffsets = []int{0}
	for i := 0; i < len(slots); {
		owner := im.Owners[slots[i]]
		j := i
		for j < len(slots) && im.Owners[slots[j]] == owner {
			j++
		}
		p.recvRanks = append(p.recvRanks, owner)
		p.recvOffsets = append(p.recvOffsets, j)
		i = j
	}
}

// buildSendSide groups the flattened (owned index, destination rank)
// pairs by destination. The within-group order is provisional here; the
// symmetry handshake replaces it with the destination's ghost order.
func (p *Plan) buildSendSide(im *dofmap.IndexMap) {
	counts := make(map[int]int)
	for _, dests := range im.Dest {
		for _, d := range dests {
			counts[d]++
		}
	}
	p.sendRanks = make([]int, 0, len(counts))
	for d := range counts {
		p.sendRanks = append(p.sendRanks, d)
	}
	sort.Ints(p.sendRanks)

	p.sendOffsets = make([]int, len(p.sendRanks)+1)
	for i, d := range p.sendRanks {
		p.sendOffsets[i+1] = p.sendOffsets[i] + counts[d]
	}
	p.sendSlots = make([]int32, p.sendOffsets[len(p.sendRanks)])
}

// verifySymmetry performs the collective part of plan construction.
//
// Phase one exchanges per-pair message counts with every other rank and
// checks that each declared owner expects exactly the ghosts this rank
// declares. Phase two sends each owner the global indices of the ghosts
// this rank holds from it; the owner maps them to owned local indices,
// verifies each lists the requester as a destination, and stores the
// send permutation in the requester's order.
func (p *Plan) verifySymmetry(im *dofmap.IndexMap, t comm.Transport) error {
	willRecv := make([]int64, p.size) // ghosts owned by each rank
	for i, r := range p.recvRanks {
		willRecv[r] = int64(p.recvOffsets[i+1] - p.recvOffsets[i])
	}
	willSend := make([]int64, p.size) // owned indices ghosted on each rank
	for i, r := range p.sendRanks {
		willSend[r] = int64(p.sendOffsets[i+1] - p.sendOffsets[i])
	}

	// Phase one: all-to-all count exchange.
	claims := make([][]int64, p.size)
	reqs := make([]comm.Request, 0, 2*(p.size-1))
	for r := 0; r < p.size; r++ {
		if r == p.rank {
			continue
		}
		reqs = append(reqs, t.Isend([]int64{willSend[r]}, r, tagCount))
		claims[r] = make([]int64, 1)
		reqs = append(reqs, t.Irecv(claims[r], r, tagCount))
	}
	if err := comm.Waitall(reqs); err != nil {
		return wrapTransportErr(err)
	}
	for r := 0; r < p.size; r++ {
		if r == p.rank {
			continue
		}
		if claims[r][0] != willRecv[r] {
			return &TopologyError{Rank: r, Err: fmt.Errorf(
				"rank %d sends %d values but %d ghosts are declared here",
				r, claims[r][0], willRecv[r])}
		}
	}

	// Phase two: ghost index lists flow ghost-holder -> owner.
	reqs = reqs[:0]
	for i, owner := range p.recvRanks {
		begin, end := p.recvOffsets[i], p.recvOffsets[i+1]
		globals := make([]int64, end-begin)
		for k, slot := range p.recvSlots[begin:end] {
			globals[k] = im.Ghosts[slot]
		}
		reqs = append(reqs, t.Isend(globals, owner, tagIndex))
	}
	requested := make([][]int64, len(p.sendRanks))
	for i, dest := range p.sendRanks {
		requested[i] = make([]int64, p.sendOffsets[i+1]-p.sendOffsets[i])
		reqs = append(reqs, t.Irecv(requested[i], dest, tagIndex))
	}
	if err := comm.Waitall(reqs); err != nil {
		return wrapTransportErr(err)
	}

	for i, dest := range p.sendRanks {
		begin := p.sendOffsets[i]
		for k, global := range requested[i] {
			local, ok := im.GlobalToLocal(global)
			if !ok {
				return &TopologyError{Rank: dest, Err: fmt.Errorf(
					"rank %d ghosts global index %d, which is not owned here", dest, global)}
			}
			if !containsRank(im.Dest[local], dest) {
				return &TopologyError{Rank: dest, Err: fmt.Errorf(
					"rank %d ghosts global index %d, but it is not recorded as a destination",
					dest, global)}
			}
			p.sendSlots[begin+k] = int32(local)
		}
	}
	return nil
}

func containsRank(ranks []int, r int) bool {
	for _, x := range ranks {
		if x == r {
			return true
		}
	}
	return false
}

func wrapTransportErr(err error) error {
	var rerr *comm.RankError
	if errors.As(err, &rerr) {
		return &ExchangeError{Rank: rerr.Rank, Err: rerr.Err}
	}
	return &ExchangeError{Rank: -1, Err: err}
}

// LocalSize returns the owned region length of matching value buffers.
func (p *Plan) LocalSize() int { return p.localSize }

// GhostCount returns the ghost region length of matching value buffers.
func (p *Plan) GhostCount() int { return p.ghostCount }

// BufferLen returns the required value buffer length, owned plus ghosts.
func (p *Plan) BufferLen() int { return p.localSize + p.ghostCount }

// RecvRanks returns the unique owner ranks this rank receives from in
// the forward direction, in ascending order.
func (p *Plan) RecvRanks() []int {
	out := make([]int, len(p.recvRanks))
	copy(out, p.recvRanks)
	return out
}

// SendRanks returns the unique destination ranks this rank sends to in
// the forward direction, in ascending order.
func (p *Plan) SendRanks() []int {
	out := make([]int, len(p.sendRanks))
	copy(out, p.sendRanks)
	return out
}
