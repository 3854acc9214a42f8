package exchange

import (
	"fmt"

	"github.com/hexwave/hexwave/comm"
	"github.com/hexwave/hexwave/device"
)

// Reduction selects how ScatterReverse combines ghost contributions into
// the owned value. The choice is a per-call policy, not a property of
// the plan.
type Reduction int

const (
	// Insert overwrites the owned value with the received ghost value
	// (last writer wins across neighbor ranks).
	Insert Reduction = iota

	// Add sums received ghost contributions into the owned value, the
	// usual policy after redundant local assembly.
	Add
)

// Exchanger synchronizes the ghost region of a value buffer against its
// owners using a cached Plan. The staging buffers are allocated once,
// one per unique remote rank, and reused by every exchange call.
//
// An Exchanger is not safe for concurrent use: exchanges on the same
// buffer must be fully completed before the next one is issued.
type Exchanger[T device.Float] struct {
	plan *Plan
	t    comm.Transport

	// Forward direction: sendSets gather owned values, ghostSets scatter
	// received values into the ghost region. Reverse swaps the roles.
	sendSets  []*device.IndexSet
	ghostSets []*device.IndexSet
	sendBufs  [][]T
	recvBufs  [][]T
}

// NewExchanger creates an exchanger for the plan over the transport the
// plan was built with.
func NewExchanger[T device.Float](plan *Plan, t comm.Transport) *Exchanger[T] {
	e := &Exchanger[T]{plan: plan, t: t}

	e.sendSets = make([]*device.IndexSet, len(plan.sendRanks))
	e.sendBufs = make([][]T, len(plan.sendRanks))
	for i := range plan.sendRanks {
		begin, end := plan.sendOffsets[i], plan.sendOffsets[i+1]
		e.sendSets[i] = device.NewIndexSet(plan.sendSlots[begin:end])
		e.sendBufs[i] = make([]T, end-begin)
	}

	e.ghostSets = make([]*device.IndexSet, len(plan.recvRanks))
	e.recvBufs = make([][]T, len(plan.recvRanks))
	for i := range plan.recvRanks {
		begin, end := plan.recvOffsets[i], plan.recvOffsets[i+1]
		slots := make([]int32, end-begin)
		for k, s := range plan.recvSlots[begin:end] {
			slots[k] = int32(plan.localSize) + s
		}
		e.ghostSets[i] = device.NewIndexSet(slots)
		e.recvBufs[i] = make([]T, end-begin)
	}
	return e
}

// Plan returns the plan this exchanger was built from.
func (e *Exchanger[T]) Plan() *Plan { return e.plan }

func (e *Exchanger[T]) checkBuffer(v *device.Vector[T]) error {
	if v.Len() != e.plan.BufferLen() {
		return fmt.Errorf("%w: buffer length %d, plan requires %d (%d owned + %d ghost)",
			ErrInvalidArgument, v.Len(), e.plan.BufferLen(), e.plan.localSize, e.plan.ghostCount)
	}
	return nil
}

// ScatterForward propagates authoritative owned values into the ghost
// slots of every rank that caches them, overwriting the ghost region.
// It blocks until all messages of this call complete. Repeated calls
// with unchanged owned values leave the ghost region unchanged.
//
// A rank with no ghosts and no destinations issues no messages and
// returns immediately. On transport failure the call returns an error
// matching ErrExchangeFailed naming the peer rank, and the buffer must
// be considered unsynchronized as a whole.
func (e *Exchanger[T]) ScatterForward(v *device.Vector[T]) error {
	if err := e.checkBuffer(v); err != nil {
		return err
	}

	for i := range e.sendBufs {
		if err := v.Gather(e.sendSets[i], e.sendBufs[i]); err != nil {
			return err
		}
	}

	reqs := make([]comm.Request, 0, len(e.sendBufs)+len(e.recvBufs))
	for i, dest := range e.plan.sendRanks {
		reqs = append(reqs, e.t.Isend(e.sendBufs[i], dest, tagForward))
	}
	for i, owner := range e.plan.recvRanks {
		reqs = append(reqs, e.t.Irecv(e.recvBufs[i], owner, tagForward))
	}
	if err := comm.Waitall(reqs); err != nil {
		return wrapTransportErr(err)
	}

	for i := range e.recvBufs {
		if err := v.ScatterInsert(e.ghostSets[i], e.recvBufs[i]); err != nil {
			return err
		}
	}
	return nil
}

// ScatterReverse sends ghost-slot values back to their owning ranks and
// combines them into the owned slots under the given reduction. Ghost
// slots themselves are left untouched; follow with ScatterForward to
// re-broadcast the authoritative owned values.
//
// The same failure and blocking semantics as ScatterForward apply.
func (e *Exchanger[T]) ScatterReverse(v *device.Vector[T], op Reduction) error {
	if err := e.checkBuffer(v); err != nil {
		return err
	}
	switch op {
	case Insert, Add:
	default:
		return fmt.Errorf("%w: unknown reduction %d", ErrInvalidArgument, op)
	}

	for i := range e.recvBufs {
		if err := v.Gather(e.ghostSets[i], e.recvBufs[i]); err != nil {
			return err
		}
	}

	reqs := make([]comm.Request, 0, len(e.sendBufs)+len(e.recvBufs))
	for i, owner := range e.plan.recvRanks {
		reqs = append(reqs, e.t.Isend(e.recvBufs[i], owner, tagReverse))
	}
	for i, dest := range e.plan.sendRanks {
		reqs = append(reqs, e.t.Irecv(e.sendBufs[i], dest, tagReverse))
	}
	if err := comm.Waitall(reqs); err != nil {
		return wrapTransportErr(err)
	}

	for i := range e.sendBufs {
		var err error
		if op == Add {
			err = v.ScatterAdd(e.sendSets[i], e.sendBufs[i])
		} else {
			err = v.ScatterInsert(e.sendSets[i], e.sendBufs[i])
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Free releases cached device-side index sets. Host-only exchangers need
// not call it.
func (e *Exchanger[T]) Free() {
	for _, ix := range e.sendSets {
		ix.Free()
	}
	for _, ix := range e.ghostSets {
		ix.Free()
	}
}
