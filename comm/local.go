package comm

import (
	"fmt"
	"sync"
)

// World is an in-process communication world. Each rank gets its own
// Transport via Transport(rank); ranks are expected to run on separate
// goroutines. Message payloads are copied on send, so a sender may reuse
// its buffer as soon as Isend returns, matching the semantics a real MPI
// backend would provide after a completed nonblocking send.
type World struct {
	size      int
	mailboxes []*mailbox
}

// NewWorld creates an in-process world with the given number of ranks.
func NewWorld(size int) *World {
	if size < 1 {
		panic(fmt.Sprintf("comm: world size %d < 1", size))
	}
	w := &World{size: size, mailboxes: make([]*mailbox, size)}
	for i := range w.mailboxes {
		w.mailboxes[i] = newMailbox()
	}
	return w
}

// Size returns the number of ranks in the world.
func (w *World) Size() int { return w.size }

// Transport returns the Transport endpoint for the given rank.
func (w *World) Transport(rank int) Transport {
	if rank < 0 || rank >= w.size {
		panic(fmt.Sprintf("comm: rank %d out of range [0,%d)", rank, w.size))
	}
	return &localTransport{world: w, rank: rank}
}

type message struct {
	source, tag int
	payload     any // copied slice
}

// mailbox holds delivered-but-unmatched messages for one rank.
type mailbox struct {
	mu   sync.Mutex
	cond *sync.Cond
	msgs []message
}

func newMailbox() *mailbox {
	m := &mailbox{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

func (m *mailbox) put(msg message) {
	m.mu.Lock()
	m.msgs = append(m.msgs, msg)
	m.mu.Unlock()
	m.cond.Broadcast()
}

// take blocks until a message matching (source, tag) is available and
// removes it from the mailbox.
func (m *mailbox) take(source, tag int) message {
	m.mu.Lock()
	defer m.mu.Unlock()
	for {
		for i, msg := range m.msgs {
			if msg.source == source && msg.tag == tag {
				m.msgs = append(m.msgs[:i], m.msgs[i+1:]...)
				return msg
			}
		}
		m.cond.Wait()
	}
}

type localTransport struct {
	world *World
	rank  int
}

func (t *localTransport) Rank() int { return t.rank }
func (t *localTransport) Size() int { return t.world.size }

func (t *localTransport) Isend(data any, dest, tag int) Request {
	if dest < 0 || dest >= t.world.size {
		return errRequest{&RankError{Rank: dest, Err: fmt.Errorf("no such rank")}}
	}
	payload, err := clonePayload(data)
	if err != nil {
		return errRequest{&RankError{Rank: dest, Err: err}}
	}
	t.world.mailboxes[dest].put(message{source: t.rank, tag: tag, payload: payload})
	return errRequest{nil}
}

func (t *localTransport) Irecv(data any, source, tag int) Request {
	if source < 0 || source >= t.world.size {
		return errRequest{&RankError{Rank: source, Err: fmt.Errorf("no such rank")}}
	}
	return &recvRequest{t: t, data: data, source: source, tag: tag}
}

// errRequest is an already-completed request.
type errRequest struct{ err error }

func (r errRequest) Wait() error { return r.err }

type recvRequest struct {
	t           *localTransport
	data        any
	source, tag int
	done        bool
}

func (r *recvRequest) Wait() error {
	if r.done {
		return nil
	}
	r.done = true
	msg := r.t.world.mailboxes[r.t.rank].take(r.source, r.tag)
	if err := copyPayload(r.data, msg.payload); err != nil {
		return &RankError{Rank: r.source, Err: err}
	}
	return nil
}

func clonePayload(data any) (any, error) {
	switch s := data.(type) {
	case []float64:
		out := make([]float64, len(s))
		copy(out, s)
		return out, nil
	case []float32:
		out := make([]float32, len(s))
		copy(out, s)
		return out, nil
	case []int64:
		out := make([]int64, len(s))
		copy(out, s)
		return out, nil
	case []int32:
		out := make([]int32, len(s))
		copy(out, s)
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported payload type %T", data)
	}
}

func copyPayload(dst, src any) error {
	switch d := dst.(type) {
	case []float64:
		s, ok := src.([]float64)
		if !ok || len(s) != len(d) {
			return payloadMismatch(dst, src)
		}
		copy(d, s)
	case []float32:
		s, ok := src.([]float32)
		if !ok || len(s) != len(d) {
			return payloadMismatch(dst, src)
		}
		copy(d, s)
	case []int64:
		s, ok := src.([]int64)
		if !ok || len(s) != len(d) {
			return payloadMismatch(dst, src)
		}
		copy(d, s)
	case []int32:
		s, ok := src.([]int32)
		if !ok || len(s) != len(d) {
			return payloadMismatch(dst, src)
		}
		copy(d, s)
	default:
		return fmt.Errorf("unsupported receive buffer type %T", dst)
	}
	return nil
}

func payloadMismatch(dst, src any) error {
	return fmt.Errorf("malformed message: receive buffer %T(len %d) does not match payload %T(len %d)",
		dst, sliceLen(dst), src, sliceLen(src))
}

func sliceLen(v any) int {
	switch s := v.(type) {
	case []float64:
		return len(s)
	case []float32:
		return len(s)
	case []int64:
		return len(s)
	case []int32:
		return len(s)
	}
	return -1
}
