package comm

import "fmt"

// FaultTransport wraps a Transport and fails every send to a configured
// destination rank. It exists to exercise the failure path of the
// exchange layer without a real unreachable peer.
//
// When the wrapped transport is a World endpoint, a failed send delivers
// a poisoned message so the peer's matching receive fails too instead of
// blocking forever, which is how a broken link manifests on both ends.
type FaultTransport struct {
	Transport
	FailDest int
}

// NewFaultTransport returns a transport that behaves like t except that
// sends to failDest fail.
func NewFaultTransport(t Transport, failDest int) *FaultTransport {
	return &FaultTransport{Transport: t, FailDest: failDest}
}

func (f *FaultTransport) Isend(data any, dest, tag int) Request {
	if dest == f.FailDest {
		if lt, ok := f.Transport.(*localTransport); ok {
			lt.world.mailboxes[dest].put(message{source: lt.rank, tag: tag, payload: nil})
		}
		return errRequest{&RankError{Rank: dest, Err: fmt.Errorf("rank unreachable")}}
	}
	return f.Transport.Isend(data, dest, tag)
}
