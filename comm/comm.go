// Package comm provides an MPI-like point-to-point messaging substrate
// addressed by integer rank. It exposes nonblocking send/receive and a
// wait-all primitive, which is the minimal surface a distributed ghost
// exchange needs: one message per ordered rank pair, fire all, then wait
// all. Implementations are free to back this with real MPI, sockets, or
// in-process channels; World in this package is the in-process backend
// used for tests and single-process multi-rank runs.
package comm

import "fmt"

// Request represents an in-flight nonblocking operation. A Request is
// returned by Isend and Irecv and completed by Wait (usually via Waitall).
type Request interface {
	// Wait blocks until the operation completes and returns its error,
	// if any. Wait may be called at most once per Request.
	Wait() error
}

// Transport is the point-to-point messaging interface used by the
// exchange layer. Ranks are integers in [0, Size()). Messages between an
// ordered rank pair are matched by (source, tag); at most one message per
// (pair, tag) may be in flight at a time.
//
// Supported payload types are []float64, []float32, []int64 and []int32.
// The receive buffer length must equal the sent length exactly; a
// mismatch is a transport failure.
type Transport interface {
	Rank() int
	Size() int

	// Isend starts sending data to dest. The data slice is captured at
	// call time and may be reused by the caller once Isend returns.
	Isend(data any, dest, tag int) Request

	// Irecv starts receiving into data from source. The slice is filled
	// when the returned Request completes.
	Irecv(data any, source, tag int) Request
}

// Waitall completes every request and returns the first error
// encountered. All requests are waited on regardless of earlier
// failures, so no operation is left dangling.
func Waitall(reqs []Request) error {
	var first error
	for _, r := range reqs {
		if err := r.Wait(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// RankError reports a transport failure attributable to a specific peer
// rank.
type RankError struct {
	Rank int
	Err  error
}

func (e *RankError) Error() string {
	return fmt.Sprintf("transport failure with rank %d: %v", e.Rank, e.Err)
}

func (e *RankError) Unwrap() error { return e.Err }
