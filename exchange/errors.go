package exchange

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTopology reports ownership metadata that is inconsistent
	// across ranks. It is detected once, at plan-build time, and is not
	// recoverable: the partition itself is wrong.
	ErrInvalidTopology = errors.New("exchange: inconsistent ownership topology")

	// ErrInvalidArgument reports a caller error such as a value buffer
	// whose length does not match the plan. Buffers are never silently
	// truncated or padded.
	ErrInvalidArgument = errors.New("exchange: argument does not match plan")

	// ErrExchangeFailed reports a transport-level failure during an
	// exchange call. The whole call is failed regardless of partial
	// per-rank progress; a partially synchronized buffer must not be
	// used for further computation.
	ErrExchangeFailed = errors.New("exchange: transport failure")
)

// ExchangeError is a transport failure attributed to a peer rank. It
// matches ErrExchangeFailed under errors.Is.
type ExchangeError struct {
	Rank int
	Err  error
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("exchange with rank %d failed: %v", e.Rank, e.Err)
}

func (e *ExchangeError) Unwrap() error { return e.Err }

func (e *ExchangeError) Is(target error) bool { return target == ErrExchangeFailed }

// TopologyError is an ownership inconsistency attributed to a peer rank.
// It matches ErrInvalidTopology under errors.Is.
type TopologyError struct {
	Rank int
	Err  error
}

func (e *TopologyError) Error() string {
	return fmt.Sprintf("inconsistent topology with rank %d: %v", e.Rank, e.Err)
}

func (e *TopologyError) Unwrap() error { return e.Err }

func (e *TopologyError) Is(target error) bool { return target == ErrInvalidTopology }
