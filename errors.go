package bloomchain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an operation requires a chain that does
	// not exist (Info, Dump). Queries on missing chains do not return it;
	// a missing chain simply has no members.
	ErrNotFound = errors.New("chain not found")

	// ErrInvalidArgument is the umbrella for malformed parameters.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrChainExists is returned by Reserve and Restore when the key already
	// holds a chain. It unwraps to ErrInvalidArgument.
	ErrChainExists = fmt.Errorf("%w: the key already exists", ErrInvalidArgument)

	// ErrCorruptMetadata indicates a metadata record that cannot be decoded.
	ErrCorruptMetadata = errors.New("corrupt chain metadata")
)

// ErrInvalidErrorRate indicates an error rate outside (0, 1).
//
// It unwraps to ErrInvalidArgument.
type ErrInvalidErrorRate struct {
	Rate float64
}

func (e *ErrInvalidErrorRate) Error() string {
	return fmt.Sprintf("invalid error rate: %g (must be in (0, 1))", e.Rate)
}

func (e *ErrInvalidErrorRate) Unwrap() error { return ErrInvalidArgument }

// ErrInvalidCapacity indicates a zero reserve capacity.
//
// It unwraps to ErrInvalidArgument.
type ErrInvalidCapacity struct {
	Capacity uint32
}

func (e *ErrInvalidCapacity) Error() string {
	return fmt.Sprintf("invalid capacity: %d (must be positive)", e.Capacity)
}

func (e *ErrInvalidCapacity) Unwrap() error { return ErrInvalidArgument }
