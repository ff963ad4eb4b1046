package deduplication

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks fatal pre-pass errors: invalid threshold,
	// mismatched permutation counts, a missing stop-word resource.
	// No work is done when a pass fails with it.
	ErrConfiguration = errors.New("configuration error")

	// ErrInvariantViolation marks an implementation bug: an empty cluster
	// reaching selection, a record landing in two partitions. It never
	// occurs for valid input.
	ErrInvariantViolation = errors.New("invariant violation")
)

func configErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

func invariantErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvariantViolation, fmt.Sprintf(format, args...))
}
