package service

import "errors"

var (
	// ErrWriteContention is returned when every conditional write attempt lost to a
	// concurrent writer.
	ErrWriteContention = errors.New("booking is being modified concurrently, please retry")

	// errNoChange short-circuits a mutation whose result would equal the stored booking.
	errNoChange = errors.New("no change")
)
