package bgmodel

import "errors"

var (
	// ErrEmptyGroup is returned when a model is requested for a group with
	// no observations.
	ErrEmptyGroup = errors.New("observation group is empty")

	// ErrDegenerateBinning is returned when the binning policy yields fewer
	// than one bin on an axis or an empty energy range.
	ErrDegenerateBinning = errors.New("degenerate binning")

	// ErrMissingBackground is returned when a model file has no background
	// table.
	ErrMissingBackground = errors.New("model file has no background table")
)
