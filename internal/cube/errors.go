package cube

import (
	"errors"
	"fmt"
)

var (
	// ErrBinningMismatch is wrapped by BinningMismatchError.
	ErrBinningMismatch = errors.New("binning mismatch")

	// ErrMissingHDU is returned when a required table is absent from a file.
	ErrMissingHDU = errors.New("missing HDU")
)

// BinningMismatchError reports two cubes or models that were expected to
// share bin edges. Left and Right describe the differing values.
type BinningMismatchError struct {
	Axis  string
	Left  string
	Right string
}

func (e *BinningMismatchError) Error() string {
	return fmt.Sprintf("expected same %s binning, but got %s and %s", e.Axis, e.Left, e.Right)
}

func (e *BinningMismatchError) Unwrap() error { return ErrBinningMismatch }
