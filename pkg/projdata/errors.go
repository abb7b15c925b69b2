package projdata

import (
	"errors"
	"fmt"
)

var (
	// ErrBinOutOfRange is returned for a bin whose indices fall outside the
	// configured sinogram ranges.
	ErrBinOutOfRange = errors.New("projdata: bin out of range")

	// ErrDegeneratePair is returned when both ends of a pair are the same detector
	ErrDegeneratePair = errors.New("projdata: detector cannot pair with itself")

	// ErrDetectorOutOfRange is returned for detector or ring indices outside the scanner
	ErrDetectorOutOfRange = errors.New("projdata: detector index out of range")
)

// PreconditionError is a configuration error that prevents a projection
// data description from being constructed.
type PreconditionError struct {
	Check  string
	Detail string
}

// NewPreconditionError formats the detail of a failed check
func NewPreconditionError(check, format string, args ...any) *PreconditionError {
	return &PreconditionError{
		Check:  check,
		Detail: fmt.Sprintf(format, args...),
	}
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("projdata: precondition %q violated: %s", e.Check, e.Detail)
}
