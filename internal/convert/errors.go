package convert

import (
	"errors"
	"fmt"
)

var ErrConversionFailed = errors.New("conversion failed")

// ConversionError is returned when the backend rejects a conversion or the
// stream breaks before a successful outcome was received.
type ConversionError struct {
	Phase  Phase
	Reason string
	Err    error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("conversion failed while %s: %s", e.Phase, e.Reason)
}

func (e *ConversionError) Is(target error) bool {
	return target == ErrConversionFailed
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}
