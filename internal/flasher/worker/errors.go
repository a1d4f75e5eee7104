package worker

import (
	"errors"
	"fmt"
)

// UnpackErrorKind discriminates unpack failures. The session maps
// KindChecksumMismatch to its own checksum error code and everything else
// to a generic unpack failure.
type UnpackErrorKind int

const (
	KindGeneric UnpackErrorKind = iota
	KindChecksumMismatch
)

// UnpackError is the structured failure value of an unpack operation.
type UnpackError struct {
	Kind  UnpackErrorKind
	Image string
	Err   error
}

func (e *UnpackError) Error() string {
	if e.Kind == KindChecksumMismatch {
		return fmt.Sprintf("checksum mismatch unpacking %s: %v", e.Image, e.Err)
	}
	return fmt.Sprintf("failed to unpack %s: %v", e.Image, e.Err)
}

func (e *UnpackError) Unwrap() error {
	return e.Err
}

// IsChecksumMismatch reports whether err carries the checksum-mismatch
// discriminant.
func IsChecksumMismatch(err error) bool {
	var ue *UnpackError
	return errors.As(err, &ue) && ue.Kind == KindChecksumMismatch
}
