package session

import (
	"errors"
	"fmt"

	"github.com/abflash-io/abflash/internal/flasher/state"
	"github.com/abflash-io/abflash/internal/flasher/worker"
)

// Failure couples a low-level cause with the one coarse code its phase is
// obligated to surface. The cause is logged only; observers see the code.
type Failure struct {
	Code  state.ErrCode
	Cause error
}

func (f *Failure) Error() string {
	if f.Cause == nil {
		return f.Code.String()
	}
	return fmt.Sprintf("%s: %v", f.Code, f.Cause)
}

func (f *Failure) Unwrap() error {
	return f.Cause
}

func failf(code state.ErrCode, format string, args ...any) *Failure {
	return &Failure{Code: code, Cause: fmt.Errorf(format, args...)}
}

// translate maps an arbitrary phase error to its coarse code. Anything
// unstructured defaults to Unknown.
func translate(err error) state.ErrCode {
	var f *Failure
	if errors.As(err, &f) {
		return f.Code
	}
	return state.ErrUnknown
}

// unpackCode disambiguates unpack failures on the worker's structured
// discriminant: checksum mismatches get their own code, everything else is
// a generic unpack failure.
func unpackCode(err error) state.ErrCode {
	if worker.IsChecksumMismatch(err) {
		return state.ErrChecksumMismatch
	}
	return state.ErrUnpackFailed
}
