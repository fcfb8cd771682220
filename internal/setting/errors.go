package setting

import "errors"

// Domain errors for the setting package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, setting.ErrBufferTooSmall) {
//	    // grow the buffer and pack again
//	}
var (
	// ErrBufferTooSmall is returned by PackAndReset when the encoded snapshot
	// does not fit the destination. Logger state is left untouched.
	ErrBufferTooSmall = errors.New("setting: destination buffer too small")

	// ErrMalformedSnapshot is returned when packed bytes cannot be decoded.
	ErrMalformedSnapshot = errors.New("setting: malformed snapshot")

	// ErrInvalidValue is returned when encoding a Value that was not built
	// by one of the constructors.
	ErrInvalidValue = errors.New("setting: invalid value kind")
)
