package pbx

import "errors"

var (
	// ErrInvalidArgument is returned when a required handle is nil or an
	// argument cannot be used as given.
	ErrInvalidArgument = errors.New("pbx: invalid argument")

	// ErrNotConnected is returned when the driver's transport is closed.
	ErrNotConnected = errors.New("pbx: not connected")

	// ErrUnsupported is returned for a channel kind outside Disabled, RGB, RGBW.
	ErrUnsupported = errors.New("pbx: unsupported channel kind")

	// ErrOutOfRange is returned when a component placement does not fit
	// in two bits, or a channel number or pixel count exceeds its field.
	ErrOutOfRange = errors.New("pbx: value out of range")

	// ErrNoDriver wraps the error returned while opening the transport.
	ErrNoDriver = errors.New("pbx: could not open driver")

	// ErrTransmissionFailed wraps write errors and short writes.
	ErrTransmissionFailed = errors.New("pbx: transmission failed")

	ErrBadMagic         = errors.New("pbx: bad record magic")
	ErrUnknownRecord    = errors.New("pbx: unknown record kind")
	ErrChecksumMismatch = errors.New("pbx: checksum mismatch")
)
