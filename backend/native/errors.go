package native

import "errors"

// Package errors for the HAL lowering backend.
var (
	// ErrNilHALDevice is returned when a Lowerer is created without a device.
	ErrNilHALDevice = errors.New("native: HAL device is nil")

	// ErrNoHALDevice is returned when a device provider does not expose a
	// HAL device.
	ErrNoHALDevice = errors.New("native: provider does not expose a HAL device")

	// ErrClosed is returned when lowering through a closed Lowerer.
	ErrClosed = errors.New("native: lowerer is closed")

	// ErrDestroyed is returned when lowering a frontend object whose last
	// reference was released.
	ErrDestroyed = errors.New("native: object is destroyed")

	// ErrUnsupportedBinding is returned for binding kinds the HAL cannot
	// express.
	ErrUnsupportedBinding = errors.New("native: binding kind has no HAL equivalent")
)
