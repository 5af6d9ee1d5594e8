package ism330dhcx

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidRange is returned for paged memory requests that would run past
	// the last page. Nothing is written to the bus in that case.
	ErrInvalidRange = errors.New("ism330dhcx: paged address out of range")

	// ErrStaleState guards against acting on state that was not re-read in
	// the current operation: an embedded-function demand snapshot from an
	// older generation, or a BankScope used after its WithBank returned.
	ErrStaleState = errors.New("ism330dhcx: stale device state")

	// ErrBankInUse is returned when a bank scope is already open.
	ErrBankInUse = errors.New("ism330dhcx: bank scope already open")

	// ErrInvalidRoute is returned when a route table names a source the pin
	// cannot carry, or a route flag name is unknown.
	ErrInvalidRoute = errors.New("ism330dhcx: invalid interrupt route")

	// ErrWrongDevice is returned by New when WHO_AM_I does not read 0x6B.
	ErrWrongDevice = errors.New("ism330dhcx: unexpected WHO_AM_I")
)

// IOError reports a failed bus transaction. The device may be left mid
// sequence; callers should re-establish known state before retrying.
type IOError struct {
	Op   string // "read" or "write"
	Bank Bank
	Reg  byte
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("ism330dhcx: %s %s reg 0x%02X: %v", e.Op, e.Bank, e.Reg, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// RestoreError is returned by WithBank when switching back to the user bank
// failed after the body had already failed. It unwraps to the body's error.
type RestoreError struct {
	Err        error
	RestoreErr error
}

func (e *RestoreError) Error() string {
	return fmt.Sprintf("%v (user bank restore failed: %v)", e.Err, e.RestoreErr)
}

func (e *RestoreError) Unwrap() error { return e.Err }
