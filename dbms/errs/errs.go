// Package errs defines the failure classes surfaced by the index.
//
// Every fatal condition is reported as an error marked with one of the
// sentinels below, so callers can classify it with errors.Is regardless of
// how much context was wrapped around it on the way up.
package errs

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrStorageInit: the storage location could not be created, or already exists.
	ErrStorageInit = errors.New("storage initialization failed")
	// ErrCorruptIndex: metadata or a node unit is missing, unreadable or malformed.
	ErrCorruptIndex = errors.New("corrupt index")
	// ErrIO: read, seek or write failure against the source or the storage units.
	ErrIO = errors.New("i/o failure")
	// ErrDecode: bytes read from a recorded range are not valid text.
	ErrDecode = errors.New("invalid text")
)

// StorageInit wraps err as a storage initialization failure.
func StorageInit(err error, format string, args ...interface{}) error {
	return mark(err, ErrStorageInit, format, args...)
}

// Corrupt wraps err as a corrupt index failure.
func Corrupt(err error, format string, args ...interface{}) error {
	return mark(err, ErrCorruptIndex, format, args...)
}

// IO wraps err as an I/O failure.
func IO(err error, format string, args ...interface{}) error {
	return mark(err, ErrIO, format, args...)
}

// Decode wraps err as a text decoding failure.
func Decode(err error, format string, args ...interface{}) error {
	return mark(err, ErrDecode, format, args...)
}

// StorageInitf reports a storage initialization failure with no underlying cause.
func StorageInitf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrStorageInit)
}

// Corruptf reports a corrupt index with no underlying cause.
func Corruptf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrCorruptIndex)
}

// IOf reports an I/O failure with no underlying cause.
func IOf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrIO)
}

// Decodef reports a decoding failure with no underlying cause.
func Decodef(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrDecode)
}

func mark(err, class error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	// Keep the first classification: a corrupt unit reported by a store
	// stays corrupt even when a caller wraps it as I/O.
	for _, known := range []error{ErrStorageInit, ErrCorruptIndex, ErrIO, ErrDecode} {
		if errors.Is(err, known) {
			return errors.Wrapf(err, format, args...)
		}
	}
	return errors.Mark(errors.Wrapf(err, format, args...), class)
}
