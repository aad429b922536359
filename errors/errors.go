// Package errors defines all exported error sentinels for the phonedata library.
//
// This is the single source of truth for error values. The top-level
// phonedata package and the internal packages import from here, so
// errors.Is checks work across package boundaries.
package errors

import "errors"

// Database errors
var (
	ErrCorruptDatabase = errors.New("phonedata: invalid phone database")
	ErrTruncatedFile   = errors.New("phonedata: database file is truncated")
)

// Lookup errors
var (
	ErrInvalidLength      = errors.New("phonedata: length of phone number is invalid")
	ErrInvalidFormat      = errors.New("phonedata: phone number prefix must be decimal digits")
	ErrNotFound           = errors.New("phonedata: phone number prefix not found in database")
	ErrInvalidCarrierCode = errors.New("phonedata: invalid carrier code")
)

// Configuration errors
var (
	ErrUnknownStrategy    = errors.New("phonedata: unknown lookup strategy")
	ErrInvalidBloomParams = errors.New("phonedata: bloom filter parameters out of range")
	ErrUnknownBloomHash   = errors.New("phonedata: unknown bloom hash function")
)

// Build errors
var (
	ErrBuilderClosed    = errors.New("phonedata: builder is closed")
	ErrEmptyDatabase    = errors.New("phonedata: cannot build database with zero entries")
	ErrInvalidPrefix    = errors.New("phonedata: prefix must be a 7 digit number")
	ErrDuplicatePrefix  = errors.New("phonedata: duplicate prefix")
	ErrInvalidVersion   = errors.New("phonedata: version must be 4 ASCII bytes")
	ErrInvalidRecord    = errors.New("phonedata: record fields must be non-empty and free of '|' and NUL")
	ErrDatabaseTooLarge = errors.New("phonedata: records region exceeds 2 GiB offset range")
)
